package salesforce

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/json"
)

// ErrorDetail is one entry of the service's error array.
type ErrorDetail struct {
	Message   string   `json:"message"`
	ErrorCode string   `json:"errorCode"`
	Fields    []string `json:"fields,omitempty"`
}

// APIError is a non-2xx response decoded from the service.
type APIError struct {
	StatusCode int
	Details    []ErrorDetail
}

func (e *APIError) Error() string {
	if summary := e.Summary(); summary != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, summary)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Summary joins the details as "CODE: message; ..." without the status.
func (e *APIError) Summary() string {
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		switch {
		case d.ErrorCode != "" && d.Message != "":
			parts = append(parts, d.ErrorCode+": "+d.Message)
		case d.ErrorCode != "":
			parts = append(parts, d.ErrorCode)
		default:
			parts = append(parts, d.Message)
		}
	}
	return strings.Join(parts, "; ")
}

// Code returns the first error code, or "".
func (e *APIError) Code() string {
	if len(e.Details) == 0 {
		return ""
	}
	return e.Details[0].ErrorCode
}

// HasCode reports whether any detail carries code.
func (e *APIError) HasCode(code string) bool {
	for _, d := range e.Details {
		if d.ErrorCode == code {
			return true
		}
	}
	return false
}

// oauthError is the token endpoint's error body.
type oauthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

const maxRawErrorBody = 512

// ParseAPIError decodes an error body. The REST API answers with an array
// of details; the OAuth endpoints with a single object; anything else is
// kept as raw text.
func ParseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}

	var details []ErrorDetail
	if err := json.Unmarshal(body, &details); err == nil && len(details) > 0 {
		apiErr.Details = details
		return apiErr
	}

	var single ErrorDetail
	if err := json.Unmarshal(body, &single); err == nil && (single.ErrorCode != "" || single.Message != "") {
		apiErr.Details = []ErrorDetail{single}
		return apiErr
	}

	var oe oauthError
	if err := json.Unmarshal(body, &oe); err == nil && oe.Error != "" {
		apiErr.Details = []ErrorDetail{{ErrorCode: oe.Error, Message: oe.ErrorDescription}}
		return apiErr
	}

	raw := strings.TrimSpace(string(body))
	if len(raw) > maxRawErrorBody {
		raw = raw[:maxRawErrorBody] + "..."
	}
	if raw != "" {
		apiErr.Details = []ErrorDetail{{Message: raw}}
	}
	return apiErr
}

// Classify maps an API error to the error type callers branch on.
func Classify(e *APIError) errors.ErrorType {
	switch {
	case e.HasCode("REQUEST_LIMIT_EXCEEDED"):
		return errors.ErrorTypeRateLimit
	case e.StatusCode == http.StatusUnauthorized || e.HasCode("INVALID_SESSION_ID"):
		return errors.ErrorTypeAuthentication
	case e.StatusCode == http.StatusForbidden:
		return errors.ErrorTypePermission
	case e.StatusCode == http.StatusNotFound:
		return errors.ErrorTypeNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return errors.ErrorTypeRateLimit
	case e.StatusCode >= http.StatusInternalServerError:
		return errors.ErrorTypeConnection
	default:
		return errors.ErrorTypeData
	}
}

// asTypedError wraps an APIError in a structured error of its class.
func asTypedError(e *APIError) *errors.Error {
	return errors.Wrap(e, Classify(e), "salesforce rejected the request")
}
