package base

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/logger"
	"github.com/ajitpratap0/forcebridge/pkg/salesforce"
)

// ErrorHandler classifies errors for retry decisions and turns per-record
// API failures into recoverable record errors, keeping counts by cause.
type ErrorHandler struct {
	logger      *zap.Logger
	errorCounts map[string]int64
	mu          sync.Mutex
	total       int64
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger:      logger,
		errorCounts: make(map[string]int64),
	}
}

// ShouldRetry determines if a read call should be retried. Authentication
// and permission problems never are, even when wrapped in a transient type.
func (eh *ErrorHandler) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.IsType(err, errors.ErrorTypeAuthentication) || errors.IsType(err, errors.ErrorTypePermission) {
		return false
	}
	return errors.IsRetryable(err)
}

// HandleRecordError converts the failure of record index into a
// recoverable error. Missing identifiers keep their own type.
func (eh *ErrorHandler) HandleRecordError(index int, err error) error {
	if err == nil {
		return nil
	}

	category := eh.categorizeError(err)
	eh.mu.Lock()
	eh.total++
	eh.errorCounts[category]++
	eh.mu.Unlock()

	eh.logger.Warn("record failed",
		zap.Int("index", index),
		zap.String("error_type", category),
		logger.MaskedError(err))

	switch errors.TypeOf(err) {
	case errors.ErrorTypeRecord, errors.ErrorTypeMissingIdentifier:
		return err
	default:
		return errors.Wrap(err, errors.ErrorTypeRecord, "record rejected")
	}
}

// GetErrorStats returns error statistics
func (eh *ErrorHandler) GetErrorStats() map[string]interface{} {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	counts := make(map[string]int64, len(eh.errorCounts))
	for k, v := range eh.errorCounts {
		counts[k] = v
	}
	return map[string]interface{}{
		"record_errors":  eh.total,
		"errors_by_type": counts,
	}
}

// categorizeError prefers the API error code, then the structured type.
func (eh *ErrorHandler) categorizeError(err error) string {
	var apiErr *salesforce.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.Code(); code != "" {
			return strings.ToLower(code)
		}
	}
	if errors.IsType(err, errors.ErrorTypeMissingIdentifier) {
		return string(errors.ErrorTypeMissingIdentifier)
	}
	var e *errors.Error
	if errors.As(err, &e) && e.Type == errors.ErrorTypeRecord && e.Cause != nil {
		return string(errors.TypeOf(e.Cause))
	}
	return string(errors.TypeOf(err))
}
