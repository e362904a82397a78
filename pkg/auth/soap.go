package auth

import (
	"bytes"
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/forcebridge/pkg/clients"
	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/logger"
	"github.com/ajitpratap0/forcebridge/pkg/salesforce"
)

// SOAPAuthenticator logs in through the partner SOAP API with username and
// password plus security token.
type SOAPAuthenticator struct {
	apiVersion string
	http       *clients.HTTPClient
	logger     *zap.Logger
	now        func() time.Time
}

// NewSOAPAuthenticator creates a SOAP authenticator for apiVersion.
func NewSOAPAuthenticator(apiVersion string, httpClient *clients.HTTPClient, log *zap.Logger) *SOAPAuthenticator {
	if log == nil {
		log = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = clients.NewHTTPClient(nil, log)
	}
	return &SOAPAuthenticator{
		apiVersion: strings.TrimPrefix(apiVersion, "v"),
		http:       httpClient,
		logger:     log.With(zap.String("component", "soap_login")),
		now:        time.Now,
	}
}

const loginEnvelope = `<?xml version="1.0" encoding="utf-8" ?>
<env:Envelope xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
  <env:Body>
    <n1:login xmlns:n1="urn:partner.soap.sforce.com">
      <n1:username>{{username}}</n1:username>
      <n1:password>{{password}}</n1:password>
    </n1:login>
  </env:Body>
</env:Envelope>`

type loginResponse struct {
	Body struct {
		LoginResponse struct {
			Result struct {
				ServerURL string `xml:"serverUrl"`
				SessionID string `xml:"sessionId"`
				UserID    string `xml:"userId"`
			} `xml:"result"`
		} `xml:"loginResponse"`
		Fault *struct {
			Code   string `xml:"faultcode"`
			String string `xml:"faultstring"`
		} `xml:"Fault"`
	} `xml:"Body"`
}

// Authenticate performs one login request.
func (a *SOAPAuthenticator) Authenticate(ctx context.Context, creds Credentials) (*salesforce.Session, error) {
	endpoint := LoginURL(creds.Domain) + "/services/Soap/u/" + a.apiVersion
	a.logger.Debug("logging in",
		zap.String("username", creds.Username),
		zap.String("endpoint", endpoint))

	body := strings.NewReplacer(
		"{{username}}", xmlEscape(creds.Username),
		"{{password}}", xmlEscape(creds.Password+creds.SecurityToken),
	).Replace(loginEnvelope)

	req, err := a.http.NewRequest(ctx, http.MethodPost, endpoint, strings.NewReader(body), map[string]string{
		"Content-Type": "text/xml; charset=UTF-8",
		"SOAPAction":   "login",
		"charset":      "UTF-8",
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to build login request")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		a.logger.Warn("login request failed", logger.MaskedError(err))
		return nil, errors.Wrap(errors.Wrap(err, errors.ErrorTypeConnection, "login request failed"),
			errors.ErrorTypeAuthentication, "salesforce login failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "failed to read login response")
	}

	var parsed loginResponse
	parseErr := xml.Unmarshal(data, &parsed)

	if f := parsed.Body.Fault; parseErr == nil && f != nil {
		code := f.Code
		if i := strings.LastIndexByte(code, ':'); i >= 0 {
			code = code[i+1:]
		}
		return nil, errors.Newf(errors.ErrorTypeAuthentication, "salesforce login failed: %s", f.String).
			WithDetail("fault_code", code).
			WithDetail("status", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrorTypeAuthentication, "salesforce login failed with HTTP %d", resp.StatusCode).
			WithDetail("status", resp.StatusCode)
	}
	if parseErr != nil {
		return nil, errors.Wrap(parseErr, errors.ErrorTypeAuthentication, "malformed login response")
	}

	result := parsed.Body.LoginResponse.Result
	if result.SessionID == "" || result.ServerURL == "" {
		return nil, errors.New(errors.ErrorTypeAuthentication, "login response carries no session")
	}
	instance, err := salesforce.InstanceFromServerURL(result.ServerURL)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeAuthentication, "invalid serverUrl in login response")
	}

	a.logger.Info("logged in", zap.String("instance", instance))
	return &salesforce.Session{
		ID:          result.SessionID,
		InstanceURL: instance,
		APIVersion:  a.apiVersion,
		IssuedAt:    a.now(),
	}, nil
}

func xmlEscape(s string) string {
	var b bytes.Buffer
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
