package salesforce

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/forcebridge/pkg/clients"
	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/json"
	"github.com/ajitpratap0/forcebridge/pkg/metrics"
	"github.com/ajitpratap0/forcebridge/pkg/observability"
)

// Operation names used for metrics labels and span names.
const (
	OpQuery          = "query"
	OpQueryAll       = "query_all"
	OpQueryMore      = "query_more"
	OpDescribe       = "describe"
	OpDescribeGlobal = "describe_global"
	OpCreate         = "create"
	OpUpdate         = "update"
	OpDelete         = "delete"
)

// Client issues REST calls on behalf of one Session. It is not safe for
// concurrent use by design of the callers: every node drives it from one
// goroutine.
type Client struct {
	session *Session
	http    *clients.HTTPClient
	logger  *zap.Logger
	metrics *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics records every call on m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for session. A nil httpClient gets defaults.
func NewClient(session *Session, httpClient *clients.HTTPClient, opts ...Option) *Client {
	c := &Client{
		session: session,
		http:    httpClient,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = clients.NewHTTPClient(nil, c.logger)
	}
	return c
}

// Session returns the session the client was built with.
func (c *Client) Session() *Session {
	return c.session
}

// Query runs soql and returns the first page.
func (c *Client) Query(ctx context.Context, soql string) (*QueryResult, error) {
	path := c.session.DataPath("/query") + "?q=" + url.QueryEscape(soql)
	var out QueryResult
	if err := c.call(ctx, OpQuery, errors.ErrorTypeQuery, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryAll runs soql including deleted and archived records.
func (c *Client) QueryAll(ctx context.Context, soql string) (*QueryResult, error) {
	path := c.session.DataPath("/queryAll") + "?q=" + url.QueryEscape(soql)
	var out QueryResult
	if err := c.call(ctx, OpQueryAll, errors.ErrorTypeQuery, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QueryMore fetches the page behind a nextRecordsUrl. A bare cursor id is
// accepted too.
func (c *Client) QueryMore(ctx context.Context, next string) (*QueryResult, error) {
	next = strings.TrimSpace(next)
	if next == "" {
		return nil, errors.New(errors.ErrorTypeQuery, "empty query cursor")
	}

	var path string
	switch {
	case strings.HasPrefix(next, "/"):
		path = next
	case strings.HasPrefix(next, "http://") || strings.HasPrefix(next, "https://"):
		u, err := url.Parse(next)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeQuery, "invalid query cursor")
		}
		path = u.RequestURI()
	default:
		path = c.session.DataPath("/query/" + url.PathEscape(next))
	}

	var out QueryResult
	if err := c.call(ctx, OpQueryMore, errors.ErrorTypeQuery, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DescribeSObject returns the describe of one object.
func (c *Client) DescribeSObject(ctx context.Context, object string) (*SObjectDescribe, error) {
	path := c.session.DataPath("/sobjects/" + url.PathEscape(object) + "/describe")
	var out SObjectDescribe
	if err := c.call(ctx, OpDescribe, errors.ErrorTypeDescribe, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DescribeGlobal returns the org-wide object listing.
func (c *Client) DescribeGlobal(ctx context.Context) (*GlobalDescribe, error) {
	var out GlobalDescribe
	if err := c.call(ctx, OpDescribeGlobal, errors.ErrorTypeDescribe, http.MethodGet, c.session.DataPath("/sobjects"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create inserts one record and returns its id.
func (c *Client) Create(ctx context.Context, object string, rec Record) (string, error) {
	path := c.session.DataPath("/sobjects/" + url.PathEscape(object))
	var out SaveResult
	if err := c.call(ctx, OpCreate, errors.ErrorTypeRecord, http.MethodPost, path, rec, &out); err != nil {
		return "", err
	}
	if !out.Success || out.ID == "" {
		apiErr := &APIError{StatusCode: http.StatusOK, Details: out.Errors}
		return "", errors.Wrap(apiErr, errors.ErrorTypeRecord, "create was not successful")
	}
	return out.ID, nil
}

// Update patches the record id with the fields in rec.
func (c *Client) Update(ctx context.Context, object, id string, rec Record) error {
	path := c.session.DataPath("/sobjects/" + url.PathEscape(object) + "/" + url.PathEscape(id))
	return c.call(ctx, OpUpdate, errors.ErrorTypeRecord, http.MethodPatch, path, rec, nil)
}

// Delete removes the record id.
func (c *Client) Delete(ctx context.Context, object, id string) error {
	path := c.session.DataPath("/sobjects/" + url.PathEscape(object) + "/" + url.PathEscape(id))
	return c.call(ctx, OpDelete, errors.ErrorTypeRecord, http.MethodDelete, path, nil, nil)
}

// call performs one request. Failures come back as errType wrapping a
// cause whose type says what went wrong on the wire.
func (c *Client) call(ctx context.Context, op string, errType errors.ErrorType, method, path string, in, out interface{}) (err error) {
	ctx, span := observability.StartSpan(ctx, "salesforce."+op)
	span.SetAttribute("http.method", method)
	span.SetAttribute("salesforce.path", pathOnly(path))
	timer := metrics.NewTimer()
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveAPICall(op, metrics.StatusOf(err), timer.Stop())
		}
		span.End(err)
	}()

	var body io.Reader
	if in != nil {
		data, merr := json.Marshal(in)
		if merr != nil {
			return errors.Wrap(merr, errType, op+": failed to encode request body")
		}
		body = bytes.NewReader(data)
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.session.ID,
		"Accept":        "application/json",
	}
	if in != nil {
		headers["Content-Type"] = "application/json"
	}

	reqCtx := ctx
	if method != http.MethodGet {
		// Every record gets its own call whatever happened to earlier ones
		reqCtx = clients.WithoutCircuitBreaker(ctx)
	}
	req, err := c.http.NewRequest(reqCtx, method, c.session.URL(path), body, headers)
	if err != nil {
		return errors.Wrap(err, errType, op+": failed to build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(transportError(ctx, err), errType, op+" failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(transportError(ctx, err), errType, op+": failed to read response")
	}
	span.SetAttribute("http.status_code", resp.StatusCode)

	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := ParseAPIError(resp.StatusCode, data)
		c.logger.Debug("salesforce call rejected",
			zap.String("operation", op),
			zap.Int("status", resp.StatusCode),
			zap.String("code", apiErr.Code()))
		return errors.Wrap(asTypedError(apiErr), errType, op+" failed")
	}

	if out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrap(errors.Wrap(err, errors.ErrorTypeData, "malformed response body"), errType, op+" failed")
		}
	}
	return nil
}

// transportError classifies an error that happened before a response was
// read. Typed errors from the HTTP layer (rate limiter, circuit breaker)
// keep their type.
func transportError(ctx context.Context, err error) error {
	var typed *errors.Error
	if errors.As(err, &typed) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrorTypeTimeout, "request did not complete")
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, "request failed")
}

func pathOnly(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		return p[:i]
	}
	return p
}
