// Package clients provides the HTTP plumbing shared by the Salesforce API
// client and the authenticators: a tuned transport, client-side rate
// limiting, a circuit breaker and per-request statistics.
package clients

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/http2"

	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/errors"
)

// HTTPClient wraps an http.Client whose transport applies rate limiting and
// circuit breaking to every request, including ones issued by third-party
// code through StandardClient.
type HTTPClient struct {
	config     *HTTPConfig
	logger     *zap.Logger
	httpClient *http.Client
	transport  *http.Transport

	metrics        *HTTPMetrics
	circuitBreaker *HTTPCircuitBreaker
	rateLimiter    RateLimiter
}

// HTTPConfig configures the HTTP client
type HTTPConfig struct {
	// Connection settings
	MaxIdleConns        int           `json:"max_idle_conns"`
	MaxIdleConnsPerHost int           `json:"max_idle_conns_per_host"`
	IdleConnTimeout     time.Duration `json:"idle_conn_timeout"`

	EnableHTTP2 bool `json:"enable_http2"`

	// Timeouts
	DialTimeout         time.Duration `json:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `json:"tls_handshake_timeout"`
	RequestTimeout      time.Duration `json:"request_timeout"`
	KeepAlive           time.Duration `json:"keep_alive"`

	TLSMinVersion uint16 `json:"tls_min_version"`
	UserAgent     string `json:"user_agent"`

	// Rate limiting (0 = unlimited)
	RateLimit float64 `json:"rate_limit"`
	RateBurst int     `json:"rate_burst"`

	// Circuit breaker
	CircuitBreakerEnabled bool          `json:"circuit_breaker_enabled"`
	FailureThreshold      int           `json:"failure_threshold"`
	SuccessThreshold      int           `json:"success_threshold"`
	Timeout               time.Duration `json:"timeout"`
}

// DefaultHTTPConfig returns the default configuration
func DefaultHTTPConfig() *HTTPConfig {
	return &HTTPConfig{
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		EnableHTTP2:           true,
		DialTimeout:           10 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		RequestTimeout:        2 * time.Minute,
		KeepAlive:             30 * time.Second,
		TLSMinVersion:         tls.VersionTLS12,
		UserAgent:             "forcebridge/1.0",
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      1,
		Timeout:               30 * time.Second,
	}
}

// HTTPConfigFromBase derives client settings from the timeouts and
// reliability sections of a node configuration.
func HTTPConfigFromBase(cfg *config.BaseConfig) *HTTPConfig {
	hc := DefaultHTTPConfig()
	if cfg == nil {
		return hc
	}
	if cfg.Timeouts.Request > 0 {
		hc.RequestTimeout = cfg.Timeouts.Request
	}
	if cfg.Timeouts.Connection > 0 {
		hc.DialTimeout = cfg.Timeouts.Connection
		hc.TLSHandshakeTimeout = cfg.Timeouts.Connection
	}
	if cfg.Reliability.IsRateLimited() {
		hc.RateLimit = float64(cfg.Reliability.RateLimitPerSec)
		hc.RateBurst = cfg.Reliability.RateLimitPerSec
	}
	hc.CircuitBreakerEnabled = cfg.Reliability.CircuitBreaker
	return hc
}

// NewHTTPClient creates a new HTTP client
func NewHTTPClient(cfg *HTTPConfig, logger *zap.Logger) *HTTPClient {
	if cfg == nil {
		cfg = DefaultHTTPConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := &HTTPClient{
		config:  cfg,
		logger:  logger.With(zap.String("component", "http_client")),
		metrics: NewHTTPMetrics(),
	}

	client.transport = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: cfg.KeepAlive,
		}).DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.TLSHandshakeTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: cfg.TLSMinVersion,
		},
	}

	if cfg.EnableHTTP2 {
		if err := http2.ConfigureTransport(client.transport); err != nil {
			client.logger.Warn("failed to configure HTTP/2", zap.Error(err))
		}
	}

	if cfg.RateLimit > 0 {
		client.rateLimiter = NewTokenBucketRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	if cfg.CircuitBreakerEnabled {
		client.circuitBreaker = NewHTTPCircuitBreaker(cfg, client.logger)
	}

	client.httpClient = &http.Client{
		Transport: &guardedTransport{client: client},
		Timeout:   cfg.RequestTimeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return client
}

// Do performs an HTTP request
func (c *HTTPClient) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// NewRequest builds a request carrying the default headers.
func (c *HTTPClient) NewRequest(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	if req.Header.Get("User-Agent") == "" && c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
	return req, nil
}

// StandardClient exposes the guarded client for libraries that take an
// *http.Client, such as golang.org/x/oauth2.
func (c *HTTPClient) StandardClient() *http.Client {
	return c.httpClient
}

// GetStats returns current client statistics
func (c *HTTPClient) GetStats() HTTPStats {
	stats := c.metrics.Snapshot()
	if c.circuitBreaker != nil {
		stats.CircuitState = c.circuitBreaker.GetState().State
	}
	return stats
}

// Close releases idle connections
func (c *HTTPClient) Close() error {
	c.transport.CloseIdleConnections()
	return nil
}

type breakerExemptKey struct{}

// WithoutCircuitBreaker marks requests made with ctx as exempt from the
// circuit breaker. They are sent even while it is open and their outcome
// is not counted.
func WithoutCircuitBreaker(ctx context.Context) context.Context {
	return context.WithValue(ctx, breakerExemptKey{}, true)
}

func breakerExempt(ctx context.Context) bool {
	exempt, _ := ctx.Value(breakerExemptKey{}).(bool)
	return exempt
}

// guardedTransport applies the rate limiter and circuit breaker in front of
// the pooled transport.
type guardedTransport struct {
	client *HTTPClient
}

func (g *guardedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := g.client

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(req.Context()); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeRateLimit, "client-side rate limit wait aborted")
		}
	}

	breaker := c.circuitBreaker
	if breakerExempt(req.Context()) {
		breaker = nil
	}

	if breaker != nil && !breaker.Allow() {
		c.metrics.RecordRejected()
		return nil, errors.New(errors.ErrorTypeConnection, "circuit breaker open")
	}

	start := time.Now()
	resp, err := c.transport.RoundTrip(req)
	c.metrics.RecordRequest(resp, time.Since(start), err)

	if breaker != nil {
		// Only transport failures and server errors count against the service
		if err != nil || resp.StatusCode >= http.StatusInternalServerError {
			breaker.RecordFailure()
		} else {
			breaker.RecordSuccess()
		}
	}

	if err != nil {
		c.logger.Debug("request failed",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err))
	}
	return resp, err
}
