// Package base provides BaseNode, the foundation every forcebridge node
// embeds. It owns the pieces each node run needs:
//
//   - a node-scoped zap logger carrying run_id, node and object fields
//   - the prometheus collector and an OpenTelemetry tracer
//   - the shared HTTP client (rate limiter and circuit breaker included)
//   - session acquisition through an auth.Authenticator
//   - a retry policy for read-only calls
//
// # Usage
//
//	type MyNode struct {
//	    *base.BaseNode
//	}
//
//	func NewMyNode(cfg *config.BaseConfig, opts ...base.Option) *MyNode {
//	    return &MyNode{
//	        BaseNode: base.NewBaseNode(core.NodeKindExtract, core.ConnectorTypeSource, "1.0.0", cfg, opts...),
//	    }
//	}
//
//	func (n *MyNode) Execute(ctx context.Context, in *core.Input) (*core.Output, error) {
//	    return n.Run(ctx, "Account", func(ctx context.Context, log *zap.Logger) (*core.Output, error) {
//	        client, err := n.Connect(ctx, log)
//	        ...
//	    })
//	}
//
// # Lifecycle
//
// Every Run authenticates afresh through Connect. Sessions are never cached
// across runs.
package base

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/forcebridge/pkg/auth"
	"github.com/ajitpratap0/forcebridge/pkg/clients"
	"github.com/ajitpratap0/forcebridge/pkg/config"
	"github.com/ajitpratap0/forcebridge/pkg/connector/core"
	"github.com/ajitpratap0/forcebridge/pkg/errors"
	"github.com/ajitpratap0/forcebridge/pkg/logger"
	"github.com/ajitpratap0/forcebridge/pkg/metrics"
	"github.com/ajitpratap0/forcebridge/pkg/observability"
	"github.com/ajitpratap0/forcebridge/pkg/salesforce"
)

// BaseNode provides common functionality for all nodes.
type BaseNode struct {
	// Core fields
	name     string             // Instance name, from config or kind
	kind     core.NodeKind      // Implementation
	nodeType core.ConnectorType // Source or Destination
	version  string             // Node version
	config   *config.BaseConfig // Unified configuration
	logger   *zap.Logger        // Structured logger

	// Collaborators
	metrics       *metrics.Collector
	tracer        *observability.NodeTracer
	httpClient    *clients.HTTPClient
	authenticator auth.Authenticator
	retryPolicy   *RetryPolicy
	errorHandler  *ErrorHandler

	// Run statistics
	statsMu      sync.Mutex
	runs         int64
	failedRuns   int64
	lastRunID    string
	lastDuration time.Duration
}

// Option customizes a BaseNode.
type Option func(*BaseNode)

// WithLogger sets the logger the node derives its run loggers from.
func WithLogger(l *zap.Logger) Option {
	return func(bn *BaseNode) {
		if l != nil {
			bn.logger = l
		}
	}
}

// WithMetrics shares a collector between nodes.
func WithMetrics(m *metrics.Collector) Option {
	return func(bn *BaseNode) {
		if m != nil {
			bn.metrics = m
		}
	}
}

// WithHTTPClient replaces the client built from config.
func WithHTTPClient(c *clients.HTTPClient) Option {
	return func(bn *BaseNode) {
		if c != nil {
			bn.httpClient = c
		}
	}
}

// WithAuthenticator replaces the authenticator picked from config.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(bn *BaseNode) {
		if a != nil {
			bn.authenticator = a
		}
	}
}

// WithRetryPolicy replaces the read retry policy built from config.
func WithRetryPolicy(p *RetryPolicy) Option {
	return func(bn *BaseNode) {
		if p != nil {
			bn.retryPolicy = p
		}
	}
}

// NewBaseNode creates a base node. Collaborators not supplied through opts
// are built from cfg.
func NewBaseNode(kind core.NodeKind, nodeType core.ConnectorType, version string, cfg *config.BaseConfig, opts ...Option) *BaseNode {
	if cfg == nil {
		cfg = config.NewBaseConfig(string(kind), string(kind))
	}
	name := cfg.Name
	if name == "" {
		name = string(kind)
	}

	bn := &BaseNode{
		name:     name,
		kind:     kind,
		nodeType: nodeType,
		version:  version,
		config:   cfg,
	}
	for _, opt := range opts {
		opt(bn)
	}

	if bn.logger == nil {
		bn.logger = logger.Get()
	}
	bn.logger = bn.logger.With(zap.String("node", string(kind)), zap.String("name", name))

	if bn.metrics == nil {
		bn.metrics = metrics.NewCollector()
	}
	if bn.httpClient == nil {
		bn.httpClient = clients.NewHTTPClient(clients.HTTPConfigFromBase(cfg), bn.logger)
	}
	if bn.authenticator == nil {
		bn.authenticator = auth.New(cfg, bn.httpClient, bn.logger)
	}
	if bn.retryPolicy == nil {
		bn.retryPolicy = NewRetryPolicy(cfg.Reliability.RetryAttempts, cfg.Reliability.RetryDelay).
			WithDelay(cfg.Reliability.RetryDelay, cfg.Reliability.MaxRetryDelay)
	}
	bn.errorHandler = NewErrorHandler(bn.logger)
	bn.tracer = observability.NewNodeTracer(string(kind), name)

	return bn
}

// Name returns the node name
func (bn *BaseNode) Name() string {
	return bn.name
}

// Kind returns the node kind
func (bn *BaseNode) Kind() core.NodeKind {
	return bn.kind
}

// Type returns the node direction
func (bn *BaseNode) Type() core.ConnectorType {
	return bn.nodeType
}

// Version returns the node version
func (bn *BaseNode) Version() string {
	return bn.version
}

// GetConfig returns the node configuration
func (bn *BaseNode) GetConfig() *config.BaseConfig {
	return bn.config
}

// GetLogger returns the node logger
func (bn *BaseNode) GetLogger() *zap.Logger {
	return bn.logger
}

// GetMetricsCollector returns the metrics collector
func (bn *BaseNode) GetMetricsCollector() *metrics.Collector {
	return bn.metrics
}

// GetErrorHandler returns the per-record error handler
func (bn *BaseNode) GetErrorHandler() *ErrorHandler {
	return bn.errorHandler
}

// RunFunc is the body of one node invocation.
type RunFunc func(ctx context.Context, log *zap.Logger) (*core.Output, error)

// Run executes fn as one invocation: it assigns a run id, applies the run
// timeout, opens the "execute" span and records the run metric. A failed
// run never returns output.
func (bn *BaseNode) Run(ctx context.Context, object string, fn RunFunc) (*core.Output, error) {
	runID := uuid.NewString()
	if timeout := bn.config.Timeouts.Run; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ctx = context.WithValue(ctx, logger.RunIDKey, runID)
	ctx = context.WithValue(ctx, logger.ObjectKey, object)
	log := logger.WithContext(ctx, bn.logger)

	ctx, span := bn.tracer.StartSpan(ctx, "execute")
	span.SetAttribute("run_id", runID)
	if object != "" {
		span.SetAttribute("salesforce.object", object)
	}

	timer := metrics.NewTimer()
	log.Info("node run started")

	out, err := fn(ctx, log)
	if err == nil {
		if cerr := ctx.Err(); cerr != nil {
			err = errors.Wrap(cerr, errors.ErrorTypeTimeout, "node run interrupted")
		}
	}
	elapsed := timer.Stop()

	bn.statsMu.Lock()
	bn.runs++
	bn.lastRunID = runID
	bn.lastDuration = elapsed
	if err != nil {
		bn.failedRuns++
	}
	bn.statsMu.Unlock()

	bn.metrics.RecordNodeRun(string(bn.kind), metrics.StatusOf(err))
	span.End(err)

	if err != nil {
		log.Error("node run failed",
			zap.String("error_type", string(errors.TypeOf(err))),
			logger.MaskedError(err),
			zap.Duration("duration", elapsed))
		return nil, err
	}

	log.Info("node run finished", zap.Duration("duration", elapsed))
	return out, nil
}

// Connect authenticates once and returns an API client bound to the new
// session. Any failure is an authentication error.
func (bn *BaseNode) Connect(ctx context.Context, log *zap.Logger) (*salesforce.Client, error) {
	var session *salesforce.Session
	err := bn.tracer.Trace(ctx, "authenticate", func(ctx context.Context) error {
		var err error
		session, err = bn.authenticator.Authenticate(ctx, auth.CredentialsFromConfig(bn.config.Credentials))
		return err
	})
	if err != nil {
		if !errors.IsType(err, errors.ErrorTypeAuthentication) {
			err = errors.Wrap(err, errors.ErrorTypeAuthentication, "login failed")
		}
		return nil, err
	}

	log.Debug("authenticated", zap.String("instance_url", session.InstanceURL))
	return salesforce.NewClient(session, bn.httpClient,
		salesforce.WithLogger(log),
		salesforce.WithMetrics(bn.metrics),
	), nil
}

// ExecuteRead runs a read-only call under the retry policy. Only
// retryable errors are retried.
func (bn *BaseNode) ExecuteRead(ctx context.Context, log *zap.Logger, fn func(ctx context.Context) error) error {
	attempt := 0
	return bn.retryPolicy.ExecuteWithCondition(ctx, func() error {
		attempt++
		if attempt > 1 {
			log.Warn("retrying read call", zap.Int("attempt", attempt))
		}
		return fn(ctx)
	}, bn.errorHandler.ShouldRetry)
}

// Metrics returns current run statistics
func (bn *BaseNode) Metrics() map[string]interface{} {
	bn.statsMu.Lock()
	defer bn.statsMu.Unlock()

	m := map[string]interface{}{
		"name":          bn.name,
		"kind":          bn.kind,
		"type":          bn.nodeType,
		"version":       bn.version,
		"runs":          bn.runs,
		"failed_runs":   bn.failedRuns,
		"last_run_id":   bn.lastRunID,
		"last_duration": bn.lastDuration.String(),
	}

	stats := bn.httpClient.GetStats()
	m["http_requests"] = stats.TotalRequests
	m["http_failed_requests"] = stats.FailedRequests
	m["http_rejected_requests"] = stats.RejectedRequests
	m["http_average_latency"] = stats.AverageLatency.String()
	if stats.CircuitState != "" {
		m["circuit_breaker_state"] = stats.CircuitState
	}

	for k, v := range bn.errorHandler.GetErrorStats() {
		m[k] = v
	}
	return m
}
