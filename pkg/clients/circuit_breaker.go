package clients

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/forcebridge/pkg/errors"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int32

const (
	// StateClosed allows all requests to pass through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen lets a single trial request through to test recovery
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// HTTPCircuitBreaker opens after FailureThreshold consecutive failures,
// rejects requests for Timeout, then lets one trial request through. SuccessThreshold
// trial successes close it again; a trial failure reopens it.
type HTTPCircuitBreaker struct {
	failureThreshold int
	successThreshold int
	timeout          time.Duration
	logger           *zap.Logger
	now              func() time.Time

	mu                   sync.Mutex
	state                CircuitState
	consecutiveFailures  int
	consecutiveSuccesses int
	trialInFlight        bool
	lastStateChange      time.Time
	nextRetryTime        time.Time
}

// NewHTTPCircuitBreaker creates a closed circuit breaker.
func NewHTTPCircuitBreaker(cfg *HTTPConfig, logger *zap.Logger) *HTTPCircuitBreaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := &HTTPCircuitBreaker{
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		timeout:          cfg.Timeout,
		logger:           logger.With(zap.String("component", "circuit_breaker")),
		now:              time.Now,
	}
	if cb.failureThreshold < 1 {
		cb.failureThreshold = 1
	}
	if cb.successThreshold < 1 {
		cb.successThreshold = 1
	}
	cb.lastStateChange = cb.now()
	return cb
}

// Execute runs fn unless the circuit is open and records its result.
func (cb *HTTPCircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return errors.New(errors.ErrorTypeConnection, "circuit breaker open")
	}
	if err := fn(); err != nil {
		cb.RecordFailure()
		return err
	}
	cb.RecordSuccess()
	return nil
}

// Allow reports whether a request may proceed.
func (cb *HTTPCircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Before(cb.nextRetryTime) {
			return false
		}
		cb.setState(StateHalfOpen)
		cb.trialInFlight = true
		return true
	case StateHalfOpen:
		if cb.trialInFlight {
			return false
		}
		cb.trialInFlight = true
		return true
	default:
		return false
	}
}

// RecordSuccess records a successful request.
func (cb *HTTPCircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	if cb.state != StateHalfOpen {
		return
	}
	cb.trialInFlight = false
	cb.consecutiveSuccesses++
	if cb.consecutiveSuccesses >= cb.successThreshold {
		cb.setState(StateClosed)
		cb.logger.Info("circuit breaker closed")
	}
}

// RecordFailure records a failed request.
func (cb *HTTPCircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++
	switch cb.state {
	case StateClosed:
		if cb.consecutiveFailures >= cb.failureThreshold {
			cb.open()
		}
	case StateHalfOpen:
		cb.open()
	}
}

func (cb *HTTPCircuitBreaker) open() {
	cb.setState(StateOpen)
	cb.nextRetryTime = cb.now().Add(cb.timeout)
	cb.logger.Warn("circuit breaker opened",
		zap.Time("retry_after", cb.nextRetryTime),
		zap.Int("consecutive_failures", cb.consecutiveFailures))
}

// setState must be called with mu held.
func (cb *HTTPCircuitBreaker) setState(s CircuitState) {
	cb.state = s
	cb.lastStateChange = cb.now()
	cb.consecutiveSuccesses = 0
	cb.trialInFlight = false
}

// GetState returns the current state of the circuit breaker.
func (cb *HTTPCircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerState{
		State:                cb.state.String(),
		LastStateChange:      cb.lastStateChange,
		ConsecutiveFailures:  cb.consecutiveFailures,
		ConsecutiveSuccesses: cb.consecutiveSuccesses,
		NextRetryTime:        cb.nextRetryTime,
	}
}

// CircuitBreakerState is a point-in-time view of a circuit breaker.
type CircuitBreakerState struct {
	State                string    `json:"state"`
	LastStateChange      time.Time `json:"last_state_change"`
	ConsecutiveFailures  int       `json:"consecutive_failures"`
	ConsecutiveSuccesses int       `json:"consecutive_successes"`
	NextRetryTime        time.Time `json:"next_retry_time,omitempty"`
}
