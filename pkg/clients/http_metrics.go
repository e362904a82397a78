package clients

import (
	"net/http"
	"sync/atomic"
	"time"
)

// HTTPMetrics keeps in-process counters for one HTTPClient. Prometheus
// export of API calls happens one layer up, per Salesforce operation.
type HTTPMetrics struct {
	totalRequests    int64
	failedRequests   int64
	rejectedRequests int64
	status2xx        int64
	status4xx        int64
	status5xx        int64
	totalLatency     int64
	maxLatency       int64
}

// NewHTTPMetrics creates a new HTTP metrics tracker
func NewHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{}
}

// RecordRequest records one round trip. resp may be nil when err is set.
func (hm *HTTPMetrics) RecordRequest(resp *http.Response, latency time.Duration, err error) {
	atomic.AddInt64(&hm.totalRequests, 1)
	atomic.AddInt64(&hm.totalLatency, int64(latency))
	for {
		cur := atomic.LoadInt64(&hm.maxLatency)
		if int64(latency) <= cur || atomic.CompareAndSwapInt64(&hm.maxLatency, cur, int64(latency)) {
			break
		}
	}

	if err != nil || resp == nil {
		atomic.AddInt64(&hm.failedRequests, 1)
		return
	}
	switch {
	case resp.StatusCode >= 500:
		atomic.AddInt64(&hm.status5xx, 1)
	case resp.StatusCode >= 400:
		atomic.AddInt64(&hm.status4xx, 1)
	default:
		atomic.AddInt64(&hm.status2xx, 1)
	}
}

// RecordRejected counts a request refused by the circuit breaker.
func (hm *HTTPMetrics) RecordRejected() {
	atomic.AddInt64(&hm.rejectedRequests, 1)
}

// GetAverageLatency returns the mean round-trip time
func (hm *HTTPMetrics) GetAverageLatency() time.Duration {
	total := atomic.LoadInt64(&hm.totalRequests)
	if total == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&hm.totalLatency) / total)
}

// Snapshot returns the current counters.
func (hm *HTTPMetrics) Snapshot() HTTPStats {
	return HTTPStats{
		TotalRequests:    atomic.LoadInt64(&hm.totalRequests),
		FailedRequests:   atomic.LoadInt64(&hm.failedRequests),
		RejectedRequests: atomic.LoadInt64(&hm.rejectedRequests),
		Status2xx:        atomic.LoadInt64(&hm.status2xx),
		Status4xx:        atomic.LoadInt64(&hm.status4xx),
		Status5xx:        atomic.LoadInt64(&hm.status5xx),
		AverageLatency:   hm.GetAverageLatency(),
		MaxLatency:       time.Duration(atomic.LoadInt64(&hm.maxLatency)),
	}
}

// HTTPStats represents HTTP client statistics
type HTTPStats struct {
	TotalRequests    int64         `json:"total_requests"`
	FailedRequests   int64         `json:"failed_requests"`
	RejectedRequests int64         `json:"rejected_requests"`
	Status2xx        int64         `json:"status_2xx"`
	Status4xx        int64         `json:"status_4xx"`
	Status5xx        int64         `json:"status_5xx"`
	AverageLatency   time.Duration `json:"average_latency"`
	MaxLatency       time.Duration `json:"max_latency"`
	CircuitState     string        `json:"circuit_state,omitempty"`
}
