// Package metrics provides Prometheus instrumentation for forcebridge runs.
//
// Each Collector owns its registry, so tests and embedded callers can create
// as many as they like without duplicate-registration panics. The CLI keeps
// one collector per process and dumps it in text exposition format.
//
// # Basic Usage
//
//	collector := metrics.NewCollector()
//
//	timer := metrics.NewTimer()
//	result, err := client.Query(ctx, soql)
//	collector.ObserveAPICall("query", metrics.StatusOf(err), timer.Stop())
//
//	collector.RecordNodeRun("salesforce_extract", metrics.StatusOf(err))
package metrics

import (
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

const namespace = "forcebridge"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Outcome label values for records.
const (
	OutcomeExtracted = "extracted"
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
)

// Collector holds the forcebridge metric vectors and their registry.
type Collector struct {
	registry *prometheus.Registry

	nodeRuns        *prometheus.CounterVec
	apiCalls        *prometheus.CounterVec
	apiCallDuration *prometheus.HistogramVec
	queryPages      *prometheus.CounterVec
	records         *prometheus.CounterVec
}

// NewCollector creates a collector registered on a fresh registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		nodeRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "node_runs_total",
				Help:      "Node invocations by node kind and status",
			},
			[]string{"node", "status"},
		),
		apiCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_calls_total",
				Help:      "Salesforce API calls by operation and status",
			},
			[]string{"operation", "status"},
		),
		apiCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_call_duration_seconds",
				Help:      "Salesforce API call latency",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"operation"},
		),
		queryPages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "query_pages_total",
				Help:      "Query result pages fetched, by object or custom query",
			},
			[]string{"object"},
		),
		records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_total",
				Help:      "Records handled by node kind and outcome",
			},
			[]string{"node", "outcome"},
		),
	}
}

// Registry returns the registry backing the collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordNodeRun counts one node invocation.
func (c *Collector) RecordNodeRun(node, status string) {
	c.nodeRuns.WithLabelValues(node, status).Inc()
}

// ObserveAPICall counts one API call and records its latency.
func (c *Collector) ObserveAPICall(operation, status string, d time.Duration) {
	c.apiCalls.WithLabelValues(operation, status).Inc()
	c.apiCallDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// RecordPage counts one fetched query page.
func (c *Collector) RecordPage(object string) {
	c.queryPages.WithLabelValues(object).Inc()
}

// RecordRecords adds n records with the given outcome.
func (c *Collector) RecordRecords(node, outcome string, n int) {
	if n <= 0 {
		return
	}
	c.records.WithLabelValues(node, outcome).Add(float64(n))
}

// WriteText writes every gathered family in Prometheus text format.
func (c *Collector) WriteText(w io.Writer) error {
	families, err := c.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

// StatusOf maps an error to a status label.
func StatusOf(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusSuccess
}

// Timer measures elapsed time for one operation.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Sum adds up every counter sample of the named family (without the
// namespace prefix) whose labels include the given pairs.
func (c *Collector) Sum(name string, labels map[string]string) float64 {
	families, err := c.registry.Gather()
	if err != nil {
		return 0
	}

	full := namespace + "_" + name
	var total float64
	for _, mf := range families {
		if mf.GetName() != full {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}
