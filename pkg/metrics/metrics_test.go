package metrics

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector()
	b := NewCollector()

	a.RecordNodeRun("salesforce_extract", StatusSuccess)
	a.RecordNodeRun("salesforce_extract", StatusSuccess)

	assert.Equal(t, float64(2), testutil.ToFloat64(a.nodeRuns.WithLabelValues("salesforce_extract", StatusSuccess)))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.nodeRuns.WithLabelValues("salesforce_extract", StatusSuccess)))
}

func TestRecordRecordsIgnoresEmpty(t *testing.T) {
	c := NewCollector()
	c.RecordRecords("salesforce_load", OutcomeFailed, 0)
	c.RecordRecords("salesforce_load", OutcomeSucceeded, 3)

	assert.Equal(t, 1, testutil.CollectAndCount(c.records))
	assert.Equal(t, float64(3), testutil.ToFloat64(c.records.WithLabelValues("salesforce_load", OutcomeSucceeded)))
}

func TestWriteText(t *testing.T) {
	c := NewCollector()
	c.ObserveAPICall("query", StatusOf(nil), 120*time.Millisecond)
	c.ObserveAPICall("describe", StatusOf(errors.New("x")), time.Second)
	c.RecordPage("Account")

	var buf bytes.Buffer
	require.NoError(t, c.WriteText(&buf))
	out := buf.String()

	assert.Contains(t, out, `forcebridge_api_calls_total{operation="query",status="success"} 1`)
	assert.Contains(t, out, `forcebridge_api_calls_total{operation="describe",status="error"} 1`)
	assert.Contains(t, out, `forcebridge_query_pages_total{object="Account"} 1`)
	assert.Contains(t, out, "forcebridge_api_call_duration_seconds_bucket")
}

func TestSum(t *testing.T) {
	c := NewCollector()
	c.ObserveAPICall("create", StatusSuccess, time.Millisecond)
	c.ObserveAPICall("create", StatusError, time.Millisecond)
	c.ObserveAPICall("update", StatusSuccess, time.Millisecond)

	assert.Equal(t, float64(3), c.Sum("api_calls_total", nil))
	assert.Equal(t, float64(2), c.Sum("api_calls_total", map[string]string{"operation": "create"}))
	assert.Equal(t, float64(1), c.Sum("api_calls_total", map[string]string{"operation": "create", "status": StatusError}))
	assert.Equal(t, float64(0), c.Sum("query_pages_total", nil))
}
