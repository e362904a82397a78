package observability

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ajitpratap0/forcebridge/pkg/errors"
)

func TestNodeTracerRecordsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	cfg := DefaultTracingConfig("test")
	cfg.Exporter = exp
	shutdown, err := InitTracing(cfg)
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	nt := NewNodeTracer("salesforce_extract", "accounts")
	require.NoError(t, nt.Trace(context.Background(), "run", func(ctx context.Context) error {
		_, span := StartSpan(ctx, "salesforce.query")
		span.SetAttribute("object", "Account")
		span.End(nil)
		return nil
	}))

	failure := errors.New(errors.ErrorTypeAuthentication, "login failed: password=hunter2")
	assert.Equal(t, failure, nt.Trace(context.Background(), "run", func(context.Context) error { return failure }))

	spans := exp.GetSpans()
	require.Len(t, spans, 3)
	assert.Equal(t, "salesforce.query", spans[0].Name)
	assert.Equal(t, "salesforce_extract.run", spans[1].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())

	assert.Equal(t, codes.Error, spans[2].Status.Code)
	assert.NotContains(t, spans[2].Status.Description, "hunter2")
}

func TestStdoutExporterWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultTracingConfig("test")
	cfg.Writer = &buf
	shutdown, err := InitTracing(cfg)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "ping")
	span.End(nil)
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name":"ping"`)
}
