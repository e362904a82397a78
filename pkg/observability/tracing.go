package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ajitpratap0/forcebridge/pkg/logger"
)

const instrumentationName = "github.com/ajitpratap0/forcebridge"

// Tracer returns the tracer of the current global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Span wraps an OpenTelemetry span with attribute batching.
type Span struct {
	span       trace.Span
	attributes []attribute.KeyValue
}

// StartSpan starts a span named name under ctx.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, name)
	return ctx, &Span{span: span}
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// End records err, if any, and ends the span. Error text is masked because
// API errors can echo request bodies.
func (s *Span) End(err error) {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	if err != nil {
		s.span.SetStatus(codes.Error, logger.Mask(err.Error()))
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// NodeTracer names spans after the node that opens them.
type NodeTracer struct {
	kind string
	name string
}

// NewNodeTracer creates a tracer for one node instance.
func NewNodeTracer(kind, name string) *NodeTracer {
	return &NodeTracer{kind: kind, name: name}
}

// StartSpan starts a node-scoped span named "<kind>.<operation>".
func (nt *NodeTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := StartSpan(ctx, nt.kind+"."+operation)
	span.SetAttribute("node.kind", nt.kind)
	span.SetAttribute("node.name", nt.name)
	return ctx, span
}

// Trace runs fn inside a node-scoped span.
func (nt *NodeTracer) Trace(ctx context.Context, operation string, fn func(context.Context) error) error {
	ctx, span := nt.StartSpan(ctx, operation)
	err := fn(ctx)
	span.End(err)
	return err
}
