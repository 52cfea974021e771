package server

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/shapestone/shape-ingest/pkg/ingest"
)

// TracerName is the default instrumentation name for request spans.
const TracerName = "shape-ingest/server"

// headerCarrier exposes request headers to an otel propagator.
type headerCarrier ingest.Headers

func (c headerCarrier) Get(key string) string {
	return ingest.Headers(c).Get(key)
}

// Set is a no-op; request headers are read-only.
func (c headerCarrier) Set(string, string) {}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c))
	for _, h := range c {
		keys = append(keys, strings.ToLower(h.Key))
	}
	return keys
}

type tracing struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

func newTracing(name string) tracing {
	if name == "" {
		name = TracerName
	}
	return tracing{
		tracer:     otel.Tracer(name),
		propagator: propagation.TraceContext{},
	}
}

// start opens a server span for a request, continuing any trace context
// carried in its headers.
func (t tracing) start(ctx context.Context, msg *ingest.Message, connID string) (context.Context, trace.Span) {
	ctx = t.propagator.Extract(ctx, headerCarrier(msg.Headers()))
	ctx, span := t.tracer.Start(ctx, msg.Method()+" "+msg.Target(),
		trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(
		attribute.String("http.method", msg.Method()),
		attribute.String("http.target", msg.Target()),
		attribute.String("http.flavor", msg.Version().String()),
		attribute.String("ingest.conn_id", connID),
		attribute.Int64("ingest.message_id", int64(msg.ID())),
	)
	return ctx, span
}
