package internal

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/frankli0324/go-httpconn/internal/dialer"
	"github.com/frankli0324/go-httpconn/internal/model"
)

func defaultTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("no-op tracer")
}

func (c *Connection) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	ctx, span := c.tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("conn.id", c.id.String()),
		attribute.String("server.address", c.origin.Host),
		attribute.Int("server.port", c.origin.Port),
	)
	span.SetAttributes(attrs...)
	return ctx, span
}

func sendAttributes(pr *model.PreparedRequest) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("http.request.method", pr.Method),
		attribute.String("url.full", pr.U.String()),
	}
}

func responseAttributes(resp *model.Response) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int("http.response.status_code", resp.StatusCode),
		attribute.String("network.protocol.version", resp.Proto),
	}
}

func protoAttribute(p dialer.Protocol) attribute.KeyValue {
	return attribute.String("network.protocol.name", p.String())
}

// endSpan marks span as failed, returning err.
func endSpan(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// headerCarrier adapts a header list to [propagation.TextMapCarrier].
type headerCarrier struct{ h *model.Headers }

func (c headerCarrier) Get(key string) string { return c.h.Get(key) }

func (c headerCarrier) Set(key, value string) {
	c.h.Del(key)
	c.h.Add(key, value)
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.h))
	for _, f := range *c.h {
		keys = append(keys, f.Name)
	}
	return keys
}

// injectTrace writes the trace context of ctx into the request headers using
// the global propagator, which propagates nothing unless configured.
func injectTrace(ctx context.Context, pr *model.PreparedRequest) {
	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{&pr.Header})
}
