package oteladapters

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/AntonStoeckl/venuestore-go/venuestore"
)

// TracingCollector implements venuestore.TracingCollector with an OpenTelemetry tracer.
type TracingCollector struct {
	tracer trace.Tracer
}

// NewTracingCollector creates a collector on top of tracer, usually obtained from a TracerProvider.
func NewTracingCollector(tracer trace.Tracer) *TracingCollector {
	return &TracingCollector{tracer: tracer}
}

// StartSpan starts a span carrying attrs and returns the context that holds it.
func (t *TracingCollector) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, venuestore.SpanContext) {
	spanCtx, span := t.tracer.Start(ctx, name, trace.WithAttributes(toAttributes(attrs)...))

	return spanCtx, &OTelSpanContext{span: span}
}

// FinishSpan adds attrs, maps status to a span status and ends the span.
// Span contexts from other collectors are ignored.
func (t *TracingCollector) FinishSpan(spanCtx venuestore.SpanContext, status string, attrs map[string]string) {
	otelSpanCtx, ok := spanCtx.(*OTelSpanContext)
	if !ok {
		return
	}

	otelSpanCtx.span.SetAttributes(toAttributes(attrs)...)
	otelSpanCtx.SetStatus(status)

	if errorType, found := attrs[venuestore.AttrErrorType]; found {
		otelSpanCtx.span.SetStatus(codes.Error, errorType)
	}

	otelSpanCtx.span.End()
}

var _ venuestore.TracingCollector = (*TracingCollector)(nil)

// OTelSpanContext wraps an OpenTelemetry span as a venuestore.SpanContext.
type OTelSpanContext struct {
	span trace.Span
}

// SetStatus maps venuestore.StatusSuccess to codes.Ok and venuestore.StatusError to codes.Error.
// Any other status is kept as a span attribute.
func (s *OTelSpanContext) SetStatus(status string) {
	switch status {
	case venuestore.StatusSuccess:
		s.span.SetStatus(codes.Ok, "")
	case venuestore.StatusError:
		s.span.SetStatus(codes.Error, "operation failed")
	default:
		s.span.SetAttributes(attribute.String(venuestore.AttrStatus, status))
	}
}

func (s *OTelSpanContext) AddAttribute(key, value string) {
	s.span.SetAttributes(attribute.String(key, value))
}

var _ venuestore.SpanContext = (*OTelSpanContext)(nil)
