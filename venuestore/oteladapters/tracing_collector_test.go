package oteladapters_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	. "github.com/AntonStoeckl/venuestore-go/testutil/helper"
	. "github.com/AntonStoeckl/venuestore-go/venuestore"
	"github.com/AntonStoeckl/venuestore-go/venuestore/oteladapters"
)

func givenTracingCollector(t *testing.T) (*oteladapters.TracingCollector, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	return oteladapters.NewTracingCollector(provider.Tracer("venuestore-test")), exporter
}

func attributeValue(attrs []attribute.KeyValue, key string) (string, bool) {
	for _, a := range attrs {
		if string(a.Key) == key {
			return a.Value.AsString(), true
		}
	}

	return "", false
}

func Test_TracingCollector_SuccessfulSpan(t *testing.T) {
	// setup
	collector, exporter := givenTracingCollector(t)

	// act
	ctx, spanCtx := collector.StartSpan(context.Background(), SpanNameRead, map[string]string{AttrTable: TableVenues})
	spanCtx.AddAttribute(AttrProfile, "bounded_stale")
	collector.FinishSpan(spanCtx, StatusSuccess, map[string]string{"rows": "1"})

	// assert
	require.NotNil(t, ctx)
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, SpanNameRead, span.Name)
	assert.Equal(t, codes.Ok, span.Status.Code)

	for key, expected := range map[string]string{AttrTable: TableVenues, AttrProfile: "bounded_stale", "rows": "1"} {
		value, found := attributeValue(span.Attributes, key)
		assert.True(t, found, key)
		assert.Equal(t, expected, value, key)
	}
}

func Test_TracingCollector_FailedSpanCarriesTheErrorType(t *testing.T) {
	// setup
	collector, exporter := givenTracingCollector(t)

	// act
	_, spanCtx := collector.StartSpan(context.Background(), SpanNameUpdate, nil)
	collector.FinishSpan(spanCtx, StatusError, map[string]string{AttrErrorType: ErrorTypeVersionConflict})

	// assert
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, ErrorTypeVersionConflict, spans[0].Status.Description)
}

func Test_TracingCollector_IgnoresForeignSpanContexts(t *testing.T) {
	// setup
	collector, exporter := givenTracingCollector(t)

	// act
	collector.FinishSpan(&SpySpanContext{}, StatusSuccess, nil)

	// assert
	assert.Empty(t, exporter.GetSpans())
}

func Test_TracingCollector_WiredIntoTheFacade(t *testing.T) {
	// setup
	collector, exporter := givenTracingCollector(t)
	clock := NewFakeClock(time.Date(2026, time.May, 1, 20, 0, 0, 0, time.UTC))
	facade := GivenFacade(t, GivenMemEngine(t, clock), clock, WithTracing(collector))
	ctx := context.Background()

	// act
	singer := FixtureSinger()
	_, createErr := facade.Create(ctx, singer)
	_, updateErr := facade.Update(ctx, &Singer{SingerID: singer.SingerID}, 7, func(Entity) error { return nil })

	// assert
	require.NoError(t, createErr)
	require.ErrorIs(t, updateErr, ErrVersionConflict)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, SpanNameCreate, spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, SpanNameUpdate, spans[1].Name)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}
