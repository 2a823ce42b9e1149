// Package oteladapters connects the venuestore observability interfaces to OpenTelemetry.
//
// MetricsCollector maps durations to histograms, counters to counters and values to gauges.
// TracingCollector opens one span per facade operation. SlogBridgeLogger and OTelLogger
// emit log records that carry the active trace and span IDs.
//
//	facade, err := venuestore.NewFacade(engine,
//		venuestore.WithMetrics(oteladapters.NewMetricsCollector(otel.Meter("venuestore"))),
//		venuestore.WithTracing(oteladapters.NewTracingCollector(otel.Tracer("venuestore"))),
//		venuestore.WithContextualLogger(oteladapters.NewSlogBridgeLogger("venuestore")),
//	)
package oteladapters
