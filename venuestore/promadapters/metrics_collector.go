// Package promadapters exposes the venuestore metrics through a Prometheus registry.
package promadapters

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AntonStoeckl/venuestore-go/venuestore"
)

// knownLabels fixes the label names of the facade metrics so that every call lands in the same vector.
var knownLabels = map[string][]string{
	venuestore.MetricOperationDuration: {venuestore.AttrOperation, venuestore.AttrTable, venuestore.AttrStatus},
	venuestore.MetricOperationErrors:   {venuestore.AttrOperation, venuestore.AttrTable, venuestore.AttrStatus, venuestore.AttrErrorType},
	venuestore.MetricVersionConflicts:  {venuestore.AttrOperation, venuestore.AttrTable},
	venuestore.MetricRouteUnavailable:  {venuestore.AttrOperation, venuestore.AttrTable},
	venuestore.MetricRowsRead:          {venuestore.AttrOperation, venuestore.AttrTable, venuestore.AttrStatus},
}

// MetricsCollector implements venuestore.MetricsCollector with Prometheus vectors, registered on first use.
//
// Label names of a metric are fixed when its vector is created. Later calls fill missing labels
// with "" and drop labels the vector does not know.
type MetricsCollector struct {
	registerer prometheus.Registerer
	buckets    []float64

	mu         sync.Mutex
	histograms map[string]*vector[*prometheus.HistogramVec]
	counters   map[string]*vector[*prometheus.CounterVec]
	gauges     map[string]*vector[*prometheus.GaugeVec]
}

type vector[V any] struct {
	vec    V
	labels []string
}

// Option configures the MetricsCollector.
type Option func(*MetricsCollector)

// WithBuckets sets the histogram buckets in seconds, prometheus.DefBuckets otherwise.
func WithBuckets(buckets []float64) Option {
	return func(m *MetricsCollector) {
		m.buckets = buckets
	}
}

// NewMetricsCollector creates a collector that registers its vectors on registerer.
func NewMetricsCollector(registerer prometheus.Registerer, options ...Option) *MetricsCollector {
	m := &MetricsCollector{
		registerer: registerer,
		buckets:    prometheus.DefBuckets,
		histograms: make(map[string]*vector[*prometheus.HistogramVec]),
		counters:   make(map[string]*vector[*prometheus.CounterVec]),
		gauges:     make(map[string]*vector[*prometheus.GaugeVec]),
	}

	for _, option := range options {
		option(m)
	}

	return m
}

func (m *MetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	if v := m.histogram(metric, labels); v != nil {
		v.vec.WithLabelValues(labelValues(v.labels, labels)...).Observe(duration.Seconds())
	}
}

func (m *MetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	if v := m.counter(metric, labels); v != nil {
		v.vec.WithLabelValues(labelValues(v.labels, labels)...).Inc()
	}
}

func (m *MetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	if v := m.gauge(metric, labels); v != nil {
		v.vec.WithLabelValues(labelValues(v.labels, labels)...).Set(value)
	}
}

// The context variants exist so the facade prefers them. Prometheus has no use for ctx.

func (m *MetricsCollector) RecordDurationContext(_ context.Context, metric string, duration time.Duration, labels map[string]string) {
	m.RecordDuration(metric, duration, labels)
}

func (m *MetricsCollector) IncrementCounterContext(_ context.Context, metric string, labels map[string]string) {
	m.IncrementCounter(metric, labels)
}

func (m *MetricsCollector) RecordValueContext(_ context.Context, metric string, value float64, labels map[string]string) {
	m.RecordValue(metric, value, labels)
}

func (m *MetricsCollector) histogram(name string, labels map[string]string) *vector[*prometheus.HistogramVec] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.histograms[name]; ok {
		return v
	}

	names := labelNames(name, labels)
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help(name), Buckets: m.buckets}, names)

	vec, err := register(m.registerer, vec)
	if err != nil {
		return nil
	}

	v := &vector[*prometheus.HistogramVec]{vec: vec, labels: names}
	m.histograms[name] = v

	return v
}

func (m *MetricsCollector) counter(name string, labels map[string]string) *vector[*prometheus.CounterVec] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.counters[name]; ok {
		return v
	}

	names := labelNames(name, labels)
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help(name)}, names)

	vec, err := register(m.registerer, vec)
	if err != nil {
		return nil
	}

	v := &vector[*prometheus.CounterVec]{vec: vec, labels: names}
	m.counters[name] = v

	return v
}

func (m *MetricsCollector) gauge(name string, labels map[string]string) *vector[*prometheus.GaugeVec] {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.gauges[name]; ok {
		return v
	}

	names := labelNames(name, labels)
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help(name)}, names)

	vec, err := register(m.registerer, vec)
	if err != nil {
		return nil
	}

	v := &vector[*prometheus.GaugeVec]{vec: vec, labels: names}
	m.gauges[name] = v

	return v
}

// register reuses a vector another collector already registered under the same descriptor.
func register[V prometheus.Collector](registerer prometheus.Registerer, vec V) (V, error) {
	err := registerer.Register(vec)
	if err == nil {
		return vec, nil
	}

	var already prometheus.AlreadyRegisteredError
	if errors.As(err, &already) {
		if existing, ok := already.ExistingCollector.(V); ok {
			return existing, nil
		}
	}

	var zero V

	return zero, err
}

func labelNames(metric string, labels map[string]string) []string {
	if names, ok := knownLabels[metric]; ok {
		return names
	}

	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	slices.Sort(names)

	return names
}

func labelValues(names []string, labels map[string]string) []string {
	values := make([]string, len(names))
	for i, name := range names {
		values[i] = labels[name]
	}

	return values
}

func help(metric string) string {
	return "venuestore metric " + metric
}

var _ venuestore.ContextualMetricsCollector = (*MetricsCollector)(nil)
