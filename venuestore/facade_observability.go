package venuestore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// Metric names.
const (
	MetricOperationDuration = "venuestore_operation_duration_seconds"
	MetricOperationErrors   = "venuestore_operation_errors_total"
	MetricVersionConflicts  = "venuestore_version_conflicts_total"
	MetricRouteUnavailable  = "venuestore_route_unavailable_total"
	MetricRowsRead          = "venuestore_rows_read"
)

// Span names, one per facade operation.
const (
	SpanNameCreate = "venuestore.create"
	SpanNameRead   = "venuestore.read"
	SpanNameUpdate = "venuestore.update"
	SpanNameDelete = "venuestore.delete"
)

// Labels and attributes shared by metrics, spans and logs.
const (
	AttrOperation = "operation"
	AttrTable     = "table"
	AttrStatus    = "status"
	AttrErrorType = "error_type"
	AttrProfile   = "profile"

	StatusSuccess = "success"
	StatusError   = "error"
)

// Error types reported in metric labels and span attributes.
const (
	ErrorTypeValidation       = "validation"
	ErrorTypeConstraint       = "constraint"
	ErrorTypeVersionConflict  = "version_conflict"
	ErrorTypeNotFound         = "not_found"
	ErrorTypeRouteUnavailable = "route_unavailable"
	ErrorTypeReferential      = "referential_integrity"
	ErrorTypeCanceled         = "context_canceled"
	ErrorTypeDeadline         = "context_deadline_exceeded"
	ErrorTypeDatabase         = "database"
)

const (
	operationCreate = "create"
	operationRead   = "read"
	operationUpdate = "update"
	operationDelete = "delete"

	logMsgOperation        = "venuestore operation: "
	logMsgOperationFailed  = "venuestore operation failed: "
	logMsgVersionConflict  = "version conflict detected"
	logAttrError           = "error"
	logAttrTable           = "table"
	logAttrDurationMS      = "duration_ms"
	logAttrVersion         = "version"
	logAttrExpectedVersion = "expected_version"
	logAttrProfile         = "profile"
	logAttrErrorType       = "error_type"
)

var spanNames = map[string]string{
	operationCreate: SpanNameCreate,
	operationRead:   SpanNameRead,
	operationUpdate: SpanNameUpdate,
	operationDelete: SpanNameDelete,
}

// ErrorType classifies err into one of the ErrorType* values.
func ErrorType(err error) string {
	switch {
	case errors.Is(err, ErrVersionConflict):
		return ErrorTypeVersionConflict
	case errors.Is(err, ErrValidation):
		return ErrorTypeValidation
	case errors.Is(err, ErrReferentialIntegrity):
		return ErrorTypeReferential
	case errors.Is(err, ErrConstraintViolation):
		return ErrorTypeConstraint
	case errors.Is(err, ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, ErrRouteUnavailable):
		return ErrorTypeRouteUnavailable
	case errors.Is(err, context.Canceled):
		return ErrorTypeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeDeadline
	default:
		return ErrorTypeDatabase
	}
}

// operationObserver records logs, metrics and the tracing span of one facade operation.
type operationObserver struct {
	f         *Facade
	ctx       context.Context
	operation string
	table     string
	start     time.Time
	span      SpanContext
}

func (f *Facade) startOperation(ctx context.Context, operation, table string) (*operationObserver, context.Context) {
	obs := &operationObserver{
		f:         f,
		operation: operation,
		table:     table,
		start:     time.Now(),
	}

	if f.tracingCollector != nil {
		ctx, obs.span = f.tracingCollector.StartSpan(ctx, spanNames[operation], map[string]string{
			AttrOperation: operation,
			AttrTable:     table,
		})
	}

	obs.ctx = ctx

	return obs, ctx
}

func (o *operationObserver) labels(status string) map[string]string {
	return map[string]string{
		AttrOperation: o.operation,
		AttrTable:     o.table,
		AttrStatus:    status,
	}
}

// finishSuccess completes the operation. args are extra key/value pairs for the log record.
func (o *operationObserver) finishSuccess(args ...any) {
	duration := time.Since(o.start)

	o.recordDuration(duration, StatusSuccess)

	if o.operation == operationRead {
		o.recordValue(MetricRowsRead, 1, o.labels(StatusSuccess))
	}

	if o.span != nil {
		o.span.SetStatus(StatusSuccess)
		o.span.AddAttribute(logAttrDurationMS, fmt.Sprintf("%.2f", toMilliseconds(duration)))
		o.f.tracingCollector.FinishSpan(o.span, StatusSuccess, nil)
	}

	allArgs := []any{logAttrTable, o.table, logAttrDurationMS, toMilliseconds(duration)}
	allArgs = append(allArgs, args...)

	if o.f.logger != nil {
		o.f.logger.Info(logMsgOperation+o.operation, allArgs...)
	}

	if o.f.contextualLogger != nil {
		o.f.contextualLogger.InfoContext(o.ctx, logMsgOperation+o.operation, allArgs...)
	}
}

// finishError completes the operation with err and returns it unchanged.
func (o *operationObserver) finishError(err error) error {
	duration := time.Since(o.start)
	errorType := ErrorType(err)

	o.recordDuration(duration, StatusError)

	labels := o.labels(StatusError)
	labels[AttrErrorType] = errorType
	o.incrementCounter(MetricOperationErrors, labels)

	switch errorType {
	case ErrorTypeVersionConflict:
		o.incrementCounter(MetricVersionConflicts, map[string]string{AttrOperation: o.operation, AttrTable: o.table})
	case ErrorTypeRouteUnavailable:
		o.incrementCounter(MetricRouteUnavailable, map[string]string{AttrOperation: o.operation, AttrTable: o.table})
	}

	if o.span != nil {
		o.span.SetStatus(StatusError)
		o.span.AddAttribute(AttrErrorType, errorType)
		o.f.tracingCollector.FinishSpan(o.span, StatusError, map[string]string{AttrErrorType: errorType})
	}

	o.log(errorType, err, duration)

	return err
}

// log reports version conflicts at info level, they are an expected outcome under contention.
func (o *operationObserver) log(errorType string, err error, duration time.Duration) {
	args := []any{
		logAttrTable, o.table,
		logAttrErrorType, errorType,
		logAttrError, err.Error(),
		logAttrDurationMS, toMilliseconds(duration),
	}

	if errorType == ErrorTypeVersionConflict {
		if o.f.logger != nil {
			o.f.logger.Info(logMsgVersionConflict, args...)
		}

		if o.f.contextualLogger != nil {
			o.f.contextualLogger.InfoContext(o.ctx, logMsgVersionConflict, args...)
		}

		return
	}

	if o.f.logger != nil {
		o.f.logger.Error(logMsgOperationFailed+o.operation, args...)
	}

	if o.f.contextualLogger != nil {
		o.f.contextualLogger.ErrorContext(o.ctx, logMsgOperationFailed+o.operation, args...)
	}
}

func (o *operationObserver) recordDuration(duration time.Duration, status string) {
	collector := o.f.metricsCollector
	if collector == nil {
		return
	}

	if contextual, ok := collector.(ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(o.ctx, MetricOperationDuration, duration, o.labels(status))
		return
	}

	collector.RecordDuration(MetricOperationDuration, duration, o.labels(status))
}

func (o *operationObserver) incrementCounter(metric string, labels map[string]string) {
	collector := o.f.metricsCollector
	if collector == nil {
		return
	}

	if contextual, ok := collector.(ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(o.ctx, metric, labels)
		return
	}

	collector.IncrementCounter(metric, labels)
}

func (o *operationObserver) recordValue(metric string, value float64, labels map[string]string) {
	collector := o.f.metricsCollector
	if collector == nil {
		return
	}

	if contextual, ok := collector.(ContextualMetricsCollector); ok {
		contextual.RecordValueContext(o.ctx, metric, value, labels)
		return
	}

	collector.RecordValue(metric, value, labels)
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
