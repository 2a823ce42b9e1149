package postgresengine

import (
	"context"
	"math"
	"time"
)

// logQueryWithDuration logs SQL statements with execution time at debug level.
func (e *Engine) logQueryWithDuration(ctx context.Context, sqlQuery string, action string, duration time.Duration) {
	if e.logger != nil {
		e.logger.Debug(logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.DebugContext(ctx, logMsgSQLExecuted+action, logAttrDurationMS, toMilliseconds(duration), logAttrQuery, sqlQuery)
	}
}

// logOperation logs operational information at info level.
func (e *Engine) logOperation(ctx context.Context, message string, args ...any) {
	if e.logger != nil {
		e.logger.Info(message, args...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.InfoContext(ctx, message, args...)
	}
}

// logError logs error information at the error level.
func (e *Engine) logError(ctx context.Context, message string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if e.logger != nil {
		e.logger.Error(message, allArgs...)
	}

	if e.contextualLogger != nil {
		e.contextualLogger.ErrorContext(ctx, message, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
