package postgresengine

import "github.com/AntonStoeckl/venuestore-go/venuestore"

// Logger is satisfied by *slog.Logger.
type Logger = venuestore.Logger

// ContextualLogger is satisfied by *slog.Logger and the OpenTelemetry logger adapters.
type ContextualLogger = venuestore.ContextualLogger

// Option defines a functional option for configuring the Engine.
type Option func(*Engine) error

// WithLogger sets the logger for the Engine.
// The logger will receive messages at different levels based on the logger's configured level:
//
// Debug level: SQL statements with execution timing (development use)
// Info level: version conflicts
// Warn level: Non-critical issues like cleanup failures
// Error level: Critical failures that cause operation failures.
func WithLogger(logger Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithContextualLogger sets the contextual logger for the Engine.
// Log records then carry trace and span IDs when tracing is enabled.
func WithContextualLogger(logger ContextualLogger) Option {
	return func(e *Engine) error {
		e.contextualLogger = logger
		return nil
	}
}

// WithReplicaLagProbe makes ProbeProfile measure the replay lag of the bounded-stale connection
// with pg_last_xact_replay_timestamp() and reject it when the lag exceeds the staleness bound.
// Only enable it when the stale connection points at a streaming replica.
func WithReplicaLagProbe() Option {
	return func(e *Engine) error {
		e.replicaLagProbe = true
		return nil
	}
}
