package venuestore

import "context"

// ConsistencyLevel defines the consistency requirements for read operations.
type ConsistencyLevel int

const (
	// StrongConsistency reads the latest committed state through the strong connection.
	// This is the default, so callers that read their own writes never see stale rows.
	StrongConsistency ConsistencyLevel = iota

	// BoundedStaleConsistency tolerates rows up to the configured staleness bound behind
	// the latest commit. Suitable for bulk or report-style reads.
	BoundedStaleConsistency
)

type contextKey string

// ConsistencyLevelKey is the context key used to store consistency level preferences.
const ConsistencyLevelKey contextKey = "venuestore.consistency_level"

// WithStrongConsistency returns a context that signals reads should use the strong profile.
//
// Example usage:
//
//	ctx = venuestore.WithStrongConsistency(ctx)
//	err := facade.ReadWithContextLevel(ctx, &singer)
func WithStrongConsistency(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, StrongConsistency)
}

// WithBoundedStaleness returns a context that signals reads may use the bounded-stale profile.
func WithBoundedStaleness(ctx context.Context) context.Context {
	return context.WithValue(ctx, ConsistencyLevelKey, BoundedStaleConsistency)
}

// GetConsistencyLevel extracts the consistency level from the context.
// If no consistency level is set, it returns StrongConsistency.
func GetConsistencyLevel(ctx context.Context) ConsistencyLevel {
	if level, ok := ctx.Value(ConsistencyLevelKey).(ConsistencyLevel); ok {
		return level
	}

	return StrongConsistency
}

// String provides a string representation of ConsistencyLevel for logging and debugging.
func (c ConsistencyLevel) String() string {
	switch c {
	case StrongConsistency:
		return "strong"
	case BoundedStaleConsistency:
		return "bounded-stale"
	default:
		return "unknown"
	}
}
