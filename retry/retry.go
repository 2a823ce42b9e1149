// Package retry re-runs optimistic writes that lost a version race. The facade itself never retries,
// callers opt in here.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/AntonStoeckl/venuestore-go/venuestore"
)

const (
	defaultMaxAttempts  = 6
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

// Metric names and labels.
const (
	MetricRetries           = "venuestore_retries_total"
	MetricRetryDelay        = "venuestore_retry_delay_seconds"
	MetricMaxRetriesReached = "venuestore_max_retries_reached_total"

	LabelOperation      = "operation"
	LabelAttemptNumber  = "attempt_number"
	LabelFinalErrorType = "final_error_type"
)

var (
	ErrNilMetricsCollector = errors.New("metrics collector must not be nil")
	ErrEmptyOperation      = errors.New("operation must not be empty")
	ErrInvalidMaxAttempts  = errors.New("max attempts must be positive")
	ErrNegativeBaseDelay   = errors.New("base delay must not be negative")
	ErrInvalidJitterFactor = errors.New("jitter factor must be between 0.0 and 1.0")
)

// Func is the unit of work that gets retried.
type Func func(ctx context.Context) error

// Meta describes how a Do call went.
type Meta struct {
	Attempts      int
	TotalDelay    time.Duration
	LastErrorType string
}

type config struct {
	maxAttempts      int
	baseDelay        time.Duration
	jitterFactor     float64
	metricsCollector venuestore.MetricsCollector
	operation        string
}

// Option configures Do.
type Option func(*config) error

// Do runs fn until it succeeds, fails with an error other than venuestore.ErrVersionConflict,
// ctx ends, or the attempts are used up. The n-th retry waits baseDelay * 2^(n-1) plus up to
// jitterFactor of that.
//
// Defaults: 6 attempts, 10ms base delay, 0.3 jitter, roughly 0, 10, 20, 40, 80, 160ms.
func Do(ctx context.Context, fn Func, options ...Option) (Meta, error) {
	cfg := &config{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}

	for _, option := range options {
		if err := option(cfg); err != nil {
			return Meta{}, err
		}
	}

	var meta Meta
	var lastErr error

	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.backoff(attempt)
			cfg.recordDelay(ctx, attempt, delay)

			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				meta.LastErrorType = venuestore.ErrorType(ctx.Err())
				return meta, ctx.Err()
			}

			meta.TotalDelay += delay
		}

		meta.Attempts++

		lastErr = fn(ctx)
		meta.LastErrorType = errorType(lastErr)

		if lastErr == nil || !errors.Is(lastErr, venuestore.ErrVersionConflict) {
			return meta, lastErr
		}

		if attempt < cfg.maxAttempts-1 {
			cfg.recordRetry(ctx, attempt+1)
		}
	}

	cfg.recordMaxRetriesReached(ctx, meta.LastErrorType)

	return meta, lastErr
}

// UpdateLatest reads the current version of key on the strong connection and applies mutation
// conditioned on it, again with a fresh read after every version conflict.
func UpdateLatest(
	ctx context.Context,
	facade *venuestore.Facade,
	key venuestore.Entity,
	mutation venuestore.Mutation,
	options ...Option,
) (venuestore.Updated, Meta, error) {

	var updated venuestore.Updated

	meta, err := Do(ctx, func(ctx context.Context) error {
		current := key.Clone()
		if err := facade.Read(ctx, current, venuestore.StrongConsistency); err != nil {
			return err
		}

		var err error
		updated, err = facade.Update(ctx, key, current.Meta().LockVersion, mutation)

		return err
	}, options...)

	return updated, meta, err
}

func (c *config) backoff(attempt int) time.Duration {
	delay := c.baseDelay * time.Duration(1<<(attempt-1))
	jitter := rand.Float64() * float64(delay) * c.jitterFactor //nolint:gosec // jitter needs no crypto randomness

	return delay + time.Duration(jitter)
}

func errorType(err error) string {
	if err == nil {
		return "none"
	}

	return venuestore.ErrorType(err)
}

func (c *config) recordDelay(ctx context.Context, attempt int, delay time.Duration) {
	if c.metricsCollector == nil {
		return
	}

	labels := map[string]string{LabelOperation: c.operation, LabelAttemptNumber: strconv.Itoa(attempt)}

	if contextual, ok := c.metricsCollector.(venuestore.ContextualMetricsCollector); ok {
		contextual.RecordDurationContext(ctx, MetricRetryDelay, delay, labels)
		return
	}

	c.metricsCollector.RecordDuration(MetricRetryDelay, delay, labels)
}

func (c *config) recordRetry(ctx context.Context, attemptNumber int) {
	if c.metricsCollector == nil {
		return
	}

	labels := map[string]string{LabelOperation: c.operation, LabelAttemptNumber: strconv.Itoa(attemptNumber)}

	if contextual, ok := c.metricsCollector.(venuestore.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, MetricRetries, labels)
		return
	}

	c.metricsCollector.IncrementCounter(MetricRetries, labels)
}

func (c *config) recordMaxRetriesReached(ctx context.Context, finalErrorType string) {
	if c.metricsCollector == nil {
		return
	}

	labels := map[string]string{LabelOperation: c.operation, LabelFinalErrorType: finalErrorType}

	if contextual, ok := c.metricsCollector.(venuestore.ContextualMetricsCollector); ok {
		contextual.IncrementCounterContext(ctx, MetricMaxRetriesReached, labels)
		return
	}

	c.metricsCollector.IncrementCounter(MetricMaxRetriesReached, labels)
}

// WithMaxAttempts sets the total number of attempts, the first one included.
func WithMaxAttempts(attempts int) Option {
	return func(c *config) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}

		c.maxAttempts = attempts

		return nil
	}
}

// WithBaseDelay sets the delay before the first retry.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *config) error {
		if delay < 0 {
			return ErrNegativeBaseDelay
		}

		c.baseDelay = delay

		return nil
	}
}

// WithJitterFactor sets the maximum jitter as a fraction of each delay, from 0.0 to 1.0.
func WithJitterFactor(factor float64) Option {
	return func(c *config) error {
		if factor < 0.0 || factor > 1.0 {
			return ErrInvalidJitterFactor
		}

		c.jitterFactor = factor

		return nil
	}
}

// WithMetrics records retries, delays and exhaustion, labeled with operation.
func WithMetrics(collector venuestore.MetricsCollector, operation string) Option {
	return func(c *config) error {
		if collector == nil {
			return ErrNilMetricsCollector
		}

		if operation == "" {
			return ErrEmptyOperation
		}

		c.metricsCollector = collector
		c.operation = operation

		return nil
	}
}
