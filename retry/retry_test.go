package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/venuestore-go/retry"
	. "github.com/AntonStoeckl/venuestore-go/testutil/helper"
	. "github.com/AntonStoeckl/venuestore-go/venuestore"
)

func Test_Do_When_TheFirstAttemptSucceeds(t *testing.T) {
	// setup
	calls := 0

	// act
	meta, err := retry.Do(context.Background(), func(context.Context) error {
		calls++
		return nil
	})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, meta.Attempts)
	assert.Equal(t, time.Duration(0), meta.TotalDelay)
	assert.Equal(t, "none", meta.LastErrorType)
}

func Test_Do_RetriesVersionConflicts(t *testing.T) {
	// setup
	calls := 0

	// act
	meta, err := retry.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return ErrVersionConflict
		}

		return nil
	}, retry.WithBaseDelay(time.Millisecond))

	// assert
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, meta.Attempts)
	assert.GreaterOrEqual(t, meta.TotalDelay, 3*time.Millisecond)
}

func Test_Do_FailsFastOnOtherErrors(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedType string
	}{
		{name: "not found", err: ErrNotFound, expectedType: ErrorTypeNotFound},
		{name: "validation", err: &ValidationError{Table: TableSingers, Field: "last_name", Reason: "is required"}, expectedType: ErrorTypeValidation},
		{name: "deadline", err: context.DeadlineExceeded, expectedType: ErrorTypeDeadline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// setup
			calls := 0

			// act
			meta, err := retry.Do(context.Background(), func(context.Context) error {
				calls++
				return tt.err
			})

			// assert
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, 1, calls)
			assert.Equal(t, tt.expectedType, meta.LastErrorType)
		})
	}
}

func Test_Do_GivesUpAfterMaxAttempts(t *testing.T) {
	// setup
	metrics := NewMetricsCollectorSpy()
	calls := 0

	// act
	meta, err := retry.Do(context.Background(), func(context.Context) error {
		calls++
		return ErrVersionConflict
	}, retry.WithMaxAttempts(3), retry.WithBaseDelay(0), retry.WithMetrics(metrics, "rename_singer"))

	// assert
	assert.ErrorIs(t, err, ErrVersionConflict)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, meta.Attempts)
	assert.Equal(t, ErrorTypeVersionConflict, meta.LastErrorType)

	assert.Equal(t, 2, metrics.CountCounterRecordsForMetric(retry.MetricRetries))
	assert.Equal(t, 2, metrics.CountDurationRecordsForMetric(retry.MetricRetryDelay))
	assert.True(t, metrics.HasCounterRecordForMetric(retry.MetricMaxRetriesReached).
		WithOperation("rename_singer").
		WithLabel(retry.LabelFinalErrorType, ErrorTypeVersionConflict).
		Assert())
}

func Test_Do_StopsWaitingWhenTheContextEnds(t *testing.T) {
	// setup
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	// act
	meta, err := retry.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return ErrVersionConflict
	}, retry.WithBaseDelay(time.Hour))

	// assert
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Equal(t, ErrorTypeCanceled, meta.LastErrorType)
}

func Test_Do_RejectsInvalidOptions(t *testing.T) {
	fn := func(context.Context) error { return nil }
	ctx := context.Background()

	_, err := retry.Do(ctx, fn, retry.WithMaxAttempts(0))
	assert.ErrorIs(t, err, retry.ErrInvalidMaxAttempts)

	_, err = retry.Do(ctx, fn, retry.WithBaseDelay(-time.Second))
	assert.ErrorIs(t, err, retry.ErrNegativeBaseDelay)

	_, err = retry.Do(ctx, fn, retry.WithJitterFactor(1.5))
	assert.ErrorIs(t, err, retry.ErrInvalidJitterFactor)

	_, err = retry.Do(ctx, fn, retry.WithMetrics(nil, "op"))
	assert.ErrorIs(t, err, retry.ErrNilMetricsCollector)

	_, err = retry.Do(ctx, fn, retry.WithMetrics(NewMetricsCollectorSpy(), ""))
	assert.ErrorIs(t, err, retry.ErrEmptyOperation)
}

func Test_UpdateLatest_ReReadsTheVersionAfterAConflict(t *testing.T) {
	// setup
	clock := NewFakeClock(time.Date(2026, time.July, 4, 21, 0, 0, 0, time.UTC))
	facade := GivenFacade(t, GivenMemEngine(t, clock), clock)
	ctx := context.Background()

	singer := FixtureSinger()
	_, err := facade.Create(ctx, singer)
	require.NoError(t, err)

	interfered := false
	interfere := func() {
		if interfered {
			return
		}

		interfered = true
		_, err := facade.Update(ctx, &Singer{SingerID: singer.SingerID}, 0, func(e Entity) error {
			e.(*Singer).FirstName = Ptr("Eunice")
			return nil
		})
		require.NoError(t, err)
	}

	// act
	updated, meta, err := retry.UpdateLatest(ctx, facade, &Singer{SingerID: singer.SingerID}, func(e Entity) error {
		interfere()
		e.(*Singer).LastName = "Waymon"
		return nil
	}, retry.WithBaseDelay(0))

	// assert
	require.NoError(t, err)
	assert.Equal(t, 2, meta.Attempts)
	assert.Equal(t, int64(2), updated.NewVersion)

	reloaded := &Singer{SingerID: singer.SingerID}
	require.NoError(t, facade.Read(ctx, reloaded, StrongConsistency))
	assert.Equal(t, "Waymon", reloaded.LastName)
	assert.Equal(t, "Eunice", *reloaded.FirstName)
}

func Test_UpdateLatest_When_TheRowIsGone(t *testing.T) {
	// setup
	clock := NewFakeClock(time.Date(2026, time.July, 4, 21, 0, 0, 0, time.UTC))
	facade := GivenFacade(t, GivenMemEngine(t, clock), clock)

	// act
	_, meta, err := retry.UpdateLatest(context.Background(), facade, &Singer{SingerID: GivenUniqueID(t)},
		func(Entity) error { return errors.New("never called") })

	// assert
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, meta.Attempts)
}
