package postgresengine

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/venuestore-go/venuestore"
)

func Test_MapWriteError(t *testing.T) {
	tests := []struct {
		name               string
		err                error
		expectedKind       venuestore.ConstraintKind
		expectedConstraint string
	}{
		{
			name:               "pgx unique violation",
			err:                &pgconn.PgError{Code: "23505", ConstraintName: "singers_pkey"},
			expectedKind:       venuestore.ConstraintUnique,
			expectedConstraint: "singers_pkey",
		},
		{
			name:               "pgx foreign key violation",
			err:                &pgconn.PgError{Code: "23503", ConstraintName: "fk_albums_singers"},
			expectedKind:       venuestore.ConstraintForeignKey,
			expectedConstraint: "fk_albums_singers",
		},
		{
			name:               "lib/pq check violation",
			err:                &pq.Error{Code: "23514", Constraint: "chk_end_time_after_start_time"},
			expectedKind:       venuestore.ConstraintCheck,
			expectedConstraint: "chk_end_time_after_start_time",
		},
		{
			name:         "lib/pq not null violation, wrapped",
			err:          errors.Join(venuestore.ErrExecutingFailed, &pq.Error{Code: "23502"}),
			expectedKind: venuestore.ConstraintNotNull,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// act
			err := mapWriteError("some_table", tt.err)

			// assert
			require.ErrorIs(t, err, venuestore.ErrConstraintViolation)

			var constraintErr *venuestore.ConstraintError
			require.ErrorAs(t, err, &constraintErr)
			assert.Equal(t, tt.expectedKind, constraintErr.Kind)
			assert.Equal(t, tt.expectedConstraint, constraintErr.Constraint)
			assert.Equal(t, "some_table", constraintErr.Table)
		})
	}
}

func Test_MapWriteError_LeavesOtherErrorsAlone(t *testing.T) {
	// arrange
	serialization := &pgconn.PgError{Code: "40001"}
	plain := errors.New("connection reset")

	// act + assert
	assert.Same(t, serialization, mapWriteError("singers", serialization))
	assert.Equal(t, plain, mapWriteError("singers", plain))
}

func Test_MapDeleteError_ForeignKeyViolation(t *testing.T) {
	// act
	err := mapDeleteError("singers", &pgconn.PgError{Code: "23503", ConstraintName: "fk_concerts_singers"})

	// assert
	assert.ErrorIs(t, err, venuestore.ErrReferentialIntegrity)
	assert.ErrorIs(t, err, venuestore.ErrConstraintViolation)
}
