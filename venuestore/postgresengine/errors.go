package postgresengine

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/venuestore-go/venuestore"
)

// SQLSTATE codes of the integrity constraint violation class.
const (
	sqlStateNotNullViolation    = "23502"
	sqlStateForeignKeyViolation = "23503"
	sqlStateUniqueViolation     = "23505"
	sqlStateCheckViolation      = "23514"
)

// sqlState extracts the SQLSTATE and constraint name from a pgx or lib/pq error.
func sqlState(err error) (code string, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}

	return "", "", false
}

// mapWriteError turns integrity constraint violations into *venuestore.ConstraintError.
// Other errors are returned unchanged.
func mapWriteError(table string, err error) error {
	code, constraint, ok := sqlState(err)
	if !ok {
		return err
	}

	var kind venuestore.ConstraintKind

	switch code {
	case sqlStateUniqueViolation:
		kind = venuestore.ConstraintUnique
	case sqlStateForeignKeyViolation:
		kind = venuestore.ConstraintForeignKey
	case sqlStateCheckViolation:
		kind = venuestore.ConstraintCheck
	case sqlStateNotNullViolation:
		kind = venuestore.ConstraintNotNull
	default:
		return err
	}

	return &venuestore.ConstraintError{Table: table, Kind: kind, Constraint: constraint, Cause: err}
}

// mapDeleteError reports a foreign key violation on delete as ErrReferentialIntegrity.
func mapDeleteError(table string, err error) error {
	if code, constraint, ok := sqlState(err); ok && code == sqlStateForeignKeyViolation {
		return errors.Join(venuestore.ErrReferentialIntegrity, &venuestore.ConstraintError{
			Table:      table,
			Kind:       venuestore.ConstraintForeignKey,
			Constraint: constraint,
			Cause:      err,
		})
	}

	return mapWriteError(table, err)
}
