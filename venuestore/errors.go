package venuestore

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when an entity fails the schema's pre-write validation.
	ErrValidation = errors.New("validation failed")

	// ErrConstraintViolation is returned when storage rejects a write because of a
	// uniqueness, foreign key or check constraint that pre-validation did not catch.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrVersionConflict is returned when the expected lock_version does not match the stored one.
	ErrVersionConflict = errors.New("version conflict, the row was modified concurrently")

	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("row not found")

	// ErrRouteUnavailable is returned when the connection of the requested consistency profile is not usable.
	ErrRouteUnavailable = errors.New("connection profile unavailable")

	// ErrReferentialIntegrity is returned when a delete would orphan referencing rows.
	ErrReferentialIntegrity = errors.New("row is still referenced")
)

var (
	ErrNilDatabaseConnection     = errors.New("database connection must not be nil")
	ErrNilEngine                 = errors.New("engine must not be nil")
	ErrNilEntity                 = errors.New("entity must not be nil")
	ErrNilMutation               = errors.New("mutation must not be nil")
	ErrUnknownTable              = errors.New("unknown table")
	ErrInvalidStaleness          = errors.New("staleness bound must be positive")
	ErrBuildingQueryFailed       = errors.New("building the query failed")
	ErrQueryingFailed            = errors.New("querying rows failed")
	ErrExecutingFailed           = errors.New("executing the statement failed")
	ErrScanningDBRowFailed       = errors.New("scanning db row failed")
	ErrGettingRowsAffectedFailed = errors.New("getting rows affected failed")
	ErrGeneratingIDFailed        = errors.New("generating the row id failed")
)

// ValidationError names the field and the reason an entity was rejected before the write was issued.
type ValidationError struct {
	Table  string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s.%s %s", ErrValidation, e.Table, e.Field, e.Reason)
}

// Unwrap makes errors.Is(err, ErrValidation) work.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// ConstraintKind classifies storage constraint violations.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintNotNull    ConstraintKind = "not_null"
)

// ConstraintError is returned when storage (or the foreign key pre-check) rejects a write.
// Constraint holds the constraint name if storage reported one.
type ConstraintError struct {
	Table      string
	Kind       ConstraintKind
	Constraint string
	Cause      error
}

func (e *ConstraintError) Error() string {
	msg := fmt.Sprintf("%s: %s constraint on %s", ErrConstraintViolation, e.Kind, e.Table)
	if e.Constraint != "" {
		msg += " (" + e.Constraint + ")"
	}

	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

// Unwrap exposes both the sentinel and the storage cause.
func (e *ConstraintError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrConstraintViolation}
	}

	return []error{ErrConstraintViolation, e.Cause}
}
