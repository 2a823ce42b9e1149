package venuestore

import (
	"time"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"
)

const (
	reasonRequired   = "is required"
	reasonTooLong    = "exceeds the maximum length"
	reasonInvalidDoc = "is not a valid JSON document"
	reasonEmptyID    = "must not be an empty identifier"
	reasonCheck      = "violates check constraint "
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Validate checks an entity against its table schema before a write is issued:
// required columns are present, string lengths are within bounds, JSON documents are valid
// and every declared check constraint holds. It returns a *ValidationError for the first violation.
//
// Foreign keys are not checked here, see Facade for the existence pre-check.
func Validate(e Entity) error {
	if e == nil {
		return ErrNilEntity
	}

	t, err := TableByName(e.TableName())
	if err != nil {
		return err
	}

	row, err := RowOf(e)
	if err != nil {
		return err
	}

	for _, col := range t.Columns {
		if col.Name == ColCreatedAt || col.Name == ColUpdatedAt || col.Name == ColLockVersion {
			continue
		}

		if reason, ok := validateColumn(col, row[col.Name]); !ok {
			return &ValidationError{Table: t.Name, Field: col.Name, Reason: reason}
		}
	}

	for _, check := range t.Checks {
		if !check.Holds(row) {
			return &ValidationError{Table: t.Name, Field: check.Column, Reason: reasonCheck + check.Name}
		}
	}

	return nil
}

func validateColumn(col Column, value any) (string, bool) {
	if isNull(col, value) {
		if col.Nullable {
			return "", true
		}

		return reasonRequired, false
	}

	switch v := value.(type) {
	case string:
		if col.Type == TypeID && v == "" {
			return reasonEmptyID, false
		}

		if col.Type == TypeJSON {
			if !jsonAPI.Valid([]byte(v)) {
				return reasonInvalidDoc, false
			}

			return "", true
		}

		if col.MaxLength > 0 && utf8.RuneCountInString(v) > col.MaxLength {
			return reasonTooLong, false
		}
	}

	return "", true
}

// isNull treats nil, zero timestamps and empty strings of required columns as absent.
func isNull(col Column, value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == "" && !col.Nullable
	case time.Time:
		return v.IsZero()
	default:
		return false
	}
}
