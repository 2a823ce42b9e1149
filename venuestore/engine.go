package venuestore

import "context"

// Engine is the storage collaborator of the Facade. Implementations execute single-row,
// atomic statements and are authoritative for primary key, foreign key and check constraints.
type Engine interface {
	ProfileProber

	// Insert stores a new row. Constraint violations are reported as *ConstraintError.
	Insert(ctx context.Context, e Entity) error

	// Load fills dst, identified by its key values, from the connection of the given profile.
	// It returns ErrNotFound if no row matches.
	Load(ctx context.Context, profile ConnectionProfile, dst Entity) error

	// UpdateIfVersion writes intent.Payload if the stored lock_version still equals
	// intent.ExpectedVersion. It returns ErrVersionConflict or ErrNotFound otherwise.
	UpdateIfVersion(ctx context.Context, intent WriteIntent) error

	// DeleteIfVersion deletes the row identified by key if its lock_version still equals
	// intent.ExpectedVersion. It returns ErrVersionConflict, ErrNotFound or ErrReferentialIntegrity.
	DeleteIfVersion(ctx context.Context, key Entity, intent WriteIntent) error

	// Exists reports whether a row with the given key values exists, read with strong consistency.
	Exists(ctx context.Context, table string, keyValues []any) (bool, error)

	// CountReferences counts the rows of ref.Table whose foreign key column equals value.
	CountReferences(ctx context.Context, ref Reference, value any) (int64, error)
}
