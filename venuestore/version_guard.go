package venuestore

// InitialVersion is the lock_version of a freshly created row.
const InitialVersion int64 = 0

// WriteIntent describes a conditional write: it may only be applied while the stored
// lock_version equals ExpectedVersion, and leaves the row at NewVersion.
type WriteIntent struct {
	ExpectedVersion int64
	NewVersion      int64
	Payload         Entity
}

// PrepareUpdate builds the intent for writing payload over a row currently at currentVersion.
// The payload's lock_version is set to the new version.
func PrepareUpdate(currentVersion int64, payload Entity) WriteIntent {
	intent := WriteIntent{
		ExpectedVersion: currentVersion,
		NewVersion:      currentVersion + 1,
		Payload:         payload,
	}

	if payload != nil {
		payload.Meta().LockVersion = intent.NewVersion
	}

	return intent
}

// PrepareDelete builds the intent for deleting a row currently at currentVersion.
func PrepareDelete(currentVersion int64) WriteIntent {
	return WriteIntent{
		ExpectedVersion: currentVersion,
		NewVersion:      currentVersion,
	}
}

// ApplyIfMatch checks the stored version against the intent.
// A mismatch means another writer won; the conflict is returned to the caller and never retried here.
func ApplyIfMatch(storedVersion int64, intent WriteIntent) error {
	if storedVersion != intent.ExpectedVersion {
		return ErrVersionConflict
	}

	return nil
}
