// Package venuestore provides an optimistic-concurrency data-access layer for a music-venue domain:
// singers, albums, tracks, venues and concerts.
//
// Every row carries a lock_version that is incremented exactly once per successful write.
// Updates and deletes name the version they were derived from; a stale version fails with
// ErrVersionConflict and is never retried here.
//
// Reads are routed to one of two connection profiles:
//   - strong: always sees the latest committed state
//   - bounded-stale: may lag by at most a configured bound (default 10s)
//
// Key types:
//   - Facade: create, read, update and delete with validation and version checks
//   - Engine: the storage collaborator executing single-row statements
//   - Router: maps a ConsistencyLevel to a ConnectionProfile
//   - TableSchema: the data-only description of tables, keys, foreign keys and checks
//
// Common usage pattern:
//
//	facade, _ := venuestore.NewFacade(engine)
//
//	singer := &venuestore.Singer{LastName: "Simone"}
//	created, err := facade.Create(ctx, singer)
//
//	updated, err := venuestore.UpdateAs(ctx, facade, &venuestore.Singer{SingerID: singer.SingerID}, created.Version,
//		func(s *venuestore.Singer) error {
//			s.Active = ptr(true)
//			return nil
//		})
//	if errors.Is(err, venuestore.ErrVersionConflict) {
//		// re-read and decide
//	}
//
//	stale := &venuestore.Singer{SingerID: singer.SingerID}
//	err = facade.Read(ctx, stale, venuestore.BoundedStaleConsistency)
package venuestore
