package memengine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/sync/errgroup"

	. "github.com/AntonStoeckl/venuestore-go/testutil/helper"
	"github.com/AntonStoeckl/venuestore-go/venuestore"
	. "github.com/AntonStoeckl/venuestore-go/venuestore/memengine"
)

var startOfTime = time.Date(2026, time.March, 14, 19, 30, 0, 0, time.UTC)

func givenInserted(t *testing.T, engine *Engine, e venuestore.Entity) {
	require.NoError(t, engine.Insert(context.Background(), e), "error in arranging test data")
}

func Test_New_When_ReplicaLagIsNegative(t *testing.T) {
	// act
	_, err := New(WithReplicaLag(-time.Second))

	// assert
	assert.Error(t, err)
}

func Test_Insert_When_TheKeyIsTaken(t *testing.T) {
	// setup
	engine := GivenMemEngine(t, NewFakeClock(startOfTime))

	// arrange
	venue := FixtureVenue()
	venue.VenueID = "v1"
	venue.CreatedAt = startOfTime
	venue.UpdatedAt = startOfTime
	givenInserted(t, engine, venue)

	// act
	err := engine.Insert(context.Background(), venue.Clone())

	// assert
	var constraintErr *venuestore.ConstraintError
	require.ErrorAs(t, err, &constraintErr)
	assert.Equal(t, venuestore.ConstraintUnique, constraintErr.Kind)
	assert.Equal(t, "venues_pkey", constraintErr.Constraint)
}

func Test_Insert_EnforcesTheCheckConstraint(t *testing.T) {
	// setup
	engine := GivenMemEngine(t, NewFakeClock(startOfTime))

	// arrange
	concert := &venuestore.Concert{ConcertID: "c1", StartTime: startOfTime, EndTime: startOfTime}
	concert.CreatedAt = startOfTime
	concert.UpdatedAt = startOfTime

	// act
	err := engine.Insert(context.Background(), concert)

	// assert
	var constraintErr *venuestore.ConstraintError
	require.ErrorAs(t, err, &constraintErr)
	assert.Equal(t, venuestore.ConstraintCheck, constraintErr.Kind)
	assert.Equal(t, "chk_end_time_after_start_time", constraintErr.Constraint)
}

func Test_Insert_EnforcesForeignKeys(t *testing.T) {
	// setup
	engine := GivenMemEngine(t, NewFakeClock(startOfTime))

	// arrange
	track := FixtureTrack("no-such-album", 1)
	track.CreatedAt = startOfTime
	track.UpdatedAt = startOfTime

	// act
	err := engine.Insert(context.Background(), track)

	// assert
	var constraintErr *venuestore.ConstraintError
	require.ErrorAs(t, err, &constraintErr)
	assert.Equal(t, venuestore.ConstraintForeignKey, constraintErr.Kind)
	assert.Equal(t, "fk_tracks_albums", constraintErr.Constraint)
}

func Test_Insert_StoresACopy(t *testing.T) {
	// setup
	engine := GivenMemEngine(t, NewFakeClock(startOfTime))

	// arrange
	venue := FixtureVenue()
	venue.VenueID = "v1"
	venue.CreatedAt = startOfTime
	venue.UpdatedAt = startOfTime
	givenInserted(t, engine, venue)

	// act
	*venue.Name = "changed after insert"
	read := &venuestore.Venue{VenueID: "v1"}
	err := engine.Load(context.Background(), venuestore.StrongProfile(), read)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "Carnegie Hall", *read.Name)
	assert.Equal(t, 1, engine.Count(venuestore.TableVenues))
}

func Test_UpdateIfVersion(t *testing.T) {
	// setup
	engine := GivenMemEngine(t, NewFakeClock(startOfTime))

	// arrange
	singer := FixtureSinger()
	singer.SingerID = "s1"
	singer.CreatedAt = startOfTime
	singer.UpdatedAt = startOfTime
	givenInserted(t, engine, singer)

	next, ok := singer.Clone().(*venuestore.Singer)
	require.True(t, ok)
	next.LastName = "Waymon"

	// act
	err := engine.UpdateIfVersion(context.Background(), venuestore.PrepareUpdate(0, next))
	require.NoError(t, err)

	staleErr := engine.UpdateIfVersion(context.Background(), venuestore.PrepareUpdate(0, next.Clone()))
	missingErr := engine.UpdateIfVersion(context.Background(), venuestore.PrepareUpdate(0, &venuestore.Singer{SingerID: "nobody", LastName: "X"}))

	// assert
	assert.ErrorIs(t, staleErr, venuestore.ErrVersionConflict)
	assert.ErrorIs(t, missingErr, venuestore.ErrNotFound)

	read := &venuestore.Singer{SingerID: "s1"}
	require.NoError(t, engine.Load(context.Background(), venuestore.StrongProfile(), read))
	assert.Equal(t, "Waymon", read.LastName)
	assert.Equal(t, int64(1), read.LockVersion)
}

func Test_DeleteIfVersion_When_Referenced(t *testing.T) {
	// setup
	engine := GivenMemEngine(t, NewFakeClock(startOfTime))

	// arrange
	singer := FixtureSinger()
	singer.SingerID = "s1"
	singer.CreatedAt = startOfTime
	singer.UpdatedAt = startOfTime
	givenInserted(t, engine, singer)

	album := FixtureAlbum("s1")
	album.AlbumID = "a1"
	album.CreatedAt = startOfTime
	album.UpdatedAt = startOfTime
	givenInserted(t, engine, album)

	// act
	err := engine.DeleteIfVersion(context.Background(), &venuestore.Singer{SingerID: "s1"}, venuestore.PrepareDelete(0))

	// assert
	assert.ErrorIs(t, err, venuestore.ErrReferentialIntegrity)

	count, countErr := engine.CountReferences(context.Background(), venuestore.ReferencesTo(venuestore.TableSingers)[0], "s1")
	require.NoError(t, countErr)
	assert.Equal(t, int64(1), count)
}

func Test_DeleteIfVersion(t *testing.T) {
	// setup
	engine := GivenMemEngine(t, NewFakeClock(startOfTime))

	// arrange
	venue := FixtureVenue()
	venue.VenueID = "v1"
	venue.CreatedAt = startOfTime
	venue.UpdatedAt = startOfTime
	givenInserted(t, engine, venue)

	// act
	staleErr := engine.DeleteIfVersion(context.Background(), &venuestore.Venue{VenueID: "v1"}, venuestore.PrepareDelete(5))
	err := engine.DeleteIfVersion(context.Background(), &venuestore.Venue{VenueID: "v1"}, venuestore.PrepareDelete(0))

	// assert
	assert.ErrorIs(t, staleErr, venuestore.ErrVersionConflict)
	require.NoError(t, err)

	exists, existsErr := engine.Exists(context.Background(), venuestore.TableVenues, []any{"v1"})
	require.NoError(t, existsErr)
	assert.False(t, exists)
	assert.Equal(t, 0, engine.Count(venuestore.TableVenues))
}

func Test_Load_BoundedStale_SeesTheStateAsOfTheReplicaLag(t *testing.T) {
	// setup
	clock := NewFakeClock(startOfTime)
	engine := GivenMemEngine(t, clock, WithReplicaLag(3*time.Second))
	stale := venuestore.BoundedStaleProfile(10 * time.Second)

	// arrange
	venue := FixtureVenue()
	venue.VenueID = "v1"
	venue.CreatedAt = startOfTime
	venue.UpdatedAt = startOfTime
	givenInserted(t, engine, venue)

	// act
	tooEarlyErr := engine.Load(context.Background(), stale, &venuestore.Venue{VenueID: "v1"})
	clock.Advance(3 * time.Second)
	visible := &venuestore.Venue{VenueID: "v1"}
	visibleErr := engine.Load(context.Background(), stale, visible)

	// assert
	assert.ErrorIs(t, tooEarlyErr, venuestore.ErrNotFound)
	assert.NoError(t, visibleErr)
	assert.Equal(t, "Carnegie Hall", *visible.Name)
}

func Test_ProbeProfile(t *testing.T) {
	// setup
	engine := GivenMemEngine(t, NewFakeClock(startOfTime))
	stale := venuestore.BoundedStaleProfile(10 * time.Second)

	// act + assert
	assert.NoError(t, engine.ProbeProfile(context.Background(), stale))

	engine.SetReplicaLag(11 * time.Second)
	assert.ErrorIs(t, engine.ProbeProfile(context.Background(), stale), ErrReplicaLagExceeded)
	assert.NoError(t, engine.ProbeProfile(context.Background(), venuestore.StrongProfile()))

	engine.SetReplicaLag(0)
	engine.SetStaleReplicaAvailable(false)
	assert.ErrorIs(t, engine.ProbeProfile(context.Background(), stale), ErrStaleReplicaUnavailable)

	engine.SetStaleReplicaAvailable(true)
	assert.NoError(t, engine.ProbeProfile(context.Background(), stale))
}

func Test_UpdateIfVersion_Concurrent_ExactlyOneWins(t *testing.T) {
	defer goleak.VerifyNone(t)

	// setup
	engine := GivenMemEngine(t, NewFakeClock(startOfTime))

	// arrange
	singer := FixtureSinger()
	singer.SingerID = "s1"
	singer.CreatedAt = startOfTime
	singer.UpdatedAt = startOfTime
	givenInserted(t, engine, singer)

	const writers = 16
	errs := make([]error, writers)

	// act
	var g errgroup.Group
	for i := range writers {
		g.Go(func() error {
			errs[i] = engine.UpdateIfVersion(context.Background(), venuestore.PrepareUpdate(0, singer.Clone()))
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// assert
	conflicts := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, venuestore.ErrVersionConflict)
			conflicts++
		}
	}

	assert.Equal(t, writers-1, conflicts)
}
