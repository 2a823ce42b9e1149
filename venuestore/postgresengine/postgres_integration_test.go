package postgresengine_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/AntonStoeckl/venuestore-go/testutil/helper"
	. "github.com/AntonStoeckl/venuestore-go/venuestore"
	"github.com/AntonStoeckl/venuestore-go/venuestore/postgresengine"
)

const dsnEnv = "VENUESTORE_TEST_DSN"

type engineFactory func(t *testing.T, dsn string) *postgresengine.Engine

func engineFactories() map[string]engineFactory {
	return map[string]engineFactory{
		"pgx.pool": func(t *testing.T, dsn string) *postgresengine.Engine {
			pool, err := pgxpool.New(context.Background(), dsn)
			require.NoError(t, err)
			t.Cleanup(pool.Close)

			engine, err := postgresengine.NewEngineFromPGXPools(pool, pool)
			require.NoError(t, err)

			return engine
		},
		"sql.DB": func(t *testing.T, dsn string) *postgresengine.Engine {
			db, err := sql.Open("postgres", dsn)
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })

			engine, err := postgresengine.NewEngineFromSQLDBs(db, db)
			require.NoError(t, err)

			return engine
		},
		"sqlx.DB": func(t *testing.T, dsn string) *postgresengine.Engine {
			db, err := sqlx.Connect("postgres", dsn)
			require.NoError(t, err)
			t.Cleanup(func() { _ = db.Close() })

			engine, err := postgresengine.NewEngineFromSQLX(db, db)
			require.NoError(t, err)

			return engine
		},
	}
}

func givenProvisionedEngine(t *testing.T, factory engineFactory) *postgresengine.Engine {
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s is not set", dsnEnv)
	}

	engine := factory(t, dsn)
	ctx := context.Background()
	require.NoError(t, engine.DropSchema(ctx))
	require.NoError(t, engine.ProvisionSchema(ctx))

	return engine
}

func Test_Postgres_FullLifecycle(t *testing.T) {
	for name, factory := range engineFactories() {
		t.Run(name, func(t *testing.T) {
			// setup
			engine := givenProvisionedEngine(t, factory)
			clock := NewFakeClock(time.Now())
			facade := GivenFacade(t, engine, clock)
			ctx := context.Background()

			// arrange
			singer := FixtureSinger()
			created, err := facade.Create(ctx, singer)
			require.NoError(t, err)
			assert.Equal(t, int64(0), created.Version)

			album := FixtureAlbum(singer.SingerID)
			_, err = facade.Create(ctx, album)
			require.NoError(t, err)

			// act: update
			updated, err := facade.Update(ctx, &Singer{SingerID: singer.SingerID}, 0, func(e Entity) error {
				e.(*Singer).LastName = "Simone"
				return nil
			})

			// assert
			require.NoError(t, err)
			assert.Equal(t, int64(1), updated.NewVersion)

			reloaded := &Singer{SingerID: singer.SingerID}
			require.NoError(t, facade.Read(ctx, reloaded, StrongConsistency))
			assert.Equal(t, "Simone", reloaded.LastName)
			assert.Equal(t, int64(1), reloaded.LockVersion)

			// act: stale update
			_, err = facade.Update(ctx, &Singer{SingerID: singer.SingerID}, 0, func(e Entity) error {
				e.(*Singer).LastName = "Lost"
				return nil
			})
			assert.ErrorIs(t, err, ErrVersionConflict)

			// act: delete a referenced singer
			err = facade.Delete(ctx, &Singer{SingerID: singer.SingerID}, 1)
			assert.ErrorIs(t, err, ErrReferentialIntegrity)

			// act: delete leaf first, then the singer
			require.NoError(t, facade.Delete(ctx, &Album{AlbumID: album.AlbumID}, 0))
			require.NoError(t, facade.Delete(ctx, &Singer{SingerID: singer.SingerID}, 1))

			err = facade.Read(ctx, &Singer{SingerID: singer.SingerID}, StrongConsistency)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func Test_Postgres_CheckConstraintIsEnforcedByStorage(t *testing.T) {
	// setup
	engine := givenProvisionedEngine(t, engineFactories()["pgx.pool"])
	ctx := context.Background()
	start := time.Now().UTC().Truncate(time.Microsecond)

	venue := FixtureVenue()
	venue.VenueID = GivenUniqueID(t)
	require.NoError(t, engine.Insert(ctx, venue))

	concert := FixtureConcert(venue.VenueID, "", start)
	concert.SingerID = nil
	concert.ConcertID = GivenUniqueID(t)
	concert.EndTime = start.Add(-time.Hour)

	// act, bypassing the facade validation
	err := engine.Insert(ctx, concert)

	// assert
	var constraintErr *ConstraintError
	require.ErrorAs(t, err, &constraintErr)
	assert.Equal(t, ConstraintCheck, constraintErr.Kind)
	assert.Equal(t, "chk_end_time_after_start_time", constraintErr.Constraint)
}

func Test_Postgres_ConditionalWritesAreDecidedByStorage(t *testing.T) {
	for name, factory := range engineFactories() {
		t.Run(name, func(t *testing.T) {
			// setup
			engine := givenProvisionedEngine(t, factory)
			ctx := context.Background()
			now := time.Now().UTC().Truncate(time.Microsecond)

			singer := FixtureSinger()
			singer.SingerID = GivenUniqueID(t)
			singer.CreatedAt, singer.UpdatedAt = now, now
			singer.DeriveColumns()
			require.NoError(t, engine.Insert(ctx, singer))

			album := FixtureAlbum(singer.SingerID)
			album.AlbumID = GivenUniqueID(t)
			album.CreatedAt, album.UpdatedAt = now, now
			require.NoError(t, engine.Insert(ctx, album))

			// act: update with a stale expected version
			stale := singer.Clone().(*Singer)
			stale.LastName = "Lost"
			err := engine.UpdateIfVersion(ctx, PrepareUpdate(5, stale))

			// assert
			assert.ErrorIs(t, err, ErrVersionConflict)

			// act: update a row that does not exist
			missing := FixtureSinger()
			missing.SingerID = GivenUniqueID(t)
			err = engine.UpdateIfVersion(ctx, PrepareUpdate(0, missing))

			// assert
			assert.ErrorIs(t, err, ErrNotFound)

			// act: delete a singer that an album still references
			err = engine.DeleteIfVersion(ctx, &Singer{SingerID: singer.SingerID}, PrepareDelete(0))

			// assert
			assert.ErrorIs(t, err, ErrReferentialIntegrity)

			var constraintErr *ConstraintError
			require.ErrorAs(t, err, &constraintErr)
			assert.Equal(t, "fk_albums_singers", constraintErr.Constraint)

			// act: delete with a stale version, then a missing row
			assert.ErrorIs(t, engine.DeleteIfVersion(ctx, &Album{AlbumID: album.AlbumID}, PrepareDelete(7)), ErrVersionConflict)
			assert.ErrorIs(t, engine.DeleteIfVersion(ctx, &Album{AlbumID: GivenUniqueID(t)}, PrepareDelete(0)), ErrNotFound)
		})
	}
}

func Test_Postgres_ProbeProfile(t *testing.T) {
	dsn := os.Getenv(dsnEnv)
	if dsn == "" {
		t.Skipf("%s is not set", dsnEnv)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	t.Run("without a stale connection", func(t *testing.T) {
		// setup
		engine, err := postgresengine.NewEngineFromPGXPools(pool, nil)
		require.NoError(t, err)

		// act
		err = engine.ProbeProfile(ctx, BoundedStaleProfile(DefaultStaleness))

		// assert
		assert.ErrorIs(t, err, postgresengine.ErrStaleConnectionNotConfigured)
		assert.NoError(t, engine.ProbeProfile(ctx, StrongProfile()))
	})

	t.Run("with the replica lag probe on a primary", func(t *testing.T) {
		// setup
		engine, err := postgresengine.NewEngineFromPGXPools(pool, pool, postgresengine.WithReplicaLagProbe())
		require.NoError(t, err)

		// act
		err = engine.ProbeProfile(ctx, BoundedStaleProfile(time.Millisecond))

		// assert
		assert.NoError(t, err, "a server that is not replaying WAL reports no lag")
	})
}
