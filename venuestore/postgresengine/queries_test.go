package postgresengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/venuestore-go/venuestore"
)

func tableSchema(t *testing.T, name string) venuestore.TableSchema {
	table, err := venuestore.TableByName(name)
	require.NoError(t, err)

	return table
}

func Test_BuildSelectByKey(t *testing.T) {
	// act
	sqlQuery, args, err := buildSelectByKey(tableSchema(t, venuestore.TableVenues), []any{"v1"})

	// assert
	require.NoError(t, err)
	assert.Equal(t,
		`SELECT "venue_id", "name", "description", "created_at", "updated_at", "lock_version" FROM "venues" WHERE ("venue_id" = $1)`,
		sqlQuery)
	assert.Equal(t, []any{"v1"}, args)
}

func Test_BuildSelectByKey_CompositeKey(t *testing.T) {
	// act
	sqlQuery, args, err := buildSelectByKey(tableSchema(t, venuestore.TableTracks), []any{"a1", int64(4)})

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `WHERE (("album_id" = $1) AND ("track_number" = $2))`)
	assert.Equal(t, []any{"a1", int64(4)}, args)
}

func Test_BuildSelectByKey_When_KeyDoesNotMatch(t *testing.T) {
	// act
	_, _, err := buildSelectByKey(tableSchema(t, venuestore.TableTracks), []any{"a1"})

	// assert
	assert.ErrorIs(t, err, venuestore.ErrBuildingQueryFailed)
}

func Test_BuildConditionalUpdate_GuardsOnTheExpectedVersion(t *testing.T) {
	// arrange
	table := tableSchema(t, venuestore.TableTracks)
	track := &venuestore.Track{AlbumID: "a1", TrackNumber: 4, Title: "Sinnerman", SampleRate: 48}
	row, err := venuestore.RowOf(track)
	require.NoError(t, err)

	// act
	sqlQuery, args, err := buildConditionalUpdate(table, row, track.KeyValues(), 2, 3)

	// assert
	require.NoError(t, err)
	assert.Equal(t,
		`UPDATE "tracks" SET "lock_version"=$1,"sample_rate"=$2,"title"=$3,"updated_at"=$4 `+
			`WHERE (("album_id" = $5) AND ("lock_version" = $6) AND ("track_number" = $7))`,
		sqlQuery)
	require.Len(t, args, 7)
	assert.Equal(t, int64(3), args[0])
	assert.Equal(t, int64(2), args[5])
	assert.NotContains(t, sqlQuery, "created_at")
}

func Test_BuildConditionalDelete(t *testing.T) {
	// act
	sqlQuery, args, err := buildConditionalDelete(tableSchema(t, venuestore.TableSingers), []any{"s1"}, 5)

	// assert
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "singers" WHERE (("lock_version" = $1) AND ("singer_id" = $2))`, sqlQuery)
	assert.Equal(t, []any{int64(5), "s1"}, args)
}

func Test_BuildInsert_WritesEveryColumn(t *testing.T) {
	// arrange
	table := tableSchema(t, venuestore.TableVenues)
	venue := &venuestore.Venue{VenueID: "v1", Description: []byte(`{"a":1}`)}
	row, err := venuestore.RowOf(venue)
	require.NoError(t, err)

	// act
	sqlQuery, _, err := buildInsert(table, row)

	// assert
	require.NoError(t, err)
	assert.Contains(t, sqlQuery, `INSERT INTO "venues"`)
	for _, col := range table.ColumnNames() {
		assert.Contains(t, sqlQuery, `"`+col+`"`)
	}
}

func Test_BuildCountReferences(t *testing.T) {
	// arrange
	ref := venuestore.ReferencesTo(venuestore.TableVenues)[0]

	// act
	sqlQuery, args, err := buildCountReferences(ref, "v1")

	// assert
	require.NoError(t, err)
	assert.Equal(t, `SELECT COUNT(*) FROM "concerts" WHERE ("venue_id" = $1)`, sqlQuery)
	assert.Equal(t, []any{"v1"}, args)
}

func Test_BuildExists(t *testing.T) {
	// act
	sqlQuery, args, err := buildExists(tableSchema(t, venuestore.TableAlbums), []any{"a1"})

	// assert
	require.NoError(t, err)
	assert.Equal(t, `SELECT 1 FROM "albums" WHERE ("album_id" = $1) LIMIT $2`, sqlQuery)
	require.Len(t, args, 2)
	assert.Equal(t, "a1", args[0])
}
