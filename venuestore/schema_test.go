package venuestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Schema_ListsTablesInDependencyOrder(t *testing.T) {
	// act
	tables := Schema()

	// assert
	names := make([]string, 0, len(tables))
	for _, table := range tables {
		names = append(names, table.Name)
	}

	assert.Equal(t, []string{TableSingers, TableAlbums, TableTracks, TableVenues, TableConcerts}, names)

	seen := map[string]bool{}
	for _, table := range tables {
		for _, fk := range table.ForeignKeys {
			assert.True(t, seen[fk.ReferencedTable], "%s references %s before it is declared", table.Name, fk.ReferencedTable)
		}

		seen[table.Name] = true
	}
}

func Test_Schema_EveryTableCarriesTheMetaColumns(t *testing.T) {
	for _, table := range Schema() {
		for _, name := range []string{ColCreatedAt, ColUpdatedAt, ColLockVersion} {
			col, ok := table.Column(name)
			require.True(t, ok, "%s misses %s", table.Name, name)
			assert.False(t, col.Nullable, "%s.%s must be NOT NULL", table.Name, name)
		}
	}
}

func Test_Schema_ReturnsACopy(t *testing.T) {
	// arrange
	tables := Schema()

	// act
	tables[0] = TableSchema{Name: "mutated"}

	// assert
	assert.Equal(t, TableSingers, Schema()[0].Name)
}

func Test_TableByName_When_TableIsUnknown(t *testing.T) {
	// act
	_, err := TableByName("orchestras")

	// assert
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func Test_TableSchema_MutableColumns_ExcludeKeysCreatedAtAndLockVersion(t *testing.T) {
	// arrange
	tracks, err := TableByName(TableTracks)
	require.NoError(t, err)

	// act
	cols := tracks.MutableColumns()

	// assert
	assert.Equal(t, []string{"title", "sample_rate", ColUpdatedAt}, cols)
}

func Test_ForeignKeysOf_Concerts(t *testing.T) {
	// act
	fks := ForeignKeysOf(TableConcerts)

	// assert
	require.Len(t, fks, 2)
	assert.Equal(t, TableVenues, fks[0].ReferencedTable)
	assert.Equal(t, TableSingers, fks[1].ReferencedTable)
	assert.Empty(t, ForeignKeysOf(TableVenues))
}

func Test_ReferencesTo_Singers(t *testing.T) {
	// act
	refs := ReferencesTo(TableSingers)

	// assert
	require.Len(t, refs, 2)
	assert.Equal(t, TableAlbums, refs[0].Table)
	assert.Equal(t, "fk_albums_singers", refs[0].ForeignKey.Name)
	assert.Equal(t, TableConcerts, refs[1].Table)
	assert.Equal(t, "fk_concerts_singers", refs[1].ForeignKey.Name)
	assert.Empty(t, ReferencesTo(TableTracks))
}

func Test_Singer_DeriveColumns(t *testing.T) {
	first := "Nina"

	tests := []struct {
		name     string
		singer   Singer
		expected string
	}{
		{name: "first and last name", singer: Singer{FirstName: &first, LastName: "Simone"}, expected: "Nina Simone"},
		{name: "last name only", singer: Singer{LastName: "Simone"}, expected: "Simone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// act
			tt.singer.DeriveColumns()

			// assert
			require.NotNil(t, tt.singer.FullName)
			assert.Equal(t, tt.expected, *tt.singer.FullName)
		})
	}
}

func Test_Entity_Clone_IsDeep(t *testing.T) {
	// arrange
	name := "Carnegie Hall"
	venue := &Venue{VenueID: "v1", Name: &name, Description: []byte(`{"a":1}`)}

	// act
	clone, ok := venue.Clone().(*Venue)
	require.True(t, ok)
	*clone.Name = "Royal Albert Hall"
	clone.Description[0] = '['

	// assert
	assert.Equal(t, "Carnegie Hall", *venue.Name)
	assert.Equal(t, `{"a":1}`, string(venue.Description))
}

func Test_RowOf_FollowsColumnOrder(t *testing.T) {
	// arrange
	track := &Track{AlbumID: "a1", TrackNumber: 3, Title: "Sinnerman", SampleRate: 48}

	// act
	row, err := RowOf(track)

	// assert
	require.NoError(t, err)
	assert.Equal(t, "a1", row["album_id"])
	assert.Equal(t, int64(3), row["track_number"])
	assert.Equal(t, "Sinnerman", row["title"])
	assert.Equal(t, float64(48), row["sample_rate"])
	assert.Equal(t, int64(0), row[ColLockVersion])
}
