package venuestore

import (
	"time"
)

// Table names.
const (
	TableSingers  = "singers"
	TableAlbums   = "albums"
	TableTracks   = "tracks"
	TableVenues   = "venues"
	TableConcerts = "concerts"
)

// System-maintained columns present on every table.
const (
	ColCreatedAt   = "created_at"
	ColUpdatedAt   = "updated_at"
	ColLockVersion = "lock_version"
)

// IDMaxLength bounds every string identifier.
const IDMaxLength = 36

// ColumnType is the semantic column type; postgresengine maps it to a storage type.
type ColumnType string

const (
	TypeID        ColumnType = "id"
	TypeString    ColumnType = "string"
	TypeInt64     ColumnType = "int64"
	TypeFloat64   ColumnType = "float64"
	TypeBool      ColumnType = "bool"
	TypeNumeric   ColumnType = "numeric"
	TypeDate      ColumnType = "date"
	TypeTimestamp ColumnType = "timestamp"
	TypeBytes     ColumnType = "bytes"
	TypeJSON      ColumnType = "json"
)

// Column describes one column. MaxLength is only meaningful for string-like columns, 0 means unbounded.
type Column struct {
	Name      string
	Type      ColumnType
	Nullable  bool
	MaxLength int
}

// ForeignKey declares that Column references ReferencedTable.ReferencedColumn.
type ForeignKey struct {
	Name             string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
}

// Row is a column name to value view of an entity, used by check constraints and validation.
type Row map[string]any

// CheckConstraint is a named predicate that must hold for every row.
// Expression is the SQL form used to provision storage, Holds mirrors it for pre-write validation.
type CheckConstraint struct {
	Name       string
	Column     string
	Expression string
	Holds      func(row Row) bool
}

// Index is a named secondary index.
type Index struct {
	Name    string
	Columns []string
}

// TableSchema is the data-only description of a table.
type TableSchema struct {
	Name        string
	PrimaryKey  []string
	Columns     []Column
	ForeignKeys []ForeignKey
	Checks      []CheckConstraint
	Indexes     []Index
}

// Reference is a foreign key seen from the referenced side: rows of Table point at the referenced table via ForeignKey.
type Reference struct {
	Table      string
	ForeignKey ForeignKey
}

// ColumnNames returns all column names in declaration order.
func (t TableSchema) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}

	return names
}

// Column looks a column up by name.
func (t TableSchema) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}

	return Column{}, false
}

// IsKeyColumn reports whether the column is part of the primary key.
func (t TableSchema) IsKeyColumn(name string) bool {
	for _, k := range t.PrimaryKey {
		if k == name {
			return true
		}
	}

	return false
}

// MutableColumns returns the columns an update may write: everything except
// the primary key, created_at and lock_version.
func (t TableSchema) MutableColumns() []string {
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if t.IsKeyColumn(c.Name) || c.Name == ColCreatedAt || c.Name == ColLockVersion {
			continue
		}

		cols = append(cols, c.Name)
	}

	return cols
}

func idColumn(name string, nullable bool) Column {
	return Column{Name: name, Type: TypeID, Nullable: nullable, MaxLength: IDMaxLength}
}

func metaColumns() []Column {
	return []Column{
		{Name: ColCreatedAt, Type: TypeTimestamp},
		{Name: ColUpdatedAt, Type: TypeTimestamp},
		{Name: ColLockVersion, Type: TypeInt64},
	}
}

func withMeta(cols ...Column) []Column {
	return append(cols, metaColumns()...)
}

var schema = []TableSchema{
	{
		Name:       TableSingers,
		PrimaryKey: []string{"singer_id"},
		Columns: withMeta(
			idColumn("singer_id", false),
			Column{Name: "first_name", Type: TypeString, Nullable: true, MaxLength: 100},
			Column{Name: "last_name", Type: TypeString, MaxLength: 200},
			Column{Name: "full_name", Type: TypeString, Nullable: true},
			Column{Name: "active", Type: TypeBool, Nullable: true},
		),
	},
	{
		Name:       TableAlbums,
		PrimaryKey: []string{"album_id"},
		Columns: withMeta(
			idColumn("album_id", false),
			Column{Name: "title", Type: TypeString, Nullable: true},
			Column{Name: "marketing_budget", Type: TypeNumeric, Nullable: true},
			Column{Name: "release_date", Type: TypeDate, Nullable: true},
			Column{Name: "cover_picture", Type: TypeBytes, Nullable: true},
			idColumn("singer_id", true),
		),
		ForeignKeys: []ForeignKey{
			{Name: "fk_albums_singers", Column: "singer_id", ReferencedTable: TableSingers, ReferencedColumn: "singer_id"},
		},
		Indexes: []Index{
			{Name: "idx_albums_singer_id", Columns: []string{"singer_id"}},
		},
	},
	{
		Name:       TableTracks,
		PrimaryKey: []string{"album_id", "track_number"},
		Columns: withMeta(
			idColumn("album_id", false),
			Column{Name: "track_number", Type: TypeInt64},
			Column{Name: "title", Type: TypeString},
			Column{Name: "sample_rate", Type: TypeFloat64},
		),
		ForeignKeys: []ForeignKey{
			{Name: "fk_tracks_albums", Column: "album_id", ReferencedTable: TableAlbums, ReferencedColumn: "album_id"},
		},
	},
	{
		Name:       TableVenues,
		PrimaryKey: []string{"venue_id"},
		Columns: withMeta(
			idColumn("venue_id", false),
			Column{Name: "name", Type: TypeString, Nullable: true},
			Column{Name: "description", Type: TypeJSON, Nullable: true},
		),
	},
	{
		Name:       TableConcerts,
		PrimaryKey: []string{"concert_id"},
		Columns: withMeta(
			idColumn("concert_id", false),
			idColumn("venue_id", true),
			idColumn("singer_id", true),
			Column{Name: "name", Type: TypeString, Nullable: true},
			Column{Name: "start_time", Type: TypeTimestamp},
			Column{Name: "end_time", Type: TypeTimestamp},
		),
		ForeignKeys: []ForeignKey{
			{Name: "fk_concerts_venues", Column: "venue_id", ReferencedTable: TableVenues, ReferencedColumn: "venue_id"},
			{Name: "fk_concerts_singers", Column: "singer_id", ReferencedTable: TableSingers, ReferencedColumn: "singer_id"},
		},
		Checks: []CheckConstraint{
			{
				Name:       "chk_end_time_after_start_time",
				Column:     "end_time",
				Expression: "end_time > start_time",
				Holds:      endTimeAfterStartTime,
			},
		},
		Indexes: []Index{
			{Name: "idx_concerts_singer_id", Columns: []string{"singer_id"}},
			{Name: "idx_concerts_venue_id", Columns: []string{"venue_id"}},
		},
	},
}

func endTimeAfterStartTime(row Row) bool {
	start, okStart := row["start_time"].(time.Time)
	end, okEnd := row["end_time"].(time.Time)
	if !okStart || !okEnd {
		return false
	}

	return end.After(start)
}

// Schema returns all tables in dependency order, referenced tables first.
func Schema() []TableSchema {
	tables := make([]TableSchema, len(schema))
	copy(tables, schema)

	return tables
}

// TableByName returns the schema of the named table.
func TableByName(name string) (TableSchema, error) {
	for _, t := range schema {
		if t.Name == name {
			return t, nil
		}
	}

	return TableSchema{}, ErrUnknownTable
}

// ForeignKeysOf returns the foreign keys declared by the named table.
func ForeignKeysOf(table string) []ForeignKey {
	t, err := TableByName(table)
	if err != nil {
		return nil
	}

	fks := make([]ForeignKey, len(t.ForeignKeys))
	copy(fks, t.ForeignKeys)

	return fks
}

// ReferencesTo returns every foreign key in the schema that points at the named table.
func ReferencesTo(table string) []Reference {
	refs := make([]Reference, 0)
	for _, t := range schema {
		for _, fk := range t.ForeignKeys {
			if fk.ReferencedTable == table {
				refs = append(refs, Reference{Table: t.Name, ForeignKey: fk})
			}
		}
	}

	return refs
}
