package venuestore

import (
	"bytes"
	"time"

	"github.com/shopspring/decimal"
)

// RowMeta holds the system-maintained columns of every row.
type RowMeta struct {
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LockVersion int64
}

// Entity is implemented by every row type.
//
// Values and ScanTargets follow the column order of the table's TableSchema.
// KeyValues follows the order of TableSchema.PrimaryKey.
type Entity interface {
	TableName() string
	KeyValues() []any
	Values() []any
	ScanTargets() []any
	Meta() *RowMeta
	Clone() Entity
}

// GeneratedKeyer is implemented by entities with a single string key that the facade may assign.
type GeneratedKeyer interface {
	HasKey() bool
	SetKey(id string)
}

// Deriver is implemented by entities with derived columns, recomputed before every write.
type Deriver interface {
	DeriveColumns()
}

// RowOf builds the column name to value view of an entity.
func RowOf(e Entity) (Row, error) {
	t, err := TableByName(e.TableName())
	if err != nil {
		return nil, err
	}

	values := e.Values()
	row := make(Row, len(values))
	for i, name := range t.ColumnNames() {
		row[name] = values[i]
	}

	return row, nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}

	return *s
}

func nullableBool(b *bool) any {
	if b == nil {
		return nil
	}

	return *b
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return *t
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}

	c := *s

	return &c
}

func cloneBool(b *bool) *bool {
	if b == nil {
		return nil
	}

	c := *b

	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	c := *t

	return &c
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	return bytes.Clone(b)
}

// Singer is a row of the singers table. FullName is derived from FirstName and LastName.
type Singer struct {
	SingerID  string
	FirstName *string
	LastName  string
	FullName  *string
	Active    *bool
	RowMeta
}

func (s *Singer) TableName() string { return TableSingers }

func (s *Singer) KeyValues() []any { return []any{s.SingerID} }

func (s *Singer) Values() []any {
	return []any{
		s.SingerID,
		nullableString(s.FirstName),
		s.LastName,
		nullableString(s.FullName),
		nullableBool(s.Active),
		s.CreatedAt,
		s.UpdatedAt,
		s.LockVersion,
	}
}

func (s *Singer) ScanTargets() []any {
	return []any{
		&s.SingerID,
		&s.FirstName,
		&s.LastName,
		&s.FullName,
		&s.Active,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.LockVersion,
	}
}

func (s *Singer) Meta() *RowMeta { return &s.RowMeta }

func (s *Singer) Clone() Entity {
	c := *s
	c.FirstName = cloneString(s.FirstName)
	c.FullName = cloneString(s.FullName)
	c.Active = cloneBool(s.Active)

	return &c
}

func (s *Singer) HasKey() bool { return s.SingerID != "" }

func (s *Singer) SetKey(id string) { s.SingerID = id }

// DeriveColumns sets FullName to "FirstName LastName", or LastName alone without a first name.
func (s *Singer) DeriveColumns() {
	full := s.LastName
	if s.FirstName != nil && *s.FirstName != "" {
		full = *s.FirstName + " " + s.LastName
	}

	s.FullName = &full
}

// Album is a row of the albums table.
type Album struct {
	AlbumID         string
	Title           *string
	MarketingBudget decimal.NullDecimal
	ReleaseDate     *time.Time
	CoverPicture    []byte
	SingerID        *string
	RowMeta
}

func (a *Album) TableName() string { return TableAlbums }

func (a *Album) KeyValues() []any { return []any{a.AlbumID} }

func (a *Album) Values() []any {
	var budget any
	if a.MarketingBudget.Valid {
		budget = a.MarketingBudget.Decimal
	}

	var cover any
	if a.CoverPicture != nil {
		cover = a.CoverPicture
	}

	return []any{
		a.AlbumID,
		nullableString(a.Title),
		budget,
		nullableTime(a.ReleaseDate),
		cover,
		nullableString(a.SingerID),
		a.CreatedAt,
		a.UpdatedAt,
		a.LockVersion,
	}
}

func (a *Album) ScanTargets() []any {
	return []any{
		&a.AlbumID,
		&a.Title,
		&a.MarketingBudget,
		&a.ReleaseDate,
		&a.CoverPicture,
		&a.SingerID,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.LockVersion,
	}
}

func (a *Album) Meta() *RowMeta { return &a.RowMeta }

func (a *Album) Clone() Entity {
	c := *a
	c.Title = cloneString(a.Title)
	c.ReleaseDate = cloneTime(a.ReleaseDate)
	c.CoverPicture = cloneBytes(a.CoverPicture)
	c.SingerID = cloneString(a.SingerID)

	return &c
}

func (a *Album) HasKey() bool { return a.AlbumID != "" }

func (a *Album) SetKey(id string) { a.AlbumID = id }

// Track is a row of the tracks table, identified by its album and track number.
type Track struct {
	AlbumID     string
	TrackNumber int64
	Title       string
	SampleRate  float64
	RowMeta
}

func (t *Track) TableName() string { return TableTracks }

func (t *Track) KeyValues() []any { return []any{t.AlbumID, t.TrackNumber} }

func (t *Track) Values() []any {
	return []any{
		t.AlbumID,
		t.TrackNumber,
		t.Title,
		t.SampleRate,
		t.CreatedAt,
		t.UpdatedAt,
		t.LockVersion,
	}
}

func (t *Track) ScanTargets() []any {
	return []any{
		&t.AlbumID,
		&t.TrackNumber,
		&t.Title,
		&t.SampleRate,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.LockVersion,
	}
}

func (t *Track) Meta() *RowMeta { return &t.RowMeta }

func (t *Track) Clone() Entity {
	c := *t

	return &c
}

// Venue is a row of the venues table. Description holds a JSON document.
type Venue struct {
	VenueID     string
	Name        *string
	Description []byte
	RowMeta
}

func (v *Venue) TableName() string { return TableVenues }

func (v *Venue) KeyValues() []any { return []any{v.VenueID} }

func (v *Venue) Values() []any {
	// jsonb is sent as text so both pgx and lib/pq encode it the same way.
	var description any
	if v.Description != nil {
		description = string(v.Description)
	}

	return []any{
		v.VenueID,
		nullableString(v.Name),
		description,
		v.CreatedAt,
		v.UpdatedAt,
		v.LockVersion,
	}
}

func (v *Venue) ScanTargets() []any {
	return []any{
		&v.VenueID,
		&v.Name,
		&v.Description,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.LockVersion,
	}
}

func (v *Venue) Meta() *RowMeta { return &v.RowMeta }

func (v *Venue) Clone() Entity {
	c := *v
	c.Name = cloneString(v.Name)
	c.Description = cloneBytes(v.Description)

	return &c
}

func (v *Venue) HasKey() bool { return v.VenueID != "" }

func (v *Venue) SetKey(id string) { v.VenueID = id }

// Concert is a row of the concerts table. EndTime must be strictly after StartTime.
type Concert struct {
	ConcertID string
	VenueID   *string
	SingerID  *string
	Name      *string
	StartTime time.Time
	EndTime   time.Time
	RowMeta
}

func (c *Concert) TableName() string { return TableConcerts }

func (c *Concert) KeyValues() []any { return []any{c.ConcertID} }

func (c *Concert) Values() []any {
	return []any{
		c.ConcertID,
		nullableString(c.VenueID),
		nullableString(c.SingerID),
		nullableString(c.Name),
		c.StartTime,
		c.EndTime,
		c.CreatedAt,
		c.UpdatedAt,
		c.LockVersion,
	}
}

func (c *Concert) ScanTargets() []any {
	return []any{
		&c.ConcertID,
		&c.VenueID,
		&c.SingerID,
		&c.Name,
		&c.StartTime,
		&c.EndTime,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.LockVersion,
	}
}

func (c *Concert) Meta() *RowMeta { return &c.RowMeta }

func (c *Concert) Clone() Entity {
	cc := *c
	cc.VenueID = cloneString(c.VenueID)
	cc.SingerID = cloneString(c.SingerID)
	cc.Name = cloneString(c.Name)

	return &cc
}

func (c *Concert) HasKey() bool { return c.ConcertID != "" }

func (c *Concert) SetKey(id string) { c.ConcertID = id }

var (
	_ GeneratedKeyer = (*Singer)(nil)
	_ GeneratedKeyer = (*Album)(nil)
	_ GeneratedKeyer = (*Venue)(nil)
	_ GeneratedKeyer = (*Concert)(nil)
	_ Deriver        = (*Singer)(nil)
)
