package helper

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/venuestore-go/venuestore"
	"github.com/AntonStoeckl/venuestore-go/venuestore/memengine"
)

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// FakeClock is a manually advanced clock, safe for concurrent use.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a FakeClock starting at start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// GivenUniqueID returns a fresh UUIDv7 string.
func GivenUniqueID(t testing.TB) string {
	id, err := uuid.NewV7()
	require.NoError(t, err, "error in arranging test data")

	return id.String()
}

// GivenMemEngine creates an in-memory engine on the given clock.
func GivenMemEngine(t testing.TB, clock *FakeClock, options ...memengine.Option) *memengine.Engine {
	options = append([]memengine.Option{memengine.WithClock(clock.Now)}, options...)

	engine, err := memengine.New(options...)
	require.NoError(t, err, "error in arranging test data")

	return engine
}

// GivenFacade creates a Facade on engine using the given clock.
func GivenFacade(t testing.TB, engine venuestore.Engine, clock *FakeClock, options ...venuestore.Option) *venuestore.Facade {
	options = append([]venuestore.Option{venuestore.WithClock(clock.Now)}, options...)

	facade, err := venuestore.NewFacade(engine, options...)
	require.NoError(t, err, "error in arranging test data")

	return facade
}

func FixtureSinger() *venuestore.Singer {
	return &venuestore.Singer{
		FirstName: Ptr("Nina"),
		LastName:  "Simone",
		Active:    Ptr(true),
	}
}

func FixtureAlbum(singerID string) *venuestore.Album {
	return &venuestore.Album{
		Title:           Ptr("Pastel Blues"),
		MarketingBudget: decimal.NewNullDecimal(decimal.RequireFromString("12500.50")),
		ReleaseDate:     Ptr(time.Date(1965, time.October, 1, 0, 0, 0, 0, time.UTC)),
		CoverPicture:    []byte{0x89, 0x50, 0x4e, 0x47},
		SingerID:        Ptr(singerID),
	}
}

func FixtureTrack(albumID string, number int64) *venuestore.Track {
	return &venuestore.Track{
		AlbumID:     albumID,
		TrackNumber: number,
		Title:       "Be My Husband",
		SampleRate:  44.1,
	}
}

func FixtureVenue() *venuestore.Venue {
	return &venuestore.Venue{
		Name:        Ptr("Carnegie Hall"),
		Description: []byte(`{"capacity": 2804, "city": "New York"}`),
	}
}

func FixtureConcert(venueID, singerID string, start time.Time) *venuestore.Concert {
	return &venuestore.Concert{
		VenueID:   Ptr(venueID),
		SingerID:  Ptr(singerID),
		Name:      Ptr("An Evening with Nina"),
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
	}
}
