// Package sampledata fills a store with a consistent, reproducible data set through the facade,
// so every row passes the same validation and constraint checks as application writes.
package sampledata

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/AntonStoeckl/venuestore-go/venuestore"
)

const (
	defaultSingers         = 10
	defaultAlbumsPerSinger = 2
	defaultTracksPerAlbum  = 5
	defaultVenues          = 3
	defaultConcerts        = 10
	defaultConcurrency     = 4
	defaultSeed            = 42
)

var (
	ErrNilFacade         = errors.New("facade must not be nil")
	ErrNegativeCount     = errors.New("counts must not be negative")
	ErrInvalidConcurrent = errors.New("concurrency must be positive")
	ErrConcertsNeedRows  = errors.New("concerts need at least one singer and one venue")
)

var (
	firstNames = []string{"Nina", "Aretha", "Etta", "Billie", "Ella", "Sarah", "Dinah", "Mahalia", "Odetta", "Sister Rosetta"}
	lastNames  = []string{"Simone", "Franklin", "James", "Holiday", "Fitzgerald", "Vaughan", "Washington", "Jackson", "Holmes", "Tharpe"}
	adjectives = []string{"Blue", "Silent", "Golden", "Broken", "Midnight", "Wild", "Quiet", "Electric"}
	nouns      = []string{"River", "Train", "Garden", "Heart", "Road", "Morning", "Mountain", "Sky"}
	cities     = []string{"New York", "Chicago", "New Orleans", "Memphis", "Detroit", "Los Angeles"}
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Dataset lists the keys of every row Seed created.
type Dataset struct {
	Singers  []string
	Albums   []string
	Tracks   []TrackKey
	Venues   []string
	Concerts []string
}

// TrackKey identifies a track.
type TrackKey struct {
	AlbumID     string
	TrackNumber int64
}

type venueDescription struct {
	Address   string `json:"address"`
	City      string `json:"city"`
	Capacity  int    `json:"capacity"`
	IsPopular bool   `json:"isPopular"`
}

type seeder struct {
	singers         int
	albumsPerSinger int
	tracksPerAlbum  int
	venues          int
	concerts        int
	concurrency     int
	seed            uint64
	now             func() time.Time
}

// Option configures Seed.
type Option func(*seeder) error

// WithCounts sets how many rows of each kind Seed creates.
func WithCounts(singers, albumsPerSinger, tracksPerAlbum, venues, concerts int) Option {
	return func(s *seeder) error {
		for _, n := range []int{singers, albumsPerSinger, tracksPerAlbum, venues, concerts} {
			if n < 0 {
				return ErrNegativeCount
			}
		}

		s.singers, s.albumsPerSinger, s.tracksPerAlbum = singers, albumsPerSinger, tracksPerAlbum
		s.venues, s.concerts = venues, concerts

		return nil
	}
}

// WithConcurrency bounds the number of concurrent facade calls.
func WithConcurrency(n int) Option {
	return func(s *seeder) error {
		if n <= 0 {
			return ErrInvalidConcurrent
		}

		s.concurrency = n

		return nil
	}
}

// WithSeed makes names, budgets and schedules reproducible.
func WithSeed(seed uint64) Option {
	return func(s *seeder) error {
		s.seed = seed
		return nil
	}
}

// WithClock sets the reference time for release dates and concert schedules.
func WithClock(now func() time.Time) Option {
	return func(s *seeder) error {
		s.now = now
		return nil
	}
}

// Seed creates singers with their albums and tracks, venues, and concerts that reference both.
// A singer's albums and tracks are created by the goroutine that created the singer, so parents
// always exist before their children. On failure the rows created so far stay in place and the
// returned Dataset lists them.
func Seed(ctx context.Context, facade *venuestore.Facade, options ...Option) (Dataset, error) {
	if facade == nil {
		return Dataset{}, ErrNilFacade
	}

	s := &seeder{
		singers:         defaultSingers,
		albumsPerSinger: defaultAlbumsPerSinger,
		tracksPerAlbum:  defaultTracksPerAlbum,
		venues:          defaultVenues,
		concerts:        defaultConcerts,
		concurrency:     defaultConcurrency,
		seed:            defaultSeed,
		now:             time.Now,
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return Dataset{}, err
		}
	}

	if s.concerts > 0 && (s.singers == 0 || s.venues == 0) {
		return Dataset{}, ErrConcertsNeedRows
	}

	return s.run(ctx, facade)
}

func (s *seeder) run(ctx context.Context, facade *venuestore.Facade) (Dataset, error) {
	rnd := rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15)) //nolint:gosec // sample data
	today := s.now().UTC().Truncate(24 * time.Hour)

	families := make([]*family, s.singers)
	for i := range families {
		families[i] = s.newFamily(rnd, i, today)
	}

	venues := make([]*venuestore.Venue, s.venues)
	for i := range venues {
		v, err := newVenue(rnd, i)
		if err != nil {
			return Dataset{}, err
		}

		venues[i] = v
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, f := range families {
		g.Go(func() error { return f.create(gctx, facade) })
	}

	venuesCreated := make([]bool, len(venues))
	for i, v := range venues {
		g.Go(func() error {
			if err := create(gctx, facade, v); err != nil {
				return err
			}

			venuesCreated[i] = true

			return nil
		})
	}

	err := g.Wait()

	var concerts []*venuestore.Concert
	var concertsCreated []bool
	if err == nil {
		concerts = s.newConcerts(rnd, families, venues, today)
		concertsCreated, err = s.createConcerts(ctx, facade, concerts)
	}

	d := Dataset{}
	for _, f := range families {
		d.Singers = append(d.Singers, f.created.Singers...)
		d.Albums = append(d.Albums, f.created.Albums...)
		d.Tracks = append(d.Tracks, f.created.Tracks...)
	}

	for i, v := range venues {
		if venuesCreated[i] {
			d.Venues = append(d.Venues, v.VenueID)
		}
	}

	for i, c := range concerts {
		if concertsCreated[i] {
			d.Concerts = append(d.Concerts, c.ConcertID)
		}
	}

	return d, err
}

func (s *seeder) createConcerts(ctx context.Context, facade *venuestore.Facade, concerts []*venuestore.Concert) ([]bool, error) {
	created := make([]bool, len(concerts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i, c := range concerts {
		g.Go(func() error {
			if err := create(gctx, facade, c); err != nil {
				return err
			}

			created[i] = true

			return nil
		})
	}

	return created, g.Wait()
}

// family is a singer with the albums and tracks created after it. created lists what made it into the store.
type family struct {
	singer  *venuestore.Singer
	albums  []*venuestore.Album
	tracks  [][]*venuestore.Track
	created Dataset
}

func (s *seeder) newFamily(rnd *rand.Rand, i int, today time.Time) *family {
	f := &family{
		singer: &venuestore.Singer{
			FirstName: ptr(firstNames[i%len(firstNames)]),
			LastName:  fmt.Sprintf("%s %d", lastNames[rnd.IntN(len(lastNames))], i+1),
			Active:    ptr(rnd.IntN(4) != 0),
		},
	}

	for a := 0; a < s.albumsPerSinger; a++ {
		release := today.AddDate(0, 0, -rnd.IntN(20*365))
		f.albums = append(f.albums, &venuestore.Album{
			Title:           ptr(adjectives[rnd.IntN(len(adjectives))] + " " + nouns[rnd.IntN(len(nouns))]),
			MarketingBudget: decimal.NewNullDecimal(decimal.New(int64(50_000+rnd.IntN(450_000)), 0)),
			ReleaseDate:     &release,
			CoverPicture:    coverPicture(rnd),
		})

		tracks := make([]*venuestore.Track, 0, s.tracksPerAlbum)
		for n := 1; n <= s.tracksPerAlbum; n++ {
			tracks = append(tracks, &venuestore.Track{
				TrackNumber: int64(n),
				Title:       fmt.Sprintf("%s %s", adjectives[rnd.IntN(len(adjectives))], nouns[rnd.IntN(len(nouns))]),
				SampleRate:  []float64{44.1, 48, 96}[rnd.IntN(3)],
			})
		}

		f.tracks = append(f.tracks, tracks)
	}

	return f
}

func (f *family) create(ctx context.Context, facade *venuestore.Facade) error {
	if err := create(ctx, facade, f.singer); err != nil {
		return err
	}

	f.created.Singers = append(f.created.Singers, f.singer.SingerID)

	for i, album := range f.albums {
		album.SingerID = ptr(f.singer.SingerID)
		if err := create(ctx, facade, album); err != nil {
			return err
		}

		f.created.Albums = append(f.created.Albums, album.AlbumID)

		for _, track := range f.tracks[i] {
			track.AlbumID = album.AlbumID
			if err := create(ctx, facade, track); err != nil {
				return err
			}

			f.created.Tracks = append(f.created.Tracks, TrackKey{AlbumID: track.AlbumID, TrackNumber: track.TrackNumber})
		}
	}

	return nil
}

func newVenue(rnd *rand.Rand, i int) (*venuestore.Venue, error) {
	description, err := jsonAPI.Marshal(venueDescription{
		Address:   fmt.Sprintf("%d %s Street", 1+rnd.IntN(999), nouns[rnd.IntN(len(nouns))]),
		City:      cities[rnd.IntN(len(cities))],
		Capacity:  100*(i+1) + rnd.IntN(400*(i+1)),
		IsPopular: rnd.IntN(2) == 0,
	})
	if err != nil {
		return nil, err
	}

	return &venuestore.Venue{
		Name:        ptr(fmt.Sprintf("%s Hall %d", nouns[rnd.IntN(len(nouns))], i+1)),
		Description: description,
	}, nil
}

// newConcerts schedules evening concerts of one to three hours, spread over the coming months.
func (s *seeder) newConcerts(rnd *rand.Rand, families []*family, venues []*venuestore.Venue, today time.Time) []*venuestore.Concert {
	concerts := make([]*venuestore.Concert, 0, s.concerts)
	for i := 0; i < s.concerts; i++ {
		singer := families[rnd.IntN(len(families))].singer
		venue := venues[rnd.IntN(len(venues))]
		start := today.AddDate(0, 0, 1+rnd.IntN(180)).Add(19*time.Hour + time.Duration(rnd.IntN(4))*30*time.Minute)

		concerts = append(concerts, &venuestore.Concert{
			VenueID:   ptr(venue.VenueID),
			SingerID:  ptr(singer.SingerID),
			Name:      ptr(fmt.Sprintf("%s live at %s", singer.LastName, *venue.Name)),
			StartTime: start,
			EndTime:   start.Add(time.Duration(1+rnd.IntN(3)) * time.Hour),
		})
	}

	return concerts
}

func create(ctx context.Context, facade *venuestore.Facade, e venuestore.Entity) error {
	if _, err := facade.Create(ctx, e); err != nil {
		return fmt.Errorf("seeding %s: %w", e.TableName(), err)
	}

	return nil
}

func coverPicture(rnd *rand.Rand) []byte {
	picture := make([]byte, 16+rnd.IntN(48))
	for i := range picture {
		picture[i] = byte(rnd.IntN(256))
	}

	return picture
}

func ptr[T any](v T) *T {
	return &v
}
