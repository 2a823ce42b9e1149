package sampledata

import (
	"context"
	"errors"
	"fmt"

	"github.com/AntonStoeckl/venuestore-go/venuestore"
)

// Purge deletes every row of d, children before parents. Rows already gone are skipped,
// rows changed since seeding are deleted at their current version.
func Purge(ctx context.Context, facade *venuestore.Facade, d Dataset) error {
	if facade == nil {
		return ErrNilFacade
	}

	keys := make([]venuestore.Entity, 0, len(d.Concerts)+len(d.Tracks)+len(d.Albums)+len(d.Venues)+len(d.Singers))
	for _, id := range d.Concerts {
		keys = append(keys, &venuestore.Concert{ConcertID: id})
	}

	for _, k := range d.Tracks {
		keys = append(keys, &venuestore.Track{AlbumID: k.AlbumID, TrackNumber: k.TrackNumber})
	}

	for _, id := range d.Albums {
		keys = append(keys, &venuestore.Album{AlbumID: id})
	}

	for _, id := range d.Venues {
		keys = append(keys, &venuestore.Venue{VenueID: id})
	}

	for _, id := range d.Singers {
		keys = append(keys, &venuestore.Singer{SingerID: id})
	}

	for _, key := range keys {
		if err := deleteCurrent(ctx, facade, key); err != nil {
			return fmt.Errorf("purging %s: %w", key.TableName(), err)
		}
	}

	return nil
}

func deleteCurrent(ctx context.Context, facade *venuestore.Facade, key venuestore.Entity) error {
	current := key.Clone()

	err := facade.Read(ctx, current, venuestore.StrongConsistency)
	if errors.Is(err, venuestore.ErrNotFound) {
		return nil
	}

	if err != nil {
		return err
	}

	return facade.Delete(ctx, key, current.Meta().LockVersion)
}
