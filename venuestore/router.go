package venuestore

import (
	"context"
	"errors"
	"time"
)

// DefaultStaleness is the staleness bound of the bounded-stale profile when none is configured.
const DefaultStaleness = 10 * time.Second

// ProfileName names one of the two connection profiles.
type ProfileName string

const (
	ProfileStrong       ProfileName = "strong"
	ProfileBoundedStale ProfileName = "bounded-stale"
)

// ConnectionProfile selects the connection a read is executed on.
// Staleness is zero for the strong profile.
type ConnectionProfile struct {
	Name      ProfileName
	Level     ConsistencyLevel
	Staleness time.Duration
}

// StrongProfile returns the linearizable profile.
func StrongProfile() ConnectionProfile {
	return ConnectionProfile{Name: ProfileStrong, Level: StrongConsistency}
}

// BoundedStaleProfile returns the stale-tolerant profile with the given bound.
func BoundedStaleProfile(staleness time.Duration) ConnectionProfile {
	return ConnectionProfile{Name: ProfileBoundedStale, Level: BoundedStaleConsistency, Staleness: staleness}
}

// ProfileProber reports whether the connection behind a profile can serve reads.
// Engines implement it; a non-nil error makes the router fail with ErrRouteUnavailable.
type ProfileProber interface {
	ProbeProfile(ctx context.Context, profile ConnectionProfile) error
}

// RouterConfig is the typed routing configuration, validated by NewRouter.
type RouterConfig struct {
	Staleness time.Duration
}

// Router picks the connection profile for a read. It never promotes or demotes
// between profiles: staleness tolerance is declared by the caller.
type Router struct {
	strong ConnectionProfile
	stale  ConnectionProfile
	prober ProfileProber
}

// NewRouter creates a Router. A zero Staleness falls back to DefaultStaleness, a negative one is rejected.
func NewRouter(cfg RouterConfig, prober ProfileProber) (Router, error) {
	staleness := cfg.Staleness
	if staleness == 0 {
		staleness = DefaultStaleness
	}

	if staleness < 0 {
		return Router{}, ErrInvalidStaleness
	}

	return Router{
		strong: StrongProfile(),
		stale:  BoundedStaleProfile(staleness),
		prober: prober,
	}, nil
}

// Route returns the profile for the requested consistency level.
//
// The strong profile is always returned for StrongConsistency. For BoundedStaleConsistency the
// prober is consulted and a failure is reported as ErrRouteUnavailable joined with the cause;
// callers may retry explicitly with StrongConsistency.
func (r Router) Route(ctx context.Context, level ConsistencyLevel) (ConnectionProfile, error) {
	switch level {
	case StrongConsistency:
		return r.strong, nil

	case BoundedStaleConsistency:
		if r.prober == nil {
			return ConnectionProfile{}, ErrRouteUnavailable
		}

		if err := r.prober.ProbeProfile(ctx, r.stale); err != nil {
			return ConnectionProfile{}, errors.Join(ErrRouteUnavailable, err)
		}

		return r.stale, nil

	default:
		return ConnectionProfile{}, ErrRouteUnavailable
	}
}

// Staleness returns the configured bound of the bounded-stale profile.
func (r Router) Staleness() time.Duration {
	return r.stale.Staleness
}
