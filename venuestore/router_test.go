package venuestore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type proberStub struct {
	err    error
	probed []ConnectionProfile
}

func (p *proberStub) ProbeProfile(_ context.Context, profile ConnectionProfile) error {
	p.probed = append(p.probed, profile)
	return p.err
}

func Test_NewRouter_DefaultsTheStaleness(t *testing.T) {
	// act
	router, err := NewRouter(RouterConfig{}, &proberStub{})

	// assert
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, router.Staleness())
}

func Test_NewRouter_When_StalenessIsNegative(t *testing.T) {
	// act
	_, err := NewRouter(RouterConfig{Staleness: -time.Second}, &proberStub{})

	// assert
	assert.ErrorIs(t, err, ErrInvalidStaleness)
}

func Test_Route_Strong_NeverConsultsTheProber(t *testing.T) {
	// arrange
	prober := &proberStub{err: errors.New("replica down")}
	router, err := NewRouter(RouterConfig{}, prober)
	require.NoError(t, err)

	// act
	profile, err := router.Route(context.Background(), StrongConsistency)

	// assert
	require.NoError(t, err)
	assert.Equal(t, StrongProfile(), profile)
	assert.Empty(t, prober.probed)
}

func Test_Route_BoundedStale(t *testing.T) {
	// arrange
	prober := &proberStub{}
	router, err := NewRouter(RouterConfig{Staleness: 3 * time.Second}, prober)
	require.NoError(t, err)

	// act
	profile, err := router.Route(context.Background(), BoundedStaleConsistency)

	// assert
	require.NoError(t, err)
	assert.Equal(t, ProfileBoundedStale, profile.Name)
	assert.Equal(t, 3*time.Second, profile.Staleness)
	assert.Equal(t, []ConnectionProfile{profile}, prober.probed)
}

func Test_Route_BoundedStale_When_ProbeFails(t *testing.T) {
	// arrange
	cause := errors.New("replica down")
	router, err := NewRouter(RouterConfig{}, &proberStub{err: cause})
	require.NoError(t, err)

	// act
	_, err = router.Route(context.Background(), BoundedStaleConsistency)

	// assert
	assert.ErrorIs(t, err, ErrRouteUnavailable)
	assert.ErrorIs(t, err, cause)
}

func Test_Route_BoundedStale_When_NoProberIsConfigured(t *testing.T) {
	// arrange
	router, err := NewRouter(RouterConfig{}, nil)
	require.NoError(t, err)

	// act
	_, err = router.Route(context.Background(), BoundedStaleConsistency)

	// assert
	assert.ErrorIs(t, err, ErrRouteUnavailable)
}

func Test_Route_When_LevelIsUnknown(t *testing.T) {
	// arrange
	router, err := NewRouter(RouterConfig{}, &proberStub{})
	require.NoError(t, err)

	// act
	_, err = router.Route(context.Background(), ConsistencyLevel(42))

	// assert
	assert.ErrorIs(t, err, ErrRouteUnavailable)
}
