package assets_test

import (
	"context"
	"errors"
	"testing"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/venue"
	"github.com/zeebo/assert"
)

// MockLookup is a mock implementation of assets.Lookup for testing
type MockLookup struct {
	From      map[assets.ChainRef][]assets.Descriptor
	To        map[assets.ChainRef][]assets.Descriptor
	Err       error
	FromCalls int
	ToCalls   int
	LastVenue venue.Selection
}

func (m *MockLookup) SupportedAssetsFrom(ctx context.Context, origin assets.ChainRef, sel venue.Selection) ([]assets.Descriptor, error) {
	m.FromCalls++
	m.LastVenue = sel
	if m.Err != nil {
		return nil, m.Err
	}
	if !origin.IsSet() {
		return nil, nil
	}
	return m.From[origin], nil
}

func (m *MockLookup) SupportedAssetsTo(ctx context.Context, sel venue.Selection, destination assets.ChainRef) ([]assets.Descriptor, error) {
	m.ToCalls++
	m.LastVenue = sel
	if m.Err != nil {
		return nil, m.Err
	}
	if !destination.IsSet() {
		return nil, nil
	}
	return m.To[destination], nil
}

func newMockLookup() *MockLookup {
	return &MockLookup{
		From: map[assets.ChainRef][]assets.Descriptor{
			"Astar": {
				{Symbol: str("ASTR")},
				{Symbol: str("DOT"), AssetID: str("340282366920938463463374607431768211455")},
				{Symbol: str("USDT"), AssetID: str("4294969280")},
			},
			"Moonbeam": {
				{Symbol: str("GLMR")},
			},
		},
		To: map[assets.ChainRef][]assets.Descriptor{
			"BifrostPolkadot": {
				{Symbol: str("BNC")},
				{Symbol: str("vDOT"), AssetID: str("{\"VToken2\":0}")},
			},
			"Hydration": {},
		},
	}
}

func TestResolver_MemoizesLatestTuple(t *testing.T) {
	ctx := context.Background()
	lookup := newMockLookup()
	resolver := assets.NewResolver(lookup)

	first, err := resolver.ResolveSource(ctx, "Astar", venue.Single("HydrationDex"))
	assert.NoError(t, err)
	again, err := resolver.ResolveSource(ctx, "Astar", venue.Ordered("HydrationDex"))
	assert.NoError(t, err)

	assert.Equal(t, lookup.FromCalls, 1)
	assert.True(t, first == again)
	assert.Equal(t, first.Len(), 3)

	// a different tuple evicts the remembered one
	_, err = resolver.ResolveSource(ctx, "Moonbeam", venue.Single("HydrationDex"))
	assert.NoError(t, err)
	_, err = resolver.ResolveSource(ctx, "Astar", venue.Single("HydrationDex"))
	assert.NoError(t, err)
	assert.Equal(t, lookup.FromCalls, 3)
}

func TestResolver_SidesAreIndependent(t *testing.T) {
	ctx := context.Background()
	lookup := newMockLookup()
	resolver := assets.NewResolver(lookup)

	_, err := resolver.ResolveSource(ctx, "Astar", venue.Auto())
	assert.NoError(t, err)
	to, err := resolver.ResolveDestination(ctx, venue.Auto(), "BifrostPolkadot")
	assert.NoError(t, err)
	_, err = resolver.ResolveDestination(ctx, venue.Auto(), "BifrostPolkadot")
	assert.NoError(t, err)

	assert.Equal(t, lookup.FromCalls, 1)
	assert.Equal(t, lookup.ToCalls, 1)
	assert.Equal(t, to.Len(), 2)
}

func TestResolver_UnsetChainIsPassedThrough(t *testing.T) {
	lookup := newMockLookup()
	resolver := assets.NewResolver(lookup)

	m, err := resolver.ResolveSource(context.Background(), "", venue.Single("HydrationDex"))
	assert.NoError(t, err)
	assert.Equal(t, m.Len(), 0)
	assert.Equal(t, lookup.FromCalls, 1)
}

func TestResolver_NormalizesVenueBeforeLookup(t *testing.T) {
	lookup := newMockLookup()
	resolver := assets.NewResolver(lookup)

	_, err := resolver.ResolveSource(context.Background(), "Astar", venue.Ordered("HydrationDex"))
	assert.NoError(t, err)
	assert.Equal(t, lookup.LastVenue.Kind(), venue.KindSingle)
}

func TestResolver_ErrorsAreNotMemoized(t *testing.T) {
	ctx := context.Background()
	lookup := newMockLookup()
	lookup.Err = errors.New("router unavailable")
	resolver := assets.NewResolver(lookup)

	_, err := resolver.ResolveSource(ctx, "Astar", venue.Auto())
	assert.Error(t, err)
	assert.True(t, errors.Is(err, lookup.Err))

	lookup.Err = nil
	m, err := resolver.ResolveSource(ctx, "Astar", venue.Auto())
	assert.NoError(t, err)
	assert.Equal(t, m.Len(), 3)
	assert.Equal(t, lookup.FromCalls, 2)
}
