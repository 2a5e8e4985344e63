package assets

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/metrics"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/venue"
	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "resolver").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "resolver").Logger()
}

const (
	sideFrom = "from"
	sideTo   = "to"
)

// memo holds the result for the most recent input tuple of one side.
type memo struct {
	chain  ChainRef
	venue  venue.Selection
	assets *AssetMap
}

func (m *memo) matches(chain ChainRef, sel venue.Selection) bool {
	return m != nil && m.chain == chain && venue.Equal(m.venue, sel)
}

// Resolver turns (origin, venue) and (venue, destination) tuples into asset maps.
// Each side remembers only its latest tuple, so a lookup runs once per distinct tuple in a row
// and repeated queries return the same *AssetMap.
// Failed lookups are not remembered. A Resolver is safe for concurrent use.
type Resolver struct {
	lookup Lookup

	mu   sync.Mutex
	from *memo
	to   *memo
}

// NewResolver creates a resolver backed by lookup.
func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Lookup returns the collaborator behind r.
func (r *Resolver) Lookup() Lookup {
	return r.lookup
}

// ResolveSource returns the assets of origin that can enter sel.
func (r *Resolver) ResolveSource(ctx context.Context, origin ChainRef, sel venue.Selection) (*AssetMap, error) {
	sel = venue.Normalize(sel)

	r.mu.Lock()
	if r.from.matches(origin, sel) {
		cached := r.from.assets
		r.mu.Unlock()
		metrics.RecordLookup(sideFrom, "hit")
		return cached, nil
	}
	r.mu.Unlock()

	list, err := r.lookup.SupportedAssetsFrom(ctx, origin, sel)
	if err != nil {
		metrics.RecordLookup(sideFrom, "error")
		return nil, fmt.Errorf("failed to look up assets from %q via %s: %w", origin, sel, err)
	}
	m := NewAssetMap(list)
	metrics.RecordLookup(sideFrom, "miss")
	metrics.RecordAssetCount(sideFrom, m.Len())

	log.Debug().
		Str("origin", origin.String()).
		Str("venue", sel.String()).
		Int("assets", m.Len()).
		Msg("Resolved source assets")

	r.mu.Lock()
	r.from = &memo{chain: origin, venue: sel, assets: m}
	r.mu.Unlock()
	return m, nil
}

// ResolveDestination returns the assets that can leave sel for destination.
func (r *Resolver) ResolveDestination(ctx context.Context, sel venue.Selection, destination ChainRef) (*AssetMap, error) {
	sel = venue.Normalize(sel)

	r.mu.Lock()
	if r.to.matches(destination, sel) {
		cached := r.to.assets
		r.mu.Unlock()
		metrics.RecordLookup(sideTo, "hit")
		return cached, nil
	}
	r.mu.Unlock()

	list, err := r.lookup.SupportedAssetsTo(ctx, sel, destination)
	if err != nil {
		metrics.RecordLookup(sideTo, "error")
		return nil, fmt.Errorf("failed to look up assets to %q via %s: %w", destination, sel, err)
	}
	m := NewAssetMap(list)
	metrics.RecordLookup(sideTo, "miss")
	metrics.RecordAssetCount(sideTo, m.Len())

	log.Debug().
		Str("destination", destination.String()).
		Str("venue", sel.String()).
		Int("assets", m.Len()).
		Msg("Resolved destination assets")

	r.mu.Lock()
	r.to = &memo{chain: destination, venue: sel, assets: m}
	r.mu.Unlock()
	return m, nil
}
