package assets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/venue"
)

// DefaultPolicy picks the preselected key of a freshly resolved, non-empty asset map.
type DefaultPolicy string

const (
	PolicyFirst DefaultPolicy = "first"
	PolicyLast  DefaultPolicy = "last"
)

// ParseDefaultPolicy reads a policy name; the empty string means PolicyFirst.
func ParseDefaultPolicy(s string) (DefaultPolicy, error) {
	switch DefaultPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFirst:
		return PolicyFirst, nil
	case PolicyLast:
		return PolicyLast, nil
	default:
		return "", fmt.Errorf("unknown default policy %q, expected %q or %q", s, PolicyFirst, PolicyLast)
	}
}

// Pick returns the default key of m, or false when m is empty.
func (p DefaultPolicy) Pick(m *AssetMap) (Key, bool) {
	if p == PolicyLast {
		return m.Last()
	}
	return m.First()
}

// Side is the asset map of one end of the transfer plus the selected key.
// The key may be dangling: left over from a previous map and absent from Assets.
type Side struct {
	Assets *AssetMap
	Key    Key
}

// Selected returns the descriptor of the selected key.
func (s Side) Selected() (Descriptor, bool) {
	return s.Assets.Get(s.Key)
}

// Dangling reports whether a key is set that the current map does not contain.
func (s Side) Dangling() bool {
	return s.Key != "" && !s.Assets.Has(s.Key)
}

// Form keeps both asset maps in sync with the chosen endpoints and venue.
// When the input tuple of a side changes, (origin, venue) or (venue, destination), and the new
// map is not empty, the key of that side is reset to its default: the source uses the
// configured policy, the destination always takes the first key.
// An empty map leaves the previous key in place. An unchanged tuple keeps the user's choice.
type Form struct {
	resolver     *Resolver
	sourcePolicy DefaultPolicy

	mu          sync.Mutex
	resolved    bool
	origin      ChainRef
	venue       venue.Selection
	destination ChainRef
	source      Side
	target      Side
}

// NewForm creates a form backed by resolver.
func NewForm(resolver *Resolver, sourcePolicy DefaultPolicy) *Form {
	if sourcePolicy == "" {
		sourcePolicy = PolicyFirst
	}
	return &Form{resolver: resolver, sourcePolicy: sourcePolicy}
}

// SetEndpoints updates origin, venue and destination and refreshes both asset maps.
func (f *Form) SetEndpoints(ctx context.Context, origin ChainRef, sel venue.Selection, destination ChainRef) error {
	sel = venue.Normalize(sel)

	from, err := f.resolver.ResolveSource(ctx, origin, sel)
	if err != nil {
		return err
	}
	to, err := f.resolver.ResolveDestination(ctx, sel, destination)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	venueChanged := !venue.Equal(f.venue, sel)
	sourceChanged := !f.resolved || f.origin != origin || venueChanged
	targetChanged := !f.resolved || f.destination != destination || venueChanged

	f.origin, f.venue, f.destination = origin, sel, destination
	f.resolved = true
	f.source = refresh(f.source, from, f.sourcePolicy, sourceChanged)
	f.target = refresh(f.target, to, PolicyFirst, targetChanged)
	return nil
}

// refresh swaps in next. The default key applies only when the side's input changed.
func refresh(prev Side, next *AssetMap, policy DefaultPolicy, changed bool) Side {
	side := Side{Assets: next, Key: prev.Key}
	if !changed {
		return side
	}
	if k, ok := policy.Pick(next); ok {
		side.Key = k
	}
	return side
}

// SelectSource sets the source key. Keys are not checked here; a key the map lacks
// is reported when the request is built.
func (f *Form) SelectSource(k Key) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.source.Key = k
}

// SelectDestination sets the destination key.
func (f *Form) SelectDestination(k Key) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.target.Key = k
}

// Origin returns the selected origin chain.
func (f *Form) Origin() ChainRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.origin
}

// Destination returns the selected destination chain.
func (f *Form) Destination() ChainRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.destination
}

// Venue returns the normalized venue selection.
func (f *Form) Venue() venue.Selection {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.venue
}

// Source returns the source side.
func (f *Form) Source() Side {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

// Target returns the destination side.
func (f *Form) Target() Side {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.target
}
