package assets

import (
	"context"
	"slices"
	"strings"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/venue"
	"github.com/samber/lo"
)

// Lookup answers which assets can travel through a venue selection.
// Unset chains are passed through unchanged; implementations return an empty list for them.
type Lookup interface {
	// SupportedAssetsFrom lists the assets of origin that can enter the selected venue(s).
	SupportedAssetsFrom(ctx context.Context, origin ChainRef, sel venue.Selection) ([]Descriptor, error)
	// SupportedAssetsTo lists the assets that can leave the selected venue(s) for destination.
	SupportedAssetsTo(ctx context.Context, sel venue.Selection, destination ChainRef) ([]Descriptor, error)
}

// StaticLookup answers lookups from an in-memory asset table, usually loaded from the registry file.
// An asset qualifies when one of the relevant venues trades its symbol: the first venue of a sequence
// for the origin side, the last one for the destination side and any venue for Auto.
type StaticLookup struct {
	chainAssets  map[ChainRef][]Descriptor
	venueSymbols map[string][]string
	venueOrder   []string
}

// NewStaticLookup builds a lookup from per-chain asset lists and per-venue traded symbols.
func NewStaticLookup(chainAssets map[ChainRef][]Descriptor, venueSymbols map[string][]string) *StaticLookup {
	order := lo.Keys(venueSymbols)
	slices.Sort(order)
	return &StaticLookup{
		chainAssets:  chainAssets,
		venueSymbols: venueSymbols,
		venueOrder:   order,
	}
}

func (s *StaticLookup) SupportedAssetsFrom(ctx context.Context, origin ChainRef, sel venue.Selection) ([]Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !origin.IsSet() {
		return nil, nil
	}
	var venues []string
	if first, ok := sel.First(); ok {
		venues = []string{first}
	}
	return s.filter(s.chainAssets[origin], venues), nil
}

func (s *StaticLookup) SupportedAssetsTo(ctx context.Context, sel venue.Selection, destination ChainRef) ([]Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !destination.IsSet() {
		return nil, nil
	}
	var venues []string
	if last, ok := sel.Last(); ok {
		venues = []string{last}
	}
	return s.filter(s.chainAssets[destination], venues), nil
}

// filter keeps the assets whose symbol is traded on one of venues, or on any known venue when venues is empty.
func (s *StaticLookup) filter(list []Descriptor, venues []string) []Descriptor {
	if len(venues) == 0 {
		venues = s.venueOrder
	}
	return lo.Filter(list, func(d Descriptor, _ int) bool {
		if d.Symbol == nil {
			return false
		}
		return lo.SomeBy(venues, func(v string) bool {
			return lo.ContainsBy(s.venueSymbols[v], func(sym string) bool {
				return strings.EqualFold(sym, *d.Symbol)
			})
		})
	})
}
