package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/samber/lo"
)

// Registry is the catalog of chains and exchange venues the portal serves.
type Registry struct {
	Chains []ChainEntry `toml:"chains" json:"chains"`
	Venues []VenueEntry `toml:"venues" json:"venues"`
}

// ChainEntry is one chain of the registry. Only substrate chains can be origins.
type ChainEntry struct {
	Name      string       `toml:"name" json:"name"`
	Substrate bool         `toml:"substrate" json:"substrate"`
	Assets    []AssetEntry `toml:"assets" json:"assets,omitempty"`
}

// AssetEntry is a static asset of a chain. MultiLocation holds the location as a JSON string.
type AssetEntry struct {
	Symbol        string `toml:"symbol" json:"symbol,omitempty"`
	AssetID       string `toml:"asset_id" json:"asset_id,omitempty"`
	MultiLocation string `toml:"multi_location" json:"multi_location,omitempty"`
}

// VenueEntry is an exchange venue and the symbols it trades.
type VenueEntry struct {
	Name    string   `toml:"name" json:"name"`
	Symbols []string `toml:"symbols" json:"symbols,omitempty"`
}

// Descriptor converts the entry to the routing service's asset shape.
func (a AssetEntry) Descriptor() assets.Descriptor {
	var d assets.Descriptor
	if a.Symbol != "" {
		symbol := a.Symbol
		d.Symbol = &symbol
	}
	if a.AssetID != "" {
		id := a.AssetID
		d.AssetID = &id
	}
	if a.MultiLocation != "" {
		d.MultiLocation = json.RawMessage(a.MultiLocation)
	}
	return d
}

// Validate checks names are unique and every asset is well formed.
func (r *Registry) Validate() error {
	if len(r.Chains) == 0 {
		return fmt.Errorf("registry has no chains")
	}

	seen := make(map[string]bool, len(r.Chains))
	for _, c := range r.Chains {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return &ValidationError{Field: "chains.name", Message: "chain name is required"}
		}
		if seen[name] {
			return &ValidationError{Field: "chains.name", Message: fmt.Sprintf("duplicate chain %s", name)}
		}
		seen[name] = true

		for _, a := range c.Assets {
			if err := a.Descriptor().Validate(); err != nil {
				return &ValidationError{Field: "chains.assets", Message: fmt.Sprintf("%s: %v", name, err)}
			}
		}
	}

	venues := make(map[string]bool, len(r.Venues))
	for _, v := range r.Venues {
		name := strings.TrimSpace(v.Name)
		if name == "" || strings.EqualFold(name, "Auto") {
			return &ValidationError{Field: "venues.name", Message: fmt.Sprintf("invalid venue name %q", v.Name)}
		}
		if venues[name] {
			return &ValidationError{Field: "venues.name", Message: fmt.Sprintf("duplicate venue %s", name)}
		}
		venues[name] = true
	}
	return nil
}

// ChainNames lists every chain in registry order.
func (r *Registry) ChainNames() []string {
	return lo.Map(r.Chains, func(c ChainEntry, _ int) string { return c.Name })
}

// SubstrateChains lists the chains that can be used as origins.
func (r *Registry) SubstrateChains() []string {
	return lo.FilterMap(r.Chains, func(c ChainEntry, _ int) (string, bool) {
		return c.Name, c.Substrate
	})
}

// ExchangeVenues lists the venue names in registry order.
func (r *Registry) ExchangeVenues() []string {
	return lo.Map(r.Venues, func(v VenueEntry, _ int) string { return v.Name })
}

func (r *Registry) chain(name assets.ChainRef) (ChainEntry, bool) {
	return lo.Find(r.Chains, func(c ChainEntry) bool { return c.Name == string(name) })
}

// IsOrigin reports whether chain is a known substrate chain.
func (r *Registry) IsOrigin(chain assets.ChainRef) bool {
	c, ok := r.chain(chain)
	return ok && c.Substrate
}

// IsDestination reports whether chain is known.
func (r *Registry) IsDestination(chain assets.ChainRef) bool {
	_, ok := r.chain(chain)
	return ok
}

// IsVenue reports whether name is a known exchange venue.
func (r *Registry) IsVenue(name string) bool {
	return lo.ContainsBy(r.Venues, func(v VenueEntry) bool { return v.Name == name })
}

// ChainAssets returns the static asset table keyed by chain.
func (r *Registry) ChainAssets() map[assets.ChainRef][]assets.Descriptor {
	out := make(map[assets.ChainRef][]assets.Descriptor, len(r.Chains))
	for _, c := range r.Chains {
		if len(c.Assets) == 0 {
			continue
		}
		out[assets.ChainRef(c.Name)] = lo.Map(c.Assets, func(a AssetEntry, _ int) assets.Descriptor {
			return a.Descriptor()
		})
	}
	return out
}

// VenueSymbols returns the traded symbols keyed by venue.
func (r *Registry) VenueSymbols() map[string][]string {
	out := make(map[string][]string, len(r.Venues))
	for _, v := range r.Venues {
		out[v.Name] = v.Symbols
	}
	return out
}

// StaticLookup serves asset lookups from the registry without a routing service.
func (r *Registry) StaticLookup() *assets.StaticLookup {
	return assets.NewStaticLookup(r.ChainAssets(), r.VenueSymbols())
}

// Summary is a short human readable description used by the CLI.
func (r *Registry) Summary() string {
	return fmt.Sprintf("%d chains (%d origins), %d venues", len(r.Chains), len(r.SubstrateChains()), len(r.Venues))
}
