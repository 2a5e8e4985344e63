package assets

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// NoSymbol stands in for a missing symbol in an asset key.
	NoSymbol = "NO_SYMBOL"
	// NoID stands in for an asset that has neither a multi-location nor an asset id.
	NoID = "NO_ID"
	// MultiLocationMarker is the key suffix of assets identified by a multi-location.
	// The location itself is never embedded in the key.
	MultiLocationMarker = "MULTI_LOCATION"
)

// ChainRef names a chain (node) known to the routing service. The empty value means unset.
type ChainRef string

// IsSet reports whether the chain was chosen.
func (c ChainRef) IsSet() bool {
	return c != ""
}

func (c ChainRef) String() string {
	return string(c)
}

// Key is the stable identity of an asset inside one AssetMap.
type Key string

// Descriptor describes an asset as reported by the routing service.
// At least one of the three identifiers is present.
type Descriptor struct {
	Symbol        *string         `json:"symbol,omitempty"`
	AssetID       *string         `json:"assetId,omitempty"`
	MultiLocation json.RawMessage `json:"multiLocation,omitempty"`
}

// HasMultiLocation reports whether the asset is addressed by a multi-location.
func (d Descriptor) HasMultiLocation() bool {
	return len(d.MultiLocation) > 0 && string(d.MultiLocation) != "null"
}

// Validate checks that the descriptor carries at least one identifier.
func (d Descriptor) Validate() error {
	if d.Symbol == nil && d.AssetID == nil && !d.HasMultiLocation() {
		return errors.New("asset has no symbol, asset id or multi-location")
	}
	if d.HasMultiLocation() && !json.Valid(d.MultiLocation) {
		return fmt.Errorf("asset %s has an invalid multi-location", d.Key())
	}
	return nil
}

// Key derives the asset key: the symbol (or NO_SYMBOL) joined with a suffix.
// The suffix is the multi-location marker when a multi-location is present,
// else the non-empty asset id, else NO_ID.
func (d Descriptor) Key() Key {
	symbol := NoSymbol
	if d.Symbol != nil {
		symbol = *d.Symbol
	}

	suffix := NoID
	switch {
	case d.HasMultiLocation():
		suffix = MultiLocationMarker
	case d.AssetID != nil && *d.AssetID != "":
		suffix = *d.AssetID
	}
	return Key(symbol + "-" + suffix)
}

// Label is the human readable option text, e.g. "DOT - Native" or "USDT - 1984".
func (d Descriptor) Label() string {
	symbol := ""
	if d.Symbol != nil {
		symbol = *d.Symbol
	}
	switch {
	case d.AssetID != nil:
		return symbol + " - " + *d.AssetID
	case d.HasMultiLocation():
		return symbol + " - Multi-Location"
	default:
		return symbol + " - Native"
	}
}

// Currency resolves the payload the routing service expects for this asset.
// A multi-location wins over a non-empty asset id, which wins over the symbol.
func (d Descriptor) Currency() CurrencyInput {
	switch {
	case d.HasMultiLocation():
		return CurrencyInput{Kind: CurrencyByMultiLocation, MultiLocation: d.MultiLocation}
	case d.AssetID != nil && *d.AssetID != "":
		return CurrencyInput{Kind: CurrencyByID, Value: *d.AssetID}
	case d.Symbol != nil:
		return CurrencyInput{Kind: CurrencyBySymbol, Value: *d.Symbol}
	default:
		return CurrencyInput{Kind: CurrencyBySymbol}
	}
}

// CurrencyKind says which identifier a CurrencyInput carries.
type CurrencyKind string

const (
	CurrencyByMultiLocation CurrencyKind = "multilocation"
	CurrencyByID            CurrencyKind = "id"
	CurrencyBySymbol        CurrencyKind = "symbol"
)

// CurrencyInput is exactly one of {multilocation}, {id} or {symbol}.
type CurrencyInput struct {
	Kind          CurrencyKind
	Value         string
	MultiLocation json.RawMessage
}

// MarshalJSON writes a single-field object keyed by the currency kind.
func (c CurrencyInput) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CurrencyByMultiLocation:
		return json.Marshal(map[string]json.RawMessage{string(CurrencyByMultiLocation): c.MultiLocation})
	case CurrencyByID:
		return json.Marshal(map[string]string{string(CurrencyByID): c.Value})
	default:
		return json.Marshal(map[string]string{string(CurrencyBySymbol): c.Value})
	}
}

// UnmarshalJSON reads the single-field object written by MarshalJSON.
func (c *CurrencyInput) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if len(fields) != 1 {
		return fmt.Errorf("currency must have exactly one field, got %d", len(fields))
	}
	for k, v := range fields {
		switch CurrencyKind(k) {
		case CurrencyByMultiLocation:
			*c = CurrencyInput{Kind: CurrencyByMultiLocation, MultiLocation: v}
			return nil
		case CurrencyByID, CurrencyBySymbol:
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("currency %s: %w", k, err)
			}
			*c = CurrencyInput{Kind: CurrencyKind(k), Value: s}
			return nil
		default:
			return fmt.Errorf("unknown currency field %q", k)
		}
	}
	return nil
}

func (c CurrencyInput) String() string {
	if c.Kind == CurrencyByMultiLocation {
		return string(CurrencyByMultiLocation) + ":" + string(c.MultiLocation)
	}
	return string(c.Kind) + ":" + c.Value
}
