package venue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

// AutoChoice is the value a form submits when the router should pick the exchange itself.
const AutoChoice = "Auto"

// Kind tells which shape a Selection has.
type Kind int

const (
	KindAuto Kind = iota
	KindSingle
	KindOrdered
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindOrdered:
		return "ordered"
	default:
		return "auto"
	}
}

// Selection is the exchange venue choice of a transfer: a single venue, an ordered
// sequence of venues or automatic selection by the router.
//
// The zero value is Auto.
type Selection struct {
	kind   Kind
	venues []string
}

// Auto lets the routing service pick the venue.
func Auto() Selection {
	return Selection{kind: KindAuto}
}

// Single fixes one venue. An empty name yields Auto.
func Single(name string) Selection {
	if name == "" {
		return Auto()
	}
	return Selection{kind: KindSingle, venues: []string{name}}
}

// Ordered fixes a sequence of venues tried in the given order.
// Empty names are dropped and an empty sequence yields Auto.
func Ordered(names ...string) Selection {
	names = lo.Compact(names)
	if len(names) == 0 {
		return Auto()
	}
	return Selection{kind: KindOrdered, venues: append([]string(nil), names...)}
}

// Kind returns the shape of the selection.
func (s Selection) Kind() Kind {
	return s.kind
}

// IsAuto reports whether no venue is fixed.
func (s Selection) IsAuto() bool {
	return s.kind == KindAuto
}

// Venues returns a copy of the chosen venue names, nil for Auto.
func (s Selection) Venues() []string {
	if s.kind == KindAuto {
		return nil
	}
	return append([]string(nil), s.venues...)
}

// First returns the venue the transfer enters first.
func (s Selection) First() (string, bool) {
	if len(s.venues) == 0 {
		return "", false
	}
	return s.venues[0], true
}

// Last returns the venue the transfer leaves from.
func (s Selection) Last() (string, bool) {
	if len(s.venues) == 0 {
		return "", false
	}
	return s.venues[len(s.venues)-1], true
}

func (s Selection) String() string {
	if s.kind == KindAuto {
		return AutoChoice
	}
	return strings.Join(s.venues, ",")
}

// Normalize collapses an ordered sequence of one venue into Single.
// It is idempotent.
func Normalize(s Selection) Selection {
	if s.kind == KindOrdered && len(s.venues) == 1 {
		return Single(s.venues[0])
	}
	if s.kind != KindAuto && len(s.venues) == 0 {
		return Auto()
	}
	return s
}

// FromChoices turns the values of a venue multi-select into a normalized Selection.
// No choice or the AutoChoice sentinel yields Auto, one choice a Single and more an Ordered sequence.
func FromChoices(choices []string) Selection {
	choices = lo.Compact(lo.Map(choices, func(c string, _ int) string {
		return strings.TrimSpace(c)
	}))
	if len(choices) == 0 || lo.Contains(choices, AutoChoice) {
		return Auto()
	}
	return Normalize(Ordered(choices...))
}

// Equal compares two selections after normalization.
func Equal(a, b Selection) bool {
	a, b = Normalize(a), Normalize(b)
	if a.kind != b.kind || len(a.venues) != len(b.venues) {
		return false
	}
	for i := range a.venues {
		if a.venues[i] != b.venues[i] {
			return false
		}
	}
	return true
}

// MarshalJSON encodes Auto as null, Single as a string and Ordered as an array.
func (s Selection) MarshalJSON() ([]byte, error) {
	switch Normalize(s).kind {
	case KindSingle:
		return json.Marshal(s.venues[0])
	case KindOrdered:
		return json.Marshal(s.venues)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, a venue name or an array of venue names.
func (s *Selection) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null" || trimmed == "":
		*s = Auto()
		return nil
	case strings.HasPrefix(trimmed, "["):
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return fmt.Errorf("invalid venue list: %w", err)
		}
		*s = FromChoices(names)
		return nil
	default:
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return fmt.Errorf("invalid venue: %w", err)
		}
		*s = FromChoices([]string{name})
		return nil
	}
}
