package assets

import "github.com/samber/lo"

// AssetMap maps asset keys to descriptors and keeps the order in which keys first appeared.
// It is never mutated after construction; a nil *AssetMap is an empty map.
type AssetMap struct {
	keys    []Key
	entries map[Key]Descriptor
}

// Option is one entry of a currency select box.
type Option struct {
	Value Key    `json:"value"`
	Label string `json:"label"`
}

// NewAssetMap folds the list left to right. When two descriptors share a key the later
// descriptor wins but the key keeps the position of its first occurrence.
func NewAssetMap(list []Descriptor) *AssetMap {
	m := &AssetMap{
		keys:    make([]Key, 0, len(list)),
		entries: make(map[Key]Descriptor, len(list)),
	}
	for _, d := range list {
		k := d.Key()
		if _, seen := m.entries[k]; !seen {
			m.keys = append(m.keys, k)
		}
		m.entries[k] = d
	}
	return m
}

// Len returns the number of distinct keys.
func (m *AssetMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order.
func (m *AssetMap) Keys() []Key {
	if m == nil {
		return nil
	}
	return append([]Key(nil), m.keys...)
}

// Get returns the descriptor stored under k.
func (m *AssetMap) Get(k Key) (Descriptor, bool) {
	if m == nil {
		return Descriptor{}, false
	}
	d, ok := m.entries[k]
	return d, ok
}

// Has reports whether k is a key of the map.
func (m *AssetMap) Has(k Key) bool {
	_, ok := m.Get(k)
	return ok
}

// First returns the first key in insertion order.
func (m *AssetMap) First() (Key, bool) {
	if m.Len() == 0 {
		return "", false
	}
	return m.keys[0], true
}

// Last returns the last key in insertion order.
func (m *AssetMap) Last() (Key, bool) {
	if m.Len() == 0 {
		return "", false
	}
	return m.keys[len(m.keys)-1], true
}

// Descriptors returns the stored descriptors in key order.
func (m *AssetMap) Descriptors() []Descriptor {
	return lo.Map(m.Keys(), func(k Key, _ int) Descriptor {
		return m.entries[k]
	})
}

// Options renders the map as select options in key order.
func (m *AssetMap) Options() []Option {
	return lo.Map(m.Keys(), func(k Key, _ int) Option {
		return Option{Value: k, Label: m.entries[k].Label()}
	})
}
