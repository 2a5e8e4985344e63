package assets_test

import (
	"testing"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/zeebo/assert"
)

func TestNewAssetMap_LastWinsKeepsFirstPosition(t *testing.T) {
	list := []assets.Descriptor{
		{Symbol: str("DOT")},
		{Symbol: str("USDT"), AssetID: str("1984")},
		{Symbol: str("ASTR")},
		// same key as the first entry, different content
		{Symbol: str("DOT"), AssetID: str("")},
	}

	m := assets.NewAssetMap(list)
	assert.Equal(t, m.Len(), 3)
	assert.DeepEqual(t, m.Keys(), []assets.Key{"DOT-NO_ID", "USDT-1984", "ASTR-NO_ID"})

	got, ok := m.Get("DOT-NO_ID")
	assert.True(t, ok)
	assert.NotNil(t, got.AssetID)
	assert.Equal(t, *got.AssetID, "")
}

func TestNewAssetMap_SizeEqualsUniqueKeys(t *testing.T) {
	list := []assets.Descriptor{
		{Symbol: str("USDT"), AssetID: str("1984")},
		{Symbol: str("USDT"), AssetID: str("1984")},
		{Symbol: str("USDT"), MultiLocation: usdtLocation},
		{Symbol: str("USDT"), AssetID: str("1337"), MultiLocation: usdtLocation},
	}
	unique := map[assets.Key]struct{}{}
	for _, d := range list {
		unique[d.Key()] = struct{}{}
	}

	m := assets.NewAssetMap(list)
	assert.Equal(t, m.Len(), len(unique))

	// the later multi-location entry replaced the earlier one
	got, _ := m.Get(assets.Key("USDT-" + assets.MultiLocationMarker))
	assert.NotNil(t, got.AssetID)
	assert.Equal(t, *got.AssetID, "1337")
}

func TestAssetMap_Empty(t *testing.T) {
	var nilMap *assets.AssetMap
	assert.Equal(t, nilMap.Len(), 0)
	_, ok := nilMap.First()
	assert.False(t, ok)
	assert.False(t, nilMap.Has("DOT-NO_ID"))
	assert.Equal(t, len(nilMap.Options()), 0)

	empty := assets.NewAssetMap(nil)
	_, ok = empty.Last()
	assert.False(t, ok)
}

func TestAssetMap_Options(t *testing.T) {
	m := assets.NewAssetMap([]assets.Descriptor{
		{Symbol: str("DOT")},
		{Symbol: str("USDT"), AssetID: str("1984")},
	})
	opts := m.Options()
	assert.Equal(t, len(opts), 2)
	assert.Equal(t, opts[0].Value, assets.Key("DOT-NO_ID"))
	assert.Equal(t, opts[0].Label, "DOT - Native")
	assert.Equal(t, opts[1].Label, "USDT - 1984")

	first, _ := m.First()
	last, _ := m.Last()
	assert.Equal(t, first, assets.Key("DOT-NO_ID"))
	assert.Equal(t, last, assets.Key("USDT-1984"))
}
