package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/config"
	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/venue"
	"github.com/zeebo/assert"
)

const registryTOML = `
[[chains]]
name = "Astar"
substrate = true

  [[chains.assets]]
  symbol = "ASTR"

  [[chains.assets]]
  symbol = "USDT"
  asset_id = "1984"

[[chains]]
name = "BifrostPolkadot"
substrate = true

  [[chains.assets]]
  symbol = "BNC"

  [[chains.assets]]
  symbol = "vDOT"
  multi_location = '{"parents":1,"interior":{"X2":[{"Parachain":2030},{"GeneralKey":"0x0900"}]}}'

[[chains]]
name = "Ethereum"
substrate = false

[[venues]]
name = "HydrationDex"
symbols = ["ASTR", "BNC", "vDOT"]

[[venues]]
name = "AcalaDex"
symbols = ["USDT"]
`

// MockFileReader is a mock implementation of FileReader for testing
type MockFileReader struct {
	Files map[string]string
}

func (m *MockFileReader) ReadFile(path string) ([]byte, error) {
	body, ok := m.Files[path]
	if !ok {
		return nil, os.ErrNotExist
	}
	return []byte(body), nil
}

func loadTestRegistry(t *testing.T) *config.Registry {
	t.Helper()
	loader := config.NewRegistryLoader(&MockFileReader{Files: map[string]string{"registry.toml": registryTOML}})
	registry, err := loader.LoadFromFile("registry.toml")
	assert.NoError(t, err)
	return registry
}

func TestRegistry_Catalog(t *testing.T) {
	registry := loadTestRegistry(t)

	assert.DeepEqual(t, registry.ChainNames(), []string{"Astar", "BifrostPolkadot", "Ethereum"})
	assert.DeepEqual(t, registry.SubstrateChains(), []string{"Astar", "BifrostPolkadot"})
	assert.DeepEqual(t, registry.ExchangeVenues(), []string{"HydrationDex", "AcalaDex"})

	assert.True(t, registry.IsOrigin("Astar"))
	assert.False(t, registry.IsOrigin("Ethereum"))
	assert.True(t, registry.IsDestination("Ethereum"))
	assert.False(t, registry.IsDestination("Kusama"))
	assert.True(t, registry.IsVenue("AcalaDex"))
	assert.False(t, registry.IsVenue("Auto"))
	assert.Equal(t, registry.Summary(), "3 chains (2 origins), 2 venues")
}

func TestRegistry_StaticLookup(t *testing.T) {
	registry := loadTestRegistry(t)
	lookup := registry.StaticLookup()

	list, err := lookup.SupportedAssetsTo(context.Background(), venue.Single("HydrationDex"), "BifrostPolkadot")
	assert.NoError(t, err)
	m := assets.NewAssetMap(list)
	assert.DeepEqual(t, m.Keys(), []assets.Key{"BNC-NO_ID", "vDOT-" + assets.MultiLocationMarker})

	list, err = lookup.SupportedAssetsFrom(context.Background(), "Astar", venue.Single("AcalaDex"))
	assert.NoError(t, err)
	assert.Equal(t, len(list), 1)
	assert.Equal(t, list[0].Key(), assets.Key("USDT-1984"))
}

func TestRegistryLoader_JSON(t *testing.T) {
	body := `{"chains":[{"name":"Polkadot","substrate":true,"assets":[{"symbol":"DOT"}]}],"venues":[]}`
	loader := config.NewRegistryLoader(&MockFileReader{Files: map[string]string{"registry.json": body}})
	registry, err := loader.LoadFromFile("registry.json")
	assert.NoError(t, err)
	assert.DeepEqual(t, registry.SubstrateChains(), []string{"Polkadot"})
}

func TestRegistryLoader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		body  string
		field string
	}{
		{name: "missing file", path: "nope.toml"},
		{name: "wrong extension", path: "registry.yaml", body: registryTOML},
		{name: "no chains", path: "empty.toml", body: "chains = []"},
		{
			name:  "duplicate chain",
			path:  "dup.toml",
			body:  "[[chains]]\nname = \"Astar\"\n[[chains]]\nname = \"Astar\"\n",
			field: "chains.name",
		},
		{
			name:  "asset without identifier",
			path:  "asset.toml",
			body:  "[[chains]]\nname = \"Astar\"\n[[chains.assets]]\n",
			field: "chains.assets",
		},
		{
			name:  "venue named auto",
			path:  "venue.toml",
			body:  "[[chains]]\nname = \"Astar\"\n[[venues]]\nname = \"Auto\"\n",
			field: "venues.name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := map[string]string{}
			if tt.body != "" {
				files[tt.path] = tt.body
			}
			_, err := config.NewRegistryLoader(&MockFileReader{Files: files}).LoadFromFile(tt.path)
			assert.Error(t, err)
			if tt.field != "" {
				var verr *config.ValidationError
				assert.True(t, errors.As(err, &verr))
				assert.Equal(t, verr.Field, tt.field)
			}
			t.Logf("%s: %v", tt.name, err)
		})
	}
}

func TestFetchRegistry_LocalFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "chains.toml")
	assert.NoError(t, os.WriteFile(src, []byte(registryTOML), 0o600))

	dst, err := config.FetchRegistry(context.Background(), src, t.TempDir())
	assert.NoError(t, err)
	assert.Equal(t, filepath.Base(dst), "chains.toml")

	registry, err := config.NewDefaultRegistryLoader().LoadFromFile(dst)
	assert.NoError(t, err)
	assert.Equal(t, len(registry.Chains), 3)
}

func TestLoadRegistry_FromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.toml")
	assert.NoError(t, os.WriteFile(path, []byte(registryTOML), 0o600))

	registry, err := config.LoadRegistry(context.Background(), &config.RPCPortalConfig{RegistryPath: path})
	assert.NoError(t, err)
	assert.True(t, registry.IsVenue("HydrationDex"))
}
