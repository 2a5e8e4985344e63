package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/config"
	"github.com/zeebo/assert"
)

// clearPortalEnv unsets every PORTAL_* variable and runs the test from an empty
// directory so no .env file leaks into env mode.
func clearPortalEnv(t *testing.T) {
	t.Helper()
	for _, e := range os.Environ() {
		key, _, _ := strings.Cut(e, "=")
		if strings.HasPrefix(key, config.EnvPrefix+"_") {
			t.Setenv(key, "")
			_ = os.Unsetenv(key)
		}
	}
	t.Chdir(t.TempDir())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portal.toml")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadRPCPortalConfig_FromEnv(t *testing.T) {
	clearPortalEnv(t)
	t.Setenv("PORTAL_PORT", "8080")
	t.Setenv("PORTAL_HOST", "0.0.0.0")
	t.Setenv("PORTAL_ALLOWED_ORIGINS", "*")
	t.Setenv("PORTAL_ROUTER_URLS", "https://router.example.com/, https://backup.example.com")
	t.Setenv("PORTAL_REGISTRY_URL", "https://example.com/registry.toml")
	t.Setenv("PORTAL_OTLP_CA_CERT_FILE", "/etc/portal/ca.pem")

	cfg, err := config.LoadRPCPortalConfig(nil)
	assert.NoError(t, err)
	assert.Equal(t, cfg.Port, 8080)
	assert.Equal(t, cfg.Host, "0.0.0.0")
	assert.DeepEqual(t, cfg.AllowedOrigins, []string{"*"})
	assert.DeepEqual(t, cfg.RouterURLs, []string{"https://router.example.com", "https://backup.example.com"})
	assert.Equal(t, cfg.OTLPCACertFile, "/etc/portal/ca.pem")
	assert.Equal(t, cfg.SourceDefault, "first")
}

func TestLoadRPCPortalConfig_FromEnvMissingHost(t *testing.T) {
	clearPortalEnv(t)
	t.Setenv("PORTAL_PORT", "8080")
	t.Setenv("PORTAL_ALLOWED_ORIGINS", "*")
	t.Setenv("PORTAL_ROUTER_URLS", "https://router.example.com")
	t.Setenv("PORTAL_REGISTRY_PATH", "registry.toml")

	_, err := config.LoadRPCPortalConfig(nil)
	assert.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "host is required"))
}

func TestLoadRPCPortalConfig_FromFile(t *testing.T) {
	clearPortalEnv(t)
	path := writeConfig(t, `
port = 9090
host = "127.0.0.1"
allowed_origins = ["https://example.com"]
router_urls = ["https://router.example.com"]
registry_path = "registry.toml"
source_default = "Last"
database_url = "postgres://portal@localhost/portal"
`)

	cfg, err := config.LoadRPCPortalConfig(&path)
	assert.NoError(t, err)
	assert.Equal(t, cfg.Port, 9090)
	assert.Equal(t, cfg.Host, "127.0.0.1")
	assert.DeepEqual(t, cfg.AllowedOrigins, []string{"https://example.com"})
	assert.Equal(t, cfg.SourceDefault, "last")
	assert.Equal(t, cfg.DatabaseURL, "postgres://portal@localhost/portal")
	// defaults
	assert.Equal(t, cfg.RatePerMinute, 120)
	assert.Equal(t, cfg.MaxConcurrentRequests, 100)
	assert.Equal(t, cfg.ServiceName, "spectra-xcm-portal")
}

func TestLoadRPCPortalConfig_FileErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name: "unknown source default",
			content: `port = 9090
host = "127.0.0.1"
allowed_origins = ["https://example.com"]
router_urls = ["https://router.example.com"]
registry_path = "registry.toml"
source_default = "middle"`,
			want: []string{"source_default"},
		},
		{
			name: "missing registry",
			content: `port = 9090
host = "127.0.0.1"
allowed_origins = ["https://example.com"]
router_urls = ["https://router.example.com"]`,
			want: []string{"registry_path or registry_url is required"},
		},
		{
			name: "router url without scheme",
			content: `port = 9090
host = "127.0.0.1"
allowed_origins = ["https://example.com"]
router_urls = ["router.example.com"]
registry_path = "registry.toml"`,
			want: []string{"router_urls"},
		},
		{
			name:    "every problem reported",
			content: `port = 0`,
			want: []string{
				"port must be between 1 and 65535",
				"host is required",
				"allowed_origins is required",
				"router_urls is required",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearPortalEnv(t)
			path := writeConfig(t, tt.content)

			_, err := config.LoadRPCPortalConfig(&path)
			assert.Error(t, err)
			for _, want := range tt.want {
				assert.True(t, strings.Contains(err.Error(), want))
			}
			t.Logf("%s: %v", tt.name, err)
		})
	}
}

func TestLoadRPCPortalConfig_WrongExtension(t *testing.T) {
	path := "portal.yaml"
	_, err := config.LoadRPCPortalConfig(&path)
	assert.Error(t, err)
}

func TestLoadRPCPortalConfig_FileIgnoresEnv(t *testing.T) {
	clearPortalEnv(t)
	t.Setenv("PORTAL_PORT", "8000")
	t.Setenv("PORTAL_HOST", "0.0.0.0")
	t.Setenv("PORTAL_ROUTER_URLS", "https://router.example.com,https://backup.example.com")

	path := writeConfig(t, `
port = 7000
host = "1.2.3.4"
allowed_origins = ["https://a.com"]
router_urls = ["https://b.com"]
registry_path = "registry.toml"
`)
	cfg, err := config.LoadRPCPortalConfig(&path)
	assert.NoError(t, err)
	assert.Equal(t, cfg.Port, 7000)
	assert.Equal(t, cfg.Host, "1.2.3.4")
	assert.DeepEqual(t, cfg.RouterURLs, []string{"https://b.com"})
}
