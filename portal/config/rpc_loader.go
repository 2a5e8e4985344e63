package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/Cogwheel-Validator/spectra-xcm-portal/portal/assets"
	"github.com/joho/godotenv"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read in env-only mode, e.g. PORTAL_ROUTER_URLS.
const EnvPrefix = "PORTAL"

// LoadRPCPortalConfig loads the portal server config from the TOML file at configPath,
// or from PORTAL_* environment variables (and a .env file) when configPath is nil.
// Defaults apply in both modes.
func LoadRPCPortalConfig(configPath *string) (*RPCPortalConfig, error) {
	v := viper.New()
	setDefaults(v)

	source := "env"
	if configPath == nil {
		readEnv(v)
	} else {
		source = "file"
		if err := readFile(v, *configPath); err != nil {
			return nil, fmt.Errorf("failed to load file config: %w", err)
		}
	}

	var config RPCPortalConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s config: %w", source, err)
	}
	normalize(&config)
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid %s config: %w", source, err)
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rate_per_minute", 120)
	v.SetDefault("max_concurrent_requests", 100)
	v.SetDefault("service_name", "spectra-xcm-portal")
	v.SetDefault("environment", "LOCAL")
	v.SetDefault("source_default", string(assets.PolicyFirst))
}

func readEnv(v *viper.Viper) {
	// a missing .env file is fine, the variables may come from the container or systemd
	_ = godotenv.Load()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only answers Get; Unmarshal needs every key bound
	for _, key := range configKeys() {
		_ = v.BindEnv(key)
	}
}

// configKeys lists the mapstructure keys of RPCPortalConfig.
func configKeys() []string {
	t := reflect.TypeOf(RPCPortalConfig{})
	keys := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		if key := t.Field(i).Tag.Get("mapstructure"); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}

func readFile(v *viper.Viper, configPath string) error {
	if !strings.HasSuffix(configPath, ".toml") {
		return fmt.Errorf("config file must be a toml file: %s", configPath)
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// normalize trims list entries and drops empty ones. Router URLs lose any trailing slash.
func normalize(config *RPCPortalConfig) {
	trim := func(s string, _ int) string { return strings.TrimSpace(s) }
	config.AllowedOrigins = lo.Compact(lo.Map(config.AllowedOrigins, trim))
	config.RouterURLs = lo.Compact(lo.Map(config.RouterURLs, func(s string, i int) string {
		return strings.TrimRight(trim(s, i), "/")
	}))
	config.SourceDefault = strings.ToLower(strings.TrimSpace(config.SourceDefault))
}

// verifyConfig reports every problem of config at once.
func verifyConfig(config *RPCPortalConfig) error {
	var problems []error

	if config.Port <= 0 || config.Port > 65535 {
		problems = append(problems, errors.New("port must be between 1 and 65535"))
	}
	if config.Host == "" {
		problems = append(problems, errors.New("host is required"))
	}
	if len(config.AllowedOrigins) == 0 {
		problems = append(problems, errors.New("allowed_origins is required"))
	}

	if len(config.RouterURLs) == 0 {
		problems = append(problems, errors.New("router_urls is required"))
	}
	for _, raw := range config.RouterURLs {
		u, err := url.ParseRequestURI(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			problems = append(problems, fmt.Errorf("router_urls: %q is not an http(s) URL", raw))
		}
	}

	if config.RegistryPath == "" && config.RegistryURL == "" {
		problems = append(problems, errors.New("registry_path or registry_url is required"))
	}
	if _, err := assets.ParseDefaultPolicy(config.SourceDefault); err != nil {
		problems = append(problems, fmt.Errorf("source_default: %w", err))
	}

	return errors.Join(problems...)
}
