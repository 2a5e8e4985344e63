package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	getter "github.com/hashicorp/go-getter"
	"github.com/pelletier/go-toml/v2"
)

// ValidationError contains details about a registry validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// FileReader defines the interface for reading files
type FileReader interface {
	// ReadFile reads the file at the given path and returns the contents
	ReadFile(path string) ([]byte, error)
}

// DefaultFileReader implements FileReader using os.ReadFile
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// RegistryLoader wraps a FileReader to provide dependency injection for registry loading
type RegistryLoader struct {
	fileReader FileReader
}

// NewRegistryLoader creates a new RegistryLoader with the given FileReader
func NewRegistryLoader(fileReader FileReader) *RegistryLoader {
	return &RegistryLoader{fileReader: fileReader}
}

// NewDefaultRegistryLoader creates a RegistryLoader with the default file reader
func NewDefaultRegistryLoader() *RegistryLoader {
	return NewRegistryLoader(&DefaultFileReader{})
}

// LoadFromFile reads a TOML or JSON registry and validates it.
func (l *RegistryLoader) LoadFromFile(path string) (*Registry, error) {
	body, err := l.fileReader.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file: %w", err)
	}

	var registry Registry
	switch {
	case strings.HasSuffix(path, ".json"):
		if err := json.Unmarshal(body, &registry); err != nil {
			return nil, fmt.Errorf("failed to parse JSON registry: %w", err)
		}
	case strings.HasSuffix(path, ".toml"):
		if err := toml.Unmarshal(body, &registry); err != nil {
			return nil, fmt.Errorf("failed to parse TOML registry: %w", err)
		}
	default:
		return nil, fmt.Errorf("registry file must be a toml or json file")
	}

	if err := registry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid registry: %w", err)
	}
	return &registry, nil
}

// FetchRegistry downloads the registry at src into dstDir and returns the local file path.
// src may be any go-getter source, e.g. an https URL or a GitHub path.
func FetchRegistry(ctx context.Context, src, dstDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 120*time.Second)
	defer cancel()

	name := filepath.Base(strings.SplitN(src, "?", 2)[0])
	if !strings.HasSuffix(name, ".toml") && !strings.HasSuffix(name, ".json") {
		name = "registry.toml"
	}
	dst := filepath.Join(dstDir, name)
	pwd, _ := os.Getwd()

	opts := getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Pwd:  pwd,
		Mode: getter.ClientModeFile,
		Detectors: []getter.Detector{
			&getter.GitHubDetector{},
			&getter.FileDetector{},
		},
		Getters: map[string]getter.Getter{
			"file":  &getter.FileGetter{Copy: true},
			"http":  &getter.HttpGetter{},
			"https": &getter.HttpGetter{},
			"git":   &getter.GitGetter{},
		},
	}
	if err := opts.Get(); err != nil {
		return "", fmt.Errorf("failed to download registry: %w", err)
	}
	return dst, nil
}

// LoadRegistry loads the registry configured by cfg, fetching it first when only a URL is set.
func LoadRegistry(ctx context.Context, cfg *RPCPortalConfig) (*Registry, error) {
	path := cfg.RegistryPath
	if path == "" {
		dir, err := os.MkdirTemp("", "portal-registry-")
		if err != nil {
			return nil, fmt.Errorf("failed to create registry dir: %w", err)
		}
		path, err = FetchRegistry(ctx, cfg.RegistryURL, dir)
		if err != nil {
			return nil, err
		}
	}
	return NewDefaultRegistryLoader().LoadFromFile(path)
}
