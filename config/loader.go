// Package config loads client configuration files for the command line
// tools. Files are YAML, TOML or JSON, chosen by extension, and values
// may be overridden from the environment with a prefix, e.g.
// RPCSESSION_CREDENTIALS__SECRET sets credentials.secret.
package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	goconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-rpcsession/core"
)

// DefaultEnvPrefix is the environment prefix used by NewFileLoader.
const DefaultEnvPrefix = "RPCSESSION_"

// envDelimiter separates nested keys in environment variable names.
const envDelimiter = "__"

// FileLoader implements core.RawConfigLoader over a single file plus
// prefixed environment overrides.
type FileLoader struct {
	Path string
	// EnvPrefix selects override variables; empty disables them.
	EnvPrefix string
}

func NewFileLoader(path string) *FileLoader {
	return &FileLoader{Path: path, EnvPrefix: DefaultEnvPrefix}
}

// document is the container type the providers are built for. Values are
// read back as a raw map, so it carries no fields.
type document struct{}

func (document) Validate() error { return nil }

func (l *FileLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	if l == nil || strings.TrimSpace(l.Path) == "" {
		return nil, fmt.Errorf("config: file path is required")
	}
	if !Supported(filepath.Ext(l.Path)) {
		return nil, fmt.Errorf("config: unsupported config file type %q", filepath.Ext(l.Path))
	}

	container := goconfig.New(document{})
	builders := []goconfig.ProviderBuilder[document]{goconfig.FileProvider[document](l.Path)}
	if l.EnvPrefix != "" {
		builders = append(builders, goconfig.EnvProvider[document](l.EnvPrefix, envDelimiter))
	}
	// providers load straight into the container's koanf instance; the
	// decode and solver stages of Container.Load are not needed here.
	for _, build := range builders {
		provider, err := build(container)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := provider.Load(ctx, container.K); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", l.Path, err)
		}
	}
	return container.K.Raw(), nil
}

// Supported reports whether ext names a config file type the loader reads.
func Supported(ext string) bool {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), ".")) {
	case "yaml", "yml", "toml", "json":
		return true
	default:
		return false
	}
}

// Section returns the nested map stored under key, or an empty map.
func Section(values map[string]any, key string) map[string]any {
	switch typed := values[key].(type) {
	case map[string]any:
		return typed
	case map[any]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[fmt.Sprint(k)] = v
		}
		return out
	default:
		return map[string]any{}
	}
}

var _ core.RawConfigLoader = (*FileLoader)(nil)
