// Package config loads rpmdeplint's ambient configuration: a cache location
// override and an optional default --arch value, layered as defaults → an
// optional YAML file → environment variables, in that precedence order.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "RPMDEPLINT_"

// Config is rpmdeplint's ambient configuration.
//
// The sweep expiry itself is read directly from RPMDEPLINT_EXPIRY_SECONDS by
// [internal/cache.ExpiryFromEnv], per the spec's literal environment
// contract; this layer only supplies a cache directory override and default
// CLI values, which have no such fixed single-env-var contract.
type Config struct {
	Cache struct {
		Dir string `koanf:"dir"`
	} `koanf:"cache"`
	Defaults struct {
		Arch string `koanf:"arch"`
	} `koanf:"defaults"`
}

// Loader assembles a Config from defaults, an optional file, and the
// environment.
type Loader struct {
	k          *koanf.Koanf
	configPath string
}

// NewLoader returns a Loader which will read configPath if non-empty (the
// file is optional; a missing path is not an error).
func NewLoader(configPath string) *Loader {
	return &Loader{k: koanf.New("."), configPath: configPath}
}

// Load runs the defaults → file → env pipeline and unmarshals the result.
func (l *Loader) Load() (*Config, error) {
	if err := l.loadDefaults(); err != nil {
		return nil, fmt.Errorf("internal/config: loading defaults: %w", err)
	}
	if err := l.loadConfigFile(); err != nil {
		return nil, fmt.Errorf("internal/config: loading config file: %w", err)
	}
	if err := l.loadEnv(); err != nil {
		return nil, fmt.Errorf("internal/config: loading environment: %w", err)
	}

	var cfg Config
	if err := l.k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("internal/config: unmarshaling: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) loadDefaults() error {
	defaults := map[string]any{
		"cache.dir":     "",
		"defaults.arch": "",
	}
	return l.k.Load(confmap.Provider(defaults, "."), nil)
}

func (l *Loader) loadConfigFile() error {
	if l.configPath == "" {
		return nil
	}
	if _, err := os.Stat(l.configPath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return l.k.Load(file.Provider(l.configPath), yaml.Parser())
}

func (l *Loader) loadEnv() error {
	return l.k.Load(env.Provider(envPrefix, ".", func(s string) string {
		// RPMDEPLINT_CACHE_DIR -> cache.dir
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil)
}

// Load is a convenience wrapper for NewLoader(configPath).Load().
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}
