// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Launchgate Contributors

// Package config loads service configuration from a YAML file with
// command-line flag overrides.
package config

import (
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/launchgate/launchgate/internal/auth"
	"github.com/launchgate/launchgate/internal/limiter"
)

// Defaults applied when neither file nor flags set a value.
const (
	DefaultListenAddr  = ":7240"
	DefaultMetricsAddr = "127.0.0.1:9101"
	DefaultLogFormat   = "json"
	DefaultKeysDir     = "keys"
	DefaultProfilesDir = "profiles"
)

// Config is the full service configuration.
type Config struct {
	// ListenAddr is the gateway TCP listen address.
	ListenAddr string `koanf:"listen_addr"`

	// MetricsAddr is the metrics/health HTTP address. Empty disables it.
	MetricsAddr string `koanf:"metrics_addr"`

	// LogFormat is "json" or "text".
	LogFormat string `koanf:"log_format"`

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string `koanf:"database_url"`

	// KeysDir holds the server RSA keypair.
	KeysDir string `koanf:"keys_dir"`

	// ProfilesDir holds the client profile YAML files.
	ProfilesDir string `koanf:"profiles_dir"`

	// Provider selects and parameterizes the credential verifier.
	Provider auth.ProviderConfig `koanf:"provider"`

	// Limiter is the IP abuse policy.
	Limiter limiter.IPConfig `koanf:"limiter"`
}

// Load reads configuration from path (optional) and overlays values
// from flags (optional). Flags win over the file, the file wins over
// defaults.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load config file").
				With("path", path).
				Wrap(err)
		}
	}

	if flags != nil {
		// Map kebab-case flag names onto the snake_case config keys.
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("operation", "load flags").
				Wrap(err)
		}
	}

	cfg := &Config{
		ListenAddr:  DefaultListenAddr,
		MetricsAddr: DefaultMetricsAddr,
		LogFormat:   DefaultLogFormat,
		KeysDir:     DefaultKeysDir,
		ProfilesDir: DefaultProfilesDir,
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").
			With("operation", "unmarshal config").
			Wrap(err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return oops.Code("CONFIG_INVALID").
			Errorf("log_format must be json or text, got %q", c.LogFormat)
	}
	return nil
}
