// Package config loads service configuration from an optional YAML file with
// environment overrides for secrets.
package config

import (
	"errors"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full service configuration.
type Config struct {
	Addr       string        `koanf:"addr"`
	DSN        string        `koanf:"dsn"`
	Passphrase string        `koanf:"passphrase"` // field-encryption passphrase
	SignKey    string        `koanf:"sign_key"`   // HS256 owner-token key
	RateLimit  RateLimit     `koanf:"rate_limit"`
	Sweep      Sweep         `koanf:"sweep"`
	Payments   Payments      `koanf:"payments"`
	Shutdown   time.Duration `koanf:"shutdown_timeout"`
}

// RateLimit configures the gate's failure window.
type RateLimit struct {
	Window   time.Duration `koanf:"window"`
	MaxFails int           `koanf:"max_fails"`
}

// Payments selects the charge/refund backend by name.
type Payments struct {
	Provider string `koanf:"provider"`
}

// Sweep configures the stale-reservation reclaim job.
type Sweep struct {
	Interval time.Duration `koanf:"interval"`
	MaxAge   time.Duration `koanf:"max_age"`
}

// Default returns the baked-in defaults; only the DSN and the two secrets are
// mandatory.
func Default() *Config {
	return &Config{
		Addr: ":8080",
		RateLimit: RateLimit{
			Window:   15 * time.Minute,
			MaxFails: 5,
		},
		Sweep: Sweep{
			Interval: time.Minute,
			MaxAge:   15 * time.Minute,
		},
		Payments: Payments{Provider: "dev"},
		Shutdown: 5 * time.Second,
	}
}

// Load merges defaults, an optional YAML file, and environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
		if err := k.Unmarshal("", cfg); err != nil {
			return nil, err
		}
	}

	// Secrets come from the environment in preference to the file.
	if v := os.Getenv("FLASHMENU_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("FLASHMENU_PASSPHRASE"); v != "" {
		cfg.Passphrase = v
	}
	if v := os.Getenv("FLASHMENU_SIGN_KEY"); v != "" {
		cfg.SignKey = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the mandatory settings.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return errors.New("config: dsn is required")
	}
	if c.Passphrase == "" {
		return errors.New("config: passphrase is required")
	}
	if c.SignKey == "" {
		return errors.New("config: sign_key is required")
	}
	return nil
}
