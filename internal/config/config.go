/*
Package config loads server configuration from a TOML file with flag and
default fallbacks.

PRECEDENCE:
  command-line flags > config file > defaults

The timezone is the single most important setting: it is the studio's
operating timezone, the one place wall-clock instants become calendar days.
Every date the engine stores or compares is a calendar day in this zone.

EXAMPLE (coverage.toml):

  listen_addr = ":8080"
  db_path     = "./data/coverage.db"
  timezone    = "Australia/Sydney"

  [engine]
  horizon_weeks    = 104
  max_retries      = 3
  refresh_interval = "1h"

  [log]
  level = "info"
*/
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddr string `toml:"listen_addr"`
	DBPath     string `toml:"db_path"`
	Timezone   string `toml:"timezone"`

	Engine EngineConfig `toml:"engine"`
	Log    LogConfig    `toml:"log"`
}

type EngineConfig struct {
	HorizonWeeks    int      `toml:"horizon_weeks"`
	MaxRetries      int      `toml:"max_retries"`
	RefreshInterval duration `toml:"refresh_interval"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// duration lets TOML carry values like "90m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		DBPath:     "coverage.db",
		Timezone:   "Australia/Sydney",
		Engine: EngineConfig{
			HorizonWeeks:    104,
			MaxRetries:      3,
			RefreshInterval: duration{1 * time.Hour},
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the TOML file at path on top of the defaults. A missing file is
// not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.Engine.HorizonWeeks <= 0 {
		return fmt.Errorf("horizon_weeks must be positive, got %d", c.Engine.HorizonWeeks)
	}
	return nil
}

// Location resolves the configured timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// RefreshInterval returns the snapshot refresh cadence.
func (c Config) RefreshInterval() time.Duration {
	return c.Engine.RefreshInterval.Duration
}
