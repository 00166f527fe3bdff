// Package config loads the project configuration from trip.yaml plus an
// optional .env overlay. Loading, defaulting and validation are separate
// steps; Load runs all three.
package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "github.com/tripjs/trip/internal/foundation/errors"
	"github.com/tripjs/trip/internal/snapshot"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "trip.yaml"

// Config is the on-disk project configuration. Environment references of the
// form ${VAR} in the YAML are expanded before parsing.
type Config struct {
	Source    string   `yaml:"source"`
	Dest      string   `yaml:"dest"`
	Filter    []string `yaml:"filter,omitempty"`
	ByteLimit int64    `yaml:"byte_limit,omitempty"`

	// Interval is the optional periodic-rebuild cadence in watch mode,
	// e.g. "30s". Empty disables scheduled rebuilds.
	Interval string `yaml:"interval,omitempty"`

	// Waypoints names stock pipeline stages to run in order.
	Waypoints []string `yaml:"waypoints,omitempty"`

	// Optional integrations.
	MetricsListen string `yaml:"metrics_listen,omitempty"`
	NATSURL       string `yaml:"nats_url,omitempty"`
	HistoryDB     string `yaml:"history_db,omitempty"`
}

// Default returns the configuration used when no trip.yaml exists.
func Default() *Config {
	return &Config{Source: "src", Dest: "dist"}
}

// Load reads path, expands environment references and validates the result.
// A missing file yields the defaults; a missing .env is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "load .env overlay").Build()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "read config file").
			WithContext("path", path).Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		if classified, ok := ferrors.AsClassified(err); ok {
			return nil, classified.WithContext("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes and validates raw YAML config bytes.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "parse config file").Build()
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Source == "" {
		c.Source = "src"
	}
	if c.Dest == "" {
		c.Dest = "dist"
	}
}

func (c *Config) validate() error {
	if c.ByteLimit < 0 {
		return ferrors.ConfigError("byte limit must be positive when set").
			WithContext("byte_limit", c.ByteLimit).Build()
	}
	if _, err := c.RebuildInterval(); err != nil {
		return err
	}
	if _, err := c.SnapshotFilter(); err != nil {
		return err
	}
	return nil
}

// RebuildInterval parses the interval field. Zero means disabled.
func (c *Config) RebuildInterval() (time.Duration, error) {
	if c.Interval == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Interval)
	if err != nil {
		return 0, ferrors.WrapError(err, ferrors.CategoryConfig, "parse rebuild interval").
			WithContext("interval", c.Interval).Build()
	}
	if d <= 0 {
		return 0, ferrors.ConfigError("rebuild interval must be positive").
			WithContext("interval", c.Interval).Build()
	}
	return d, nil
}

// SnapshotFilter compiles the filter globs. Nil means no filtering.
func (c *Config) SnapshotFilter() (*snapshot.Filter, error) {
	if len(c.Filter) == 0 {
		return nil, nil
	}
	filter, err := snapshot.NewFilter(c.Filter)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "compile filter globs").Build()
	}
	return filter, nil
}
