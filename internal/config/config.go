// Package config loads process settings from the environment and command
// line flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config is the process configuration. Every field has an environment
// variable; the CLI may override them with flags.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `env:"PRESENTER_DB_PATH" envDefault:"presenter.db"`
	// Descriptors is a descriptor YAML file. Empty uses the built-in blog
	// descriptors.
	Descriptors string `env:"PRESENTER_DESCRIPTORS"`
	LogLevel    string `env:"PRESENTER_LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"PRESENTER_LOG_FORMAT" envDefault:"text"`
	// Concurrency caps each projector fan-out stage; 0 means no cap.
	Concurrency  int    `env:"PRESENTER_CONCURRENCY" envDefault:"0"`
	OTelEndpoint string `env:"PRESENTER_OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"PRESENTER_OTEL_ENABLED" envDefault:"true"`
}

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	return nil
}

// RegisterFlags binds flags to cfg, using its current values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.DBPath, "db", c.DBPath, "SQLite database path")
	fs.StringVar(&c.Descriptors, "descriptors", c.Descriptors, "descriptor YAML file (default: built-in blog descriptors)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: debug, info, warn, error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "log format: text or json")
	fs.IntVar(&c.Concurrency, "concurrency", c.Concurrency, "max goroutines per fan-out stage (0 = unlimited)")
}

// ParseFromArgs loads defaults from the environment, then parses args with
// fs so flags win over the environment.
func ParseFromArgs(cfg *Config, fs *flag.FlagSet, args []string) error {
	if cfg == nil {
		return errors.New("config target is required")
	}

	if err := ParseEnv(cfg); err != nil {
		return err
	}

	cfg.RegisterFlags(fs)

	if args == nil {
		args = []string{}
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	return cfg.Validate()
}

// Validate checks the settings that have a closed set of values.
func (c Config) Validate() error {
	var errs []error

	switch strings.ToLower(c.LogFormat) {
	case FormatText, FormatJSON:
	default:
		errs = append(errs, fmt.Errorf("log format must be %q or %q, got %q", FormatText, FormatJSON, c.LogFormat))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}

	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}

	return errors.Join(errs...)
}

// TracingEnabled reports whether spans should be exported.
func (c Config) TracingEnabled() bool {
	return c.OTelEnabled && strings.TrimSpace(c.OTelEndpoint) != ""
}
