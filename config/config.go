// CLAUDE:SUMMARY Defines the farmshift service configuration, parses YAML files with defaults and builds the settings source and event sinks from it.
// Package config holds the farmshift service configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/farmshift/settings"
	"github.com/hazyhaar/farmshift/shield"
	"github.com/hazyhaar/farmshift/sink"
)

// Settings source kinds.
const (
	SourceStatic = "static"
	SourceFile   = "file"
	SourceSQLite = "sqlite"
)

// Config is the top-level configuration.
type Config struct {
	Listen    string         `yaml:"listen"`
	LogLevel  string         `yaml:"log_level"`
	Catalog   string         `yaml:"catalog"`
	Settings  SettingsConfig `yaml:"settings"`
	Providers []string       `yaml:"providers"`
	MaxBody   int64          `yaml:"max_body"`
	Browser   BrowserConfig  `yaml:"browser"`
	Reload    bool           `yaml:"reload"`
	Sinks     []SinkConfig   `yaml:"sinks"`

	RateLimits []shield.RateRule `yaml:"rate_limits"`
}

// SettingsConfig selects where user settings come from.
type SettingsConfig struct {
	Source string `yaml:"source"` // static | file | sqlite
	Path   string `yaml:"path"`
}

// BrowserConfig controls page acquisition for URLs.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Timeout          time.Duration `yaml:"timeout"`
	Stealth          bool          `yaml:"stealth"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
}

// SinkConfig defines an event output.
type SinkConfig struct {
	Type    string `yaml:"type"` // stdout | webhook
	URL     string `yaml:"url"`
	Retries int    `yaml:"retries"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used without a file.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Settings.Source == "" {
		c.Settings.Source = SourceStatic
	}
	if len(c.Providers) == 0 {
		c.Providers = []string{"google", "ddg"}
	}
	if c.MaxBody <= 0 {
		c.MaxBody = 8 << 20
	}
	if c.Browser.Timeout <= 0 {
		c.Browser.Timeout = 30 * time.Second
	}
}

func (c *Config) validate() error {
	switch c.Settings.Source {
	case SourceStatic:
	case SourceFile, SourceSQLite:
		if c.Settings.Path == "" {
			return fmt.Errorf("config: settings source %q needs a path", c.Settings.Source)
		}
	default:
		return fmt.Errorf("config: unknown settings source %q", c.Settings.Source)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sink %d: webhook needs a url", i)
			}
		default:
			return fmt.Errorf("config: sink %d: unknown type %q", i, s.Type)
		}
	}
	return nil
}

// Level parses LogLevel; unknown values mean info.
func (c *Config) Level() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// SettingsSource opens the configured settings source. The returned closer
// releases the SQLite store and is a no-op otherwise.
func (c *Config) SettingsSource() (settings.Source, io.Closer, error) {
	switch c.Settings.Source {
	case SourceFile:
		return settings.File{Path: c.Settings.Path}, nopCloser{}, nil
	case SourceSQLite:
		st, err := settings.OpenStore(c.Settings.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("config: %w", err)
		}
		return st, st, nil
	}
	return settings.Static{}, nopCloser{}, nil
}

// Sink builds the event router for the configured sinks.
func (c *Config) Sink(logger *slog.Logger) *sink.Router {
	var sinks []sink.Sink
	for _, s := range c.Sinks {
		switch s.Type {
		case "stdout":
			sinks = append(sinks, sink.NewWriter(nil))
		case "webhook":
			opts := []sink.WebhookOption{sink.WithWebhookLogger(logger)}
			if s.Retries > 0 {
				opts = append(opts, sink.WithWebhookRetries(s.Retries))
			}
			sinks = append(sinks, sink.NewWebhook(s.URL, opts...))
		}
	}
	return sink.NewRouter(logger, sinks...)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
