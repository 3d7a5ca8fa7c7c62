// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the relay's configuration.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Server configures the client-facing websocket listener.
	Server ServerConfig `yaml:"server"`

	// Upstream configures the replication feed.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Logging configures the process logger.
	Logging LoggingConfig `yaml:"logging"`

	// Per-environment overrides, applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
// Zero values do not override.
type ConfigOverrides struct {
	Server   *ServerConfig   `yaml:"server,omitempty"`
	Upstream *UpstreamConfig `yaml:"upstream,omitempty"`
	Logging  *LoggingConfig  `yaml:"logging,omitempty"`
}

// ServerConfig configures the websocket listener.
type ServerConfig struct {
	// Host is the listen host. Default: localhost
	Host string `yaml:"host"`

	// Port is the listen port. Default: 8081
	Port int `yaml:"port"`

	// WriteTimeout bounds each message written to a client. Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// CloseGracePeriod is how long a closing session waits for the
	// client's close frame before dropping the connection. Default: 5s
	CloseGracePeriod time.Duration `yaml:"close_grace_period"`
}

// UpstreamConfig configures the replication feed.
type UpstreamConfig struct {
	// RedisURL locates the pub/sub server (redis:// or rediss://).
	// Default: ${REDIS_URL:-redis://localhost:6379/3}
	RedisURL string `yaml:"redis_url"`

	// Pattern is the PSUBSCRIBE glob. Default: test:tutsess.*
	Pattern string `yaml:"pattern"`

	// HeaderSize is the number of opaque bytes before each envelope.
	// Default: 4
	HeaderSize int `yaml:"header_size"`

	// Format is the envelope encoding: json or cbor. Default: json
	Format string `yaml:"format"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Default: info
	Level string `yaml:"level"`

	// Format is text or json. Default: text (development), json (production)
	Format string `yaml:"format"`
}

// Default returns the default configuration, used as the base before
// a config file is loaded and on its own when no file is given.
func Default() *Config {
	return &Config{
		Environment: Development,
		Server: ServerConfig{
			Host:             "localhost",
			Port:             8081,
			WriteTimeout:     10 * time.Second,
			CloseGracePeriod: 5 * time.Second,
		},
		Upstream: UpstreamConfig{
			RedisURL:   "${REDIS_URL:-redis://localhost:6379/3}",
			Pattern:    "test:tutsess.*",
			HeaderSize: 4,
			Format:     "json",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the file named by RELAY_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("RELAY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("RELAY_CONFIG environment variable not set; " +
			"set it to the path of your relay.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.Finish()
	return cfg, nil
}

// Finish applies environment overrides and variable expansion. LoadFile
// calls it; callers building a Config from Default must call it
// themselves.
func (c *Config) Finish() {
	c.applyEnvironmentOverrides()
	c.expandVariables()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: machine-readable logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Logging: &LoggingConfig{Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Server != nil {
		if overrides.Server.Host != "" {
			c.Server.Host = overrides.Server.Host
		}
		if overrides.Server.Port != 0 {
			c.Server.Port = overrides.Server.Port
		}
		if overrides.Server.WriteTimeout != 0 {
			c.Server.WriteTimeout = overrides.Server.WriteTimeout
		}
		if overrides.Server.CloseGracePeriod != 0 {
			c.Server.CloseGracePeriod = overrides.Server.CloseGracePeriod
		}
	}

	if overrides.Upstream != nil {
		if overrides.Upstream.RedisURL != "" {
			c.Upstream.RedisURL = overrides.Upstream.RedisURL
		}
		if overrides.Upstream.Pattern != "" {
			c.Upstream.Pattern = overrides.Upstream.Pattern
		}
		if overrides.Upstream.HeaderSize != 0 {
			c.Upstream.HeaderSize = overrides.Upstream.HeaderSize
		}
		if overrides.Upstream.Format != "" {
			c.Upstream.Format = overrides.Upstream.Format
		}
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in the redis URL,
// the only field that commonly carries credentials.
func (c *Config) expandVariables() {
	c.Upstream.RedisURL = expandVars(c.Upstream.RedisURL)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		if len(parts) >= 3 {
			return parts[2]
		}
		return ""
	})
}

// Address returns the listen address in host:port form.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Server.Host == "" {
		errs = append(errs, errors.New("server.host is required"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, errors.New("server.write_timeout must be positive"))
	}
	if c.Server.CloseGracePeriod <= 0 {
		errs = append(errs, errors.New("server.close_grace_period must be positive"))
	}

	if !strings.HasPrefix(c.Upstream.RedisURL, "redis://") && !strings.HasPrefix(c.Upstream.RedisURL, "rediss://") {
		errs = append(errs, fmt.Errorf("upstream.redis_url must be a redis:// or rediss:// URL, got %q", c.Upstream.RedisURL))
	}
	if c.Upstream.Pattern == "" {
		errs = append(errs, errors.New("upstream.pattern is required"))
	}
	if c.Upstream.HeaderSize < 0 {
		errs = append(errs, fmt.Errorf("upstream.header_size must not be negative: %d", c.Upstream.HeaderSize))
	}
	if !contains([]string{"json", "cbor"}, c.Upstream.Format) {
		errs = append(errs, fmt.Errorf("upstream.format must be one of: [json cbor], got %q", c.Upstream.Format))
	}

	if _, err := c.Logging.level(); err != nil {
		errs = append(errs, err)
	}
	if !contains([]string{"text", "json"}, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: [text json], got %q", c.Logging.Format))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func (l LoggingConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// Handler returns a slog handler writing to w in the configured format
// at the configured level.
func (l LoggingConfig) Handler(w io.Writer) (slog.Handler, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}
	options := &slog.HandlerOptions{Level: level}
	switch l.Format {
	case "json":
		return slog.NewJSONHandler(w, options), nil
	case "text", "":
		return slog.NewTextHandler(w, options), nil
	default:
		return nil, fmt.Errorf("logging.format: unknown format %q", l.Format)
	}
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
