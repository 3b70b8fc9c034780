// Package config loads the eventstore server configuration from defaults, an optional YAML file
// and EVENTSTORE_ environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rmacdonaldsmith/eventstore-go/pkg/eventstore"
)

// EnvPrefix is the prefix of environment overrides. EVENTSTORE_SERVER__PORT maps to server.port.
const EnvPrefix = "EVENTSTORE_"

// Config is the top-level server configuration.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Auth    AuthConfig    `koanf:"auth"`
	Store   StoreConfig   `koanf:"store"`
	Log     LogConfig     `koanf:"log"`
	Metrics MetricsConfig `koanf:"metrics"`
	GRPC    GRPCConfig    `koanf:"grpc"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type AuthConfig struct {
	SecretKey string        `koanf:"secret_key"`
	Disabled  bool          `koanf:"disabled"` // development mode: every request is "dev-client"
	TokenTTL  time.Duration `koanf:"token_ttl"`
}

type StoreConfig struct {
	Ordering string `koanf:"ordering"` // sort | reject
	Mode     string `koanf:"mode"`     // snapshot | live
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json | text
}

type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

type GRPCConfig struct {
	// HealthAddress is the listen address of the gRPC health service; empty disables it
	HealthAddress string `koanf:"health_address"`
}

// Address returns the HTTP listen address.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// OrderingPolicy returns the parsed store ordering policy.
func (c StoreConfig) OrderingPolicy() (eventstore.OrderingPolicy, error) {
	return eventstore.ParseOrderingPolicy(c.Ordering)
}

// IterationMode returns the parsed default iteration mode.
func (c StoreConfig) IterationMode() (eventstore.IterationMode, error) {
	return eventstore.ParseIterationMode(c.Mode)
}

// SlogLevel returns the parsed log level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return 0, fmt.Errorf("invalid log.level %q: %w", c.Level, err)
	}
	return level, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.read_timeout and server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if !c.Auth.Disabled && strings.TrimSpace(c.Auth.SecretKey) == "" {
		return fmt.Errorf("auth.secret_key is required unless auth.disabled is set")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be > 0")
	}

	if _, err := c.Store.OrderingPolicy(); err != nil {
		return fmt.Errorf("invalid store.ordering: %w", err)
	}
	if _, err := c.Store.IterationMode(); err != nil {
		return fmt.Errorf("invalid store.mode: %w", err)
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log.format %q (must be json or text)", c.Log.Format)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path)
	}

	return nil
}

// Load parses config from defaults, then the file at configPath (if non-empty), then env vars,
// and validates the result.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.host":             "0.0.0.0",
		"server.port":             8081,
		"server.read_timeout":     "30s",
		"server.write_timeout":    "30s",
		"server.shutdown_timeout": "30s",
		"auth.secret_key":         "",
		"auth.disabled":           false,
		"auth.token_ttl":          "24h",
		"store.ordering":          "sort",
		"store.mode":              "snapshot",
		"log.level":               "info",
		"log.format":              "json",
		"metrics.enabled":         true,
		"metrics.path":            "/metrics",
		"grpc.health_address":     "",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Watch reloads the file at configPath whenever it changes and passes the result to onChange.
// The returned function stops watching.
func Watch(configPath string, onChange func(*Config, error)) (func() error, error) {
	provider := file.Provider(configPath)

	err := provider.Watch(func(event interface{}, err error) {
		if err != nil {
			onChange(nil, fmt.Errorf("config watch failed: %w", err))
			return
		}
		onChange(Load(configPath))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	return provider.Unwatch, nil
}
