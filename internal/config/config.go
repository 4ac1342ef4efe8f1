// Package config loads flowbuilder settings from a YAML file, an optional
// .env file and FLOWBUILDER_* environment variables, in that order of
// increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Environment variables that override file settings.
const (
	EnvDatabase = "FLOWBUILDER_DB"
	EnvBackend  = "FLOWBUILDER_BACKEND"
	EnvRedisURL = "REDIS_URL"
	EnvListen   = "FLOWBUILDER_ADDR"
	EnvLogLevel = "FLOWBUILDER_LOG_LEVEL"
)

// Config is the full set of settings.
type Config struct {
	Backend     string `yaml:"backend"`
	Database    string `yaml:"database"`
	RedisURL    string `yaml:"redis_url"`
	RedisPrefix string `yaml:"redis_prefix"`
	Listen      string `yaml:"listen"`
	PaletteDir  string `yaml:"palette_dir"`

	Status StatusConfig `yaml:"status"`
	Graph  GraphConfig  `yaml:"graph"`
	Log    LogConfig    `yaml:"log"`
}

// StatusConfig sets how long save messages stay visible.
type StatusConfig struct {
	SuccessAfter time.Duration `yaml:"success_after"`
	FailureAfter time.Duration `yaml:"failure_after"`
}

// GraphConfig tunes the connection policy and edit strictness.
type GraphConfig struct {
	AllowSelfLoops bool `yaml:"allow_self_loops"`
	StrictUpdates  bool `yaml:"strict_updates"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Backend:     BackendSQLite,
		Database:    "flowbuilder.db",
		RedisPrefix: "flowbuilder:",
		Listen:      "127.0.0.1:8080",
		Status: StatusConfig{
			SuccessAfter: 3 * time.Second,
			FailureAfter: 5 * time.Second,
		},
		Graph: GraphConfig{AllowSelfLoops: true},
		Log:   LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds a Config. path may be empty to skip the YAML file. envFile
// is loaded with godotenv when it exists; a missing envFile is only an
// error when requireEnv is set.
func Load(path, envFile string, requireEnv bool) (Config, error) {
	cfg := Default()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if requireEnv || !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decode parses YAML over cfg, rejecting unknown keys. An empty document
// leaves cfg unchanged.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBackend); ok && v != "" {
		c.Backend = v
	}
	if v, ok := lookup(EnvDatabase); ok && v != "" {
		c.Database = v
	}
	if v, ok := lookup(EnvRedisURL); ok && v != "" {
		c.RedisURL = v
	}
	if v, ok := lookup(EnvListen); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
}

// Validate checks field values.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendSQLite:
		if c.Database == "" {
			return errors.New("config: database path required for sqlite backend")
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("config: redis_url required for redis backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("config: unknown backend %q (want sqlite, redis or memory)", c.Backend)
	}

	if c.Status.SuccessAfter <= 0 || c.Status.FailureAfter <= 0 {
		return errors.New("config: status durations must be positive")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.Log.Format)
	}
	return nil
}
