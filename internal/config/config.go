// Package config loads ludus settings from an optional YAML file, then lets
// LUDUS_* environment variables override individual fields.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given. A missing default
// file is not an error.
const DefaultPath = "ludus.yaml"

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
	BackendLoam   = "loam"
)

// Config is the full runtime configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Artifacts ArtifactsConfig `yaml:"artifacts"`
	Security  SecurityConfig  `yaml:"security"`
	HTTP      HTTPConfig      `yaml:"http"`
	Log       LogConfig       `yaml:"log"`
	Engine    EngineConfig    `yaml:"engine"`
}

// StoreConfig selects where session snapshots live.
type StoreConfig struct {
	Backend string `yaml:"backend" env:"LUDUS_STORE"`
	// Path is the directory of the file store or the sqlite database file.
	Path          string        `yaml:"path" env:"LUDUS_STORE_PATH"`
	RedisAddr     string        `yaml:"redisAddr" env:"LUDUS_REDIS_ADDR"`
	RedisPassword string        `yaml:"redisPassword" env:"LUDUS_REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redisDb" env:"LUDUS_REDIS_DB"`
	RedisPrefix   string        `yaml:"redisPrefix" env:"LUDUS_REDIS_PREFIX"`
	TTL           time.Duration `yaml:"ttl" env:"LUDUS_STORE_TTL"`
}

// ArtifactsConfig selects where artifact sets are published and read.
type ArtifactsConfig struct {
	// Backend is file (a directory of YAML/JSON documents), loam, sqlite or memory.
	Backend  string `yaml:"backend" env:"LUDUS_ARTIFACTS"`
	Path     string `yaml:"path" env:"LUDUS_ARTIFACTS_PATH"`
	ReadOnly bool   `yaml:"readOnly" env:"LUDUS_ARTIFACTS_READ_ONLY"`
}

// SecurityConfig configures the persistence middleware.
type SecurityConfig struct {
	// EncryptionKey is a base64 AES-256 key. Empty disables encryption at rest.
	EncryptionKey string   `yaml:"encryptionKey" env:"LUDUS_ENCRYPTION_KEY"`
	FallbackKeys  []string `yaml:"fallbackKeys" env:"LUDUS_ENCRYPTION_FALLBACK_KEYS" envSeparator:","`
	// PIIPatterns are regular expressions over state keys masked on export.
	PIIPatterns []string `yaml:"piiPatterns" env:"LUDUS_PII_PATTERNS" envSeparator:","`
}

// HTTPConfig configures the serve command.
type HTTPConfig struct {
	Addr    string `yaml:"addr" env:"LUDUS_HTTP_ADDR"`
	Metrics bool   `yaml:"metrics" env:"LUDUS_HTTP_METRICS"`
	// Strict rejects requests that do not match the OpenAPI document.
	Strict bool `yaml:"strict" env:"LUDUS_HTTP_STRICT"`
}

// LogConfig configures the application logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"LUDUS_LOG_LEVEL"`
	Format string `yaml:"format" env:"LUDUS_LOG_FORMAT"`
}

// EngineConfig tunes the session runtime.
type EngineConfig struct {
	LockTTL       time.Duration `yaml:"lockTTL" env:"LUDUS_LOCK_TTL"`
	CacheCapacity int           `yaml:"cacheCapacity" env:"LUDUS_CACHE_CAPACITY"`
	MaxIterations int           `yaml:"maxIterations" env:"LUDUS_MAX_ITERATIONS"`
}

// Default returns the settings used when nothing is configured: sessions in
// .ludus/sessions, artifacts in the working directory.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:     BackendFile,
			Path:        ".ludus/sessions",
			RedisAddr:   "localhost:6379",
			RedisPrefix: "ludus:session:",
		},
		Artifacts: ArtifactsConfig{
			Backend: BackendFile,
			Path:    ".",
		},
		HTTP: HTTPConfig{
			Addr:    ":8080",
			Metrics: true,
			Strict:  true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Engine: EngineConfig{
			LockTTL:       30 * time.Second,
			CacheCapacity: 64,
			MaxIterations: 100,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path means DefaultPath, which may be absent.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(bytes.NewReader(data), cfg); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate rejects unknown backends and nonsensical limits.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis, BackendSQLite:
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	switch c.Artifacts.Backend {
	case BackendMemory, BackendFile, BackendLoam, BackendSQLite:
	default:
		return fmt.Errorf("unknown artifacts backend %q", c.Artifacts.Backend)
	}
	if (c.Store.Backend == BackendFile || c.Store.Backend == BackendSQLite) && c.Store.Path == "" {
		return fmt.Errorf("store backend %q needs a path", c.Store.Backend)
	}
	if c.Artifacts.Backend != BackendMemory && c.Artifacts.Path == "" {
		return fmt.Errorf("artifacts backend %q needs a path", c.Artifacts.Backend)
	}
	if c.Engine.CacheCapacity <= 0 {
		return fmt.Errorf("cache capacity must be positive, got %d", c.Engine.CacheCapacity)
	}
	if c.Engine.MaxIterations <= 0 {
		return fmt.Errorf("max iterations must be positive, got %d", c.Engine.MaxIterations)
	}
	return nil
}
