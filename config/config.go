// Package config holds the runtime configuration for the flow engine
// server: HTTP address, storage backend, cache TTL and logging.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5m" parse directly.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Storage selects and configures the persistence backend.
type Storage struct {
	// Driver is one of "postgres", "sqlite" or "memory".
	Driver string `yaml:"driver"`
	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn"`
	// Path is the SQLite database file.
	Path string `yaml:"path"`
}

// Log configures structured logging output.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Cache configures the flow read cache.
type Cache struct {
	TTL Duration `yaml:"ttl"`
}

// Config is the full server configuration.
type Config struct {
	Addr    string  `yaml:"addr"`
	Storage Storage `yaml:"storage"`
	Cache   Cache   `yaml:"cache"`
	Log     Log     `yaml:"log"`
}

// Default returns the configuration used when no file or environment
// overrides are present.
func Default() Config {
	return Config{
		Addr: ":8080",
		Storage: Storage{
			Driver: "memory",
			Path:   "botflow.db",
		},
		Cache: Cache{TTL: Duration(5 * time.Minute)},
		Log:   Log{Level: "info", Format: "text"},
	}
}

// Load builds the configuration from defaults, an optional YAML file
// and environment overrides, in that order of precedence.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("BOTFLOW_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("BOTFLOW_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
		if os.Getenv("BOTFLOW_STORAGE_DRIVER") == "" {
			c.Storage.Driver = "postgres"
		}
	}
	if v := os.Getenv("BOTFLOW_SQLITE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("BOTFLOW_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Cache.TTL = Duration(d)
		}
	}
	if v := os.Getenv("BOTFLOW_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("BOTFLOW_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage driver %q requires a dsn", c.Storage.Driver)
		}
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage driver %q requires a path", c.Storage.Driver)
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative")
	}
	return nil
}
