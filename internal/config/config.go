/*
Package config loads kimo configuration.

Values are layered, lowest priority first:

 1. built-in defaults (Default)
 2. a YAML file: $KIMO_CONFIG, else ~/.kimo/config.yaml, else ./kimo.yaml
 3. environment variables prefixed KIMO_, with "__" separating sections,
    e.g. KIMO_RANKING__DECAY_FACTOR=0.9 or KIMO_SERVER__ADDR=:9090

The merged result is validated before it is returned.
*/
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/khanglvm/kimo/internal/logger"
	"github.com/khanglvm/kimo/internal/personalize"
	"github.com/khanglvm/kimo/internal/search"
	"github.com/khanglvm/kimo/internal/summarize"
)

// Config is the root configuration.
type Config struct {
	DataDir   string                    `koanf:"data_dir"`
	Log       logger.Config             `koanf:"log"`
	Storage   StorageConfig             `koanf:"storage"`
	Cache     CacheConfig               `koanf:"cache"`
	Ranking   personalize.Options       `koanf:"ranking"`
	Tracker   personalize.TrackerConfig `koanf:"tracker"`
	Retention RetentionConfig           `koanf:"retention"`
	Search    SearchConfig              `koanf:"search"`
	Summarize summarize.Config          `koanf:"summarize"`
	Server    ServerConfig              `koanf:"server"`
}

// StorageConfig locates the SQLite database.
type StorageConfig struct {
	// Path defaults to <data_dir>/kimo.db.
	Path string `koanf:"path"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Backend string `koanf:"backend" validate:"oneof=sqlite badger"`

	// BadgerDir defaults to <data_dir>/cache. Ignored for sqlite.
	BadgerDir string `koanf:"badger_dir"`
}

// RetentionConfig controls the history sweep.
type RetentionConfig struct {
	MaxAge        time.Duration `koanf:"max_age" validate:"gt=0"`
	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`
}

// SearchConfig configures the providers and query handling.
type SearchConfig struct {
	Timeout    time.Duration         `koanf:"timeout" validate:"gte=0"`
	DuckDuckGo search.ProviderConfig `koanf:"duckduckgo"`
	Wikipedia  search.ProviderConfig `koanf:"wikipedia"`
	Google     search.ProviderConfig `koanf:"google"`
}

// ServerConfig configures the local HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	RateLimit       int           `koanf:"rate_limit" validate:"gte=0"`
	RateWindow      time.Duration `koanf:"rate_window" validate:"gte=0"`
}

// DefaultDataDir returns ~/.kimo, or ./.kimo when the home directory is
// unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kimo"
	}
	return filepath.Join(home, ".kimo")
}

// Default returns the built-in configuration.
func Default() *Config {
	provider := func(rps float64) search.ProviderConfig {
		return search.ProviderConfig{
			Enabled:       true,
			Timeout:       10 * time.Second,
			RatePerSecond: rps,
			Burst:         1,
			MaxResults:    10,
		}
	}
	google := provider(1)
	google.Enabled = false

	return &Config{
		DataDir: DefaultDataDir(),
		Log: logger.Config{
			Level:       "info",
			OutputPaths: []string{"stderr"},
		},
		Cache: CacheConfig{
			Backend: "sqlite",
		},
		Ranking: personalize.DefaultOptions(),
		Tracker: personalize.TrackerConfig{
			QueueSize:     1000,
			BatchSize:     10,
			FlushInterval: 50 * time.Millisecond,
		},
		Retention: RetentionConfig{
			MaxAge:        30 * 24 * time.Hour,
			SweepInterval: time.Hour,
		},
		Search: SearchConfig{
			Timeout:    8 * time.Second,
			DuckDuckGo: provider(1),
			Wikipedia:  provider(5),
			Google:     google,
		},
		Summarize: summarize.DefaultConfig(),
		Server: ServerConfig{
			Addr:            "127.0.0.1:8787",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"*"},
			RateLimit:       120,
			RateWindow:      time.Minute,
		},
	}
}

// StoragePath returns the resolved SQLite path.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(c.DataDir, "kimo.db")
}

// BadgerDir returns the resolved Badger directory.
func (c *Config) BadgerDir() string {
	if c.Cache.BadgerDir != "" {
		return c.Cache.BadgerDir
	}
	return filepath.Join(c.DataDir, "cache")
}
