package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.3, cfg.Ranking.FreshnessWeight)
	assert.Equal(t, 0.7, cfg.Ranking.PersonalizationWeight)
	assert.Equal(t, 30*24*time.Hour, cfg.Retention.MaxAge)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.False(t, cfg.Search.Google.Enabled)
}

func TestLoadFromWithoutFile(t *testing.T) {
	cfg, err := LoadFrom("")
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Addr, cfg.Server.Addr)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "kimo.yaml", `
data_dir: /tmp/kimo-test
ranking:
  decay_factor: 0.8
  max_history_days: 7
cache:
  backend: badger
server:
  addr: ":9999"
  allowed_origins: ["http://localhost:3000"]
retention:
  sweep_interval: 15m
`)

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 0.8, cfg.Ranking.DecayFactor)
	assert.Equal(t, 7, cfg.Ranking.MaxHistoryDays)
	// untouched keys keep their defaults
	assert.Equal(t, 0.7, cfg.Ranking.PersonalizationWeight)
	assert.Equal(t, "badger", cfg.Cache.Backend)
	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 15*time.Minute, cfg.Retention.SweepInterval)
	assert.Equal(t, "/tmp/kimo-test/kimo.db", cfg.StoragePath())
	assert.Equal(t, "/tmp/kimo-test/cache", cfg.BadgerDir())
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "kimo.yaml", "ranking:\n  decay_factor: 0.8\n")

	t.Setenv("KIMO_RANKING__DECAY_FACTOR", "0.5")
	t.Setenv("KIMO_SERVER__ADDR", "127.0.0.1:1234")
	t.Setenv("KIMO_SUMMARIZE__CACHE_TTL", "2h")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, 0.5, cfg.Ranking.DecayFactor)
	assert.Equal(t, "127.0.0.1:1234", cfg.Server.Addr)
	assert.Equal(t, 2*time.Hour, cfg.Summarize.CacheTTL)
}

func TestLoadFromMissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))

	var notFound *ConfigNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, notFound.Hint, "kimo config init")
}

func TestLoadFromMalformedYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "kimo.yaml", "ranking: [unclosed\n")

	_, err := LoadFrom(path)

	var invalid *InvalidConfigError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, path, invalid.Path)
}

func TestLoadErrorsKeepCause(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)

	path := writeFile(t, t.TempDir(), "kimo.yaml", "cache:\n  backend: memcached\n")
	_, err = LoadFrom(path)

	var invalid *InvalidConfigError
	require.ErrorAs(t, err, &invalid)
	require.Error(t, invalid.Err)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Problems)

	var fields validator.ValidationErrors
	require.True(t, errors.As(err, &fields))
	assert.Equal(t, "oneof", fields[0].Tag())
}

func TestCrossFieldRuleHasNoFieldErrors(t *testing.T) {
	cfg := Default()
	cfg.Ranking.FreshnessWeight = 0.9

	err := cfg.Validate()

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Problems, 1)
	assert.Nil(t, verr.Unwrap())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "weights sum above one",
			mutate: func(c *Config) { c.Ranking.FreshnessWeight = 0.5 },
			want:   "must not exceed 1",
		},
		{
			name:   "decay factor out of range",
			mutate: func(c *Config) { c.Ranking.DecayFactor = 1.5 },
			want:   "DecayFactor",
		},
		{
			name:   "unknown cache backend",
			mutate: func(c *Config) { c.Cache.Backend = "redis" },
			want:   "Backend",
		},
		{
			name:   "google without credentials",
			mutate: func(c *Config) { c.Search.Google.Enabled = true },
			want:   "search.google",
		},
		{
			name:   "empty server address",
			mutate: func(c *Config) { c.Server.Addr = "" },
			want:   "Addr",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Log.Level = "loud" },
			want:   "Level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFindConfigFilePrefersEnv(t *testing.T) {
	t.Setenv(PathEnvVar, "/somewhere/kimo.yaml")
	assert.Equal(t, "/somewhere/kimo.yaml", FindConfigFile())
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := Default()
	cfg.DataDir = dir
	cfg.Ranking.DecayFactor = 0.9
	cfg.Server.Addr = ":7000"
	require.NoError(t, Save(cfg, path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, 0.9, loaded.Ranking.DecayFactor)
	assert.Equal(t, ":7000", loaded.Server.Addr)
	assert.Equal(t, cfg.Summarize.CacheTTL, loaded.Summarize.CacheTTL)

	_, err = os.Stat(path + ".bak")
	assert.True(t, os.IsNotExist(err), "first save has nothing to back up")

	cfg.Server.Addr = ":7001"
	require.NoError(t, Save(cfg, path))
	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Contains(t, string(backup), ":7000")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestSaveRejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.Cache.Backend = "memcached"

	err := Save(cfg, filepath.Join(t.TempDir(), "config.yaml"))

	var invalid *InvalidConfigError
	require.ErrorAs(t, err, &invalid)
}

func TestSaveReadOnlyFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}
	path := writeFile(t, t.TempDir(), "config.yaml", "server:\n  addr: ':1'\n")
	require.NoError(t, os.Chmod(path, 0400))

	err := Save(Default(), path)

	var perm *PermissionError
	require.ErrorAs(t, err, &perm)
	assert.Equal(t, "write", perm.Op)
}
