package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinelingua-service/internal/recommend"
)

// clearEnv сбрасывает переменные, которые могли протечь из окружения хоста.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATABASE_URL", "MOVIES_TABLE", ConfigPathEnvVar} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("CINELINGUA_DATABASE__DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8081", cfg.HTTP.Port)
	assert.Equal(t, "9092", cfg.GRPC.Port)
	assert.Equal(t, "movies", cfg.Database.Table)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, recommend.DefaultPool, cfg.Recommend.Pool)
	assert.Equal(t, recommend.DefaultWeights, cfg.Recommend.Weights)
	assert.Equal(t, 24, cfg.Curated.Target)
	assert.Equal(t, 6.2, cfg.Curated.MinRating)
	assert.True(t, cfg.Breaker.Enabled)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CINELINGUA_HTTP__PORT", "9000")
	t.Setenv("CINELINGUA_LOG__LEVEL", "debug")
	t.Setenv("CINELINGUA_CACHE__TTL", "90s")
	t.Setenv("CINELINGUA_DATABASE__URL", "postgres://u:p@db:5432/cinema")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.HTTP.Port)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "postgres://u:p@db:5432/cinema", cfg.Database.URL)
}

func TestLoadLegacyEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://legacy/db")
	t.Setenv("MOVIES_TABLE", "tmdb_movies")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres://legacy/db", cfg.Database.URL)
	assert.Equal(t, "tmdb_movies", cfg.Database.Table)
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "cinelingua.yaml")
	yaml := `
database:
  driver: memory
curated:
  target: 12
  buckets:
    - name: noir
      keywords: [crime, mystery]
      quota: 6
    - name: musical
      keywords: [music]
      quota: 2
recommend:
  weights:
    genre: 0.7
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("CINELINGUA_CURATED__TARGET", "16")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, 16, cfg.Curated.Target, "environment wins over the file")
	assert.Equal(t, 0.7, cfg.Recommend.Weights.Genre)
	assert.Equal(t, recommend.DefaultWeights.Year, cfg.Recommend.Weights.Year)
	assert.Equal(t, []recommend.Bucket{
		{Name: "noir", Keywords: []string{"crime", "mystery"}, Quota: 6},
		{Name: "musical", Keywords: []string{"music"}, Quota: 2},
	}, cfg.Curated.Buckets)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.ErrorContains(t, err, "failed to load config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"postgres without url", func(c *Config) {}, "Config.Database.URL failed required_if"},
		{"bad log level", func(c *Config) { c.Database.URL = "postgres://x"; c.Log.Level = "verbose" }, "Config.Log.Level failed oneof"},
		{"non numeric port", func(c *Config) { c.Database.URL = "postgres://x"; c.HTTP.Port = "http" }, "Config.HTTP.Port failed numeric"},
		{"seed file needs memory driver", func(c *Config) { c.Database.URL = "postgres://x"; c.Database.SeedFile = "movies.json" }, "Config.Database.SeedFile failed excluded_unless"},
		{"bucket keyword case", func(c *Config) {
			c.Database.URL = "postgres://x"
			c.Curated.Buckets = []recommend.Bucket{{Name: "noir", Keywords: []string{"Crime"}, Quota: 1}}
		}, "Config.Curated.Buckets[0].Keywords[0] failed lowercase"},
		{"ratio out of range", func(c *Config) { c.Database.URL = "postgres://x"; c.Breaker.FailureRatio = 2 }, "Config.Breaker.FailureRatio failed lte"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	cfg := defaultConfig()
	cfg.Database.Driver = "memory"
	assert.NoError(t, cfg.Validate())
}

func TestSlogLevel(t *testing.T) {
	for level, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		cfg := &Config{Log: LogConfig{Level: level}}
		assert.Equal(t, want, cfg.SlogLevel())
	}
}
