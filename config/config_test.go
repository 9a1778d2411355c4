package config

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"githubhotspot/models"
)

func writeEnvFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Load(filepath.Join(t.TempDir(), "missing.env")))

	assert.Equal(t, 3600, cfg.PollInterval)
	assert.Equal(t, 4, cfg.MaxParallelTasks)
	assert.Equal(t, []string{""}, cfg.WatchLanguages)
	assert.Equal(t, []models.TimePeriod{models.Weekly}, cfg.WatchPeriods)
	assert.Equal(t, 50, cfg.FetchLimit)
	assert.Equal(t, 30, cfg.SearchRatePerMinute)
	assert.Equal(t, "5001", cfg.ListenPort)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, models.DefaultWeights(models.PolicyFiveFactor), cfg.Ranking)
	assert.False(t, cfg.WeightsNormalized)
	assert.Equal(t, CacheConfig{Backend: "memory", Path: "hotspot-cache.db", TTL: 15 * time.Minute}, cfg.Cache)
	assert.Equal(t, "hotspot", cfg.Database.Name)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)
}

func TestLoadFromFile(t *testing.T) {
	path := writeEnvFile(t, t.TempDir(), `
POLL_INTERVAL=120
MAX_PARALLEL_TASKS=8
WATCH_LANGUAGES=Go, Rust
WATCH_PERIODS=daily,monthly
FETCH_LIMIT=25
LOG_FORMAT=console
RANKING_POLICY=velocity
CACHE_BACKEND=sqlite
CACHE_TTL=1m
POSTGRES_HOST=db.internal
`)

	cfg := NewConfig()
	require.NoError(t, cfg.Load(path))

	assert.Equal(t, path, cfg.ConfigFile)
	assert.Equal(t, 120, cfg.PollInterval)
	assert.Equal(t, 8, cfg.MaxParallelTasks)
	assert.Equal(t, []string{"Go", "Rust"}, cfg.WatchLanguages)
	assert.Equal(t, []models.TimePeriod{models.Daily, models.Monthly}, cfg.WatchPeriods)
	assert.Equal(t, 25, cfg.FetchLimit)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, models.DefaultWeights(models.PolicyVelocity), cfg.Ranking)
	assert.Equal(t, "sqlite", cfg.Cache.Backend)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "db.internal", cfg.Database.Host)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeEnvFile(t, t.TempDir(), "LISTEN_PORT=7000\n")
	t.Setenv("LISTEN_PORT", "9000")

	cfg := NewConfig()
	require.NoError(t, cfg.Load(path))
	assert.Equal(t, "9000", cfg.ListenPort)
}

func TestLoadNormalizesWeights(t *testing.T) {
	t.Setenv("RANKING_WEIGHTS_STARS", "2")
	t.Setenv("RANKING_WEIGHTS_FORKS", "2")
	t.Setenv("RANKING_WEIGHTS_ISSUES", "2")
	t.Setenv("RANKING_WEIGHTS_FRESHNESS", "2")
	t.Setenv("RANKING_WEIGHTS_ACTIVITY", "2")

	cfg := NewConfig()
	require.NoError(t, cfg.Load(filepath.Join(t.TempDir(), "none.env")))

	assert.True(t, cfg.WeightsNormalized)
	assert.True(t, cfg.Ranking.IsValid())
	assert.InDelta(t, 0.2, cfg.Ranking.Stars, 1e-12)
	assert.InDelta(t, 0.2, cfg.Ranking.Activity, 1e-12)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "negative weight", key: "RANKING_WEIGHTS_STARS", value: "-0.5"},
		{name: "unknown policy", key: "RANKING_POLICY", value: "popularity"},
		{name: "fetch limit too large", key: "FETCH_LIMIT", value: "500"},
		{name: "bad cache ttl", key: "CACHE_TTL", value: "soon"},
		{name: "bad period", key: "WATCH_PERIODS", value: "weekly,yearly"},
		{name: "zero search rate", key: "SEARCH_RATE_PER_MINUTE", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := NewConfig()
			assert.Error(t, cfg.Load(filepath.Join(t.TempDir(), "none.env")))
		})
	}
}

func TestLoadRejectsZeroWeights(t *testing.T) {
	tests := []struct {
		name   string
		policy string
		keys   []string
	}{
		{
			name:   "five-factor",
			policy: "five-factor",
			keys: []string{"RANKING_WEIGHTS_STARS", "RANKING_WEIGHTS_FORKS", "RANKING_WEIGHTS_ISSUES",
				"RANKING_WEIGHTS_FRESHNESS", "RANKING_WEIGHTS_ACTIVITY"},
		},
		{
			name:   "velocity",
			policy: "velocity",
			keys:   []string{"RANKING_WEIGHTS_STARS", "RANKING_WEIGHTS_FORKS", "RANKING_WEIGHTS_COMMITS"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("RANKING_POLICY", tt.policy)
			for _, key := range tt.keys {
				t.Setenv(key, "0")
			}

			cfg := NewConfig()
			err := cfg.Load(filepath.Join(t.TempDir(), "none.env"))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "must not all be zero")
		})
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Name: "n", Host: "h", Port: "1"}
	assert.Equal(t, "user=u password=p dbname=n port=1 host=h sslmode=disable", d.DSN())
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := writeEnvFile(t, t.TempDir(), "FETCH_LIMIT=10\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var latest atomic.Int64
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(cfg *Config) {
			latest.Store(int64(cfg.FetchLimit))
		})
	}()

	// The watcher registers asynchronously; keep rewriting until it sees a change.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("FETCH_LIMIT=20\n"), 0o600)
		return latest.Load() == 20
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestWatchReloadsAfterAtomicSave(t *testing.T) {
	dir := t.TempDir()
	path := writeEnvFile(t, dir, "FETCH_LIMIT=10\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var latest atomic.Int64
	go func() {
		_ = Watch(ctx, path, func(cfg *Config) {
			latest.Store(int64(cfg.FetchLimit))
		})
	}()

	atomicSave := func(content string) {
		tmp, err := os.CreateTemp(dir, ".env-*.tmp")
		require.NoError(t, err)
		_, err = tmp.WriteString(content)
		require.NoError(t, err)
		require.NoError(t, tmp.Close())
		require.NoError(t, os.Rename(tmp.Name(), path))
	}

	require.Eventually(t, func() bool {
		atomicSave("FETCH_LIMIT=30\n")
		return latest.Load() == 30
	}, 5*time.Second, 50*time.Millisecond)

	// The watch must survive the replaced file: a second save and a plain
	// write are both picked up.
	require.Eventually(t, func() bool {
		atomicSave("FETCH_LIMIT=40\n")
		return latest.Load() == 40
	}, 5*time.Second, 50*time.Millisecond)

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("FETCH_LIMIT=45\n"), 0o600)
		return latest.Load() == 45
	}, 5*time.Second, 50*time.Millisecond)
}

func TestWatchIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeEnvFile(t, dir, "FETCH_LIMIT=10\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	var latest atomic.Int64
	go func() {
		_ = Watch(ctx, path, func(cfg *Config) {
			calls.Add(1)
			latest.Store(int64(cfg.FetchLimit))
		})
	}()

	// Wait until the watcher is live, then count only sibling activity
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("FETCH_LIMIT=11\n"), 0o600)
		return latest.Load() == 11
	}, 5*time.Second, 50*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	before := calls.Load()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.env"), []byte("FETCH_LIMIT=99\n"), 0o600))
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, before, calls.Load())
	assert.Equal(t, int64(11), latest.Load())
}

func TestWatchMissingFile(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "absent.env"), func(*Config) {})
	assert.Error(t, err)
}
