package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"githubhotspot/models"
)

// DefaultConfigFile is read when no path is given
const DefaultConfigFile = ".env"

// Config holds all configuration for the application
type Config struct {
	ConfigFile string

	GitHubToken         string
	SearchRatePerMinute int

	PollInterval     int
	MaxParallelTasks int
	WatchLanguages   []string
	WatchPeriods     []models.TimePeriod
	FetchLimit       int

	ListenPort         string
	CORSAllowedOrigins []string

	LogLevel  string
	LogFormat string

	Ranking models.WeightConfig
	// WeightsNormalized is set when the configured weights did not sum to 1.
	WeightsNormalized bool

	Cache    CacheConfig
	Database DatabaseConfig
}

// CacheConfig selects the trending response cache
type CacheConfig struct {
	Backend string
	Path    string
	TTL     time.Duration
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	User            string
	Password        string
	Name            string
	Host            string
	Port            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the lib/pq connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s port=%s host=%s sslmode=disable",
		d.User, d.Password, d.Name, d.Port, d.Host,
	)
}

// NewConfig creates a new Config instance
func NewConfig() *Config {
	return &Config{}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("SEARCH_RATE_PER_MINUTE", 30)
	v.SetDefault("POLL_INTERVAL", 3600)
	v.SetDefault("MAX_PARALLEL_TASKS", 4)
	v.SetDefault("WATCH_LANGUAGES", "")
	v.SetDefault("WATCH_PERIODS", "weekly")
	v.SetDefault("FETCH_LIMIT", 50)
	v.SetDefault("LISTEN_PORT", "5001")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("RANKING_POLICY", string(models.DefaultPolicy))
	v.SetDefault("CACHE_BACKEND", "memory")
	v.SetDefault("CACHE_PATH", "hotspot-cache.db")
	v.SetDefault("CACHE_TTL", "15m")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("POSTGRES_DB", "hotspot")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 25)
	v.SetDefault("DB_CONN_MAX_LIFETIME", "5m")
}

// Load loads configuration from the file at path (if it exists) and environment variables
func (c *Config) Load(path string) error {
	if path == "" {
		path = DefaultConfigFile
	}
	c.ConfigFile = path

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if strings.HasSuffix(path, ".env") {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	c.GitHubToken = v.GetString("GITHUB_TOKEN")
	c.SearchRatePerMinute = v.GetInt("SEARCH_RATE_PER_MINUTE")
	if c.SearchRatePerMinute < 1 {
		return fmt.Errorf("SEARCH_RATE_PER_MINUTE must be positive")
	}

	c.PollInterval = v.GetInt("POLL_INTERVAL")
	if c.PollInterval <= 0 {
		c.PollInterval = 3600 // Default to 1 hour
	}

	c.MaxParallelTasks = v.GetInt("MAX_PARALLEL_TASKS")
	if c.MaxParallelTasks < 1 {
		c.MaxParallelTasks = 1
	}

	c.WatchLanguages = splitList(v.GetString("WATCH_LANGUAGES"), true)

	c.WatchPeriods = nil
	for _, raw := range splitList(v.GetString("WATCH_PERIODS"), false) {
		period, err := models.ParseTimePeriod(raw)
		if err != nil {
			return fmt.Errorf("invalid WATCH_PERIODS: %w", err)
		}
		c.WatchPeriods = append(c.WatchPeriods, period)
	}
	if len(c.WatchPeriods) == 0 {
		c.WatchPeriods = []models.TimePeriod{models.Weekly}
	}

	c.FetchLimit = v.GetInt("FETCH_LIMIT")
	if c.FetchLimit < 1 || c.FetchLimit > 100 {
		return fmt.Errorf("FETCH_LIMIT must be between 1 and 100, got %d", c.FetchLimit)
	}

	c.ListenPort = v.GetString("LISTEN_PORT")
	c.CORSAllowedOrigins = splitList(v.GetString("CORS_ALLOWED_ORIGINS"), false)
	c.LogLevel = strings.ToLower(v.GetString("LOG_LEVEL"))
	c.LogFormat = strings.ToLower(v.GetString("LOG_FORMAT"))

	if err := c.loadWeights(v); err != nil {
		return err
	}

	c.Cache = CacheConfig{
		Backend: strings.ToLower(v.GetString("CACHE_BACKEND")),
		Path:    v.GetString("CACHE_PATH"),
	}
	ttl, err := time.ParseDuration(v.GetString("CACHE_TTL"))
	if err != nil {
		return fmt.Errorf("invalid CACHE_TTL format: %w", err)
	}
	c.Cache.TTL = ttl

	c.Database = DatabaseConfig{
		User:         v.GetString("POSTGRES_USER"),
		Password:     v.GetString("POSTGRES_PASSWORD"),
		Name:         v.GetString("POSTGRES_DB"),
		Host:         v.GetString("POSTGRES_HOST"),
		Port:         v.GetString("POSTGRES_PORT"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}
	lifetime, err := time.ParseDuration(v.GetString("DB_CONN_MAX_LIFETIME"))
	if err != nil {
		return fmt.Errorf("invalid DB_CONN_MAX_LIFETIME format: %w", err)
	}
	c.Database.ConnMaxLifetime = lifetime

	return nil
}

// loadWeights reads the scoring policy and its weights. Unset weights fall
// back to the policy defaults; a set that does not sum to 1 is normalized.
func (c *Config) loadWeights(v *viper.Viper) error {
	policy, err := models.ParseScoringPolicy(v.GetString("RANKING_POLICY"))
	if err != nil {
		return fmt.Errorf("invalid RANKING_POLICY: %w", err)
	}

	weights := models.DefaultWeights(policy)
	fields := map[string]*float64{
		"RANKING_WEIGHTS_STARS":     &weights.Stars,
		"RANKING_WEIGHTS_FORKS":     &weights.Forks,
		"RANKING_WEIGHTS_ISSUES":    &weights.Issues,
		"RANKING_WEIGHTS_FRESHNESS": &weights.Freshness,
		"RANKING_WEIGHTS_ACTIVITY":  &weights.Activity,
		"RANKING_WEIGHTS_COMMITS":   &weights.Commits,
	}
	for key, dst := range fields {
		if !v.IsSet(key) {
			continue
		}
		*dst = v.GetFloat64(key)
		if *dst < 0 {
			return fmt.Errorf("%s cannot be negative", key)
		}
	}

	if weights.Sum() == 0 {
		return fmt.Errorf("RANKING_WEIGHTS_* for policy %s must not all be zero", policy)
	}

	c.WeightsNormalized = false
	if !weights.IsValid() {
		weights = weights.Normalize()
		c.WeightsNormalized = true
	}
	c.Ranking = weights
	return nil
}

func splitList(raw string, keepEmpty bool) []string {
	if strings.TrimSpace(raw) == "" {
		if keepEmpty {
			return []string{""}
		}
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" && !keepEmpty {
			continue
		}
		out = append(out, part)
	}
	return out
}
