package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Port int

	RapidAPIKey  string
	RapidAPIHost string
	UpstreamURL  string

	TrustXFF      bool
	RateKeyHeader string

	MonthlyLimit  int
	MonthlyWindow time.Duration
	MinuteLimit   int
	MinuteWindow  time.Duration

	RateStore          string
	RateStatsEnabled   bool
	RateStatsTrackKeys bool
	RateStatsTTL       time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	AdminToken string

	LogLevel  string
	LogFormat string
}

// UsesRedis reports whether any component needs a Redis connection.
func (c Config) UsesRedis() bool {
	return c.RateStore == StoreRedis
}

func (c Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 4000)
	v.SetDefault("RAPID_API_KEY", "")
	v.SetDefault("RAPID_API_HOST", "article-extractor-and-summarizer.p.rapidapi.com")
	v.SetDefault("UPSTREAM_URL", "")
	v.SetDefault("TRUST_XFF", false)
	v.SetDefault("RATE_KEY_HEADER", "")
	v.SetDefault("RATE_MONTHLY_LIMIT", 50)
	v.SetDefault("RATE_MONTHLY_WINDOW", 30*24*time.Hour)
	v.SetDefault("RATE_MINUTE_LIMIT", 10)
	v.SetDefault("RATE_MINUTE_WINDOW", time.Minute)
	v.SetDefault("RATE_STORE", StoreMemory)
	v.SetDefault("RATE_STATS_ENABLED", false)
	v.SetDefault("RATE_STATS_TRACK_KEYS", false)
	v.SetDefault("RATE_STATS_TTL", 24*time.Hour)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "summary-relay")
	v.SetDefault("ADMIN_TOKEN", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

// Load reads the configuration from the environment, seeded from the given
// dotenv files (default ".env") when they exist. Variables already set in
// the environment win over the files.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:               v.GetInt("PORT"),
		RapidAPIKey:        v.GetString("RAPID_API_KEY"),
		RapidAPIHost:       strings.TrimSpace(v.GetString("RAPID_API_HOST")),
		UpstreamURL:        strings.TrimSpace(v.GetString("UPSTREAM_URL")),
		TrustXFF:           v.GetBool("TRUST_XFF"),
		RateKeyHeader:      strings.TrimSpace(v.GetString("RATE_KEY_HEADER")),
		MonthlyLimit:       v.GetInt("RATE_MONTHLY_LIMIT"),
		MonthlyWindow:      v.GetDuration("RATE_MONTHLY_WINDOW"),
		MinuteLimit:        v.GetInt("RATE_MINUTE_LIMIT"),
		MinuteWindow:       v.GetDuration("RATE_MINUTE_WINDOW"),
		RateStore:          strings.ToLower(strings.TrimSpace(v.GetString("RATE_STORE"))),
		RateStatsEnabled:   v.GetBool("RATE_STATS_ENABLED"),
		RateStatsTrackKeys: v.GetBool("RATE_STATS_TRACK_KEYS"),
		RateStatsTTL:       v.GetDuration("RATE_STATS_TTL"),
		RedisAddr:          strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:      v.GetString("REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		RedisPrefix:        strings.Trim(v.GetString("REDIS_PREFIX"), ":"),
		AdminToken:         v.GetString("ADMIN_TOKEN"),
		LogLevel:           strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		LogFormat:          strings.ToLower(strings.TrimSpace(v.GetString("LOG_FORMAT"))),
	}

	if cfg.UpstreamURL == "" {
		cfg.UpstreamURL = "https://" + cfg.RapidAPIHost
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be in 1..65535, got %d", c.Port)
	}
	if c.RapidAPIHost == "" {
		return errors.New("RAPID_API_HOST must not be empty")
	}
	if c.MonthlyLimit <= 0 || c.MinuteLimit <= 0 {
		return errors.New("RATE_MONTHLY_LIMIT and RATE_MINUTE_LIMIT must be > 0")
	}
	if c.MonthlyWindow <= 0 || c.MinuteWindow <= 0 {
		return errors.New("RATE_MONTHLY_WINDOW and RATE_MINUTE_WINDOW must be > 0")
	}
	if c.RateStatsTTL < 0 {
		return errors.New("RATE_STATS_TTL must be >= 0")
	}
	switch c.RateStore {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("RATE_STORE must be %q or %q, got %q", StoreMemory, StoreRedis, c.RateStore)
	}
	if c.UsesRedis() && c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required when RATE_STORE=redis")
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	return nil
}
