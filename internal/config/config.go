// Package config loads process-wide configuration for the Core from
// environment variables, read once at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Environment string
	Debug       bool
	LogLevel    string

	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
	Cache    CacheConfig
	Feed     FeedConfig
	Scoring  ScoringConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds the document-store (Postgres) connection configuration.
type DatabaseConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds cache-layer connection configuration.
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	Database     int
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	KeyPrefix    string
}

// KafkaConfig holds analytics-sink transport configuration.
type KafkaConfig struct {
	Brokers      []string
	TopicPrefix  string
	GroupID      string
	BatchSize    int
	BatchTimeout time.Duration
}

// JWTConfig is process-wide per spec §6 but consumed only by the
// out-of-scope auth collaborator; the Core never reads it directly.
type JWTConfig struct {
	Secret string
}

// CacheConfig holds the TTL tiers consumed by the Core (spec §6).
type CacheConfig struct {
	ShortTTL   time.Duration
	MediumTTL  time.Duration
	LongTTL    time.Duration
	VeryLongTTL time.Duration
}

// FeedConfig holds the Core's own thresholds (spec §6).
type FeedConfig struct {
	CompletionThreshold     float64
	ContinueWatchingMin     float64
	ContinueWatchingMax     float64
	PrefetchDefaultCards    int
	PrefetchDefaultEpisodes int
	PrefetchDefaultQuality  string
	MaxPageSize             int
	MaxSearchPageSize       int
	TrendingWindowDays      int
	FreshWindowDays         int
}

// ScoringConfig holds the §4.3 ranking weights as configuration, not constants.
type ScoringConfig struct {
	PopularityWeight   float64
	TrendingWeight     float64
	FeedPriorityWeight float64
	FeedWeightWeight   float64
	GenreMatchBonus    float64
	LanguageMatchBonus float64
	RecencyWeekBonus   float64
	RecencyMonthBonus  float64
	CompletionRateWeight float64
	JitterMax          float64
}

// Load builds a Config from environment variables, applying defaults
// matching spec.md §6.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Debug:       getBoolEnv("DEBUG", true),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getIntEnv("SERVER_PORT", 8080),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getIntEnv("DB_PORT", 5432),
			Username:        getEnv("DB_USERNAME", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_DATABASE", "clipfeed"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getIntEnv("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			Database:     getIntEnv("REDIS_DATABASE", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 10),
			DialTimeout:  getDurationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDurationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDurationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			KeyPrefix:    getEnv("REDIS_KEY_PREFIX", "clipfeed"),
		},

		Kafka: KafkaConfig{
			Brokers:      strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			TopicPrefix:  getEnv("KAFKA_TOPIC_PREFIX", "clipfeed"),
			GroupID:      getEnv("KAFKA_GROUP_ID", "clipfeed.core"),
			BatchSize:    getIntEnv("KAFKA_BATCH_SIZE", 100),
			BatchTimeout: getDurationEnv("KAFKA_BATCH_TIMEOUT", 2*time.Second),
		},

		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "change-me"),
		},

		Cache: CacheConfig{
			ShortTTL:    getDurationEnv("CACHE_SHORT_TTL", 300*time.Second),
			MediumTTL:   getDurationEnv("CACHE_MEDIUM_TTL", 1800*time.Second),
			LongTTL:     getDurationEnv("CACHE_LONG_TTL", 3600*time.Second),
			VeryLongTTL: getDurationEnv("CACHE_VERY_LONG_TTL", 7200*time.Second),
		},

		Feed: FeedConfig{
			CompletionThreshold:     0.80,
			ContinueWatchingMin:     0.05,
			ContinueWatchingMax:     0.80,
			PrefetchDefaultCards:    7,
			PrefetchDefaultEpisodes: 5,
			PrefetchDefaultQuality:  "480p",
			MaxPageSize:             100,
			MaxSearchPageSize:       100,
			TrendingWindowDays:      getIntEnv("FEED_TRENDING_WINDOW_DAYS", 7),
			FreshWindowDays:         getIntEnv("FEED_FRESH_WINDOW_DAYS", 30),
		},

		Scoring: ScoringConfig{
			PopularityWeight:     0.3,
			TrendingWeight:       0.2,
			FeedPriorityWeight:   10,
			FeedWeightWeight:     5,
			GenreMatchBonus:      20,
			LanguageMatchBonus:   15,
			RecencyWeekBonus:     10,
			RecencyMonthBonus:    5,
			CompletionRateWeight: 0.1,
			JitterMax:            10,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration for obviously invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Feed.CompletionThreshold <= 0 || c.Feed.CompletionThreshold > 1 {
		return fmt.Errorf("invalid completion threshold: %f", c.Feed.CompletionThreshold)
	}
	if c.Feed.ContinueWatchingMin >= c.Feed.ContinueWatchingMax {
		return fmt.Errorf("continue-watching window is empty: [%f,%f)", c.Feed.ContinueWatchingMin, c.Feed.ContinueWatchingMax)
	}
	return nil
}

// DatabaseDSN builds the Postgres DSN for GORM.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.Username, c.Database.Password,
		c.Database.Database, c.Database.SSLMode)
}

// RedisAddr builds the host:port address for go-redis.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
