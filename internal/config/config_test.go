package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipfeed/internal/config"
)

func TestLoad_AppliesDefaultsWhenEnvironmentIsUnset(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 0.80, cfg.Feed.CompletionThreshold)
}

func TestLoad_ReadsOverridesFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("SERVER_READ_TIMEOUT", "15s")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
}

func TestValidate_RejectsNonPositivePort(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsCompletionThresholdOutOfRange(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Feed.CompletionThreshold = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsEmptyContinueWatchingWindow(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Feed.ContinueWatchingMin = 0.80
	cfg.Feed.ContinueWatchingMax = 0.80
	assert.Error(t, cfg.Validate())
}

func TestDatabaseDSN_FormatsAllFields(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Database.Host = "db.internal"
	cfg.Database.Port = 5433
	cfg.Database.Username = "feedsvc"
	cfg.Database.Password = "secret"
	cfg.Database.Database = "clipfeed"
	cfg.Database.SSLMode = "require"

	dsn := cfg.DatabaseDSN()
	assert.Equal(t, "host=db.internal port=5433 user=feedsvc password=secret dbname=clipfeed sslmode=require", dsn)
}

func TestRedisAddr_JoinsHostAndPort(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Redis.Host = "cache.internal"
	cfg.Redis.Port = 6380
	assert.Equal(t, "cache.internal:6380", cfg.RedisAddr())
}
