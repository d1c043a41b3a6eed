package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRaffleConfigDefaults(t *testing.T) {
	t.Setenv(ConfigFileEnv, "")

	cfg, err := LoadRaffleConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), cfg.Settings.EntranceFee)
	assert.Equal(t, 30*time.Second, cfg.Settings.Interval)
	assert.Equal(t, "mock", cfg.Provider.Type)
	assert.Equal(t, ":8080", cfg.Server.Addr())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoadRaffleConfigFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raffle.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[raffle]
entrance_fee = 500
interval = "45s"

[database]
driver = "sqlite"
path = ":memory:"

[kafka]
enabled = true
brokers = ["k1:9092", "k2:9092"]
publish_timeout = "500ms"
`), 0o600))

	t.Setenv(ConfigFileEnv, path)
	t.Setenv("RAFFLE_INTERVAL", "1m")
	t.Setenv("KAFKA_BROKERS", "k3:9092, k4:9092")

	cfg, err := LoadRaffleConfig()
	require.NoError(t, err)
	assert.Equal(t, int64(500), cfg.Settings.EntranceFee)
	assert.Equal(t, time.Minute, cfg.Settings.Interval, "env wins over file")
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"k3:9092", "k4:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 500*time.Millisecond, cfg.Kafka.PublishTimeout)
}

func TestLoadRaffleConfigRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raffle.toml")
	require.NoError(t, os.WriteFile(path, []byte("[raffle]\nentrance_fe = 5\n"), 0o600))
	t.Setenv(ConfigFileEnv, path)

	_, err := LoadRaffleConfig()
	assert.ErrorContains(t, err, "unknown keys")
}

func TestValidate(t *testing.T) {
	cfg := defaultRaffleConfig()
	require.NoError(t, cfg.Validate())

	cfg.Settings.EntranceFee = 0
	cfg.Settings.Interval = 0
	cfg.Provider.Type = "oracle"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entrance fee")
	assert.Contains(t, err.Error(), "interval")
	assert.Contains(t, err.Error(), "oracle")
}

func TestGetEnvHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")
	assert.Equal(t, 7, getEnvInt("X_INT", 7))
	assert.Equal(t, time.Second, getEnvDuration("X_DUR", time.Second))
	assert.True(t, getEnvBool("X_BOOL", true))
	assert.Equal(t, []string{"a"}, getEnvCSV("X_MISSING", []string{"a"}))
}
