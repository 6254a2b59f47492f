package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setBase sets the variables every configuration needs
func setBase(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("WEB_APP_URL", "https://panel.example.org/web-app")
	t.Setenv("USE_MOCK_DB", "true")
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	setBase(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.TelegramToken)
	assert.Equal(t, int64(0), cfg.OwnerID)
	assert.False(t, cfg.WebhookMode)
	assert.Equal(t, "/telegram-webhook", cfg.WebhookPath)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.True(t, cfg.UseMockDB)
	assert.Equal(t, DriverClickHouse, cfg.StorageDriver)
	assert.Equal(t, 10*time.Second, cfg.TelegramTimeout)
	assert.Equal(t, time.Hour, cfg.MuteDuration)
	assert.Equal(t, 100, cfg.RecentCapacity)
	assert.Equal(t, 24*time.Hour, cfg.InitDataMaxAge)
	assert.Equal(t, 5.0, cfg.PanelRateLimit)
	assert.False(t, cfg.PanelProfilePhotos)
	assert.False(t, cfg.AutoMigrate)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	setBase(t)
	t.Setenv("OWNER_ID", "42")
	t.Setenv("WEBHOOK_MODE", "true")
	t.Setenv("WEBHOOK_URL", "https://bot.example.org/")
	t.Setenv("WEBHOOK_PATH", "hook")
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("TELEGRAM_TIMEOUT", "3s")
	t.Setenv("MUTE_DURATION", "30m")
	t.Setenv("RECENT_CAPACITY", "10")
	t.Setenv("INIT_DATA_MAX_AGE", "0")
	t.Setenv("PANEL_RATE_LIMIT", "0.5")
	t.Setenv("PANEL_PROFILE_PHOTOS", "true")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, int64(42), cfg.OwnerID)
	assert.True(t, cfg.WebhookMode)
	assert.Equal(t, "https://bot.example.org/hook", cfg.WebhookEndpoint())
	assert.Equal(t, "s3cret", cfg.WebhookSecret)
	assert.Equal(t, 3*time.Second, cfg.TelegramTimeout)
	assert.Equal(t, 30*time.Minute, cfg.MuteDuration)
	assert.Equal(t, 10, cfg.RecentCapacity)
	assert.Equal(t, time.Duration(0), cfg.InitDataMaxAge)
	assert.Equal(t, 0.5, cfg.PanelRateLimit)
	assert.True(t, cfg.PanelProfilePhotos)
}

func TestLoadFromEnv_Storage(t *testing.T) {
	t.Run("clickhouse", func(t *testing.T) {
		setBase(t)
		t.Setenv("USE_MOCK_DB", "false")
		t.Setenv("CLICKHOUSE_HOST", "ch.local")

		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "ch.local", cfg.ClickHouseHost)
		assert.Equal(t, 9000, cfg.ClickHousePort)
		assert.Equal(t, "default", cfg.ClickHouseDatabase)
		assert.Equal(t, "default", cfg.ClickHouseUser)
	})

	t.Run("postgres", func(t *testing.T) {
		setBase(t)
		t.Setenv("USE_MOCK_DB", "false")
		t.Setenv("STORAGE_DRIVER", "Postgres")
		t.Setenv("POSTGRES_DSN", "postgres://bot@localhost/bot")

		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		assert.Equal(t, DriverPostgres, cfg.StorageDriver)
		assert.Equal(t, "postgres://bot@localhost/bot", cfg.PostgresDSN)
	})
}

func TestLoadFromEnv_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing token", env: map[string]string{"TELEGRAM_BOT_TOKEN": ""}},
		{name: "missing web app url", env: map[string]string{"WEB_APP_URL": ""}},
		{name: "relative web app url", env: map[string]string{"WEB_APP_URL": "/web-app"}},
		{name: "bad owner", env: map[string]string{"OWNER_ID": "me"}},
		{name: "webhook without url", env: map[string]string{"WEBHOOK_MODE": "true"}},
		{name: "bad log level", env: map[string]string{"LOG_LEVEL": "loud"}},
		{name: "clickhouse without host", env: map[string]string{"USE_MOCK_DB": "false"}},
		{name: "bad clickhouse port", env: map[string]string{"USE_MOCK_DB": "false", "CLICKHOUSE_HOST": "h", "CLICKHOUSE_PORT": "x"}},
		{name: "postgres without dsn", env: map[string]string{"USE_MOCK_DB": "false", "STORAGE_DRIVER": "postgres"}},
		{name: "unknown driver", env: map[string]string{"USE_MOCK_DB": "false", "STORAGE_DRIVER": "sqlite"}},
		{name: "bad timeout", env: map[string]string{"TELEGRAM_TIMEOUT": "soon"}},
		{name: "zero timeout", env: map[string]string{"TELEGRAM_TIMEOUT": "0s"}},
		{name: "zero mute", env: map[string]string{"MUTE_DURATION": "0s"}},
		{name: "bad capacity", env: map[string]string{"RECENT_CAPACITY": "0"}},
		{name: "negative rate", env: map[string]string{"PANEL_RATE_LIMIT": "-1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBase(t)
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			_, err := LoadFromEnv()
			assert.Error(t, err)
		})
	}
}
