package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"moderator/internal/logger"
)

const (
	DriverClickHouse = "clickhouse"
	DriverPostgres   = "postgres"
)

// Config holds the application configuration
type Config struct {
	TelegramToken string
	WebAppURL     string
	OwnerID       int64 // 0 disables owner notifications

	// Bot mode configuration
	WebhookMode   bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL    string // Public base URL (required if WebhookMode is true)
	WebhookPath   string
	WebhookSecret string

	Port     string
	LogLevel string

	// Storage configuration
	UseMockDB     bool
	StorageDriver string
	AutoMigrate   bool

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	PostgresDSN string

	// Moderation and panel tuning
	TelegramTimeout    time.Duration
	MuteDuration       time.Duration
	RecentCapacity     int
	InitDataMaxAge     time.Duration
	PanelRateLimit     float64
	PanelProfilePhotos bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}
	var err error

	// Telegram Bot Token (required)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	// Panel URL (required)
	config.WebAppURL = os.Getenv("WEB_APP_URL")
	if config.WebAppURL == "" {
		return nil, fmt.Errorf("WEB_APP_URL is required")
	}
	if u, err := url.Parse(config.WebAppURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid WEB_APP_URL: %q", config.WebAppURL)
	}

	if raw := os.Getenv("OWNER_ID"); raw != "" {
		config.OwnerID, err = strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid OWNER_ID: %w", err)
		}
	}

	// Bot mode configuration
	config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
	if config.WebhookMode {
		config.WebhookURL = strings.TrimSuffix(os.Getenv("WEBHOOK_URL"), "/")
		if config.WebhookURL == "" {
			return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
		}
	}
	config.WebhookPath = getEnv("WEBHOOK_PATH", "/telegram-webhook")
	if !strings.HasPrefix(config.WebhookPath, "/") {
		config.WebhookPath = "/" + config.WebhookPath
	}
	config.WebhookSecret = os.Getenv("WEBHOOK_SECRET")

	config.Port = getEnv("PORT", "8080")

	config.LogLevel = getEnv("LOG_LEVEL", "info")
	if _, err := logger.ParseLevel(config.LogLevel); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}

	// Use Mock DB (default: false)
	config.UseMockDB = os.Getenv("USE_MOCK_DB") == "true"
	config.AutoMigrate = os.Getenv("AUTO_MIGRATE") == "true"

	config.StorageDriver = strings.ToLower(getEnv("STORAGE_DRIVER", DriverClickHouse))
	if !config.UseMockDB {
		switch config.StorageDriver {
		case DriverClickHouse:
			if err := config.loadClickHouse(); err != nil {
				return nil, err
			}
		case DriverPostgres:
			config.PostgresDSN = os.Getenv("POSTGRES_DSN")
			if config.PostgresDSN == "" {
				return nil, fmt.Errorf("POSTGRES_DSN is required when STORAGE_DRIVER is postgres")
			}
		default:
			return nil, fmt.Errorf("unsupported STORAGE_DRIVER: %q", config.StorageDriver)
		}
	}

	if config.TelegramTimeout, err = getDuration("TELEGRAM_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if config.TelegramTimeout <= 0 {
		return nil, fmt.Errorf("TELEGRAM_TIMEOUT must be positive")
	}
	if config.MuteDuration, err = getDuration("MUTE_DURATION", time.Hour); err != nil {
		return nil, err
	}
	if config.MuteDuration <= 0 {
		return nil, fmt.Errorf("MUTE_DURATION must be positive")
	}
	if config.InitDataMaxAge, err = getDuration("INIT_DATA_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}

	config.RecentCapacity = 100
	if raw := os.Getenv("RECENT_CAPACITY"); raw != "" {
		config.RecentCapacity, err = strconv.Atoi(raw)
		if err != nil || config.RecentCapacity <= 0 {
			return nil, fmt.Errorf("invalid RECENT_CAPACITY: %q", raw)
		}
	}

	config.PanelRateLimit = 5
	if raw := os.Getenv("PANEL_RATE_LIMIT"); raw != "" {
		config.PanelRateLimit, err = strconv.ParseFloat(raw, 64)
		if err != nil || config.PanelRateLimit < 0 {
			return nil, fmt.Errorf("invalid PANEL_RATE_LIMIT: %q", raw)
		}
	}

	config.PanelProfilePhotos = os.Getenv("PANEL_PROFILE_PHOTOS") == "true"

	return config, nil
}

// loadClickHouse reads the ClickHouse connection settings
func (c *Config) loadClickHouse() error {
	c.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
	if c.ClickHouseHost == "" {
		return fmt.Errorf("CLICKHOUSE_HOST is required when USE_MOCK_DB is not set")
	}

	portStr := os.Getenv("CLICKHOUSE_PORT")
	if portStr == "" {
		c.ClickHousePort = 9000 // Default ClickHouse native port
	} else {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("invalid CLICKHOUSE_PORT: %w", err)
		}
		c.ClickHousePort = port
	}

	c.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", "default")
	c.ClickHouseUser = getEnv("CLICKHOUSE_USER", "default")
	// Password is optional, can be empty
	c.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
	c.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	return nil
}

// WebhookEndpoint returns the full URL the platform posts updates to
func (c *Config) WebhookEndpoint() string {
	return c.WebhookURL + c.WebhookPath
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
