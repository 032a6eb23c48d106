package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/earthquake-city/quake-alerts/internal/models"
	"github.com/sirupsen/logrus"
)

// Store backends for the seen-id set
const (
	StoreAzure    = "azure"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Persistence policies for events with mixed delivery outcomes
const (
	PersistAll = "all"
	PersistAny = "any"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port      string
	Debug     bool
	LogFormat string

	// Schedule configuration
	CheckInterval time.Duration
	RunTimeout    time.Duration

	// Alerting configuration file; empty means build it from the environment
	ConfigPath string

	// Seen-id store
	StoreBackend     string
	StorageAccount   string
	StorageContainer string
	RedisURL         string
	RedisKey         string
	PostgresDSN      string
	MaxStoredIDs     int
	PersistPolicy    string

	// Upstream feed
	FeedURL     string
	HTTPTimeout time.Duration

	// Outbound pacing for Twitter and WhatsApp, messages per second
	SendRate float64

	// Email channel transport
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string

	Alerting *AlertConfig
}

// Load loads configuration from environment variables, then the alerting
// configuration from CONFIG_PATH or, failing that, the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:      getEnv("PORT", "8080"),
		Debug:     getBoolEnv("DEBUG", false),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		CheckInterval: getDurationEnv("CHECK_INTERVAL", 0),
		RunTimeout:    getDurationEnv("RUN_TIMEOUT", 5*time.Minute),

		ConfigPath: getEnv("CONFIG_PATH", ""),

		StoreBackend:     strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "quake-alerts"),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisKey:         getEnv("REDIS_KEY", ""),
		PostgresDSN:      getEnv("DATABASE_URL", ""),
		MaxStoredIDs:     getIntEnv("MAX_STORED_IDS", 1000),
		PersistPolicy:    strings.ToLower(getEnv("PERSIST_POLICY", PersistAll)),

		FeedURL:     getEnv("USGS_API_URL", ""),
		HTTPTimeout: getDurationEnv("HTTP_TIMEOUT", 30*time.Second),

		SendRate: getFloatEnv("SEND_RATE_PER_SECOND", 1),

		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getIntEnv("SMTP_PORT", 587),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     getEnv("SMTP_FROM", ""),
	}

	alerting, err := loadAlerting(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.Alerting = alerting

	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = alerting.PollingInterval
	}

	// Validate required configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadAlerting(path string) (*AlertConfig, error) {
	var (
		alerting *AlertConfig
		err      error
	)
	if path != "" {
		alerting, err = LoadAlertConfig(path)
		if err != nil {
			return nil, err
		}
	} else {
		alerting = AlertConfigFromEnv()
	}

	result := Validate(alerting)
	for _, w := range result.Warnings() {
		logrus.Warnf("Config warning: %s", w)
	}
	if !result.Valid() {
		return nil, result.Err()
	}

	return alerting, nil
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreAzure:
		if c.StorageAccount == "" {
			return fmt.Errorf("AZURE_STORAGE_ACCOUNT is required when STORE_BACKEND is azure")
		}
	case StoreRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND is redis")
		}
	case StorePostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND is postgres")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be one of azure, redis, postgres, memory")
	}

	if c.PersistPolicy != PersistAll && c.PersistPolicy != PersistAny {
		return fmt.Errorf("PERSIST_POLICY must be 'all' or 'any'")
	}

	if c.CheckInterval <= 0 {
		return fmt.Errorf("CHECK_INTERVAL must be positive")
	}

	if c.MaxStoredIDs < 0 {
		return fmt.Errorf("MAX_STORED_IDS cannot be negative")
	}

	if c.hasChannelKind(models.KindEmail) && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when an email channel is configured")
	}

	return nil
}

func (c *Config) hasChannelKind(kind models.ChannelKind) bool {
	if c.Alerting == nil {
		return false
	}
	for _, ch := range c.Alerting.Channels {
		if ch.Kind == kind {
			return true
		}
	}
	return false
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
