package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds service configuration. Values come from environment
// variables, optionally overridden by a YAML file pointed at by
// HYDROFARM_CONFIG.
type Config struct {
	DatabaseURL string `yaml:"database_url"`
	HTTPAddr    string `yaml:"http_addr"`
	JWTSecret   string `yaml:"jwt_secret"`

	DefaultRoomID string `yaml:"default_room_id"`

	StaleThreshold    time.Duration `yaml:"stale_threshold"`
	StreamInterval    time.Duration `yaml:"stream_interval"`
	KeepAliveInterval time.Duration `yaml:"keepalive_interval"`

	CommandDefaultTTL time.Duration `yaml:"command_default_ttl"`

	IngestRateLimit   int `yaml:"ingest_rate_limit"`
	IngestRateWindow  int `yaml:"ingest_rate_window_seconds"`
	DeviceRateLimit   int `yaml:"device_rate_limit"`
	DeviceRateWindow  int `yaml:"device_rate_window_seconds"`

	AlertWebhookURL string          `yaml:"alert_webhook_url"`
	AlertThresholds AlertThresholds `yaml:"alert_thresholds"`
}

// AlertThresholds defines the bands outside which telemetry raises an alert.
type AlertThresholds struct {
	MoistureMin float64 `yaml:"moisture_min"`
	PHMin       float64 `yaml:"ph_min"`
	PHMax       float64 `yaml:"ph_max"`
	ECMax       float64 `yaml:"ec_max"`
}

// Load builds configuration from the environment and the optional YAML file.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		DefaultRoomID:     getenvDefault("DEFAULT_ROOM_ID", "main-room"),
		StaleThreshold:    getenvDuration("STALE_THRESHOLD", 2*time.Minute),
		StreamInterval:    getenvDuration("STREAM_INTERVAL", 5*time.Second),
		KeepAliveInterval: getenvDuration("STREAM_KEEPALIVE_INTERVAL", 30*time.Second),
		CommandDefaultTTL: getenvDuration("COMMAND_DEFAULT_TTL", 5*time.Minute),
		IngestRateLimit:   getenvIntDefault("INGEST_RATE_LIMIT", 120),
		IngestRateWindow:  getenvIntDefault("INGEST_RATE_WINDOW_SECONDS", 60),
		DeviceRateLimit:   getenvIntDefault("DEVICE_RATE_LIMIT", 60),
		DeviceRateWindow:  getenvIntDefault("DEVICE_RATE_WINDOW_SECONDS", 60),
		AlertWebhookURL:   os.Getenv("ALERT_WEBHOOK_URL"),
		AlertThresholds: AlertThresholds{
			MoistureMin: getenvFloatDefault("ALERT_MOISTURE_MIN", 20),
			PHMin:       getenvFloatDefault("ALERT_PH_MIN", 5.0),
			PHMax:       getenvFloatDefault("ALERT_PH_MAX", 7.5),
			ECMax:       getenvFloatDefault("ALERT_EC_MAX", 4.0),
		},
	}

	if path := os.Getenv("HYDROFARM_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("config: DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("config: AUTH_JWT_SECRET is required")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}
