package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/i474232898/station-aggregator/internal/common"
	"github.com/i474232898/station-aggregator/internal/weather"
)

type AppConfig struct {
	Env      string     `validate:"oneof=dev prod"`
	LogLevel slog.Level `validate:"-"`

	HTTPAddr string `validate:"required"`

	// FlushInterval closes every station period on a fixed interval.
	// FlushCron, when set, replaces it with a cron expression.
	FlushInterval time.Duration `validate:"gt=0"`
	FlushCron     string

	DewPointModel weather.SensorModel

	// Stations restricts accepted station ids. Empty accepts any.
	Stations []string `validate:"dive,required,max=64"`

	// In-memory store retention.
	StoreMaxHistory int           `validate:"gte=0"` // max samples per station (0 = unlimited)
	StoreMaxAge     time.Duration `validate:"gte=0"` // max age of samples (0 = unlimited)

	// SQLitePath enables the sqlite sink when set.
	SQLitePath     string
	SinkMaxRetries int `validate:"gte=0"`

	// MQTTBroker enables MQTT ingestion when set.
	MQTTBroker       string
	MQTTPort         int    `validate:"gt=0,lte=65535"`
	MQTTClientID     string `validate:"required"`
	MQTTTopic        string `validate:"required"`
	MQTTPublishTopic string
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from the process environment only.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		Env:              getenvDefault("APP_ENV", "dev"),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		FlushCron:        os.Getenv("FLUSH_CRON"),
		Stations:         common.SplitList(os.Getenv("STATIONS")),
		SQLitePath:       os.Getenv("SQLITE_PATH"),
		MQTTBroker:       os.Getenv("MQTT_BROKER"),
		MQTTClientID:     getenvDefault("MQTT_CLIENT_ID", "station-aggregator-"+uuid.NewString()),
		MQTTTopic:        getenvDefault("MQTT_TOPIC", "stations/+/readings"),
		MQTTPublishTopic: os.Getenv("MQTT_PUBLISH_TOPIC"),
	}

	var err error
	if cfg.LogLevel, err = parseLevel(getenvDefault("LOG_LEVEL", "info")); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	if cfg.FlushInterval, err = getenvDuration("FLUSH_INTERVAL", 10*time.Minute); err != nil {
		return nil, fmt.Errorf("invalid FLUSH_INTERVAL: %w", err)
	}
	if cfg.StoreMaxAge, err = getenvDuration("STORE_MAX_AGE", 24*time.Hour); err != nil {
		return nil, fmt.Errorf("invalid STORE_MAX_AGE: %w", err)
	}
	if cfg.DewPointModel, err = weather.ParseSensorModel(getenvDefault("DEW_POINT_MODEL", string(weather.ModelDavisVP))); err != nil {
		return nil, fmt.Errorf("invalid DEW_POINT_MODEL: %w", err)
	}
	// Roughly 24h at 10-minute periods.
	if cfg.StoreMaxHistory, err = getenvInt("STORE_MAX_HISTORY", 144); err != nil {
		return nil, fmt.Errorf("invalid STORE_MAX_HISTORY: %w", err)
	}
	if cfg.SinkMaxRetries, err = getenvInt("SINK_MAX_RETRIES", 3); err != nil {
		return nil, fmt.Errorf("invalid SINK_MAX_RETRIES: %w", err)
	}
	if cfg.MQTTPort, err = getenvInt("MQTT_PORT", 1883); err != nil {
		return nil, fmt.Errorf("invalid MQTT_PORT: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Dev reports whether the app runs in development mode.
func (c *AppConfig) Dev() bool {
	return c.Env == "dev"
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("%q (allowed: debug, info, warn, error)", s)
	}
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	if v := os.Getenv(key); v != "" {
		return strconv.Atoi(v)
	}
	return def, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		return time.ParseDuration(v)
	}
	return def, nil
}
