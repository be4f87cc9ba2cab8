// Package config provides application configuration loading from environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Telemetry exporter names accepted by OTEL_EXPORTER.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLPGRPC = "otlp-grpc"
	ExporterOTLPHTTP = "otlp-http"
)

// Config holds all configuration for the application.
type Config struct {
	DatabaseURL string
	HTTPAddr    string
	LogLevel    string
	LogFormat   string

	TelegramBotToken string
	GeminiAPIKey     string

	ExchangeRateBaseURL  string
	ExchangeRateTimeout  time.Duration
	ExchangeRateCacheTTL time.Duration

	TxTimeout time.Duration

	NotifyPollInterval time.Duration
	NotifyBatchSize    int
	NotifyMaxAttempts  int

	ReminderEnabled  bool
	ReminderHour     int
	ReminderTimezone string

	OTelExporter    string
	OTelServiceName string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		HTTPAddr:         envOr("HTTP_ADDR", ":8080"),
		LogLevel:         os.Getenv("LOG_LEVEL"),
		LogFormat:        envOr("LOG_FORMAT", "console"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		OTelServiceName:  envOr("OTEL_SERVICE_NAME", "expense-approvals"),
	}

	cfg.ExchangeRateBaseURL = envOr("EXCHANGE_RATE_BASE_URL", "https://api.frankfurter.app")
	cfg.ExchangeRateTimeout = durationOr("EXCHANGE_RATE_TIMEOUT", 5*time.Second)
	cfg.ExchangeRateCacheTTL = durationOr("EXCHANGE_RATE_CACHE_TTL", 12*time.Hour)
	cfg.TxTimeout = durationOr("TX_TIMEOUT", 5*time.Second)

	cfg.NotifyPollInterval = durationOr("NOTIFY_POLL_INTERVAL", 5*time.Second)
	cfg.NotifyBatchSize = positiveIntOr("NOTIFY_BATCH_SIZE", 50)
	cfg.NotifyMaxAttempts = positiveIntOr("NOTIFY_MAX_ATTEMPTS", 5)

	cfg.ReminderEnabled = os.Getenv("REMINDER_ENABLED") == "true"
	cfg.ReminderHour = 9
	if hourStr := os.Getenv("REMINDER_HOUR"); hourStr != "" {
		if h, err := strconv.Atoi(hourStr); err == nil && h >= 0 && h <= 23 {
			cfg.ReminderHour = h
		}
	}
	cfg.ReminderTimezone = "Asia/Singapore"
	if tz := os.Getenv("REMINDER_TIMEZONE"); tz != "" {
		if _, err := time.LoadLocation(tz); err == nil {
			cfg.ReminderTimezone = tz
		}
	}

	cfg.OTelExporter = strings.ToLower(strings.TrimSpace(envOr("OTEL_EXPORTER", ExporterNone)))

	// Validate required configuration.
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate checks that all required configuration is present.
func (c *Config) validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}

	if c.HTTPAddr == "" {
		errs = append(errs, "HTTP_ADDR must not be empty")
	}

	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("LOG_FORMAT must be console or json, got %q", c.LogFormat))
	}

	switch c.OTelExporter {
	case ExporterNone, ExporterStdout, ExporterOTLPGRPC, ExporterOTLPHTTP:
	default:
		errs = append(errs, fmt.Sprintf("OTEL_EXPORTER must be one of none, stdout, otlp-grpc, otlp-http; got %q", c.OTelExporter))
	}

	if c.ReminderEnabled && c.TelegramBotToken == "" {
		errs = append(errs, "REMINDER_ENABLED requires TELEGRAM_BOT_TOKEN")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// TelegramEnabled reports whether the Telegram bot should be started.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != ""
}

// GeminiEnabled reports whether receipt parsing is available.
func (c *Config) GeminiEnabled() bool {
	return c.GeminiAPIKey != ""
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func positiveIntOr(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
