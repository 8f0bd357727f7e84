package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string
	DatabaseURL     string
	LogLevel        string
	Environment     string
	DefaultTimezone string

	CronSpecTick    string
	CronSpecCleanup string
	PollRetention   time.Duration
	TickTimeout     time.Duration

	TelegramTimeout time.Duration
	TelegramRate    float64
	WebhookURL      string
	WebhookListen   string

	HTTPAddr        string
	AllowedGroupIDs []int64
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.DefaultTimezone = os.Getenv("DEFAULT_TIMEZONE")
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "Europe/Kiev"
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_TIMEZONE: %w", err)
	}

	cfg.CronSpecTick = os.Getenv("CRON_SPEC_TICK")
	if cfg.CronSpecTick == "" {
		cfg.CronSpecTick = "* * * * *" // every minute
	}
	cfg.CronSpecCleanup = os.Getenv("CRON_SPEC_CLEANUP")
	if cfg.CronSpecCleanup == "" {
		cfg.CronSpecCleanup = "0 3 * * *" // 03:00 UTC daily
	}

	retentionDays, err := intEnv("POLL_RETENTION_DAYS", 60)
	if err != nil {
		return nil, err
	}
	cfg.PollRetention = time.Duration(retentionDays) * 24 * time.Hour

	tickSeconds, err := intEnv("TICK_TIMEOUT_SECONDS", 55)
	if err != nil {
		return nil, err
	}
	cfg.TickTimeout = time.Duration(tickSeconds) * time.Second

	tgSeconds, err := intEnv("TELEGRAM_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}
	cfg.TelegramTimeout = time.Duration(tgSeconds) * time.Second

	cfg.TelegramRate = 25
	if v := os.Getenv("TELEGRAM_RATE_PER_SECOND"); v != "" {
		cfg.TelegramRate, err = strconv.ParseFloat(v, 64)
		if err != nil || cfg.TelegramRate <= 0 {
			return nil, fmt.Errorf("invalid TELEGRAM_RATE_PER_SECOND: %q", v)
		}
	}

	cfg.WebhookURL = os.Getenv("WEBHOOK_URL")
	cfg.WebhookListen = os.Getenv("WEBHOOK_LISTEN")
	if cfg.WebhookURL != "" && cfg.WebhookListen == "" {
		cfg.WebhookListen = ":8443"
	}
	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")

	cfg.AllowedGroupIDs, err = parseIDList(os.Getenv("ALLOWED_GROUP_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid ALLOWED_GROUP_IDS: %w", err)
	}

	return cfg, nil
}

func intEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, v)
	}
	return n, nil
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
