package config

import (
	"testing"
	"time"
	_ "time/tzdata"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("DATABASE_URL", "postgres://localhost/clan?sslmode=disable")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	for _, name := range []string{
		"LOG_LEVEL", "ENVIRONMENT", "DEFAULT_TIMEZONE", "CRON_SPEC_TICK", "CRON_SPEC_CLEANUP",
		"POLL_RETENTION_DAYS", "TICK_TIMEOUT_SECONDS", "TELEGRAM_TIMEOUT_SECONDS",
		"TELEGRAM_RATE_PER_SECOND", "WEBHOOK_URL", "WEBHOOK_LISTEN", "HTTP_ADDR", "ALLOWED_GROUP_IDS",
	} {
		t.Setenv(name, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LogLevel != "info" || cfg.Environment != "development" || cfg.DefaultTimezone != "Europe/Kiev" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.CronSpecTick != "* * * * *" || cfg.CronSpecCleanup != "0 3 * * *" {
		t.Errorf("cron specs = %q, %q", cfg.CronSpecTick, cfg.CronSpecCleanup)
	}
	if cfg.PollRetention != 60*24*time.Hour || cfg.TickTimeout != 55*time.Second || cfg.TelegramTimeout != 10*time.Second {
		t.Errorf("durations = %v %v %v", cfg.PollRetention, cfg.TickTimeout, cfg.TelegramTimeout)
	}
	if cfg.TelegramRate != 25 || cfg.WebhookListen != "" || len(cfg.AllowedGroupIDs) != 0 {
		t.Errorf("unexpected transport defaults: %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("WEBHOOK_URL", "https://bot.example.com/hook")
	t.Setenv("WEBHOOK_LISTEN", "")
	t.Setenv("ALLOWED_GROUP_IDS", "-1001, -1002,,")
	t.Setenv("POLL_RETENTION_DAYS", "7")
	t.Setenv("ENVIRONMENT", "Production")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.WebhookListen != ":8443" {
		t.Errorf("webhook listen = %q", cfg.WebhookListen)
	}
	if len(cfg.AllowedGroupIDs) != 2 || cfg.AllowedGroupIDs[0] != -1001 || cfg.AllowedGroupIDs[1] != -1002 {
		t.Errorf("allowed ids = %v", cfg.AllowedGroupIDs)
	}
	if cfg.PollRetention != 7*24*time.Hour || cfg.Environment != "production" {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"missing token", "TELEGRAM_TOKEN", ""},
		{"missing database", "DATABASE_URL", ""},
		{"bad timezone", "DEFAULT_TIMEZONE", "Mars/Olympus"},
		{"negative retention", "POLL_RETENTION_DAYS", "-1"},
		{"bad rate", "TELEGRAM_RATE_PER_SECOND", "fast"},
		{"bad group id", "ALLOWED_GROUP_IDS", "-1001,abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("%s=%q accepted", tt.key, tt.value)
			}
		})
	}
}
