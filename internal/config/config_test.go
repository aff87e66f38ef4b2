package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"TASKMATE_DATABASE_URL", "TASKMATE_HTTP_ADDR", "TASKMATE_JWT_SECRET", "TELEGRAM_TOKEN", "TASKMATE_USER_ID", "REPORT_INTERVAL_HOURS", "TASKMATE_TIMEZONE"} {
		t.Setenv(key, "")
	}

	cfg, err := fromEnv()
	if err != nil {
		t.Fatalf("fromEnv failed: %v", err)
	}
	if cfg.DatabaseURL != "taskmate.db" {
		t.Errorf("unexpected database url %q", cfg.DatabaseURL)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("unexpected addr %q", cfg.HTTPAddr)
	}
	if cfg.ReportInterval != 5*time.Hour {
		t.Errorf("unexpected interval %v", cfg.ReportInterval)
	}
	if cfg.RequireTelegram() == nil || cfg.RequireJWT() == nil {
		t.Error("expected requirement errors with empty secrets")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("TASKMATE_DATABASE_URL", "postgres://localhost/tasks")
	t.Setenv("REPORT_INTERVAL_HOURS", "12")
	t.Setenv("TASKMATE_TIMEZONE", "UTC")
	t.Setenv("TELEGRAM_TOKEN", "token")

	cfg, err := fromEnv()
	if err != nil {
		t.Fatalf("fromEnv failed: %v", err)
	}
	if cfg.ReportInterval != 12*time.Hour {
		t.Errorf("unexpected interval %v", cfg.ReportInterval)
	}
	if cfg.Location != time.UTC {
		t.Errorf("unexpected location %v", cfg.Location)
	}
	if cfg.RequireTelegram() != nil {
		t.Error("telegram token should satisfy RequireTelegram")
	}
}

func TestParseInterval(t *testing.T) {
	t.Parallel()
	tests := map[string]time.Duration{
		"":    0,
		"3":   3 * time.Hour,
		"-1":  0,
		"abc": 0,
	}
	for in, want := range tests {
		if got := parseInterval(in); got != want {
			t.Errorf("%q: expected %v, got %v", in, want, got)
		}
	}
}

func TestFromEnvBadTimezone(t *testing.T) {
	t.Setenv("TASKMATE_TIMEZONE", "Mars/Olympus")
	if _, err := fromEnv(); err == nil {
		t.Error("expected error for unknown timezone")
	}
}
