package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config keeps runtime settings for every command.
type Config struct {
	DatabaseURL    string
	HTTPAddr       string
	JWTSecret      string
	TelegramToken  string
	UserID         string
	ReportInterval time.Duration
	Location       *time.Location
}

// Load reads configuration from environment variables with sane defaults.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment win.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (Config, error) {
	cfg := Config{
		DatabaseURL:    strings.TrimSpace(os.Getenv("TASKMATE_DATABASE_URL")),
		HTTPAddr:       strings.TrimSpace(os.Getenv("TASKMATE_HTTP_ADDR")),
		JWTSecret:      strings.TrimSpace(os.Getenv("TASKMATE_JWT_SECRET")),
		TelegramToken:  strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		UserID:         strings.TrimSpace(os.Getenv("TASKMATE_USER_ID")),
		ReportInterval: parseInterval(strings.TrimSpace(os.Getenv("REPORT_INTERVAL_HOURS"))),
		Location:       time.Local,
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "taskmate.db"
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	if cfg.ReportInterval == 0 {
		cfg.ReportInterval = 5 * time.Hour
	}

	if tz := strings.TrimSpace(os.Getenv("TASKMATE_TIMEZONE")); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return cfg, fmt.Errorf("TASKMATE_TIMEZONE: %w", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// RequireTelegram checks the settings the bot needs.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

// RequireJWT checks the settings the HTTP API needs.
func (c Config) RequireJWT() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("TASKMATE_JWT_SECRET is required")
	}
	return nil
}

func parseInterval(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
