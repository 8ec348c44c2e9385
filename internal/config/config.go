package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ReminderTime is the time of day reminders fire at.
type ReminderTime struct {
	Hour   int
	Minute int
}

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken     string
	DatabaseURL       string
	ReminderTime      ReminderTime
	HorizonDays       int
	UpcomingWindow    int
	ReconcileInterval time.Duration
	CatalogURL        string
	CatalogKey        string
}

// Load reads configuration from a .env file (if present) and environment
// variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		TelegramToken:     strings.TrimSpace(os.Getenv("TELEGRAM_TOKEN")),
		DatabaseURL:       strings.TrimSpace(os.Getenv("DATABASE_URL")),
		HorizonDays:       parsePositiveInt(os.Getenv("HORIZON_DAYS"), 90),
		UpcomingWindow:    parsePositiveInt(os.Getenv("UPCOMING_WINDOW_DAYS"), 3),
		ReconcileInterval: parseHours(strings.TrimSpace(os.Getenv("RECONCILE_INTERVAL_HOURS"))),
		CatalogURL:        strings.TrimSpace(os.Getenv("PERENUAL_API_URL")),
		CatalogKey:        strings.TrimSpace(os.Getenv("PERENUAL_API_KEY")),
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "plant_care.db"
	}

	if cfg.ReconcileInterval == 0 {
		cfg.ReconcileInterval = 24 * time.Hour
	}

	at, err := ParseReminderTime(strings.TrimSpace(os.Getenv("REMINDER_TIME")))
	if err != nil {
		return cfg, err
	}
	cfg.ReminderTime = at

	if cfg.TelegramToken == "" {
		return cfg, fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	return cfg, nil
}

// ParseReminderTime parses an HH:MM string. Empty input falls back to 18:00,
// the default reminder slot.
func ParseReminderTime(raw string) (ReminderTime, error) {
	if raw == "" {
		return ReminderTime{Hour: 18}, nil
	}
	parts := strings.Split(raw, ":")
	if len(parts) != 2 {
		return ReminderTime{}, fmt.Errorf("invalid time %q, expected HH:MM", raw)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return ReminderTime{}, fmt.Errorf("invalid hour in %q", raw)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return ReminderTime{}, fmt.Errorf("invalid minute in %q", raw)
	}
	return ReminderTime{Hour: hour, Minute: minute}, nil
}

func parsePositiveInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func parseHours(raw string) time.Duration {
	if raw == "" {
		return 0
	}
	hours, err := time.ParseDuration(raw + "h")
	if err != nil || hours <= 0 {
		return 0
	}
	return hours
}
