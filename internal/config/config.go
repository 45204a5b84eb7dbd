package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv         string
	Port           string
	AllowedOrigins string

	DatabaseURL string
	RedisURL    string

	ScrapeURL      string
	ScrapeSchedule string

	// DailyCutoff is the time-of-day boundary used when collapsing multiple
	// intraday batches into one daily snapshot, as an offset from midnight.
	DailyCutoff time.Duration

	ViewRowLimit    int
	ViewColumnLimit int
	TopPlayersLimit int
}

func Load() (*Config, error) {
	// Don't fail if .env doesn't exist (might be prod env vars)
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000"),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),

		ScrapeURL:      os.Getenv("SCRAPE_URL"),
		ScrapeSchedule: getEnv("SCRAPE_SCHEDULE", "*/30 * * * *"),
	}

	var err error
	cfg.DailyCutoff, err = ParseClock(getEnv("DAILY_CUTOFF", "08:00"))
	if err != nil {
		return nil, fmt.Errorf("invalid DAILY_CUTOFF: %w", err)
	}
	cfg.ViewRowLimit, err = parseInt(getEnv("VIEW_ROW_LIMIT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid VIEW_ROW_LIMIT: %w", err)
	}
	cfg.ViewColumnLimit, err = parseInt(getEnv("VIEW_COLUMN_LIMIT", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid VIEW_COLUMN_LIMIT: %w", err)
	}
	cfg.TopPlayersLimit, err = parseInt(getEnv("TOP_PLAYERS_LIMIT", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOP_PLAYERS_LIMIT: %w", err)
	}

	return cfg, nil
}

// ParseClock parses an "HH:MM" time-of-day string into an offset from
// midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
