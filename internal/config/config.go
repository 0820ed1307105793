// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	BotToken    string
	CronSecret  string
	AdminChatID string // optional: admin notifications are skipped when empty
	MiniAppURL  string

	GeminiAPIKey string // optional: AI resume flow fails upstream when empty

	RandomCoffeePriceStars int
	ResumeAIPriceStars     int

	Timezone *time.Location
	LogLevel string
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}

	cronSecret := os.Getenv("CRON_SECRET")
	if cronSecret == "" {
		return nil, fmt.Errorf("CRON_SECRET is required")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	miniAppURL := os.Getenv("RANDOM_COFFEE_MINI_APP_URL")
	if miniAppURL == "" {
		miniAppURL = "https://evsi.store/tg-app"
	}

	rcPrice, err := positiveIntEnv("RANDOM_COFFEE_PRICE_STARS", 100)
	if err != nil {
		return nil, err
	}

	aiPrice, err := positiveIntEnv("RESUME_AI_PRICE_STARS", 10)
	if err != nil {
		return nil, err
	}

	tzName := os.Getenv("CRON_TZ")
	if tzName == "" {
		tzName = "Europe/Moscow"
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("CRON_TZ: unknown timezone %q", tzName)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		Port:                   port,
		DatabaseURL:            dbURL,
		RedisURL:               redisURL,
		BotToken:               botToken,
		CronSecret:             cronSecret,
		AdminChatID:            os.Getenv("TELEGRAM_ADMIN_ID"),
		MiniAppURL:             miniAppURL,
		GeminiAPIKey:           os.Getenv("GEMINI_API_KEY_RESUME"),
		RandomCoffeePriceStars: rcPrice,
		ResumeAIPriceStars:     aiPrice,
		Timezone:               loc,
		LogLevel:               logLevel,
	}, nil
}

func positiveIntEnv(name string, def int) (int, error) {
	s := os.Getenv(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, s)
	}
	return v, nil
}
