package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the check-in companion service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	// BackendMode selects the well-being backend implementation:
	// auto (http when a URL is configured, mock otherwise), http, or mock.
	BackendMode    string
	BackendURL     string
	BackendToken   string
	BackendTimeout time.Duration

	// TotalQuestions is the per-conversation budget of normal questions.
	TotalQuestions int
	TurnTimeout    time.Duration

	// TranscribeMaxBytes caps uploaded recordings accepted by the API.
	TranscribeMaxBytes int64

	DatabaseURL string
}

// Load reads environment variables and applies safe defaults.
// A .env file in the working directory is honored when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BindAddr:                 envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:         envOrDefault("APP_METRICS_NAMESPACE", "pulse"),
		AllowAnyOrigin:           false,
		BackendMode:              envOrDefault("CHECKIN_BACKEND_MODE", "auto"),
		BackendURL:               strings.TrimSpace(os.Getenv("CHECKIN_BACKEND_URL")),
		BackendToken:             strings.TrimSpace(os.Getenv("CHECKIN_BACKEND_TOKEN")),
		DatabaseURL:              strings.TrimSpace(os.Getenv("DATABASE_URL")),
		TotalQuestions:           5,
		ShutdownTimeout:          15 * time.Second,
		SessionInactivityTimeout: 30 * time.Minute,
		BackendTimeout:           60 * time.Second,
		TurnTimeout:              45 * time.Second,
		TranscribeMaxBytes:       10 << 20,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.BackendTimeout, err = durationFromEnv("CHECKIN_BACKEND_TIMEOUT", cfg.BackendTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnTimeout, err = durationFromEnv("CHECKIN_TURN_TIMEOUT", cfg.TurnTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.TotalQuestions, err = intFromEnv("CHECKIN_TOTAL_QUESTIONS", cfg.TotalQuestions)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.TotalQuestions <= 0 {
		return Config{}, fmt.Errorf("CHECKIN_TOTAL_QUESTIONS must be positive")
	}
	if cfg.TurnTimeout <= 0 {
		return Config{}, fmt.Errorf("CHECKIN_TURN_TIMEOUT must be positive")
	}
	if cfg.BackendTimeout <= 0 {
		return Config{}, fmt.Errorf("CHECKIN_BACKEND_TIMEOUT must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(cfg.BackendMode)) {
	case "auto", "http", "mock":
	default:
		return Config{}, fmt.Errorf("invalid CHECKIN_BACKEND_MODE: %q (expected auto|http|mock)", cfg.BackendMode)
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
