package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every runtime parameter of the engine.
type Config struct {
	DatabaseURL  string
	ServerPort   int
	JWTSecretKey string

	// How long before a match's scheduled time the check-in window opens,
	// when the game profile does not say otherwise.
	DefaultCheckInWindow time.Duration
	// Cron spec for the lifecycle sweeps (check-in opening, forfeit on
	// expiry, auto-start).
	SweepSchedule string
	// Polling interval of the outbox relay.
	RelayInterval time.Duration

	// Cloudflare R2, used for placement certificates.
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string
	R2PublicBaseURL   string

	// Prize amounts in cents for placements 1..3. Zero disables payouts.
	PrizeCentsFirst  int64
	PrizeCentsSecond int64
	PrizeCentsThird  int64
}

// Load reads the configuration from environment variables. A .env file is
// loaded first when present; its absence is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	checkInWindow, err := durationEnv("DEFAULT_CHECK_IN_WINDOW", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	relayInterval, err := durationEnv("RELAY_INTERVAL", 200*time.Millisecond)
	if err != nil {
		return nil, err
	}

	sweepSchedule := os.Getenv("SWEEP_SCHEDULE")
	if sweepSchedule == "" {
		sweepSchedule = "@every 15s"
	}

	prize1, err := int64Env("PRIZE_CENTS_FIRST", 0)
	if err != nil {
		return nil, err
	}
	prize2, err := int64Env("PRIZE_CENTS_SECOND", 0)
	if err != nil {
		return nil, err
	}
	prize3, err := int64Env("PRIZE_CENTS_THIRD", 0)
	if err != nil {
		return nil, err
	}

	return &Config{
		DatabaseURL:          dbURL,
		ServerPort:           port,
		JWTSecretKey:         jwtKey,
		DefaultCheckInWindow: checkInWindow,
		SweepSchedule:        sweepSchedule,
		RelayInterval:        relayInterval,

		R2AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		R2AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		R2SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		R2BucketName:      os.Getenv("R2_BUCKET_NAME"),
		R2PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),

		PrizeCentsFirst:  prize1,
		PrizeCentsSecond: prize2,
		PrizeCentsThird:  prize3,
	}, nil
}

// R2Configured reports whether certificate storage can be initialized.
func (c *Config) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" &&
		c.R2SecretAccessKey != "" && c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

func intEnv(name string, fallback int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return v, nil
}

func int64Env(name string, fallback int64) (int64, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return v, nil
}

func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", name, err)
	}
	return v, nil
}
