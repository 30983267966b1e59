package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port          string
	DatabaseURL   string
	RedisURL      string
	VendorAPIURL  string
	VendorAPIKey  string
	WebhookSecret string
	NumWorkers    int

	// WebhookRatePerSecond limits inbound webhook deliveries per source.
	// Zero disables rate limiting.
	WebhookRatePerSecond int
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port := getEnv("PORT", "8080")
	dbURL := getEnv("DATABASE_URL", "")
	redisURL := getEnv("REDIS_URL", "")
	vendorURL := getEnv("VENDOR_API_URL", "https://api.billing-vendor.example")
	vendorKey := getEnv("VENDOR_API_KEY", "")
	webhookSecret := getEnv("WEBHOOK_SECRET", "")
	numWorkers := getEnvInt("NUM_WORKERS", 10)
	webhookRate := getEnvInt("WEBHOOK_RATE_PER_SECOND", 50)

	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if webhookSecret == "" {
		return nil, fmt.Errorf("WEBHOOK_SECRET is required")
	}

	return &Config{
		Port:                 port,
		DatabaseURL:          dbURL,
		RedisURL:             redisURL,
		VendorAPIURL:         vendorURL,
		VendorAPIKey:         vendorKey,
		WebhookSecret:        webhookSecret,
		NumWorkers:           numWorkers,
		WebhookRatePerSecond: webhookRate,
	}, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
