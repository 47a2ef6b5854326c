package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	ServerPort      string
	DatabaseType    string
	DatabasePath    string
	DatabaseURL     string
	MigrationsPath  string
	CatalogPath     string
	SessionSecret   string
	SessionDuration time.Duration

	// Idle game controllers are flushed and evicted after this duration
	ControllerIdleTimeout time.Duration

	// Email (Amazon SES) settings for the completion certificate
	AWSRegion    string
	SESFromEmail string
	SESFromName  string
	AppBaseURL   string

	// OAuth providers
	GoogleClientID       string
	GoogleClientSecret   string
	FacebookClientID     string
	FacebookClientSecret string
	OAuthRedirectBaseURL string
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first if present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env file")
	}

	return &Config{
		ServerPort:      getEnv("PORT", "8080"),
		DatabaseType:    getEnv("DB_TYPE", "sqlite"),
		DatabasePath:    getEnv("DB_PATH", "./scameleon.db"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		CatalogPath:     getEnv("CATALOG_PATH", "./configs/catalog.yaml"),
		SessionSecret:   getEnv("SESSION_SECRET", "dev-only-insecure-secret"),
		SessionDuration: getCountEnv("SESSION_DURATION_HOURS", 24) * time.Hour,

		ControllerIdleTimeout: getCountEnv("CONTROLLER_IDLE_MINUTES", 30) * time.Minute,

		AWSRegion:    getEnv("AWS_REGION", "eu-west-1"),
		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "Scameleon"),
		AppBaseURL:   getEnv("APP_BASE_URL", "http://localhost:8080"),

		GoogleClientID:       getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   getEnv("GOOGLE_CLIENT_SECRET", ""),
		FacebookClientID:     getEnv("FACEBOOK_CLIENT_ID", ""),
		FacebookClientSecret: getEnv("FACEBOOK_CLIENT_SECRET", ""),
		OAuthRedirectBaseURL: getEnv("OAUTH_REDIRECT_BASE_URL", "http://localhost:8080"),
	}
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getCountEnv reads a positive integer environment variable as a duration unit count
func getCountEnv(key string, defaultValue int) time.Duration {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return time.Duration(n)
		}
	}
	return time.Duration(defaultValue)
}
