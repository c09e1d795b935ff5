package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	// Database connection string (DSN)
	DatabaseURL string

	// Server bind address (host:port)
	ServerAddr string

	// Base URL used in links and audit metadata
	ServerURL string

	// Maximum database connection pool size
	MaxDBConnections int

	// Enable debug logging
	Debug bool

	// DestinationsPath points to the navigation destination registry file.
	// Empty means the embedded default registry is used.
	DestinationsPath string

	// SessionDuration is the lifetime of login sessions
	SessionDuration time.Duration

	// TokenSigningSecret signs HS256 API tokens for automation clients.
	// API token authentication is disabled when empty.
	TokenSigningSecret string

	// TokenIssuer is the iss claim on minted API tokens
	TokenIssuer string

	// ClientID identifies this deployment in password-change audit metadata
	ClientID string
}

// Load reads configuration from environment variables with fallback defaults
func Load() (*Config, error) {
	cfg := &Config{
		DatabaseURL:        getEnv("DATABASE_URL", "memberhub.db"),
		ServerAddr:         getEnv("SERVER_ADDR", "localhost:8080"),
		ServerURL:          getEnv("SERVER_URL", "http://localhost:8080"),
		MaxDBConnections:   getEnvInt("MAX_DB_CONNECTIONS", 25),
		Debug:              getEnvBool("DEBUG", false),
		DestinationsPath:   getEnv("DESTINATIONS_PATH", ""),
		SessionDuration:    getEnvDuration("SESSION_DURATION", 12*time.Hour),
		TokenSigningSecret: getEnv("TOKEN_SIGNING_SECRET", ""),
		TokenIssuer:        getEnv("TOKEN_ISSUER", "memberhub"),
		ClientID:           getEnv("CLIENT_ID", "memberhub-api"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("SERVER_URL is required")
	}

	if cfg.SessionDuration <= 0 {
		return nil, fmt.Errorf("SESSION_DURATION must be positive")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseBool(value); err == nil {
			return result
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable (e.g. "12h") or
// returns a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if result, err := time.ParseDuration(value); err == nil {
			return result
		}
	}
	return defaultValue
}
