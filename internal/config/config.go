package config

import (
	"os"
	"time"
)

// Config holds application configuration
type Config struct {
	Env      string
	LogLevel string

	// Clinic REST API (directory, scheduling, reporting).
	APIBaseURL  string
	HTTPTimeout time.Duration

	// Realtime chat transport.
	ChatWSURL          string
	ChatReconnectDelay time.Duration

	// Bearer token for development runs; production tokens come from the
	// login flow, not the environment.
	AuthToken string

	// Local stub message server.
	StubPort string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		APIBaseURL:  getEnv("API_BASE_URL", "http://127.0.0.1:8000"),
		HTTPTimeout: getEnvAsDuration("HTTP_TIMEOUT", 10*time.Second),

		ChatWSURL:          getEnv("CHAT_WS_URL", "ws://localhost:8083/ws"),
		ChatReconnectDelay: getEnvAsDuration("CHAT_RECONNECT_DELAY", 5*time.Second),

		AuthToken: getEnv("CLINIC_TOKEN", ""),

		StubPort: getEnv("STUB_PORT", "8083"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
