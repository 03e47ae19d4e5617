package server

import (
	"fmt"
	"os"
	"time"
)

// Config represents the demo backend configuration
type Config struct {
	Host string
	Port int

	// KeepAliveInterval is how often a comment line is written when the
	// agent produces no events, to keep intermediaries from dropping the
	// connection.
	KeepAliveInterval time.Duration

	// TokenDelay paces token emission so streaming is visible in demos.
	// Zero disables pacing; tests run with zero.
	TokenDelay time.Duration
}

// DefaultConfig returns the default configuration from environment variables
func DefaultConfig() *Config {
	port := 8000
	if p := os.Getenv("PORT"); p != "" {
		fmt.Sscanf(p, "%d", &port)
	}

	return &Config{
		Host:              getEnvOrDefault("HOST", "0.0.0.0"),
		Port:              port,
		KeepAliveInterval: getDurationOrDefault("FORGE_KEEPALIVE_INTERVAL", 15*time.Second),
		TokenDelay:        getDurationOrDefault("FORGE_TOKEN_DELAY", 20*time.Millisecond),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
