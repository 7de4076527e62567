package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

// GetEnvOrDefault retrieves an environment variable or returns a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// ParseDuration parses an ISO-8601 duration ("PT30S") or, failing that, a Go
// duration string ("30s")
func ParseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if strings.HasPrefix(value, "P") || strings.HasPrefix(value, "-P") {
		iso, err := duration.Parse(value)
		if err != nil {
			return 0, fmt.Errorf("invalid ISO-8601 duration %q: %w", value, err)
		}
		return iso.ToTimeDuration(), nil
	}
	return time.ParseDuration(value)
}

// Environment represents different deployment environments
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
	Test        Environment = "test"
)

// GetEnvironment returns the current environment from APP_ENV or defaults to development
func GetEnvironment() Environment {
	switch GetEnvOrDefault("APP_ENV", "development") {
	case "production", "prod":
		return Production
	case "test", "testing":
		return Test
	default:
		return Development
	}
}

// IsProduction returns true if running in production environment
func IsProduction() bool {
	return GetEnvironment() == Production
}
