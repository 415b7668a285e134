package config

import (
	"os"
	"strings"
	"time"
)

// Config holds widget runtime configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	OrganizationSlug   string
	APIBaseURL         string
	APITimeout         time.Duration
	BundleURL          string
	PollInterval       time.Duration
	PulseDuration      time.Duration
	MarkerBackend      string
	MarkerDBPath       string
	RedisAddr          string
	RedisPassword      string
	RedisNamespace     string
	SessionTTL         time.Duration
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		OrganizationSlug:   getEnv("WAVEBOX_SLUG", ""),
		APIBaseURL:         getEnv("WAVEBOX_API_BASE_URL", "https://app.wavebox.innovar.com"),
		APITimeout:         getEnvAsDuration("WAVEBOX_API_TIMEOUT", 15*time.Second),
		BundleURL:          getEnv("WIDGET_BUNDLE_URL", "/static/wavebox-bundle.js"),
		PollInterval:       getEnvAsDuration("WIDGET_POLL_INTERVAL", 5*time.Second),
		PulseDuration:      getEnvAsDuration("WIDGET_PULSE_DURATION", 3*time.Second),
		MarkerBackend:      strings.ToLower(strings.TrimSpace(getEnv("WIDGET_MARKER_BACKEND", "memory"))),
		MarkerDBPath:       getEnv("WIDGET_MARKER_DB_PATH", "wavebox-widget.db"),
		RedisAddr:          getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisNamespace:     getEnv("REDIS_NAMESPACE", "wavebox"),
		SessionTTL:         getEnvAsDuration("WIDGET_SESSION_TTL", 30*time.Minute),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsDuration retrieves an environment variable as a duration or returns a default value
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

// getEnvAsSlice retrieves a comma-separated environment variable or returns a default value
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
