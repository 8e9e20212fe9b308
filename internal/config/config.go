package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all environment-driven settings for the service.
type Config struct {
	Port int
	Env  string

	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	ModelName         string
	RequestTimeout    time.Duration

	MaxMessageLength       int
	MaxConversationHistory int
	SessionTimeout         time.Duration

	RateLimitWindow      time.Duration
	RateLimitMaxRequests int

	CORSOrigin string

	ObsExporter string
	LogLevel    string
}

// Load reads configuration from the environment, applying defaults for
// anything unset. It does not validate; call Validate before use.
func Load() *Config {
	return &Config{
		Port:                   envInt("PORT", 3001),
		Env:                    envOr("PARLEY_ENV", "development"),
		OpenRouterAPIKey:       os.Getenv("OPENROUTER_API_KEY"),
		OpenRouterBaseURL:      envOr("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		ModelName:              envOr("MODEL_NAME", "tngtech/deepseek-r1t2-chimera:free"),
		RequestTimeout:         time.Duration(envInt("REQUEST_TIMEOUT_MS", 60000)) * time.Millisecond,
		MaxMessageLength:       envInt("MAX_MESSAGE_LENGTH", 4000),
		MaxConversationHistory: envInt("MAX_CONVERSATION_HISTORY", 10),
		SessionTimeout:         time.Duration(envInt("SESSION_TIMEOUT_HOURS", 24)) * time.Hour,
		RateLimitWindow:        time.Duration(envInt("RATE_LIMIT_WINDOW_MS", 900000)) * time.Millisecond,
		RateLimitMaxRequests:   envInt("RATE_LIMIT_MAX_REQUESTS", 100),
		CORSOrigin:             envOr("CORS_ORIGIN", "http://localhost:3000"),
		ObsExporter:            envOr("OBS_EXPORTER", "none"),
		LogLevel:               envOr("LOG_LEVEL", "info"),
	}
}

// Validate reports configuration errors that would make the service
// unusable at runtime.
func (c *Config) Validate() error {
	if c.OpenRouterAPIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY environment variable is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port)
	}
	if c.MaxMessageLength <= 0 {
		return fmt.Errorf("MAX_MESSAGE_LENGTH must be positive, got %d", c.MaxMessageLength)
	}
	if c.MaxConversationHistory <= 0 {
		return fmt.Errorf("MAX_CONVERSATION_HISTORY must be positive, got %d", c.MaxConversationHistory)
	}
	if c.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT_HOURS must be positive")
	}
	if c.RateLimitWindow <= 0 || c.RateLimitMaxRequests <= 0 {
		return fmt.Errorf("rate limit window and max requests must be positive")
	}
	return nil
}

// IsDevelopment reports whether the service runs in development mode.
// Error responses include internal details only in development.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Env, "development")
}

func envOr(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func envInt(key string, fallback int) int {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}
