package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port         string
	DatabasePath string // SQLite file holding sessions, messages, and policies

	// OpenAI-compatible platform (Azure OpenAI or api.openai.com)
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	OpenAIAPIVersion string // Azure api-version; leave empty for plain OpenAI
	OpenAIDeployment string // model/deployment name used for chat and extraction

	// Assistant identity; exactly one assistant exists per name
	AssistantName string

	// Response polling
	PollInterval    time.Duration
	PollMaxAttempts int
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "3001"),
		DatabasePath: getEnv("DATABASE_PATH", "policypal.db"),

		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIAPIVersion: getEnv("OPENAI_API_VERSION", ""),
		OpenAIDeployment: getEnv("OPENAI_DEPLOYMENT", "gpt-4o"),

		AssistantName: getEnv("ASSISTANT_NAME", "Smart Policy Assistant"),

		PollInterval:    getDurationEnv("RESPONSE_POLL_INTERVAL", time.Second),
		PollMaxAttempts: getIntEnv("RESPONSE_POLL_MAX_ATTEMPTS", 120),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := time.ParseDuration(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
