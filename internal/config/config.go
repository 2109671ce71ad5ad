package config

import (
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Dialogue engine
	BusinessTimezone  string
	DefaultLocale     string
	HistoryWindow     int
	StoreTimeout      time.Duration
	ResponderTimeout  time.Duration
	ResponderMaxRunes int
	TurnTTL           time.Duration
	TurnLogMax        int

	// Fallback responder
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModelID       string
	ResponderMaxTokens  int

	// Reminder dispatcher
	ReminderLeadDays int
	ReminderInterval time.Duration

	// Waitlist invites
	WaitlistInviteTTL time.Duration
	WaitlistInterval  time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		BusinessTimezone:  getEnv("BUSINESS_TIMEZONE", "America/Toronto"),
		DefaultLocale:     strings.ToLower(strings.TrimSpace(getEnv("DEFAULT_LOCALE", "pt"))),
		HistoryWindow:     getEnvAsInt("HISTORY_WINDOW", 10),
		StoreTimeout:      getEnvAsDuration("STORE_TIMEOUT", 3*time.Second),
		ResponderTimeout:  getEnvAsDuration("RESPONDER_TIMEOUT", 8*time.Second),
		ResponderMaxRunes: getEnvAsInt("RESPONDER_MAX_RUNES", 500),
		TurnTTL:           getEnvAsDuration("TURN_TTL", 30*24*time.Hour),
		TurnLogMax:        getEnvAsInt("TURN_LOG_MAX", 200),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),
		ResponderMaxTokens:  getEnvAsInt("RESPONDER_MAX_TOKENS", 300),

		ReminderLeadDays: getEnvAsInt("REMINDER_LEAD_DAYS", 3),
		ReminderInterval: getEnvAsDuration("REMINDER_INTERVAL", 15*time.Minute),

		WaitlistInviteTTL: getEnvAsDuration("WAITLIST_INVITE_TTL", 2*time.Hour),
		WaitlistInterval:  getEnvAsDuration("WAITLIST_INTERVAL", 5*time.Minute),
	}
}

// Location resolves BusinessTimezone, falling back to UTC when it is empty or unknown.
func (c *Config) Location() *time.Location {
	if c == nil || strings.TrimSpace(c.BusinessTimezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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
