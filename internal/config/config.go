// Package config provides environment configuration for the API server and
// the terminal client.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// Storage: "memory" or "nats"
	Store string

	// NATS settings
	NATSURL      string
	NATSCAFile   string
	NATSCertFile string
	NATSKeyFile  string
	NATSToken    string

	// JWT settings; an empty secret disables authentication
	JWTSecret     string
	JWTExpiration time.Duration

	// LLM settings
	AnthropicAPIKey string
	OpenAIAPIKey    string
	DefaultLLM      string

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool

	Client ClientConfig
}

// ClientConfig holds settings for the chat client.
type ClientConfig struct {
	APIURL      string
	RasaURL     string
	Backend     string
	UserID      string
	DisplayName string
	Token       string
	Platform    string
	Language    string
	Topic       string
	Timezone    string
	HTTPTimeout time.Duration
	PerPage     int
	LogFile     string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is applied first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8000"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		Store: getEnv("STORE", "memory"),

		// NATS
		NATSURL:      getEnv("NATS_URL", "nats://localhost:4222"),
		NATSCAFile:   getEnv("NATS_CA_FILE", ""),
		NATSCertFile: getEnv("NATS_CERT_FILE", ""),
		NATSKeyFile:  getEnv("NATS_KEY_FILE", ""),
		NATSToken:    getEnv("NATS_TOKEN", ""),

		// JWT
		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTExpiration: getDurationEnv("JWT_EXPIRATION", 24*time.Hour),

		// LLM
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		DefaultLLM:      getEnv("DEFAULT_LLM", "anthropic"),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),

		Client: ClientConfig{
			APIURL:      getEnv("CHAT_API_URL", "http://localhost:8000"),
			RasaURL:     getEnv("RASA_API_URL", "http://localhost:5005"),
			Backend:     getEnv("CHAT_BACKEND", "resource"),
			UserID:      getEnv("CHAT_USER_ID", ""),
			DisplayName: getEnv("CHAT_DISPLAY_NAME", "User"),
			Token:       getEnv("CHAT_TOKEN", ""),
			Platform:    getEnv("CHAT_PLATFORM", "mobile"),
			Language:    getEnv("CHAT_LANGUAGE", "en-US"),
			Topic:       getEnv("CHAT_TOPIC", "general"),
			Timezone:    getEnv("TZ", "UTC"),
			HTTPTimeout: getDurationEnv("CHAT_HTTP_TIMEOUT", 30*time.Second),
			PerPage:     getIntEnv("CHAT_PER_PAGE", 20),
			LogFile:     getEnv("CHAT_LOG_FILE", "campuschat.log"),
		},
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
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
