package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string
	MongoURI    string
	RedisURL    string

	// Auth
	JWTSecret string

	// Session cookie
	SessionCookieName   string
	SessionCookieMaxAge int // seconds
	SessionCookieSecure bool
	SessionExpiryDays   int

	// OpenAI-compatible LLM
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	OpenAIModel        string
	EmbeddingModel     string
	MaxContextMessages int

	// Pinecone
	PineconeAPIKey    string
	PineconeIndexHost string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string

	// Rate limiting
	RateLimitAnonymous     int // requests per window for anonymous sessions
	RateLimitAuthenticated int // requests per window for authenticated users
	RateLimitWindowSeconds int

	// CORS
	AllowedOrigins string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: strings.ToLower(getEnv("ENVIRONMENT", "development")),
		MongoURI:    getEnv("MONGODB_URI", ""),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		SessionCookieName:   getEnv("SESSION_COOKIE_NAME", "autopilot_session"),
		SessionCookieMaxAge: getIntEnv("SESSION_COOKIE_MAX_AGE", 2592000), // 30 days
		SessionCookieSecure: getBoolEnv("SESSION_COOKIE_SECURE", true),
		SessionExpiryDays:   getIntEnv("SESSION_EXPIRY_DAYS", 30),

		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIModel:        getEnv("OPENAI_MODEL", "gpt-4o"),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		MaxContextMessages: getIntEnv("MAX_CONTEXT_MESSAGES", 20),

		PineconeAPIKey:    getEnv("PINECONE_API_KEY", ""),
		PineconeIndexHost: getEnv("PINECONE_INDEX_HOST", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/checkout/success"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/checkout/cancel"),

		RateLimitAnonymous:     getIntEnv("RATE_LIMIT_ANONYMOUS", 30),
		RateLimitAuthenticated: getIntEnv("RATE_LIMIT_AUTHENTICATED", 120),
		RateLimitWindowSeconds: getIntEnv("RATE_LIMIT_WINDOW_SECONDS", 60),

		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
	}
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
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
