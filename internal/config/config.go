package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Development bool
	// API configuration
	APIPort int
	// BaseURI is the public base URL of this service, used in mailed links.
	BaseURI string
	// Postgres configuration; empty PostgresHost selects the in-memory store.
	PostgresUser     string
	PostgresPassword string
	PostgresHost     string
	PostgresPort     int
	PostgresDB       string
	// SelectMaxRows caps every listing and export page.
	SelectMaxRows int

	// Salt drives email hashing and challenge token encryption.
	Salt string

	// Payment processor configuration
	GatewayAPIBase        string
	GatewayOAuthTokenURL  string
	GatewaySecretKey      string
	GatewayCurrency       string
	GatewayMinAmountCents int
	RetargetFeeCents      int

	// Signature recovery service
	RecoveryServiceURL string

	// Re-target session TTL
	RetargetTTL time.Duration
	// TallyCacheTTL bounds how long a tally-only result can be replayed.
	TallyCacheTTL time.Duration

	// SMTP configuration
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPSender   string

	// Optional operator alerts
	TelegramBotToken string
	TelegramChatID   string
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Development:      getEnvAsBool("DEVELOPMENT", false),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "password"),
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvAsInt("POSTGRES_PORT", 5432),
		PostgresDB:       getEnv("POSTGRES_DB", "tabula"),
		SelectMaxRows:    getEnvAsInt("SELECT_MAX_ROWS", 30),

		Salt: getEnv("SALT", ""),

		GatewayAPIBase:        getEnv("GATEWAY_API_BASE", "https://api.stripe.com"),
		GatewayOAuthTokenURL:  getEnv("GATEWAY_OAUTH_TOKEN_URL", "https://connect.stripe.com/oauth/token"),
		GatewaySecretKey:      getEnv("GATEWAY_SECRET_KEY", ""),
		GatewayCurrency:       getEnv("GATEWAY_CURRENCY", "usd"),
		GatewayMinAmountCents: getEnvAsInt("GATEWAY_MINIMUM_AMOUNT_CENTS", 50),
		RetargetFeeCents:      getEnvAsInt("RETARGET_FEE_CENTS", 300),

		RecoveryServiceURL: getEnv("RECOVERY_SERVICE_URL", ""),

		RetargetTTL:   getEnvAsDuration("RETARGET_TTL", 15*time.Minute),
		TallyCacheTTL: getEnvAsDuration("TALLY_CACHE_TTL", time.Minute),

		SMTPHost:     getEnv("SMTP_HOST", "smtp.example.com"),
		SMTPPort:     getEnvAsInt("SMTP_PORT", 587),
		SMTPUser:     getEnv("SMTP_USER", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSender:   getEnv("SMTP_SENDER", ""),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		APIPort: getEnvAsInt("API_PORT", 8090),
		BaseURI: getEnv("BASE_URI", "http://localhost:8090"),
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are properly set
func (c *Config) Validate() error {
	if c.Salt == "" {
		return fmt.Errorf("SALT is required")
	}

	if c.BaseURI == "" {
		return fmt.Errorf("BASE_URI is required")
	}

	if c.RecoveryServiceURL == "" {
		return fmt.Errorf("RECOVERY_SERVICE_URL is required")
	}

	if c.GatewaySecretKey == "" {
		return fmt.Errorf("GATEWAY_SECRET_KEY is required")
	}

	if c.SelectMaxRows < 1 {
		return fmt.Errorf("SELECT_MAX_ROWS must be 1 or more")
	}

	if c.PostgresHost != "" && c.PostgresDB == "" {
		return fmt.Errorf("POSTGRES_DB is required when POSTGRES_HOST is set")
	}

	return nil
}

// Helper functions to read environment variables
func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(name string, defaultValue int) int {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.Atoi(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsBool(name string, defaultValue bool) bool {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := strconv.ParseBool(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}

func getEnvAsDuration(name string, defaultValue time.Duration) time.Duration {
	if valueStr, exists := os.LookupEnv(name); exists {
		if value, err := time.ParseDuration(valueStr); err == nil {
			return value
		}
	}
	return defaultValue
}
