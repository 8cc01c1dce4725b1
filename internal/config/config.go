package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the gateway server and worker
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
	Auth     AuthConfig
	Mail     MailConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL string
}

// RedisConfig holds Redis configuration for the task queue
type RedisConfig struct {
	Address string
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// AuthConfig holds authentication-related configuration
type AuthConfig struct {
	// TOTPIssuer is the issuer name shown in authenticator apps
	TOTPIssuer string
	// OAuthAudience is the expected audience claim of provider credentials
	OAuthAudience string
	// OAuthTokenInfoURL is the provider endpoint used to verify credentials
	OAuthTokenInfoURL string
}

// MailConfig holds password-reset mail configuration
type MailConfig struct {
	// FromAddress is the sender on reset emails
	FromAddress string
	// ResetBaseURL is prepended to reset keys in the mail body
	ResetBaseURL string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	return &Config{
		Database: DatabaseConfig{
			URL: envOr("DATABASE_URL", "taskdeck.sqlite"),
		},
		Redis: RedisConfig{
			Address: envOr("REDIS_ADDRESS", "localhost:6379"),
		},
		Logging: LoggingConfig{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			TOTPIssuer:        envOr("TOTP_ISSUER", "Taskdeck"),
			OAuthAudience:     os.Getenv("OAUTH_AUDIENCE"),
			OAuthTokenInfoURL: envOr("OAUTH_TOKENINFO_URL", "https://oauth2.googleapis.com/tokeninfo"),
		},
		Mail: MailConfig{
			FromAddress:  envOr("MAIL_FROM", "no-reply@taskdeck.app"),
			ResetBaseURL: envOr("RESET_BASE_URL", "https://app.taskdeck.app/reset-password"),
		},
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
