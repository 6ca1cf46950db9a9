package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Blockchain BlockchainConfig
	Telegram   TelegramConfig
	Gate       GateConfig
	WalletAuth WalletAuthConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Env  string
	// PublicDomain is the base URL of the wallet-connect front end.
	PublicDomain string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// URL returns the database connection URL
func (c DatabaseConfig) URL() string {
	return "postgres://" + c.User + ":" + c.Password + "@" + c.Host + ":" + strconv.Itoa(c.Port) + "/" + c.DBName + "?sslmode=" + c.SSLMode
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	URL      string
	PASSWORD string
}

// BlockchainConfig holds the ledger RPC settings
type BlockchainConfig struct {
	RPCURL  string
	Timeout time.Duration
}

// TelegramConfig holds chat platform settings
type TelegramConfig struct {
	BotToken      string
	WebhookSecret string
	// WebhookURL is the public base URL the platform delivers updates to.
	// Empty leaves webhook registration to the operator.
	WebhookURL    string
	APIURL        string
	Timeout       time.Duration
}

// GateConfig holds membership gating settings
type GateConfig struct {
	InvitationTTL    time.Duration
	SweepInterval    time.Duration
	SweepConcurrency int
	SweepEnabled     bool
	CronSecret       string
	InputStateTTL    time.Duration
}

// WalletAuthConfig holds wallet challenge settings
type WalletAuthConfig struct {
	Secret       string
	Issuer       string
	Audience     string
	ChallengeTTL time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Env:          getEnv("SERVER_ENV", "development"),
			PublicDomain: getEnv("PUBLIC_DOMAIN", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "gatekeeper"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			PASSWORD: getEnv("REDIS_PASSWORD", ""),
		},
		Blockchain: BlockchainConfig{
			RPCURL:  getEnv("LEDGER_RPC_URL", "https://mainnet.base.org"),
			Timeout: getEnvAsDuration("LEDGER_TIMEOUT", 10*time.Second),
		},
		Telegram: TelegramConfig{
			BotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
			WebhookSecret: getEnv("TELEGRAM_SECRET", ""),
			WebhookURL:    getEnv("TELEGRAM_WEBHOOK_URL", ""),
			APIURL:        getEnv("TELEGRAM_API_URL", "https://api.telegram.org"),
			Timeout:       getEnvAsDuration("PLATFORM_TIMEOUT", 10*time.Second),
		},
		Gate: GateConfig{
			InvitationTTL:    getEnvAsDuration("INVITATION_TTL", 24*time.Hour),
			SweepInterval:    getEnvAsDuration("SWEEP_INTERVAL", 15*time.Minute),
			SweepConcurrency: getEnvAsInt("SWEEP_CONCURRENCY", 8),
			SweepEnabled:     getEnvAsBool("SWEEP_ENABLED", true),
			CronSecret:       getEnv("CRON_SECRET", ""),
			InputStateTTL:    getEnvAsDuration("INPUT_STATE_TTL", 10*time.Minute),
		},
		WalletAuth: WalletAuthConfig{
			Secret:       getEnv("WALLET_AUTH_SECRET", "change-this-in-production"),
			Issuer:       getEnv("WALLET_AUTH_ISSUER", "GATEKEEPER-v1"),
			Audience:     getEnv("WALLET_AUTH_AUDIENCE", "gatekeeper"),
			ChallengeTTL: getEnvAsDuration("WALLET_AUTH_CHALLENGE_TTL", 60*time.Second),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
