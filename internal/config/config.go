package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Ledger   LedgerConfig
	Billing  BillingConfig
	Auth     AuthConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
}

type DatabaseConfig struct {
	Connection string
}

type LedgerConfig struct {
	TxTimeout      time.Duration // upper bound for one ledger transaction
	LockTimeout    time.Duration // postgres lock_timeout inside that transaction
	MaxRetries     int           // attempts on ErrConcurrencyConflict
	StatusCacheTTL time.Duration
	EventTopic     string // in-process topic for committed ledger events
}

type BillingConfig struct {
	StripeWebhookSecret string
}

type AuthConfig struct {
	JwtSecret string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "membership-ledger.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		Ledger: LedgerConfig{
			TxTimeout:      getEnvAsDuration("LEDGER_TX_TIMEOUT", 5*time.Second),
			LockTimeout:    getEnvAsDuration("LEDGER_LOCK_TIMEOUT", 2*time.Second),
			MaxRetries:     getEnvAsInt("LEDGER_MAX_RETRIES", 3),
			StatusCacheTTL: getEnvAsDuration("LEDGER_STATUS_CACHE_TTL", 5*time.Minute),
			EventTopic:     getEnv("LEDGER_EVENT_TOPIC", "membership.ledger"),
		},
		Billing: BillingConfig{
			StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		},
		Auth: AuthConfig{
			JwtSecret: getEnv("JWT_SECRET", ""),
		},
	}
}

// DefaultLedgerConfig is what Load falls back to when no LEDGER_* variable is set.
func DefaultLedgerConfig() LedgerConfig {
	return LedgerConfig{
		TxTimeout:      5 * time.Second,
		LockTimeout:    2 * time.Second,
		MaxRetries:     3,
		StatusCacheTTL: 5 * time.Minute,
		EventTopic:     "membership.ledger",
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
