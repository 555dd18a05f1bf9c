package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr   string
	PostgresDSN  string
	RedisAddr    string
	KafkaBrokers []string
	JWTSecret    string

	RateAPIURL        string
	CanonicalCurrency string
	DefaultCurrency   string

	ReferralBonus int64

	SavingsSchedule   string
	ReconcileSchedule string
	PendingBound      time.Duration
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("failed to load .env file, using default values", "error", err)
	}

	cfg := &Config{
		ListenAddr:        getEnv("LISTEN_ADDR", ":8080"),
		PostgresDSN:       getEnv("POSTGRES_DSN", "host=localhost user=postgres password=postgres dbname=wallet sslmode=disable"),
		RedisAddr:         getEnv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers:      []string{getEnv("KAFKA_BROKER", "localhost:9092")},
		JWTSecret:         getEnv("JWT_SECRET", "supersecret"),
		RateAPIURL:        getEnv("RATE_API_URL", "https://open.er-api.com/v6/latest"),
		CanonicalCurrency: getEnv("CANONICAL_CURRENCY", "USD"),
		DefaultCurrency:   getEnv("DEFAULT_CURRENCY", "CDF"),
		ReferralBonus:     getEnvInt64("REFERRAL_BONUS", 500),
		SavingsSchedule:   getEnv("SAVINGS_SCHEDULE", "@every 1m"),
		ReconcileSchedule: getEnv("RECONCILE_SCHEDULE", "@every 5m"),
		PendingBound:      getEnvDuration("PENDING_BOUND", 30*time.Minute),
	}

	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"redis_addr", cfg.RedisAddr,
		"kafka_brokers", cfg.KafkaBrokers,
		"canonical_currency", cfg.CanonicalCurrency,
		"default_currency", cfg.DefaultCurrency)
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
		slog.Warn("invalid integer env value, using fallback", "key", key, "value", v)
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		slog.Warn("invalid duration env value, using fallback", "key", key, "value", v)
	}
	return fallback
}
