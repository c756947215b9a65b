package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"
)

// Config holds service configuration.
type Config struct {
	DatabaseURL     string
	ServerAddr      string
	JWTSecret       []byte
	JWTIssuer       string
	LogLevel        string
	LogFormat       string
	OverdueSchedule string
	OverdueEnabled  bool
	RedisURL        string
	SweeperLeaseTTL time.Duration
	AuditSigningKey []byte
	MigrationsDir   string
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment.
func Load() (*Config, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		user := getenv("POSTGRES_USER", "lendledger")
		pass := getenv("POSTGRES_PASSWORD", "lendledger_pass")
		db := getenv("POSTGRES_DB", "lendledger")
		host := getenv("POSTGRES_HOST", "localhost")
		port := getenv("POSTGRES_PORT", "5432")
		sslmode := getenv("DATABASE_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, sslmode)
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	schedule := getenv("OVERDUE_SCHEDULE", "0 0 * * *")
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("OVERDUE_SCHEDULE: %w", err)
	}

	var auditKey []byte
	if v := os.Getenv("AUDIT_SIGNING_KEY"); v != "" {
		k, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("AUDIT_SIGNING_KEY must be hex: %w", err)
		}
		auditKey = k
	}

	return &Config{
		DatabaseURL:     dsn,
		ServerAddr:      getenv("SERVER_ADDR", "0.0.0.0:8080"),
		JWTSecret:       []byte(secret),
		JWTIssuer:       os.Getenv("JWT_ISSUER"),
		LogLevel:        getenv("LOG_LEVEL", "info"),
		LogFormat:       getenv("LOG_FORMAT", "json"),
		OverdueSchedule: schedule,
		OverdueEnabled:  parseBool(os.Getenv("OVERDUE_ENABLED"), true),
		RedisURL:        os.Getenv("REDIS_URL"),
		SweeperLeaseTTL: parseDuration(os.Getenv("SWEEPER_LEASE_TTL"), 10*time.Minute),
		AuditSigningKey: auditKey,
		MigrationsDir:   os.Getenv("MIGRATIONS_DIR"),
		ShutdownTimeout: parseDuration(os.Getenv("SHUTDOWN_TIMEOUT"), 10*time.Second),
	}, nil
}

func getenv(key, def string) string {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	return val
}

func parseDuration(val string, def time.Duration) time.Duration {
	if val == "" {
		return def
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return def
	}
	return d
}

func parseBool(val string, def bool) bool {
	if val == "" {
		return def
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return def
	}
	return b
}
