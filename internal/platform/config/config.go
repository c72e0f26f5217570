package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment so main
// stays lean. Zero values mean "subsystem not configured" and the wiring picks
// an in-memory fallback (dev only; production requires the real backends).
type Config struct {
	Addr        string
	Environment string // "dev" or "production"

	PostgresURL  string
	RedisURL     string
	KafkaBrokers []string
	KuboAPIURL   string

	JWTSigningKey string

	// IssuerAddress is the ledger address the adapter signs transactions as.
	IssuerAddress string

	// ClaimTokenTTL bounds how long an unclaimed token stays redeemable.
	// Zero means the 72-hour default applies.
	ClaimTokenTTL time.Duration

	// BatchIssueLimit caps a single batch-issue call. Mirrors the contract's
	// own bound; the orchestrator rejects oversized batches before any
	// ledger traffic.
	BatchIssueLimit int
}

// Production reports whether the config demands production behavior, i.e.
// external failures surface instead of degrading to in-memory fallbacks.
func (c Config) Production() bool {
	return c.Environment == "production"
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	cfg := Config{
		Addr:            envOr("CERTLEDGER_ADDR", ":8080"),
		Environment:     envOr("CERTLEDGER_ENV", "dev"),
		PostgresURL:     os.Getenv("POSTGRES_URL"),
		RedisURL:        os.Getenv("REDIS_URL"),
		KuboAPIURL:      os.Getenv("KUBO_API_URL"),
		JWTSigningKey:   os.Getenv("JWT_SIGNING_KEY"),
		IssuerAddress:   envOr("ISSUER_ADDRESS", "0x1"),
		BatchIssueLimit: envInt("BATCH_ISSUE_LIMIT", 50),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if ttl := os.Getenv("CLAIM_TOKEN_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.ClaimTokenTTL = d
		}
	}

	if cfg.JWTSigningKey == "" {
		// Dev default; production deployments must override.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}

	return cfg
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
