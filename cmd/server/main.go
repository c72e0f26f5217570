package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"certledger/internal/audit"
	"certledger/internal/claimtoken"
	"certledger/internal/domain"
	"certledger/internal/issuer"
	"certledger/internal/jwtauth"
	"certledger/internal/ledger"
	"certledger/internal/ledger/node"
	"certledger/internal/metastore"
	"certledger/internal/notify"
	"certledger/internal/platform/config"
	"certledger/internal/platform/httpserver"
	"certledger/internal/platform/logger"
	"certledger/internal/platform/metrics"
	redisplatform "certledger/internal/platform/redis"
	"certledger/internal/record"
	httptransport "certledger/internal/transport/http"
	"certledger/internal/verify"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx := context.Background()

	m := metrics.New()

	issuerAddr := domain.Address(cfg.IssuerAddress)
	chain := node.New(issuerAddr)
	adapter := ledger.New(chain, issuerAddr, ledger.WithMetrics(m))

	records, cleanupRecords := buildRecordStore(ctx, cfg, log)
	defer cleanupRecords()

	claims, cleanupClaims := buildClaimStore(cfg, log)
	defer cleanupClaims()

	metadata := buildMetadataStore(cfg, log)

	auditor, cleanupAudit := buildAuditor(cfg, log)
	defer cleanupAudit()

	notifier, cleanupNotify := buildNotifier(cfg, log)
	defer cleanupNotify()

	tokens := jwtauth.NewService(cfg.JWTSigningKey, "certledger", "certledger-api")

	issuerSvc := issuer.New(adapter, metadata, records, claims, notifier, auditor, log,
		issuer.WithMetrics(m),
		issuer.WithClaimTTL(cfg.ClaimTokenTTL),
		issuer.WithBatchLimit(cfg.BatchIssueLimit),
	)
	verifySvc := verify.New(adapter, records, claims, auditor, log,
		verify.WithMetrics(m),
	)

	router := chi.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	httptransport.New(issuerSvc, verifySvc, tokens, log).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting certledger", "addr", cfg.Addr, "env", cfg.Environment)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

func buildRecordStore(ctx context.Context, cfg config.Config, log *slog.Logger) (record.Store, func()) {
	if cfg.PostgresURL == "" {
		if cfg.Production() {
			log.Error("POSTGRES_URL is required in production")
			os.Exit(1)
		}
		log.Warn("postgres not configured, using in-memory record store")
		return record.NewMemoryStore(), func() {}
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	store := record.NewPostgresStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		log.Error("schema migration failed", "error", err)
		os.Exit(1)
	}
	return store, pool.Close
}

func buildClaimStore(cfg config.Config, log *slog.Logger) (claimtoken.Store, func()) {
	client, err := redisplatform.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis connect failed", "error", err)
		os.Exit(1)
	}
	if client == nil {
		if cfg.Production() {
			log.Error("REDIS_URL is required in production")
			os.Exit(1)
		}
		log.Warn("redis not configured, using in-memory claim-token store")
		return claimtoken.NewMemoryStore(), func() {}
	}
	return claimtoken.NewRedisStore(client.Client), func() { _ = client.Close() }
}

func buildMetadataStore(cfg config.Config, log *slog.Logger) metastore.Store {
	if cfg.KuboAPIURL == "" {
		if cfg.Production() {
			log.Error("KUBO_API_URL is required in production")
			os.Exit(1)
		}
		log.Warn("kubo not configured, using in-memory metadata store")
		return metastore.NewMemoryStore()
	}
	return metastore.NewKuboStore(cfg.KuboAPIURL)
}

func buildAuditor(cfg config.Config, log *slog.Logger) (*audit.Publisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Warn("kafka not configured, audit events stay in memory")
		return audit.NewPublisher(audit.NewMemorySink()), func() {}
	}
	sink, err := audit.NewKafkaSink(cfg.KafkaBrokers)
	if err != nil {
		log.Error("kafka audit sink failed", "error", err)
		os.Exit(1)
	}
	return audit.NewPublisher(sink), sink.Close
}

func buildNotifier(cfg config.Config, log *slog.Logger) (notify.Notifier, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		log.Warn("kafka not configured, claim notices go to the log")
		return notify.NewLogNotifier(log), func() {}
	}
	notifier, err := notify.NewKafkaNotifier(cfg.KafkaBrokers)
	if err != nil {
		log.Error("kafka notifier failed", "error", err)
		os.Exit(1)
	}
	return notifier, notifier.Close
}
