package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/dispatch/internal/availability"
	"github.com/example/dispatch/internal/config"
	"github.com/example/dispatch/internal/directory"
	"github.com/example/dispatch/internal/httpapi"
	"github.com/example/dispatch/internal/jobs"
	"github.com/example/dispatch/internal/locator"
	"github.com/example/dispatch/internal/logging"
	"github.com/example/dispatch/internal/matcher"
	"github.com/example/dispatch/internal/outbox"
	"github.com/example/dispatch/internal/reconcile"
	"github.com/example/dispatch/internal/reservation"
	"github.com/example/dispatch/internal/triporacle"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store availability.Store
	if cfg.RedisAddr != "" {
		store = availability.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		logger.Warn("REDIS_ADDR unset, using in-process availability store")
		store = availability.NewMemoryStore()
	}

	var events outbox.Store
	if cfg.PGDSN != "" {
		if cfg.RunMigrations {
			migrate(logger, cfg.PGDSN)
		}
		ps, err := outbox.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		defer ps.Close()
		events = ps
	} else {
		logger.Warn("PG_DSN unset, using in-process outbox store")
		events = outbox.NewMemoryStore()
	}

	coordinator := reservation.NewCoordinator(store, cfg.LockTTL, logging.Component(logger, "reservation"))

	finder := locator.NewHTTPFinder(cfg.LocationServiceURL, logging.Component(logger, "locator"))
	oracle := triporacle.NewHTTPOracle(cfg.TripServiceURL, logging.Component(logger, "triporacle"))

	var policy matcher.SelectionPolicy
	switch cfg.MatcherPolicy {
	case "nearest":
		policy = matcher.NearestPolicy{}
	default:
		dir := directory.NewHTTPDirectory(cfg.DriverServiceURL, logging.Component(logger, "directory"))
		policy = matcher.NewScorePolicy(dir)
	}

	engine := &matcher.Engine{
		Locator:      finder,
		Policy:       policy,
		Reservations: coordinator,
		Outbox:       outbox.NewWriter(events, cfg.MatchTopic),
		TiersKm:      cfg.MatcherTiersKm,
		Logger:       logging.Component(logger, "matcher"),
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := outbox.NewKafkaPublisher(cfg.KafkaBrokers)
		defer publisher.Close()
		relay := outbox.NewRelay(events, publisher, logging.Component(logger, "outbox_relay"),
			cfg.RelayBatchSize, cfg.StuckTimeout, cfg.Retention)

		// The relay batch runs on every instance; skip-locked row selection
		// keeps instances from double-picking. Rescue and cleanup are
		// cluster-exclusive.
		go jobs.Loop(ctx, jobs.Job{Name: "outbox_relay", Interval: cfg.RelayInterval, Run: relay.PublishBatch}, store, logger)
		go jobs.Loop(ctx, jobs.Job{Name: "outbox_rescue", Interval: cfg.RescueInterval, LockTTL: cfg.JobLockTTL, Run: relay.Rescue}, store, logger)
		go jobs.Loop(ctx, jobs.Job{Name: "outbox_cleanup", Interval: cfg.CleanupInterval, LockTTL: cfg.JobLockTTL, Run: relay.Cleanup}, store, logger)
	} else {
		logger.Warn("KAFKA_BROKERS unset, outbox relay disabled")
	}

	sweeper := reconcile.NewScheduler(store, oracle, coordinator, logging.Component(logger, "reconcile"))
	go jobs.Loop(ctx, jobs.Job{Name: "driver_status_sync", Interval: cfg.ReconcileInterval, LockTTL: cfg.JobLockTTL, Run: sweeper.Sweep}, store, logger)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpapi.NewServer(engine, logging.Component(logger, "http")),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("matching service listening", "addr", cfg.HTTPAddr, "policy", cfg.MatcherPolicy)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("shut down cleanly")
}

// migrate applies the outbox schema when MIGRATE=true, mirroring how the
// table is provisioned in local and CI runs.
func migrate(logger *slog.Logger, dsn string) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		logger.Error("migration db open failed", "error", err)
		return
	}
	defer db.Close()
	b, err := os.ReadFile(filepath.Join("migrations", "001_create_matching_outbox.sql"))
	if err != nil {
		logger.Error("migration read failed", "error", err)
		return
	}
	if _, err := db.Exec(string(b)); err != nil {
		logger.Error("migration exec failed", "error", err)
	}
}
