package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsm/redislock"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/gigwallet/backend/internal/auth"
	"github.com/gigwallet/backend/internal/config"
	"github.com/gigwallet/backend/internal/credit"
	"github.com/gigwallet/backend/internal/escrow"
	"github.com/gigwallet/backend/internal/events"
	"github.com/gigwallet/backend/internal/execution"
	"github.com/gigwallet/backend/internal/gigscore"
	"github.com/gigwallet/backend/internal/ledger"
	"github.com/gigwallet/backend/internal/liquidity"
	"github.com/gigwallet/backend/internal/metrics"
	"github.com/gigwallet/backend/internal/middleware"
	"github.com/gigwallet/backend/internal/payout"
	"github.com/gigwallet/backend/internal/rail"
	"github.com/gigwallet/backend/internal/repository"
	"github.com/gigwallet/backend/internal/savings"
	"github.com/gigwallet/backend/internal/validator"
)

const floatKey = "gigwallet:float:available"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure Postgres is running, e.g. make dev-up or docker-compose up -d", "error", err)
		return err
	}
	slog.Info("Connected to PostgreSQL database successfully!")

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return err
	}
	if err := repository.Migrate(ctx, pool); err != nil {
		return err
	}
	slog.Info("Migrations applied")

	m := metrics.New()
	ledgerSvc := ledger.NewService(repository.NewStore(pool),
		ledger.WithLogger(logger),
		ledger.WithObserver(m),
		ledger.WithMaxRetries(cfg.LedgerMaxRetries),
	)
	if err := ledgerSvc.EnsurePlatformAccount(ctx); err != nil {
		return err
	}

	// Redis backs the shared float gauge and the idempotency lock. Without it
	// both fall back to single-instance behaviour.
	var (
		gauge  liquidity.Gauge
		locker middleware.Locker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		rg := liquidity.NewRedisGauge(rdb, floatKey)
		if err := rg.Seed(ctx, cfg.FloatInitial); err != nil {
			return err
		}
		gauge = rg
		locker = middleware.NewRedisLocker(redislock.New(rdb))
		slog.Info("Connected to Redis")
	} else {
		gauge = liquidity.NewMemoryGauge(cfg.FloatInitial)
		slog.Warn("REDIS_URL not set; using in-process float gauge")
	}

	var railClient rail.Client
	if cfg.RailURL != "" {
		railClient = rail.NewHTTPClient(cfg.RailURL, cfg.RailAPIKey, cfg.CallbackURL, cfg.RailTimeout, logger)
	} else {
		railClient = rail.NewStubClient()
		slog.Warn("RAIL_URL not set; payouts settle against the stub rail")
	}

	var scores credit.ScoreSource = gigscore.Static(cfg.GigScoreDefault)
	if cfg.GigScoreURL != "" {
		scores = gigscore.NewHTTPSource(cfg.GigScoreURL, cfg.GigScoreDefault, cfg.RailTimeout)
	}

	bus := events.NewBus(32, logger)
	creditSched := credit.NewScheduler(ledgerSvc, scores, credit.DefaultPolicy(), logger)
	allocator := savings.NewAllocator(ledgerSvc, creditSched, cfg.AffordabilityPercent, logger)
	processor := payout.NewProcessor(ledgerSvc, gauge, railClient, m.Publisher(bus), payout.Config{
		DailyLimit:     cfg.DailyCashout,
		Timeout:        cfg.PayoutTimeout,
		QueueTTL:       cfg.PayoutQueueTTL,
		SettlementHour: cfg.SettlementHour,
	}, logger)
	processor.UseLoans(creditSched)
	processor.OnComplete(creditSched, allocator)
	coordinator := escrow.NewCoordinator(ledgerSvc, escrow.Config{MinAmount: cfg.MinJobAmount, TTL: cfg.JobTTL}, logger)

	queue := execution.NewQueue(cfg.DispatchAttempts)
	processor.SetDispatcher(queue)
	riverClient, err := newRiverClient(pool, cfg, processor, creditSched, coordinator, logger)
	if err != nil {
		return err
	}
	queue.Bind(riverClient)

	v, err := validator.New()
	if err != nil {
		return err
	}
	authSvc := auth.NewService(repository.NewCredentialRepo(pool), cfg.JWTSecret)

	handler := newRouter(app{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		validator: v,
		auth:      authSvc,
		locker:    locker,
		bus:       bus,
		ledger:    ledgerSvc,
		payouts:   processor,
		jobs:      coordinator,
		loans:     creditSched,
		savings:   allocator,
	})
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-API-Key"},
		ExposedHeaders:   []string{"Idempotent-Replayed"},
		AllowCredentials: true,
	}).Handler(handler)

	if err := riverClient.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           corsHandler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		slog.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown", "error", err)
	}
	if err := riverClient.Stop(shutdownCtx); err != nil {
		slog.Error("River stop", "error", err)
	}
	return nil
}
