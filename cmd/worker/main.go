package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	zl "github.com/rs/zerolog/log"

	"github.com/jwalitptl/dispatch-api/internal/config"
	"github.com/jwalitptl/dispatch-api/internal/repository/postgres"
	"github.com/jwalitptl/dispatch-api/pkg/logger"
	redisbroker "github.com/jwalitptl/dispatch-api/pkg/messaging/redis"
	"github.com/jwalitptl/dispatch-api/pkg/metrics"
	"github.com/jwalitptl/dispatch-api/pkg/worker"
)

// The worker drains the lifecycle-event outbox to the redis broker and
// prunes processed rows. It runs beside the API process so event
// fan-out survives API restarts.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	appLogger := logger.NewLogger(&logger.Config{
		Level:  level,
		Pretty: cfg.Logging.Pretty,
	}).WithComponent("worker")

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	brokerLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	broker, err := redisbroker.NewRedisBroker(redisbroker.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, &brokerLogger)
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer broker.Close()

	outboxRepo := postgres.NewOutboxRepository(db)
	appMetrics := metrics.NewMetrics("dispatch", "worker")

	processor := worker.NewOutboxProcessor(outboxRepo, broker, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Worker.BatchSize,
		PollInterval:  cfg.Worker.PollInterval,
		RetryAttempts: cfg.Worker.RetryAttempts,
		RetryDelay:    cfg.Worker.RetryDelay,
	}, appLogger, appMetrics)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go processor.Start(ctx)
	go pruneProcessed(ctx, outboxRepo, appLogger)

	// Prometheus scrape endpoint for the worker process.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.Worker.MetricsPort)
		if err := http.ListenAndServe(addr, mux); err != nil {
			appLogger.Error(err, "metrics server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("shutting down worker")
	cancel()
}

// pruneProcessed deletes processed outbox rows older than a day so the
// table stays bounded.
func pruneProcessed(ctx context.Context, repo interface {
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}, log *logger.Logger) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := repo.DeleteProcessedBefore(ctx, time.Now().Add(-24*time.Hour))
			if err != nil {
				log.Error(err, "failed to prune outbox")
				continue
			}
			if deleted > 0 {
				log.Info("pruned processed outbox events", "count", deleted)
			}
		}
	}
}
