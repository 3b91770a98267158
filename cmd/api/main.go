package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/dispatch-api/internal/config"
	metricsHandler "github.com/jwalitptl/dispatch-api/internal/handler"
	mbHandler "github.com/jwalitptl/dispatch-api/internal/handler/metrics"
	providerHandler "github.com/jwalitptl/dispatch-api/internal/handler/provider"
	requestHandler "github.com/jwalitptl/dispatch-api/internal/handler/request"
	searchHandler "github.com/jwalitptl/dispatch-api/internal/handler/search"
	"github.com/jwalitptl/dispatch-api/internal/middleware"
	"github.com/jwalitptl/dispatch-api/internal/repository/postgres"
	"github.com/jwalitptl/dispatch-api/internal/router"
	directoryService "github.com/jwalitptl/dispatch-api/internal/service/directory"
	etaService "github.com/jwalitptl/dispatch-api/internal/service/eta"
	eventService "github.com/jwalitptl/dispatch-api/internal/service/event"
	lifecycleService "github.com/jwalitptl/dispatch-api/internal/service/lifecycle"
	metricsService "github.com/jwalitptl/dispatch-api/internal/service/metrics"
	searchService "github.com/jwalitptl/dispatch-api/internal/service/search"
	"github.com/jwalitptl/dispatch-api/pkg/auth"
	"github.com/jwalitptl/dispatch-api/pkg/logger"
	"github.com/jwalitptl/dispatch-api/pkg/metrics"
	"golang.org/x/time/rate"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	appLogger := logger.NewLogger(&logger.Config{
		Level:  level,
		Pretty: cfg.Logging.Pretty,
	})

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Repositories
	providerRepo := postgres.NewProviderRepository(db)
	historyRepo := postgres.NewHistoryRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	appMetrics := metrics.NewMetrics("dispatch", "api")

	// Services
	directorySvc := directoryService.NewService(providerRepo, appLogger)
	if err := directorySvc.Load(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("failed to load provider directory")
	}

	eventSvc := eventService.NewService(outboxRepo)
	searchSvc := searchService.NewService(directorySvc, appMetrics)
	etaSvc := etaService.NewService(etaService.Config{
		MinutesPerKm:   cfg.Dispatch.MinutesPerKm,
		DefaultMinutes: cfg.Dispatch.DefaultETAMinutes,
		MinMinutes:     cfg.Dispatch.MinETAMinutes,
	})
	lifecycleSvc := lifecycleService.NewService(
		directorySvc,
		historyRepo,
		eventSvc,
		lifecycleService.Config{
			FeeRate:          cfg.Dispatch.FeeRate,
			AutoAdvanceDelay: cfg.Dispatch.AutoAdvanceDelay,
		},
		appLogger,
		appMetrics,
	)
	metricsSvc := metricsService.NewService(historyRepo, lifecycleSvc, cfg.Dispatch.MetricsCacheTTL)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(auth.NewVerifier(cfg.JWT.Secret))

	// Handlers
	h := metricsHandler.NewHandler(db)
	r := router.NewRouter(
		authMiddleware,
		searchHandler.NewHandler(searchSvc),
		providerHandler.NewHandler(directorySvc),
		requestHandler.NewHandler(lifecycleSvc, etaSvc),
		mbHandler.NewHandler(metricsSvc),
		h,
		router.Config{
			RateLimit:      rate.Limit(cfg.Server.RateLimit),
			RateBurst:      cfg.Server.RateBurst,
			RequestTimeout: cfg.Server.RequestTimeout,
			CORSConfig:     middleware.DefaultCORSConfig(),
			MetricsPrefix:  "dispatch_api",
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting dispatch API")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
