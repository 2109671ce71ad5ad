package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/apptreply/internal/api/router"
	"github.com/wolfman30/apptreply/internal/app/bootstrap"
	"github.com/wolfman30/apptreply/internal/appointments"
	appconfig "github.com/wolfman30/apptreply/internal/config"
	"github.com/wolfman30/apptreply/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/apptreply/internal/http/middleware"
	"github.com/wolfman30/apptreply/internal/observability/metrics"
	"github.com/wolfman30/apptreply/internal/transcript"
	"github.com/wolfman30/apptreply/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting apptreply API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"timezone", cfg.Location().String(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := bootstrap.BuildPostgresPool(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient == nil {
		logger.Error("redis is required for the conversation log", "addr", cfg.RedisAddr)
		os.Exit(1)
	}
	defer redisClient.Close()

	resp, closeResponder, err := bootstrap.BuildResponder(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build responder", "error", err)
		os.Exit(1)
	}
	defer func() { _ = closeResponder() }()

	metricsHandler, dialogueMetrics := setupMetrics()

	turns := transcript.NewLog(redisClient, transcript.WithTTL(cfg.TurnTTL), transcript.WithMaxLen(cfg.TurnLogMax))
	engine := bootstrap.BuildEngine(cfg, appointments.NewStore(pool), turns, resp, dialogueMetrics, logger)

	r := router.New(&router.Config{
		Logger:          logger,
		DialogueHandler: handlers.NewDialogueHandler(engine, logger),
		MetricsHandler:  metricsHandler,
		MessageLimiter:  httpmiddleware.NewRateLimiter(ctx, 1, 5),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// setupMetrics registers dialogue metrics plus Go/process collectors on a private
// registry and returns its /metrics handler.
func setupMetrics() (http.Handler, *metrics.DialogueMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewDialogueMetrics(reg)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), m
}
