package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Wuchinator/learning-analytics/internal/app"
	"github.com/Wuchinator/learning-analytics/internal/config"
	"github.com/Wuchinator/learning-analytics/internal/metrics"
	"github.com/Wuchinator/learning-analytics/internal/query"
	"github.com/Wuchinator/learning-analytics/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer log.Sync()

	log = logger.WithService(log, "query-service")
	log.Info("Starting Query Service",
		zap.String("environment", cfg.Environment),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("store_backend", cfg.Store.Backend),
		zap.String("profile_source", cfg.Sources.Profiles),
	)

	if cfg.Environment == logger.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	m := metrics.New()

	s, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	defer closeStore(context.Background())

	eventService, err := app.NewEventService(cfg, s, m, log)
	if err != nil {
		log.Fatal("Failed to create event service", zap.Error(err))
	}

	analyticsService, closeSources, err := app.NewAnalyticsService(cfg, s, m, log)
	if err != nil {
		log.Fatal("Failed to create analytics service", zap.Error(err))
	}
	defer closeSources(context.Background())

	handler := query.NewHandler(analyticsService, eventService, cfg.Limits.QueryTimeout, logger.WithComponent(log, "http"))
	router := query.NewRouter(handler, m, log)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("port", cfg.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to serve HTTP", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("Shutdown timeout, forcing stop", zap.Error(err))
		_ = server.Close()
	}

	log.Info("Query Service stopped")
}
