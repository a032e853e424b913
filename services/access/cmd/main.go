package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/databridge-io/databridge/pkg/adapter"
	"github.com/databridge-io/databridge/pkg/config"
	"github.com/databridge-io/databridge/pkg/logger"
	"github.com/databridge-io/databridge/services/access/internal/database"
	"github.com/databridge-io/databridge/services/access/internal/engine"
)

var configPath = flag.String("config", "config.yaml", "Path to the configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading configuration: %v", err)
	}

	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	registry := adapter.NewRegistry()
	database.RegisterAll(registry)

	svc, err := engine.NewService(cfg, registry, engine.AllowAllValidator{}, zl)
	if err != nil {
		zl.Fatal("building service", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := svc.Start(ctx); err != nil {
		cancel()
		zl.Fatal("starting service", zap.Error(err))
	}
	cancel()

	var metricsServer *http.Server
	if cfg.Service.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{Addr: cfg.Service.MetricsAddr, Handler: mux}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zl.Error("metrics server stopped", zap.Error(err))
			}
		}()
		zl.Info("metrics listening", zap.String("addr", cfg.Service.MetricsAddr))
	}

	zl.Info("service started",
		zap.String("service", cfg.Service.Name),
		zap.Int("databases", len(cfg.Databases)))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	zl.Info("shutting down", zap.String("signal", sig.String()))

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsServer.Shutdown(shutdownCtx)
		shutdownCancel()
	}
	if err := svc.Stop(); err != nil {
		zl.Error("draining pools", zap.Error(err))
	}
}
