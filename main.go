package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/cloudhut/ksim/chaos"
	"github.com/cloudhut/ksim/logging"
	"github.com/cloudhut/ksim/prometheus"
	"github.com/cloudhut/ksim/sim"
)

func main() {
	startupLogger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Errorf("failed to create startup logger: %w", err))
	}

	cfg, err := newConfig(startupLogger)
	if err != nil {
		startupLogger.Fatal("failed to parse config", zap.Error(err))
	}

	logger := logging.NewLogger(cfg.Logger, cfg.Exporter.Namespace)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	simSvc, err := sim.NewService(cfg.Simulator, logger)
	if err != nil {
		logger.Fatal("failed to build the simulated cluster", zap.Error(err))
	}

	chaosSvc, err := chaos.NewService(cfg.Chaos, logger, simSvc, cfg.Exporter.Namespace)
	if err != nil {
		logger.Fatal("failed to create the chaos driver", zap.Error(err))
	}
	if err := chaosSvc.Start(ctx); err != nil {
		logger.Fatal("failed to start the chaos driver", zap.Error(err))
	}
	defer chaosSvc.Stop()

	exporter, err := prometheus.NewExporter(cfg.Exporter, logger, simSvc)
	if err != nil {
		logger.Fatal("failed to create the exporter", zap.Error(err))
	}
	exporter.InitializeMetrics()
	promclient.MustRegister(exporter)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		if simSvc.IsReady() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	address := fmt.Sprintf("%v:%d", cfg.Exporter.Host, cfg.Exporter.Port)
	srv := &http.Server{Addr: address, Handler: mux}

	go func() {
		logger.Info("serving metrics", zap.String("listen_address", address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to serve HTTP server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shut down the HTTP server gracefully", zap.Error(err))
	}
}
