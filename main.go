package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splitmate-app/splitmate-sync/config"
	"github.com/splitmate-app/splitmate-sync/internal/events"
	"github.com/splitmate-app/splitmate-sync/internal/remote"
	"github.com/splitmate-app/splitmate-sync/internal/store/sqlite"
	syncer "github.com/splitmate-app/splitmate-sync/internal/sync"
	"github.com/splitmate-app/splitmate-sync/logger"
)

func main() {
	// Initialize logger
	logger.InitLogger()
	log := logger.GetLogger()
	defer func() {
		if err := logger.Close(); err != nil {
			log.Errorf("Failed to close logger: %v", err)
		}
	}()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Local store
	st, err := sqlite.New(cfg.Database.Path, sqlite.Options{
		BusyTimeout: time.Duration(cfg.Database.BusyTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Errorf("Failed to close local store: %v", err)
		}
	}()

	// Remote document store
	remoteClient, err := remote.NewFirestoreClient(ctx, cfg.Firestore)
	if err != nil {
		log.Fatalf("Failed to connect to remote store: %v", err)
	}
	defer func() {
		if err := remoteClient.Close(); err != nil {
			log.Errorf("Failed to close remote client: %v", err)
		}
	}()

	// In-process event broker
	eventService := events.NewService(events.Config{
		PublishTimeout:  5 * time.Second,
		EventBufferSize: cfg.Sync.EventBufferSize,
	})
	defer func() {
		if err := eventService.Shutdown(context.Background()); err != nil {
			log.Errorf("Failed to shut down event service: %v", err)
		}
	}()

	// Sync engine
	uploader := syncer.NewUploader(st, remoteClient, eventService, cfg.Sync)
	reconciler := syncer.NewReconciler(st, remoteClient, eventService)
	monitor := syncer.NewConnectivityMonitor(cfg.Sync)
	coordinator := syncer.NewCoordinator(uploader, reconciler, monitor, eventService, cfg.Sync)

	if err := coordinator.Start(ctx, cfg.Sync.UserID); err != nil {
		log.Fatalf("Failed to start sync coordinator: %v", err)
	}
	defer coordinator.Stop()

	// Metrics and diagnostics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(coordinator.Status(r.Context())); err != nil {
			log.Errorw("Failed to encode status response", "error", err)
		}
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.MetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infow("Metrics server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("Metrics server error: %v", err)
		}
	}()

	log.Infow("Sync engine started",
		"environment", cfg.Server.Environment,
		"version", cfg.Server.Version,
		"userId", logger.MaskSensitiveString(cfg.Sync.UserID, 4, 2),
	)

	<-ctx.Done()
	log.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Metrics server shutdown error: %v", err)
	}
}
