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

	"github.com/voxproof/eval-console/internal/audiostore"
	"github.com/voxproof/eval-console/internal/config"
	"github.com/voxproof/eval-console/internal/evalapi"
	"github.com/voxproof/eval-console/internal/gateway"
	"github.com/voxproof/eval-console/internal/observability"
	"github.com/voxproof/eval-console/internal/store"
	"github.com/voxproof/eval-console/internal/tracker"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("eval_api_url", cfg.EvalAPIURL).
		Int("poll_interval_s", cfg.PollIntervalSeconds).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Eval Console Service starting")

	apiClient := evalapi.New(cfg.EvalAPIURL)
	resultStore := store.New(cfg.CacheTTL())
	resultTracker := tracker.New(apiClient, resultStore, cfg.PollInterval())

	resolver, err := audiostore.New(audiostore.Options{
		Endpoint:  cfg.StorageEndpoint,
		AccessKey: cfg.StorageAccessKey,
		SecretKey: cfg.StorageSecretKey,
		Bucket:    cfg.StorageBucket,
		UseSSL:    cfg.StorageUseSSL,
		URLExpiry: time.Duration(cfg.AudioURLExpiry) * time.Second,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize audio resolver")
	}

	mux := http.NewServeMux()
	gateway.New(resultTracker, resolver).Register(mux)

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"eval_api": apiClient.HealthCheck,
		"storage":  resolver.HealthCheck,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	logger.Info().Msg("Server exited gracefully")
}
