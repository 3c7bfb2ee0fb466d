package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/murmurlabs/speech-bridge/internal/config"
	"github.com/murmurlabs/speech-bridge/internal/fishaudio"
	"github.com/murmurlabs/speech-bridge/internal/observability"
	"github.com/murmurlabs/speech-bridge/internal/resilience"
	"github.com/prometheus/client_golang/prometheus/promhttp"
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
		Str("base_url", cfg.FishAudioBaseURL).
		Str("backend", cfg.Backend).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Speech Bridge starting")

	// Create the fish.audio synthesis client shared by all handlers
	client, err := fishaudio.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create fish.audio client")
	}
	client.SetObserver(observability.NewMetricsObserver())

	// Resilience for the batched handler. The client itself never retries.
	breaker := resilience.NewCircuitBreaker("fishaudio",
		cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second)
	retryConfig := &resilience.RetryConfig{
		MaxAttempts:       cfg.RetryMaxAttempts,
		InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Jitter:            true,
	}

	// Create HTTP server
	mux := http.NewServeMux()

	// Synthesis endpoints
	mux.HandleFunc("/synthesize", handleSynthesize(client, breaker, retryConfig))
	mux.HandleFunc("/streams/speak", handleSpeakWS(client))

	// Health check endpoint
	mux.HandleFunc("/health", observability.HealthCheckHandler())

	// Readiness endpoint
	readinessClient := &http.Client{Timeout: 5 * time.Second}
	apiCheck := func(ctx context.Context) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, cfg.FishAudioBaseURL, nil)
		if err != nil {
			return false, err
		}
		resp, err := readinessClient.Do(req)
		if err != nil {
			return false, err
		}
		resp.Body.Close()
		// Any HTTP response proves the API is reachable
		return true, nil
	}
	breakerCheck := func(ctx context.Context) (bool, error) {
		state, _, _, failureRate := breaker.GetStats()
		if state == resilience.StateOpen {
			return false, fmt.Errorf("circuit %s, failure rate %.1f%%", state, failureRate)
		}
		return true, nil
	}
	mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
		"fishaudio_api":   apiCheck,
		"circuit_breaker": breakerCheck,
	}))

	// Metrics endpoint (Prometheus)
	if cfg.MetricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts. The write timeout must outlast a
	// full batched synthesis, which can wait up to RequestTimeout upstream.
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeoutDuration() + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("endpoint", fmt.Sprintf("ws://localhost:%s/streams/speak", cfg.Port)).
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
