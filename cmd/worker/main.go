// Package main provides the entrypoint for the headless air-quality monitor.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/breatheroute/airdash/internal/airquality"
	aqopenmeteo "github.com/breatheroute/airdash/internal/airquality/openmeteo"
	"github.com/breatheroute/airdash/internal/alert"
	"github.com/breatheroute/airdash/internal/api/middleware"
	"github.com/breatheroute/airdash/internal/api/response"
	"github.com/breatheroute/airdash/internal/config"
	"github.com/breatheroute/airdash/internal/provider/resilience"
	"github.com/breatheroute/airdash/internal/settings"
	"github.com/breatheroute/airdash/internal/telemetry"
	"github.com/breatheroute/airdash/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airdash-worker"

	cfg, err := config.Load(".env")
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Str("service", serviceName).Logger()
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := cfg.NewLogger(serviceName, Version)

	log.Info().
		Str("build_time", BuildTime).
		Dur("interval", cfg.Worker.Interval).
		Msg("starting air-quality monitor")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock := clockwork.NewRealClock()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.App.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
		SampleRatio:    cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	fetchMetrics, err := telemetry.NewFetchMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize fetch metrics")
	}

	// Favorites come from the same store the API writes.
	var favorites worker.FavoriteSource
	if cfg.Worker.IncludeSaved {
		backend, backendErr := settings.OpenBackend(ctx, settings.BackendConfig{
			Kind:       cfg.Storage.Backend,
			SQLitePath: cfg.Storage.SQLitePath,
			Clock:      clock,
		})
		if backendErr != nil {
			log.Fatal().Err(backendErr).Msg("failed to open settings storage")
		}
		defer backend.Close()
		favorites = settings.NewStore(settings.StoreConfig{Storage: backend.Storage, Clock: clock, Logger: log})
	}

	registry := resilience.NewRegistryWithClock(clock)
	rc := resilience.DefaultClientConfig(aqopenmeteo.ProviderName)
	rc.Timeout = cfg.Providers.Timeout
	rc.MaxRetries = cfg.Providers.MaxRetries
	rc.Registry = registry
	rc.Logger = log
	provider := aqopenmeteo.NewClient(aqopenmeteo.ClientConfig{
		BaseURL:    cfg.Providers.AirQualityURL,
		HTTPClient: resilience.NewClient(rc),
		Registry:   registry,
		Clock:      clock,
	})

	var publisher alert.Publisher = alert.LogPublisher{Logger: log}
	if cfg.Alerts.Enabled() {
		ps, psErr := alert.NewPubSubPublisher(ctx, alert.PubSubConfig{
			ProjectID: cfg.Alerts.ProjectID,
			Topic:     cfg.Alerts.Topic,
			Logger:    log,
		})
		if psErr != nil {
			log.Fatal().Err(psErr).Msg("failed to create hazard alert publisher")
		}
		defer func() { _ = ps.Close() }()
		publisher = ps
	}

	watchCfg := worker.DefaultWatchConfig()
	watchCfg.IncludeFavorites = cfg.Worker.IncludeSaved
	watchCfg.Concurrency = cfg.Worker.Concurrency
	watchCfg.Timeout = cfg.Worker.FetchTimeout
	if len(cfg.Worker.Locations) > 0 {
		watchCfg.Targets = make([]worker.Target, 0, len(cfg.Worker.Locations))
		for i, l := range cfg.Worker.Locations {
			watchCfg.Targets = append(watchCfg.Targets, worker.Target{
				Name:        l.Name,
				Coordinates: airquality.Coordinates{Latitude: l.Latitude, Longitude: l.Longitude},
				Priority:    i,
			})
		}
	}

	job := worker.NewWatchJob(worker.WatchJobConfig{
		Config:    watchCfg,
		Logger:    log,
		Clock:     clock,
		Provider:  provider,
		Favorites: favorites,
		Publisher: publisher,
		Metrics:   fetchMetrics,
	})

	// Health endpoint for the container platform
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		body := job.MetricsSnapshot()
		body["status"] = "healthy"
		body["version"] = Version
		providers := make(map[string]string)
		for _, h := range registry.GetAllHealth() {
			providers[h.Name] = h.CircuitState.String()
		}
		body["providers"] = providers
		response.JSON(w, r, http.StatusOK, body)
	})

	server := &http.Server{
		Addr:         cfg.Worker.HealthAddress,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("health server error")
		}
	}()

	// On-demand runs
	if cfg.Worker.Subscription != "" && cfg.Alerts.ProjectID != "" {
		handler, subErr := worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.Alerts.ProjectID,
			SubscriptionName: cfg.Worker.Subscription,
			Dispatcher:       worker.NewDispatcher(job, log),
			Logger:           log,
		})
		if subErr != nil {
			log.Fatal().Err(subErr).Msg("failed to create pubsub handler")
		}
		defer func() { _ = handler.Close() }()

		go func() {
			if err := handler.Start(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Msg("pubsub handler stopped")
			}
		}()
	}

	// Scheduled runs
	go func() {
		ticker := clock.NewTicker(cfg.Worker.Interval)
		defer ticker.Stop()

		for {
			job.Run(ctx)

			select {
			case <-ctx.Done():
				log.Info().Msg("watch loop stopped")
				return
			case <-ticker.Chan():
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down worker")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("worker stopped")
}
