// Package main provides the entrypoint for the air-quality dashboard API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/breatheroute/airdash/internal/airquality"
	aqopenmeteo "github.com/breatheroute/airdash/internal/airquality/openmeteo"
	"github.com/breatheroute/airdash/internal/alert"
	"github.com/breatheroute/airdash/internal/api"
	"github.com/breatheroute/airdash/internal/api/middleware"
	"github.com/breatheroute/airdash/internal/config"
	"github.com/breatheroute/airdash/internal/dashboard"
	"github.com/breatheroute/airdash/internal/geocoding"
	geoopenmeteo "github.com/breatheroute/airdash/internal/geocoding/openmeteo"
	"github.com/breatheroute/airdash/internal/maptiles"
	"github.com/breatheroute/airdash/internal/notice"
	"github.com/breatheroute/airdash/internal/provider/resilience"
	"github.com/breatheroute/airdash/internal/settings"
	"github.com/breatheroute/airdash/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airdash-api"

	cfg, err := config.Load(".env")
	if err != nil {
		boot := zerolog.New(os.Stderr).With().Timestamp().Str("service", serviceName).Logger()
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	log := cfg.NewLogger(serviceName, Version)

	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.App.Env).
		Msg("starting air-quality dashboard API")

	ctx := context.Background()
	clock := clockwork.NewRealClock()

	// Initialize OpenTelemetry
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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if cfg.Telemetry.Enabled {
		log.Info().
			Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).
			Msg("OpenTelemetry initialized")
	}

	httpMetrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize HTTP metrics")
	}
	fetchMetrics, err := telemetry.NewFetchMetrics(tp.Meter)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize fetch metrics")
	}

	// Settings storage
	backend, err := settings.OpenBackend(ctx, settings.BackendConfig{
		Kind:       cfg.Storage.Backend,
		SQLitePath: cfg.Storage.SQLitePath,
		Clock:      clock,
	})
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("failed to open settings storage")
	}
	defer backend.Close()
	log.Info().Str("backend", cfg.Storage.Backend).Msg("settings storage ready")

	board := notice.NewBoard(notice.BoardConfig{Clock: clock, Logger: log})
	store := settings.NewStore(settings.StoreConfig{Storage: backend.Storage, Clock: clock, Logger: log})

	// Upstream clients
	registry := resilience.NewRegistryWithClock(clock)
	airClient := aqopenmeteo.NewClient(aqopenmeteo.ClientConfig{
		BaseURL:    cfg.Providers.AirQualityURL,
		HTTPClient: resilience.NewClient(upstreamConfig(cfg, aqopenmeteo.ProviderName, registry, log)),
		Registry:   registry,
		Clock:      clock,
	})
	geoClient := geoopenmeteo.NewClient(geoopenmeteo.ClientConfig{
		BaseURL:    cfg.Providers.GeocodingURL,
		HTTPClient: resilience.NewClient(upstreamConfig(cfg, geoopenmeteo.ProviderName, registry, log)),
		Registry:   registry,
	})
	searcher := geocoding.NewSearcher(geocoding.SearcherConfig{
		Provider: geocoding.NewCachedProvider(geoClient, cfg.Providers.CacheEntries),
		Clock:    clock,
		Logger:   log,
	})

	// Hazard alerts
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
		log.Info().Str("topic", cfg.Alerts.Topic).Msg("hazard alerts publish to Pub/Sub")
	}

	resolver := airquality.NewResolver()
	start := airquality.Location{
		Coordinates: airquality.Coordinates{
			Latitude:  cfg.Dashboard.DefaultLatitude,
			Longitude: cfg.Dashboard.DefaultLongitude,
		},
		Name: cfg.Dashboard.DefaultName,
	}
	orchestrator := dashboard.NewOrchestrator(dashboard.Config{
		Provider: airClient,
		Resolver: resolver,
		Notices:  board,
		Alerts:   publisher,
		Location: &start,
		Clock:    clock,
		Logger:   log,
		Tracer:   tp.Tracer,
		Metrics:  fetchMetrics,
	})
	defer orchestrator.Close()

	saved := store.Settings(ctx)
	orchestrator.SetAutoRefresh(saved.AutoRefresh, saved.RefreshInterval())

	// Load the first reading in the background so the server starts at once.
	go orchestrator.TriggerFetch(ctx, orchestrator.Location(), false)

	router := api.NewRouter(api.RouterConfig{
		Version:      Version,
		BuildTime:    BuildTime,
		Logger:       log,
		ServiceName:  serviceName,
		Metrics:      httpMetrics,
		Orchestrator: orchestrator,
		Resolver:     resolver,
		Store:        store,
		Searcher:     searcher,
		Board:        board,
		Switcher:     maptiles.NewSwitcher(board, log),
		Registry:     registry,
		Storage:      backend,
		Clock:        clock,
		ExportDir:    cfg.App.ExportDir,
		ShareBase:    cfg.App.ShareBaseURL,
		RateLimit:    cfg.App.RateLimit,
		RequireTLS:   cfg.App.RequireTLS,
	})

	// A fetch can retry the upstream several times before it settles.
	server := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

func upstreamConfig(cfg *config.Config, name string, registry *resilience.Registry, log zerolog.Logger) resilience.ClientConfig {
	rc := resilience.DefaultClientConfig(name)
	rc.Timeout = cfg.Providers.Timeout
	rc.MaxRetries = cfg.Providers.MaxRetries
	rc.Registry = registry
	rc.Logger = log
	return rc
}
