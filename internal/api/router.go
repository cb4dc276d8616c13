// Package api provides the HTTP API for the air-quality dashboard.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/breatheroute/airdash/internal/airquality"
	"github.com/breatheroute/airdash/internal/api/handler"
	"github.com/breatheroute/airdash/internal/api/middleware"
	"github.com/breatheroute/airdash/internal/dashboard"
	"github.com/breatheroute/airdash/internal/geocoding"
	"github.com/breatheroute/airdash/internal/maptiles"
	"github.com/breatheroute/airdash/internal/notice"
	"github.com/breatheroute/airdash/internal/provider/resilience"
	"github.com/breatheroute/airdash/internal/settings"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Orchestrator *dashboard.Orchestrator
	Resolver     airquality.Resolver
	Store        *settings.Store
	Searcher     *geocoding.Searcher
	Board        *notice.Board
	Switcher     *maptiles.Switcher
	Registry     *resilience.Registry
	Storage      handler.Pinger
	Clock        clockwork.Clock

	ExportDir string
	ShareBase string
	// RateLimit is the standard per-IP limit per minute. Zero uses the default.
	RateLimit  int
	RequireTLS bool
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "airdash-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Registry:  cfg.Registry,
		Storage:   cfg.Storage,
		Clock:     cfg.Clock,
	})
	dashboardHandler := handler.NewDashboardHandler(cfg.Orchestrator, cfg.Resolver, cfg.ShareBase)
	geocodeHandler := handler.NewGeocodeHandler(cfg.Searcher)
	settingsHandler := handler.NewSettingsHandler(cfg.Store, cfg.Orchestrator, cfg.Board)
	exportHandler := handler.NewExportHandler(handler.ExportConfig{
		Orchestrator: cfg.Orchestrator,
		Resolver:     cfg.Resolver,
		Store:        cfg.Store,
		Notices:      cfg.Board,
		Dir:          cfg.ExportDir,
		Logger:       cfg.Logger,
	})
	noticeHandler := handler.NewNoticeHandler(cfg.Board)
	mapHandler := handler.NewMapHandler(cfg.Switcher)

	standard := middleware.StandardRateLimit
	if cfg.RateLimit > 0 {
		standard = middleware.PerMinute(cfg.RateLimit)
	}
	standardRateLimit := middleware.RateLimitByIP(standard)
	upstreamRateLimit := middleware.RateLimitByIP(middleware.UpstreamRateLimit)
	exportRateLimit := middleware.RateLimitByIP(middleware.ExportRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(standardRateLimit)

			r.Route("/dashboard", func(r chi.Router) {
				r.Get("/", dashboardHandler.GetDashboard)
				// Fetches reach the upstream, so they share the tighter limit.
				r.With(upstreamRateLimit, middleware.RequireJSON).Post("/fetch", dashboardHandler.Fetch)
				r.Post("/hazard/dismiss", dashboardHandler.DismissHazard)
				r.Get("/share", dashboardHandler.Share)
			})

			r.With(upstreamRateLimit).Get("/geocode", geocodeHandler.Search)

			r.Route("/settings", func(r chi.Router) {
				r.Get("/", settingsHandler.GetSettings)
				r.With(middleware.RequireJSON).Patch("/", settingsHandler.PatchSettings)
			})

			r.Route("/favorites", func(r chi.Router) {
				r.Get("/", settingsHandler.ListFavorites)
				r.With(middleware.RequireJSON).Post("/", settingsHandler.AddFavorite)
				r.Delete("/", settingsHandler.RemoveFavorite)
			})

			r.Delete("/storage", settingsHandler.ClearStorage)

			r.With(exportRateLimit).Get("/export/{file}", exportHandler.Export)

			r.Route("/notices", func(r chi.Router) {
				r.Get("/", noticeHandler.List)
				r.With(middleware.RequireJSON).Post("/", noticeHandler.Post)
				r.Delete("/{id}", noticeHandler.Dismiss)
			})

			r.Route("/map/tiles", func(r chi.Router) {
				r.Get("/", mapHandler.Tiles)
				r.With(middleware.RequireJSON).Post("/errors", mapHandler.ReportTileError)
			})
		})
	})

	return r
}
