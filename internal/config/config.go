// Package config loads service configuration from an optional .env file, an
// optional YAML file named by AIRDASH_CONFIG and environment variables, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/breatheroute/airdash/internal/settings"
)

// Storage backends.
const (
	BackendMemory   = settings.BackendMemory
	BackendSQLite   = settings.BackendSQLite
	BackendPostgres = settings.BackendPostgres
)

// Config is the full service configuration.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Providers ProvidersConfig `yaml:"providers"`
	Storage   StorageConfig   `yaml:"storage"`
	Alerts    AlertsConfig    `yaml:"alerts"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Worker    WorkerConfig    `yaml:"worker"`
}

type AppConfig struct {
	Port         string `yaml:"port"`
	Env          string `yaml:"env"`
	LogLevel     string `yaml:"log_level"`
	ShareBaseURL string `yaml:"share_base_url"`
	ExportDir    string `yaml:"export_dir"`

	// RateLimit is requests per minute per client IP.
	RateLimit int `yaml:"rate_limit"`

	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool `yaml:"require_tls"`
}

type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRatio  float64 `yaml:"sample_ratio"`
}

type ProvidersConfig struct {
	AirQualityURL string        `yaml:"air_quality_url"`
	GeocodingURL  string        `yaml:"geocoding_url"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxRetries    uint64        `yaml:"max_retries"`
	CacheEntries  int           `yaml:"geocode_cache_entries"`
}

type StorageConfig struct {
	Backend    string `yaml:"backend"`
	SQLitePath string `yaml:"sqlite_path"`
}

type AlertsConfig struct {
	ProjectID string `yaml:"project_id"`
	Topic     string `yaml:"topic"`
}

// Enabled reports whether hazard events go to Pub/Sub.
func (a AlertsConfig) Enabled() bool {
	return a.ProjectID != "" && a.Topic != ""
}

type DashboardConfig struct {
	DefaultName      string  `yaml:"default_name"`
	DefaultLatitude  float64 `yaml:"default_latitude"`
	DefaultLongitude float64 `yaml:"default_longitude"`
}

// WatchedLocation is a place the worker monitors.
type WatchedLocation struct {
	Name      string  `yaml:"name"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type WorkerConfig struct {
	Interval      time.Duration     `yaml:"interval"`
	Concurrency   int               `yaml:"concurrency"`
	Subscription  string            `yaml:"subscription"`
	IncludeSaved  bool              `yaml:"include_favorites"`
	Locations     []WatchedLocation `yaml:"locations"`
	FetchTimeout  time.Duration     `yaml:"fetch_timeout"`
	HealthAddress string            `yaml:"health_address"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		App: AppConfig{
			Port:         "8080",
			Env:          "development",
			LogLevel:     "info",
			ShareBaseURL: "http://localhost:8080/",
			ExportDir:    "exports",
			RateLimit:    120,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			SampleRatio:  1,
		},
		Providers: ProvidersConfig{
			AirQualityURL: "https://air-quality-api.open-meteo.com/v1/air-quality",
			GeocodingURL:  "https://geocoding-api.open-meteo.com/v1/search",
			Timeout:       10 * time.Second,
			MaxRetries:    3,
			CacheEntries:  256,
		},
		Storage: StorageConfig{
			Backend:    BackendSQLite,
			SQLitePath: "data/airdash.db",
		},
		Dashboard: DashboardConfig{
			DefaultName:      "New Delhi, India",
			DefaultLatitude:  28.6139,
			DefaultLongitude: 77.209,
		},
		Worker: WorkerConfig{
			Interval:      5 * time.Minute,
			Concurrency:   3,
			IncludeSaved:  true,
			FetchTimeout:  30 * time.Second,
			HealthAddress: ":8081",
		},
	}
}

// Load reads envFile (if present), then the YAML file named by
// AIRDASH_CONFIG (if set), then environment overrides, and validates.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := Defaults()
	if path := os.Getenv("AIRDASH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var result *multierror.Error
	str := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}
	integer := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				result = multierror.Append(result, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}

	str("APP_PORT", &cfg.App.Port)
	str("APP_ENV", &cfg.App.Env)
	str("LOG_LEVEL", &cfg.App.LogLevel)
	str("SHARE_BASE_URL", &cfg.App.ShareBaseURL)
	str("EXPORT_DIR", &cfg.App.ExportDir)
	integer("RATE_LIMIT_PER_MINUTE", &cfg.App.RateLimit)
	boolean("REQUIRE_TLS", &cfg.App.RequireTLS)

	boolean("OTEL_ENABLED", &cfg.Telemetry.Enabled)
	str("OTEL_EXPORTER_OTLP_ENDPOINT", &cfg.Telemetry.OTLPEndpoint)

	str("AIR_QUALITY_URL", &cfg.Providers.AirQualityURL)
	str("GEOCODING_URL", &cfg.Providers.GeocodingURL)
	duration("PROVIDER_TIMEOUT", &cfg.Providers.Timeout)

	str("STORAGE_BACKEND", &cfg.Storage.Backend)
	str("SQLITE_PATH", &cfg.Storage.SQLitePath)

	str("PUBSUB_PROJECT_ID", &cfg.Alerts.ProjectID)
	str("ALERT_TOPIC", &cfg.Alerts.Topic)

	duration("WORKER_INTERVAL", &cfg.Worker.Interval)
	integer("WORKER_CONCURRENCY", &cfg.Worker.Concurrency)
	str("WORKER_SUBSCRIPTION", &cfg.Worker.Subscription)

	return result.ErrorOrNil()
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var result *multierror.Error

	if _, err := strconv.Atoi(c.App.Port); err != nil {
		result = multierror.Append(result, fmt.Errorf("app.port %q is not a number", c.App.Port))
	}
	if _, err := zerolog.ParseLevel(c.App.LogLevel); err != nil {
		result = multierror.Append(result, fmt.Errorf("app.log_level: %w", err))
	}
	if _, err := url.ParseRequestURI(c.App.ShareBaseURL); err != nil {
		result = multierror.Append(result, fmt.Errorf("app.share_base_url: %w", err))
	}
	if c.App.RateLimit <= 0 {
		result = multierror.Append(result, errors.New("app.rate_limit must be positive"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		result = multierror.Append(result, errors.New("telemetry.sample_ratio must be within [0, 1]"))
	}
	for name, raw := range map[string]string{
		"providers.air_quality_url": c.Providers.AirQualityURL,
		"providers.geocoding_url":   c.Providers.GeocodingURL,
	} {
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			result = multierror.Append(result, fmt.Errorf("%s %q is not an absolute URL", name, raw))
		}
	}
	if c.Providers.Timeout <= 0 {
		result = multierror.Append(result, errors.New("providers.timeout must be positive"))
	}
	switch c.Storage.Backend {
	case BackendMemory, BackendPostgres:
	case BackendSQLite:
		if c.Storage.SQLitePath == "" {
			result = multierror.Append(result, errors.New("storage.sqlite_path is required for sqlite"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("storage.backend %q is not one of memory, sqlite, postgres", c.Storage.Backend))
	}
	if (c.Alerts.ProjectID == "") != (c.Alerts.Topic == "") {
		result = multierror.Append(result, errors.New("alerts.project_id and alerts.topic must be set together"))
	}
	if c.Worker.Interval < 10*time.Second {
		result = multierror.Append(result, errors.New("worker.interval must be at least 10s"))
	}
	if c.Worker.Concurrency <= 0 {
		result = multierror.Append(result, errors.New("worker.concurrency must be positive"))
	}
	for i, l := range c.Worker.Locations {
		if l.Latitude < -90 || l.Latitude > 90 || l.Longitude < -180 || l.Longitude > 180 {
			result = multierror.Append(result, fmt.Errorf("worker.locations[%d] %q has invalid coordinates", i, l.Name))
		}
	}

	return result.ErrorOrNil()
}

// NewLogger builds the service logger.
func (c Config) NewLogger(service, version string) zerolog.Logger {
	level, err := zerolog.ParseLevel(c.App.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}
