// Package dashboard coordinates fetching, derived metrics and auto-refresh
// for the location currently shown on the dashboard.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/breatheroute/airdash/internal/airquality"
	"github.com/breatheroute/airdash/internal/alert"
	"github.com/breatheroute/airdash/internal/notice"
	"github.com/breatheroute/airdash/internal/schedule"
	"github.com/breatheroute/airdash/internal/telemetry"
)

// DefaultLocation is shown before the user picks a place.
var DefaultLocation = airquality.Location{
	Coordinates: airquality.Coordinates{Latitude: 28.6139, Longitude: 77.209},
	Name:        "New Delhi, India",
}

// Provider fetches raw air quality payloads.
type Provider interface {
	Fetch(ctx context.Context, coords airquality.Coordinates) (*airquality.Payload, error)
}

// State is the orchestrator's fetch state.
type State string

const (
	StateIdle    State = "IDLE"
	StateLoading State = "LOADING"
)

// Outcome is the result of the most recent completed fetch.
type Outcome string

const (
	OutcomeNone              Outcome = "NONE"
	OutcomeSuccess           Outcome = "SUCCESS"
	OutcomeNetworkFailure    Outcome = "NETWORK_FAILURE"
	OutcomeMalformedResponse Outcome = "MALFORMED_RESPONSE"
)

// Config holds configuration for an Orchestrator.
type Config struct {
	Provider Provider

	// Resolver fills gaps in the hourly series. Defaults to a time-seeded resolver.
	Resolver airquality.Resolver

	// Notices receives transient failure notices (optional).
	Notices notice.Poster

	// Alerts receives hazard events (optional).
	Alerts alert.Publisher

	// Location is the initial location. Defaults to DefaultLocation.
	Location *airquality.Location

	Clock   clockwork.Clock
	Logger  zerolog.Logger
	Tracer  trace.Tracer
	Metrics *telemetry.FetchMetrics
}

// Snapshot is a consistent copy of the orchestrator's view.
type Snapshot struct {
	State           State
	Spinner         bool
	Location        airquality.Location
	Payload         *airquality.Payload
	Reading         *airquality.Reading
	Series          airquality.HourlySeries
	Status          *airquality.Status
	HazardAlert     bool
	LastUpdated     *time.Time
	LastOutcome     Outcome
	LastError       string
	AutoRefresh     bool
	RefreshInterval time.Duration
}

// Orchestrator owns the dashboard's current location and its latest data.
// Overlapping fetches are not cancelled; the last one to finish wins.
type Orchestrator struct {
	provider Provider
	resolver airquality.Resolver
	notices  notice.Poster
	alerts   alert.Publisher
	detector *alert.Detector
	clock    clockwork.Clock
	logger   zerolog.Logger
	tracer   trace.Tracer
	metrics  *telemetry.FetchMetrics
	task     *schedule.Task

	// schedMu serializes schedule changes. It is never held with mu.
	schedMu sync.Mutex

	mu              sync.Mutex
	location        airquality.Location
	payload         *airquality.Payload
	reading         *airquality.Reading
	series          airquality.HourlySeries
	status          *airquality.Status
	lastUpdated     *time.Time
	inflight        int
	visible         int
	hazardDismissed bool
	lastOutcome     Outcome
	lastError       string
	autoRefresh     bool
	refreshInterval time.Duration
}

// NewOrchestrator creates an orchestrator with auto-refresh off.
func NewOrchestrator(cfg Config) *Orchestrator {
	if cfg.Resolver == nil {
		cfg.Resolver = airquality.NewResolver()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer("airdash/dashboard")
	}
	loc := DefaultLocation
	if cfg.Location != nil {
		loc = *cfg.Location
	}

	o := &Orchestrator{
		provider:    cfg.Provider,
		resolver:    cfg.Resolver,
		notices:     cfg.Notices,
		alerts:      cfg.Alerts,
		detector:    alert.NewDetector(),
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		tracer:      cfg.Tracer,
		metrics:     cfg.Metrics,
		location:    loc,
		lastOutcome: OutcomeNone,
	}
	o.task = schedule.NewTask(cfg.Clock, func(ctx context.Context) {
		o.TriggerFetch(ctx, o.Location(), true)
	})
	return o
}

// Location returns the current location.
func (o *Orchestrator) Location() airquality.Location {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.location
}

// TriggerFetch fetches data for loc. Silent fetches leave the spinner hidden.
// Failures are reported as notices and leave the previous data in place.
func (o *Orchestrator) TriggerFetch(ctx context.Context, loc airquality.Location, silent bool) {
	ctx, span := o.tracer.Start(ctx, "dashboard.fetch", trace.WithAttributes(
		attribute.Float64("latitude", loc.Latitude),
		attribute.Float64("longitude", loc.Longitude),
		attribute.Bool("silent", silent),
	))
	defer span.End()

	o.mu.Lock()
	o.inflight++
	if !silent {
		o.visible++
	}
	o.mu.Unlock()

	start := o.clock.Now()
	payload, err := o.provider.Fetch(ctx, loc.Coordinates)
	elapsed := o.clock.Since(start)

	if err != nil && cancelled(ctx, err) {
		// Superseded by a schedule restart or the caller went away.
		o.finish(silent, func() {})
		o.logger.Debug().
			Str("location", loc.Name).
			Bool("silent", silent).
			Msg("air quality fetch cancelled")
		return
	}

	if err != nil {
		outcome := classifyError(err)
		o.finish(silent, func() {
			o.lastOutcome = outcome
			o.lastError = err.Error()
		})

		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.metrics.RecordFetch(ctx, metricOutcome(outcome), silent, elapsed)
		o.logger.Warn().Err(err).
			Str("location", loc.Name).
			Bool("silent", silent).
			Msg("air quality fetch failed")
		o.postFailure(outcome)
		return
	}

	now := o.clock.Now()
	reading := &airquality.Reading{
		Coordinates:  loc.Coordinates,
		LocationName: loc.Name,
		Pollutants:   airquality.Normalize(payload.Current),
		Timestamp:    now,
	}
	pm25 := reading.Pollutants[airquality.PollutantPM25]
	anchor, _ := payload.Current["time"].(string)
	series := airquality.BuildSeries(payload.Hourly, anchor, pm25, now, o.resolver)

	var status *airquality.Status
	entered := false
	if v, ok := reading.PM25(); ok {
		s := airquality.Classify(v)
		status = &s
		entered = o.detector.Observe(loc.Coordinates, s)
	}

	o.finish(silent, func() {
		o.payload = payload
		o.reading = reading
		o.series = series
		o.status = status
		o.lastUpdated = &now
		o.hazardDismissed = false
		o.lastOutcome = OutcomeSuccess
		o.lastError = ""
	})

	o.metrics.RecordFetch(ctx, telemetry.OutcomeSuccess, silent, elapsed)
	o.logger.Debug().
		Str("location", loc.Name).
		Bool("synthetic_series", series.Synthetic).
		Dur("elapsed", elapsed).
		Msg("air quality fetched")

	if entered {
		o.publishHazard(ctx, *reading, *status)
	}
}

func (o *Orchestrator) finish(silent bool, apply func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight--
	if !silent {
		o.visible--
	}
	apply()
}

func (o *Orchestrator) postFailure(outcome Outcome) {
	if o.notices == nil {
		return
	}
	switch outcome {
	case OutcomeMalformedResponse:
		o.notices.Post(notice.KindMalformedResponse, "Received unexpected air quality data. Showing the last known values.")
	default:
		o.notices.Post(notice.KindNetworkFailure, "Could not reach the air quality service. Showing the last known values.")
	}
}

func (o *Orchestrator) publishHazard(ctx context.Context, reading airquality.Reading, status airquality.Status) {
	pm25, _ := reading.PM25()
	o.metrics.RecordHazard(ctx)
	if o.alerts == nil {
		return
	}
	if err := o.alerts.Publish(ctx, alert.NewHazardEvent(reading, pm25, status)); err != nil {
		o.logger.Error().Err(err).Str("location", reading.LocationName).Msg("failed to publish hazard event")
	}
}

func cancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, context.Canceled)
}

func classifyError(err error) Outcome {
	if errors.Is(err, airquality.ErrMalformedResponse) {
		return OutcomeMalformedResponse
	}
	return OutcomeNetworkFailure
}

func metricOutcome(o Outcome) string {
	if o == OutcomeMalformedResponse {
		return telemetry.OutcomeMalformed
	}
	return telemetry.OutcomeNetwork
}

// SetLocation switches to loc, fetches it with the spinner shown and
// restarts the auto-refresh timer if it is on.
func (o *Orchestrator) SetLocation(ctx context.Context, loc airquality.Location) {
	o.mu.Lock()
	o.location = loc
	o.mu.Unlock()

	o.restartSchedule()
	o.TriggerFetch(ctx, loc, false)
}

// SetAutoRefresh turns the periodic silent fetch on or off. Any pending
// timer is stopped first. It returns the effective period, zero when off.
func (o *Orchestrator) SetAutoRefresh(enabled bool, interval time.Duration) time.Duration {
	o.schedMu.Lock()
	defer o.schedMu.Unlock()

	o.task.Stop()

	period := time.Duration(0)
	if enabled {
		period = o.task.Start(interval)
	}

	o.mu.Lock()
	o.autoRefresh = enabled
	o.refreshInterval = schedule.Clamp(interval)
	o.mu.Unlock()

	o.logger.Info().
		Bool("enabled", enabled).
		Dur("period", period).
		Msg("auto refresh updated")
	return period
}

func (o *Orchestrator) restartSchedule() {
	o.mu.Lock()
	enabled, interval := o.autoRefresh, o.refreshInterval
	o.mu.Unlock()
	if enabled {
		o.SetAutoRefresh(true, interval)
	}
}

// DismissHazard hides the hazard alert until the next successful fetch.
func (o *Orchestrator) DismissHazard() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hazardDismissed = true
}

// Snapshot returns a copy of the current view.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	state := StateIdle
	if o.inflight > 0 {
		state = StateLoading
	}

	series := airquality.HourlySeries{
		Points:    append([]airquality.HourlyPoint(nil), o.series.Points...),
		Synthetic: o.series.Synthetic,
	}

	return Snapshot{
		State:           state,
		Spinner:         o.visible > 0,
		Location:        o.location,
		Payload:         o.payload,
		Reading:         o.reading,
		Series:          series,
		Status:          o.status,
		HazardAlert:     o.status != nil && o.status.IsHazard() && !o.hazardDismissed,
		LastUpdated:     o.lastUpdated,
		LastOutcome:     o.lastOutcome,
		LastError:       o.lastError,
		AutoRefresh:     o.autoRefresh,
		RefreshInterval: o.refreshInterval,
	}
}

// Close stops the auto-refresh timer.
func (o *Orchestrator) Close() {
	o.schedMu.Lock()
	defer o.schedMu.Unlock()
	o.task.Stop()
}
