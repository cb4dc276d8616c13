package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/breatheroute/airdash/internal/airquality"
	"github.com/breatheroute/airdash/internal/alert"
	"github.com/breatheroute/airdash/internal/settings"
	"github.com/breatheroute/airdash/internal/telemetry"
)

// favoritePriority places favorites after every configured target.
const favoritePriority = 10

// Provider fetches raw air-quality payloads.
type Provider interface {
	Fetch(ctx context.Context, coords airquality.Coordinates) (*airquality.Payload, error)
}

// FavoriteSource lists saved favorites.
type FavoriteSource interface {
	Favorites(ctx context.Context) []settings.Favorite
}

// WatchJob refreshes every watched location and publishes hazard events.
type WatchJob struct {
	config WatchConfig
	logger zerolog.Logger
	clock  clockwork.Clock

	provider  Provider
	favorites FavoriteSource
	detector  *alert.Detector
	publisher alert.Publisher
	telemetry *telemetry.FetchMetrics

	metrics *WatchMetrics
}

// WatchMetrics tracks job statistics.
type WatchMetrics struct {
	mu sync.RWMutex

	TotalRuns         int64
	SuccessfulFetches int64
	FailedFetches     int64
	HazardEvents      int64

	LastRunAt       time.Time
	LastRunDuration time.Duration
	TotalDuration   time.Duration
}

// WatchJobConfig holds configuration for creating a WatchJob.
type WatchJobConfig struct {
	Config    WatchConfig
	Logger    zerolog.Logger
	Clock     clockwork.Clock
	Provider  Provider
	Favorites FavoriteSource

	// Detector is shared with other consumers of the same locations; a new
	// one is created when nil.
	Detector  *alert.Detector
	Publisher alert.Publisher
	Metrics   *telemetry.FetchMetrics
}

// NewWatchJob creates a watch job.
func NewWatchJob(cfg WatchJobConfig) *WatchJob {
	config := cfg.Config
	if len(config.Targets) == 0 && !config.IncludeFavorites {
		config.Targets = DefaultTargets()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	detector := cfg.Detector
	if detector == nil {
		detector = alert.NewDetector()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = alert.LogPublisher{Logger: cfg.Logger}
	}

	return &WatchJob{
		config:    config,
		logger:    cfg.Logger,
		clock:     clock,
		provider:  cfg.Provider,
		favorites: cfg.Favorites,
		detector:  detector,
		publisher: publisher,
		telemetry: cfg.Metrics,
		metrics:   &WatchMetrics{},
	}
}

// RunResult contains the result of one run.
type RunResult struct {
	StartTime  time.Time
	EndTime    time.Time
	Duration   time.Duration
	Total      int
	Successful int
	Failed     int
	Hazardous  int
	Results    []TargetResult
	Errors     []WatchError
}

// TargetResult is the outcome for one location.
type TargetResult struct {
	Target Target
	PM25   *float64
	Status *airquality.Status

	// Entered is true when the location just became hazardous.
	Entered bool
}

// WatchError represents a failed fetch.
type WatchError struct {
	Target Target
	Error  string
}

// Targets returns the locations the next run will visit.
func (j *WatchJob) Targets(ctx context.Context) []Target {
	var extra []Target
	if j.config.IncludeFavorites && j.favorites != nil {
		for _, f := range j.favorites.Favorites(ctx) {
			extra = append(extra, Target{Name: f.Name, Coordinates: f.Coordinates(), Priority: favoritePriority})
		}
	}
	return merge(j.config.Targets, extra)
}

// Run fetches all targets with a bounded pool of workers.
func (j *WatchJob) Run(ctx context.Context) *RunResult {
	startTime := j.clock.Now()
	targets := j.Targets(ctx)
	result := &RunResult{
		StartTime: startTime,
		Total:     len(targets),
	}

	j.logger.Info().
		Int("targets", result.Total).
		Int("concurrency", j.config.Concurrency).
		Msg("starting watch run")

	targetsChan := make(chan Target, len(targets))
	resultsChan := make(chan targetOutcome, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < j.config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			j.watchWorker(ctx, targetsChan, resultsChan)
		}()
	}

	for _, t := range targets {
		targetsChan <- t
	}
	close(targetsChan)

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	for out := range resultsChan {
		if out.err != nil {
			result.Failed++
			result.Errors = append(result.Errors, WatchError{Target: out.result.Target, Error: out.err.Error()})
			continue
		}
		result.Successful++
		if out.result.Status != nil && out.result.Status.IsHazard() {
			result.Hazardous++
		}
		result.Results = append(result.Results, out.result)
	}

	result.EndTime = j.clock.Now()
	result.Duration = result.EndTime.Sub(startTime)
	j.updateMetrics(result)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("hazardous", result.Hazardous).
		Msg("watch run completed")

	return result
}

type targetOutcome struct {
	result TargetResult
	err    error
}

func (j *WatchJob) watchWorker(ctx context.Context, targets <-chan Target, results chan<- targetOutcome) {
	for t := range targets {
		select {
		case <-ctx.Done():
			results <- targetOutcome{result: TargetResult{Target: t}, err: ctx.Err()}
		default:
			results <- j.watchTarget(ctx, t)
		}
	}
}

func (j *WatchJob) watchTarget(ctx context.Context, t Target) targetOutcome {
	out := targetOutcome{result: TargetResult{Target: t}}
	if j.provider == nil {
		out.err = errors.New("no air quality provider configured")
		return out
	}

	fetchCtx, cancel := context.WithTimeout(ctx, j.config.Timeout)
	defer cancel()

	start := j.clock.Now()
	payload, err := j.provider.Fetch(fetchCtx, t.Coordinates)
	elapsed := j.clock.Since(start)
	if err != nil {
		outcome := telemetry.OutcomeNetwork
		if errors.Is(err, airquality.ErrMalformedResponse) {
			outcome = telemetry.OutcomeMalformed
		}
		j.telemetry.RecordFetch(ctx, outcome, true, elapsed)
		j.logger.Warn().Err(err).Str("location", t.Name).Msg("watch fetch failed")
		out.err = err
		return out
	}
	j.telemetry.RecordFetch(ctx, telemetry.OutcomeSuccess, true, elapsed)

	reading := airquality.Reading{
		Coordinates:  t.Coordinates,
		LocationName: t.Name,
		Pollutants:   airquality.Normalize(payload.Current),
		Timestamp:    j.clock.Now(),
	}
	pm25, ok := reading.PM25()
	if !ok {
		// Without a measured value nothing is classified.
		return out
	}

	status := airquality.Classify(pm25)
	out.result.PM25 = &pm25
	out.result.Status = &status
	out.result.Entered = j.detector.Observe(t.Coordinates, status)

	if out.result.Entered {
		j.telemetry.RecordHazard(ctx)
		if err := j.publisher.Publish(ctx, alert.NewHazardEvent(reading, pm25, status)); err != nil {
			j.logger.Error().Err(err).Str("location", t.Name).Msg("failed to publish hazard event")
		}
	}
	return out
}

func (j *WatchJob) updateMetrics(result *RunResult) {
	j.metrics.mu.Lock()
	defer j.metrics.mu.Unlock()

	j.metrics.TotalRuns++
	j.metrics.SuccessfulFetches += int64(result.Successful)
	j.metrics.FailedFetches += int64(result.Failed)
	for _, r := range result.Results {
		if r.Entered {
			j.metrics.HazardEvents++
		}
	}
	j.metrics.LastRunAt = result.EndTime
	j.metrics.LastRunDuration = result.Duration
	j.metrics.TotalDuration += result.Duration
}

// GetMetrics returns a copy of the current metrics.
func (j *WatchJob) GetMetrics() WatchMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()

	return WatchMetrics{
		TotalRuns:         j.metrics.TotalRuns,
		SuccessfulFetches: j.metrics.SuccessfulFetches,
		FailedFetches:     j.metrics.FailedFetches,
		HazardEvents:      j.metrics.HazardEvents,
		LastRunAt:         j.metrics.LastRunAt,
		LastRunDuration:   j.metrics.LastRunDuration,
		TotalDuration:     j.metrics.TotalDuration,
	}
}

// MetricsSnapshot returns the current metrics as a map for the health endpoint.
func (j *WatchJob) MetricsSnapshot() map[string]interface{} {
	m := j.GetMetrics()
	return map[string]interface{}{
		"total_runs":         m.TotalRuns,
		"successful_fetches": m.SuccessfulFetches,
		"failed_fetches":     m.FailedFetches,
		"hazard_events":      m.HazardEvents,
		"last_run_at":        m.LastRunAt,
		"last_run_duration":  m.LastRunDuration.String(),
		"total_duration":     m.TotalDuration.String(),
	}
}
