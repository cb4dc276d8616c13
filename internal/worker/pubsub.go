package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"

	"github.com/breatheroute/airdash/internal/airquality"
)

// Job types carried by trigger messages.
const (
	JobWatchRefresh = "watch_refresh"
	JobHealthCheck  = "health_check"
)

// TriggerMessage asks the worker to run now.
type TriggerMessage struct {
	JobType string `json:"job_type"`

	// Latitude and Longitude, when both set, restrict a watch refresh to
	// that single location.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Name      string   `json:"name,omitempty"`
}

// Dispatcher executes trigger messages against a watch job. It is separate
// from the Pub/Sub plumbing so it can be driven directly.
type Dispatcher struct {
	job    *WatchJob
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher for job.
func NewDispatcher(job *WatchJob, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{job: job, logger: logger}
}

// Handle runs one message. Unknown job types are ignored.
func (d *Dispatcher) Handle(ctx context.Context, msg TriggerMessage) error {
	switch msg.JobType {
	case JobWatchRefresh:
		return d.handleWatchRefresh(ctx, msg)
	case JobHealthCheck:
		return d.handleHealthCheck(ctx)
	default:
		d.logger.Warn().Str("job_type", msg.JobType).Msg("unknown job type")
		return nil
	}
}

func (d *Dispatcher) handleWatchRefresh(ctx context.Context, msg TriggerMessage) error {
	job := d.job
	if msg.Latitude != nil && msg.Longitude != nil {
		target := Target{
			Name:        msg.Name,
			Coordinates: airquality.Coordinates{Latitude: *msg.Latitude, Longitude: *msg.Longitude},
		}
		if !target.Valid() {
			return fmt.Errorf("invalid coordinates %.4f,%.4f", target.Latitude, target.Longitude)
		}
		job = d.job.narrowed([]Target{target})
	}

	result := job.Run(ctx)

	// A run succeeds when at least half of the locations were fetched.
	if result.Failed > result.Successful {
		return fmt.Errorf("too many watch failures: %d/%d", result.Failed, result.Total)
	}
	return nil
}

func (d *Dispatcher) handleHealthCheck(ctx context.Context) error {
	targets := d.job.Targets(ctx)
	if len(targets) == 0 {
		return nil
	}

	result := d.job.narrowed(targets[:1]).Run(ctx)
	if result.Failed > 0 {
		return fmt.Errorf("health check failed: %s", result.Errors[0].Error)
	}
	d.logger.Debug().Msg("health check passed")
	return nil
}

// narrowed returns a job sharing j's provider, detector and publisher but
// watching only targets.
func (j *WatchJob) narrowed(targets []Target) *WatchJob {
	cfg := j.config
	cfg.Targets = targets
	cfg.IncludeFavorites = false
	cfg.Concurrency = 1
	return &WatchJob{
		config:    cfg,
		logger:    j.logger,
		clock:     j.clock,
		provider:  j.provider,
		detector:  j.detector,
		publisher: j.publisher,
		telemetry: j.telemetry,
		metrics:   j.metrics,
	}
}

// PubSubHandler receives trigger messages from a Pub/Sub subscription.
type PubSubHandler struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	dispatcher       *Dispatcher
	logger           zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub handler.
type PubSubConfig struct {
	ProjectID        string
	SubscriptionName string
	Dispatcher       *Dispatcher
	Logger           zerolog.Logger
}

// NewPubSubHandler creates a new Pub/Sub handler.
func NewPubSubHandler(ctx context.Context, cfg PubSubConfig) (*PubSubHandler, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 10
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &PubSubHandler{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		dispatcher:       cfg.Dispatcher,
		logger:           cfg.Logger,
	}, nil
}

// Start blocks processing messages until ctx is done.
func (h *PubSubHandler) Start(ctx context.Context) error {
	h.logger.Info().
		Str("subscription", h.subscriptionName).
		Msg("starting pubsub handler")

	return h.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if h.handleMessage(ctx, msg.ID, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
}

// Close closes the Pub/Sub client.
func (h *PubSubHandler) Close() error {
	return h.client.Close()
}

// handleMessage reports whether the message should be acked.
func (h *PubSubHandler) handleMessage(ctx context.Context, id string, data []byte) bool {
	startTime := time.Now()
	logger := h.logger.With().Str("message_id", id).Logger()

	var trigger TriggerMessage
	if err := json.Unmarshal(data, &trigger); err != nil {
		// Redelivering an unparseable message cannot succeed.
		logger.Error().Err(err).Msg("failed to parse message")
		return true
	}

	if err := h.dispatcher.Handle(ctx, trigger); err != nil {
		logger.Error().Err(err).Str("job_type", trigger.JobType).Msg("job failed")
		return false
	}

	logger.Info().
		Str("job_type", trigger.JobType).
		Dur("duration", time.Since(startTime)).
		Msg("job completed")
	return true
}
