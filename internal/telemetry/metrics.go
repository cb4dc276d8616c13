package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Fetch outcomes recorded on FetchMetrics.
const (
	OutcomeSuccess   = "success"
	OutcomeNetwork   = "network_failure"
	OutcomeMalformed = "malformed_response"
)

// FetchMetrics records air quality fetch counts and latency.
type FetchMetrics struct {
	fetches  metric.Int64Counter
	duration metric.Float64Histogram
	hazards  metric.Int64Counter
}

// NewFetchMetrics creates the fetch instruments on the given meter.
func NewFetchMetrics(meter metric.Meter) (*FetchMetrics, error) {
	fetches, err := meter.Int64Counter(
		"airdash.fetch.total",
		metric.WithDescription("Air quality fetches by outcome"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"airdash.fetch.duration",
		metric.WithDescription("Air quality fetch latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	hazards, err := meter.Int64Counter(
		"airdash.hazard.entered",
		metric.WithDescription("Locations entering the hazardous band"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &FetchMetrics{fetches: fetches, duration: duration, hazards: hazards}, nil
}

// RecordFetch records one completed fetch. Nil receivers are a no-op.
func (m *FetchMetrics) RecordFetch(ctx context.Context, outcome string, silent bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.Bool("silent", silent),
	)
	m.fetches.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

// RecordHazard counts a transition into the hazardous band.
func (m *FetchMetrics) RecordHazard(ctx context.Context) {
	if m == nil {
		return
	}
	m.hazards.Add(ctx, 1)
}
