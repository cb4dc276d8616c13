// Package alert fans out hazard events when a location's PM2.5 enters the
// hazardous band.
package alert

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/breatheroute/airdash/internal/airquality"
)

// HazardEvent is published when a location newly becomes hazardous.
type HazardEvent struct {
	LocationName string    `json:"location_name"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	PM25         float64   `json:"pm2_5"`
	Band         string    `json:"band"`
	Label        string    `json:"label"`
	Advisory     string    `json:"advisory"`
	ObservedAt   time.Time `json:"observed_at"`
}

// NewHazardEvent builds an event from a reading and its status.
func NewHazardEvent(r airquality.Reading, pm25 float64, status airquality.Status) HazardEvent {
	return HazardEvent{
		LocationName: r.LocationName,
		Latitude:     r.Coordinates.Latitude,
		Longitude:    r.Coordinates.Longitude,
		PM25:         pm25,
		Band:         string(status.Band),
		Label:        status.Label,
		Advisory:     status.Advisory,
		ObservedAt:   r.Timestamp,
	}
}

// Publisher delivers hazard events.
type Publisher interface {
	Publish(ctx context.Context, event HazardEvent) error
}

// LogPublisher writes events to the log. Used when no topic is configured.
type LogPublisher struct {
	Logger zerolog.Logger
}

// Publish logs the event.
func (p LogPublisher) Publish(_ context.Context, event HazardEvent) error {
	p.Logger.Warn().
		Str("location", event.LocationName).
		Float64("pm2_5", event.PM25).
		Str("band", event.Band).
		Msg("hazardous air quality")
	return nil
}

// Detector reports transitions into the hazardous band per location, so a
// location that stays hazardous produces one event.
type Detector struct {
	mu        sync.Mutex
	hazardous map[string]bool
}

// NewDetector creates an empty detector.
func NewDetector() *Detector {
	return &Detector{hazardous: make(map[string]bool)}
}

// Observe records the status for coords and reports whether it just entered
// the hazardous band.
func (d *Detector) Observe(coords airquality.Coordinates, status airquality.Status) bool {
	key := locationKey(coords)

	d.mu.Lock()
	defer d.mu.Unlock()

	was := d.hazardous[key]
	now := status.IsHazard()
	d.hazardous[key] = now
	return now && !was
}

func locationKey(c airquality.Coordinates) string {
	return fmt.Sprintf("%.4f,%.4f", round4(c.Latitude), round4(c.Longitude))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
