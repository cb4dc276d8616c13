// Package worker runs the headless air-quality monitor: it refreshes a set of
// watched locations, classifies their PM2.5 and publishes hazard events.
package worker

import (
	"sort"
	"time"

	"github.com/breatheroute/airdash/internal/airquality"
)

// Target is a watched location.
type Target struct {
	Name string
	airquality.Coordinates

	// Priority orders the run (lower first).
	Priority int
}

// Location converts the target to a dashboard location.
func (t Target) Location() airquality.Location {
	return airquality.Location{Coordinates: t.Coordinates, Name: t.Name}
}

// WatchConfig holds configuration for the watch job.
type WatchConfig struct {
	// Targets are always watched. If empty and IncludeFavorites is false,
	// DefaultTargets is used.
	Targets []Target

	// IncludeFavorites adds the saved favorites to every run.
	IncludeFavorites bool

	// Concurrency is the number of concurrent fetches.
	// Default: 3
	Concurrency int

	// Timeout bounds each fetch.
	// Default: 30 seconds
	Timeout time.Duration
}

// DefaultWatchConfig returns the default watch configuration.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		Targets:          DefaultTargets(),
		IncludeFavorites: true,
		Concurrency:      3,
		Timeout:          30 * time.Second,
	}
}

// DefaultTargets returns large cities with a history of poor air.
func DefaultTargets() []Target {
	return []Target{
		{Name: "New Delhi, India", Coordinates: airquality.Coordinates{Latitude: 28.6139, Longitude: 77.209}, Priority: 1},
		{Name: "Mumbai, India", Coordinates: airquality.Coordinates{Latitude: 19.076, Longitude: 72.8777}, Priority: 1},
		{Name: "Lahore, Pakistan", Coordinates: airquality.Coordinates{Latitude: 31.5204, Longitude: 74.3587}, Priority: 1},
		{Name: "Dhaka, Bangladesh", Coordinates: airquality.Coordinates{Latitude: 23.8103, Longitude: 90.4125}, Priority: 2},
		{Name: "Beijing, China", Coordinates: airquality.Coordinates{Latitude: 39.9042, Longitude: 116.4074}, Priority: 2},
		{Name: "Jakarta, Indonesia", Coordinates: airquality.Coordinates{Latitude: -6.2088, Longitude: 106.8456}, Priority: 3},
		{Name: "Cairo, Egypt", Coordinates: airquality.Coordinates{Latitude: 30.0444, Longitude: 31.2357}, Priority: 3},
	}
}

// merge appends extra to targets, skipping coordinates already present
// (compared at 4 decimals), and orders the result by priority.
func merge(targets, extra []Target) []Target {
	seen := make(map[[2]int64]bool, len(targets)+len(extra))
	out := make([]Target, 0, len(targets)+len(extra))
	for _, t := range append(append([]Target{}, targets...), extra...) {
		key := [2]int64{scaled(t.Latitude), scaled(t.Longitude)}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	sortByPriority(out)
	return out
}

func scaled(v float64) int64 {
	if v < 0 {
		return int64(v*1e4 - 0.5)
	}
	return int64(v*1e4 + 0.5)
}

func sortByPriority(targets []Target) {
	sort.SliceStable(targets, func(i, j int) bool { return targets[i].Priority < targets[j].Priority })
}
