// Package geocoding resolves free-text place queries to coordinates.
package geocoding

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/breatheroute/airdash/internal/airquality"
)

const (
	// MaxResults caps the candidates returned for one query.
	MaxResults = 5

	// MinQueryRunes is the shortest query that triggers a lookup.
	MinQueryRunes = 3

	// DebounceDelay is the quiet period before a typed query is looked up.
	DebounceDelay = 300 * time.Millisecond
)

// ErrProviderUnavailable is returned when the geocoding service fails.
var ErrProviderUnavailable = errors.New("geocoding provider unavailable")

// Candidate is one place matching a query.
type Candidate struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Admin1    string  `json:"admin1,omitempty"`
	Country   string  `json:"country,omitempty"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DisplayName joins the non-empty name parts with commas.
func (c Candidate) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{c.Name, c.Admin1, c.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Location converts the candidate to a dashboard location.
func (c Candidate) Location() airquality.Location {
	return airquality.Location{
		Coordinates: airquality.Coordinates{Latitude: c.Latitude, Longitude: c.Longitude},
		Name:        c.DisplayName(),
	}
}

// Provider looks up places by name.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}
