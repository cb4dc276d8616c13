package models

import (
	"github.com/breatheroute/airdash/internal/airquality"
)

// Dashboard is the full dashboard view.
type Dashboard struct {
	State           string                  `json:"state"`
	Spinner         bool                    `json:"spinner"`
	Location        Location                `json:"location"`
	Pollutants      []PollutantCard         `json:"pollutants,omitempty"`
	Series          airquality.HourlySeries `json:"series"`
	Status          *airquality.Status      `json:"status,omitempty"`
	HazardAlert     bool                    `json:"hazardAlert"`
	LastUpdated     *Timestamp              `json:"lastUpdated,omitempty"`
	LastOutcome     string                  `json:"lastOutcome"`
	LastError       string                  `json:"lastError,omitempty"`
	AutoRefresh     bool                    `json:"autoRefresh"`
	RefreshInterval int                     `json:"refreshIntervalSeconds"`
}

// PollutantCard is one pollutant tile. Estimated is set when the upstream
// had no measurement and Value is a placeholder.
type PollutantCard struct {
	Key       string  `json:"key"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit"`
	Estimated bool    `json:"estimated"`
}

// FetchRequest triggers a fetch. A nil location refetches the current one.
type FetchRequest struct {
	Location *Location `json:"location,omitempty"`
	Silent   bool      `json:"silent,omitempty"`
}

// ShareLink is a link that reopens the dashboard at a location.
type ShareLink struct {
	URL      string   `json:"url"`
	Location Location `json:"location"`
}

// GeocodeResults is the location search response.
type GeocodeResults struct {
	Query      string             `json:"query"`
	Results    []GeocodeCandidate `json:"results"`
	Superseded bool               `json:"superseded,omitempty"`
}

// GeocodeCandidate is one search hit.
type GeocodeCandidate struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	DisplayName string  `json:"displayName"`
	Admin1      string  `json:"admin1,omitempty"`
	Country     string  `json:"country,omitempty"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
}
