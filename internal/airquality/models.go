// Package airquality provides the reading schema, normalization of upstream
// payloads and the metrics derived from them.
package airquality

import (
	"errors"
	"time"
)

// Provider errors.
var (
	ErrProviderUnavailable = errors.New("air quality provider unavailable")
	ErrMalformedResponse   = errors.New("malformed air quality response")
)

// Pollutant is a canonical pollutant key.
type Pollutant string

const (
	PollutantPM25            Pollutant = "pm2_5"
	PollutantPM10            Pollutant = "pm10"
	PollutantCarbonMonoxide  Pollutant = "carbon_monoxide"
	PollutantOzone           Pollutant = "ozone"
	PollutantSulphurDioxide  Pollutant = "sulphur_dioxide"
	PollutantNitrogenDioxide Pollutant = "nitrogen_dioxide"
	PollutantAmmonia         Pollutant = "ammonia"
	PollutantDust            Pollutant = "dust"
	PollutantUVIndex         Pollutant = "uv_index"
)

// AllPollutants returns every canonical key in display order.
func AllPollutants() []Pollutant {
	return []Pollutant{
		PollutantPM25,
		PollutantPM10,
		PollutantCarbonMonoxide,
		PollutantOzone,
		PollutantSulphurDioxide,
		PollutantNitrogenDioxide,
		PollutantAmmonia,
		PollutantDust,
		PollutantUVIndex,
	}
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the coordinates are within WGS84 bounds.
func (c Coordinates) Valid() bool {
	return c.Latitude >= -90 && c.Latitude <= 90 && c.Longitude >= -180 && c.Longitude <= 180
}

// Location is a labelled position.
type Location struct {
	Coordinates
	Name string `json:"name"`
}

// Pollutants maps every canonical key to an optional value.
// A nil value means the upstream source did not provide it.
type Pollutants map[Pollutant]*float64

// NewPollutants returns a mapping with every key present and unset.
func NewPollutants() Pollutants {
	p := make(Pollutants, len(AllPollutants()))
	for _, key := range AllPollutants() {
		p[key] = nil
	}
	return p
}

// Value returns the measured value for key, if any.
func (p Pollutants) Value(key Pollutant) (float64, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}

// Reading is a point-in-time measurement set for one location.
type Reading struct {
	Coordinates  Coordinates `json:"coordinates"`
	LocationName string      `json:"locationName"`
	Pollutants   Pollutants  `json:"pollutants"`
	Timestamp    time.Time   `json:"timestamp"`
}

// PM25 returns the measured PM2.5 concentration, if present.
func (r *Reading) PM25() (float64, bool) {
	if r == nil {
		return 0, false
	}
	return r.Pollutants.Value(PollutantPM25)
}

// Payload is the raw upstream response, kept as decoded JSON so the
// normalizer can work over whichever field names the source used.
type Payload struct {
	// Current holds the "current" object of the response.
	Current map[string]any

	// Hourly holds the "hourly" object of the response.
	Hourly map[string]any

	// Provider identifies the data source.
	Provider string

	// ReceivedAt is when the payload arrived.
	ReceivedAt time.Time
}
