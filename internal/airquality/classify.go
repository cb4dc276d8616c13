package airquality

// Band is a PM2.5 severity tier.
type Band string

const (
	BandGood               Band = "GOOD"
	BandModerate           Band = "MODERATE"
	BandUnhealthySensitive Band = "UNHEALTHY_SENSITIVE"
	BandUnhealthy          Band = "UNHEALTHY"
	BandHazardous          Band = "HAZARDOUS"
)

// Status is the display metadata for a PM2.5 concentration.
type Status struct {
	Band       Band   `json:"band"`
	Label      string `json:"label"`
	ColorToken string `json:"colorToken"`
	Advisory   string `json:"advisory"`
}

// IsHazard reports whether the status is the top severity tier.
func (s Status) IsHazard() bool {
	return s.Band == BandHazardous
}

var (
	statusGood = Status{
		Band:       BandGood,
		Label:      "Good",
		ColorToken: "green",
		Advisory:   "Air quality is satisfactory. Enjoy outdoor activities.",
	}
	statusModerate = Status{
		Band:       BandModerate,
		Label:      "Moderate",
		ColorToken: "yellow",
		Advisory:   "Acceptable air quality. Unusually sensitive people should limit prolonged exertion outdoors.",
	}
	statusUnhealthySensitive = Status{
		Band:       BandUnhealthySensitive,
		Label:      "Unhealthy (Sensitive)",
		ColorToken: "orange",
		Advisory:   "Sensitive groups should reduce outdoor activity and run a purifier indoors.",
	}
	statusUnhealthy = Status{
		Band:       BandUnhealthy,
		Label:      "Unhealthy",
		ColorToken: "red",
		Advisory:   "Everyone may feel effects. Keep windows closed and run a purifier on high.",
	}
	statusHazardous = Status{
		Band:       BandHazardous,
		Label:      "Hazardous",
		ColorToken: "purple",
		Advisory:   "Health alert: avoid going outside and keep purification running continuously.",
	}
)

// Classify maps a PM2.5 concentration (µg/m³) to its severity status.
// Upper bounds are inclusive. NaN falls into the hazardous band.
func Classify(pm25 float64) Status {
	switch {
	case pm25 <= 12:
		return statusGood
	case pm25 <= 35:
		return statusModerate
	case pm25 <= 55:
		return statusUnhealthySensitive
	case pm25 <= 150:
		return statusUnhealthy
	default:
		return statusHazardous
	}
}
