package export

import (
	"github.com/breatheroute/airdash/internal/airquality"
)

// Dataset names used in filenames and API paths.
const (
	DatasetPollutants = "pollutants"
	DatasetHourly     = "hourly"
)

var units = map[airquality.Pollutant]string{
	airquality.PollutantPM25:            "µg/m³",
	airquality.PollutantPM10:            "µg/m³",
	airquality.PollutantCarbonMonoxide:  "µg/m³",
	airquality.PollutantOzone:           "µg/m³",
	airquality.PollutantSulphurDioxide:  "µg/m³",
	airquality.PollutantNitrogenDioxide: "µg/m³",
	airquality.PollutantAmmonia:         "µg/m³",
	airquality.PollutantDust:            "µg/m³",
	airquality.PollutantUVIndex:         "index",
}

// Unit returns the display unit of a pollutant.
func Unit(p airquality.Pollutant) string {
	return units[p]
}

// PollutantRecords renders one row per pollutant with display values.
// Missing measurements are filled by r and marked as estimated.
func PollutantRecords(reading airquality.Reading, r airquality.Resolver) []Record {
	display := airquality.Resolved(reading.Pollutants, r)
	rows := make([]Record, 0, len(display))

	for _, key := range airquality.AllPollutants() {
		_, measured := reading.Pollutants.Value(key)
		rows = append(rows, Record{
			{Name: "location", Value: reading.LocationName},
			{Name: "pollutant", Value: string(key)},
			{Name: "value", Value: display[key]},
			{Name: "unit", Value: units[key]},
			{Name: "estimated", Value: !measured},
			{Name: "timestamp", Value: reading.Timestamp},
		})
	}
	return rows
}

// SeriesRecords renders the hourly PM2.5 trend.
func SeriesRecords(series airquality.HourlySeries) []Record {
	rows := make([]Record, 0, series.Len())
	for _, p := range series.Points {
		rows = append(rows, Record{
			{Name: "time", Value: p.Time},
			{Name: "pm2_5", Value: p.Value},
			{Name: "synthetic", Value: series.Synthetic},
		})
	}
	return rows
}
