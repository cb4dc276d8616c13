package airquality

import (
	"math"
	"time"
)

// MaxSeriesPoints is the length of a full day of hourly points.
const MaxSeriesPoints = 24

// hourlyLayouts are the timestamp formats accepted in hourly arrays.
var hourlyLayouts = []string{"2006-01-02T15:04", time.RFC3339, "2006-01-02T15:04:05"}

// HourlyPoint is one labelled value of a trend chart.
type HourlyPoint struct {
	Time  string  `json:"time"`
	Value float64 `json:"value"`
}

// HourlySeries is a chronological run of at most 24 hourly points.
type HourlySeries struct {
	Points []HourlyPoint `json:"points"`

	// Synthetic is set when the points were generated because the
	// upstream hourly data was missing or malformed.
	Synthetic bool `json:"synthetic"`
}

// Len returns the number of points.
func (s HourlySeries) Len() int {
	return len(s.Points)
}

// Values returns the point values in order.
func (s HourlySeries) Values() []float64 {
	values := make([]float64, len(s.Points))
	for i, p := range s.Points {
		values[i] = p.Value
	}
	return values
}

// BuildSeries builds the PM2.5 trend from an hourly payload object. Real data
// is used only when the whole block is well formed; otherwise a complete
// synthetic day is generated from currentPM25. Partial real data is never
// mixed with generated points.
//
// anchor is the observation time of the current reading ("current.time");
// when present the window ends at the last hourly entry not after it.
func BuildSeries(hourly map[string]any, anchor string, currentPM25 *float64, now time.Time, r Resolver) HourlySeries {
	times, values, ok := parseHourly(hourly)
	if !ok {
		return SyntheticSeries(syntheticBase(currentPM25, r), anchorTime(anchor, now), r)
	}

	start, end := window(times, anchor)
	points := make([]HourlyPoint, 0, end-start)
	for i := start; i < end; i++ {
		points = append(points, HourlyPoint{
			Time:  times[i].Format("15:04"),
			Value: Round1(values[i]),
		})
	}
	return HourlySeries{Points: points}
}

// SyntheticSeries generates a sine-shaped day of plausible values around base,
// ending at the hour of end.
func SyntheticSeries(base float64, end time.Time, r Resolver) HourlySeries {
	end = end.Truncate(time.Hour)
	points := make([]HourlyPoint, 0, MaxSeriesPoints)

	for i := MaxSeriesPoints - 1; i >= 0; i-- {
		t := end.Add(-time.Duration(i) * time.Hour)
		phase := 2 * math.Pi * float64(t.Hour()) / 24
		shape := math.Max(0, base*(1+0.3*math.Sin(phase-math.Pi/2)))
		points = append(points, HourlyPoint{
			Time:  t.Format("15:04"),
			Value: r.Resolve(nil, shape, 0),
		})
	}
	return HourlySeries{Points: points, Synthetic: true}
}

func syntheticBase(currentPM25 *float64, r Resolver) float64 {
	if currentPM25 != nil {
		return r.Resolve(*currentPM25, DisplayBaselines[PollutantPM25], 0)
	}
	return DisplayBaselines[PollutantPM25]
}

func anchorTime(anchor string, now time.Time) time.Time {
	if t, ok := parseHourlyTime(anchor); ok {
		return t
	}
	return now
}

// parseHourly validates the hourly block: equal-length, non-empty time and
// pm2_5 arrays, every entry parseable, times non-decreasing.
func parseHourly(hourly map[string]any) ([]time.Time, []float64, bool) {
	if hourly == nil {
		return nil, nil, false
	}

	rawTimes, ok := hourly["time"].([]any)
	if !ok || len(rawTimes) == 0 {
		return nil, nil, false
	}

	var rawValues []any
	for _, alias := range PollutantAliases[PollutantPM25] {
		if v, ok := hourly[alias].([]any); ok {
			rawValues = v
			break
		}
	}
	if len(rawValues) != len(rawTimes) {
		return nil, nil, false
	}

	times := make([]time.Time, len(rawTimes))
	values := make([]float64, len(rawValues))
	for i := range rawTimes {
		s, ok := rawTimes[i].(string)
		if !ok {
			return nil, nil, false
		}
		t, ok := parseHourlyTime(s)
		if !ok {
			return nil, nil, false
		}
		if i > 0 && t.Before(times[i-1]) {
			return nil, nil, false
		}
		v, ok := ParseNumber(rawValues[i])
		if !ok {
			return nil, nil, false
		}
		times[i] = t
		values[i] = v
	}
	return times, values, true
}

// window picks at most MaxSeriesPoints entries ending at the anchor.
func window(times []time.Time, anchor string) (int, int) {
	end := len(times)
	if at, ok := parseHourlyTime(anchor); ok {
		end = 0
		for i, t := range times {
			if t.After(at) {
				break
			}
			end = i + 1
		}
		if end == 0 {
			end = len(times)
		}
	} else if end > MaxSeriesPoints {
		end = MaxSeriesPoints
	}

	start := end - MaxSeriesPoints
	if start < 0 {
		start = 0
	}
	return start, end
}

func parseHourlyTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range hourlyLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
