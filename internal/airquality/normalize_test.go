package airquality_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airdash/internal/airquality"
)

func TestNormalize_CanonicalFields(t *testing.T) {
	raw := map[string]any{
		"pm2_5":            43.2,
		"pm10":             60.0,
		"carbon_monoxide":  210.0,
		"ozone":            55.5,
		"sulphur_dioxide":  4.0,
		"nitrogen_dioxide": 18.0,
		"ammonia":          2.1,
		"dust":             9.0,
		"uv_index":         3.5,
	}

	p := airquality.Normalize(raw)

	require.Len(t, p, len(airquality.AllPollutants()))
	v, ok := p.Value(airquality.PollutantPM25)
	require.True(t, ok)
	assert.Equal(t, 43.2, v)
	v, ok = p.Value(airquality.PollutantUVIndex)
	require.True(t, ok)
	assert.Equal(t, 3.5, v)
}

func TestNormalize_Aliases(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]any
		key      airquality.Pollutant
		expected float64
	}{
		{"pm25", map[string]any{"pm25": 10.0}, airquality.PollutantPM25, 10},
		{"pm_2_5", map[string]any{"pm_2_5": 11.0}, airquality.PollutantPM25, 11},
		{"co", map[string]any{"co": 250.0}, airquality.PollutantCarbonMonoxide, 250},
		{"so2", map[string]any{"so2": 3.0}, airquality.PollutantSulphurDioxide, 3},
		{"no2", map[string]any{"no2": 21.0}, airquality.PollutantNitrogenDioxide, 21},
		{"o3", map[string]any{"o3": 70.0}, airquality.PollutantOzone, 70},
		{"numeric string", map[string]any{"pm2_5": "12.5"}, airquality.PollutantPM25, 12.5},
		{"json number", map[string]any{"pm2_5": json.Number("7.25")}, airquality.PollutantPM25, 7.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := airquality.Normalize(tt.raw)
			v, ok := p.Value(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.expected, v)
		})
	}
}

func TestNormalize_FirstDefinedAliasWins(t *testing.T) {
	raw := map[string]any{
		"pm2_5":  nil,
		"pm25":   20.0,
		"pm_2_5": 99.0,
	}

	v, ok := airquality.Normalize(raw).Value(airquality.PollutantPM25)
	require.True(t, ok)
	assert.Equal(t, 20.0, v)
}

func TestNormalize_MissingAndMalformed(t *testing.T) {
	t.Run("nil input", func(t *testing.T) {
		p := airquality.Normalize(nil)
		assert.Len(t, p, len(airquality.AllPollutants()))
		for _, key := range airquality.AllPollutants() {
			assert.Contains(t, p, key)
			assert.Nil(t, p[key])
		}
	})

	t.Run("malformed value", func(t *testing.T) {
		p := airquality.Normalize(map[string]any{"pm2_5": "n/a", "ozone": []any{1}})
		_, ok := p.Value(airquality.PollutantPM25)
		assert.False(t, ok)
		_, ok = p.Value(airquality.PollutantOzone)
		assert.False(t, ok)
	})

	t.Run("absent keys stay present", func(t *testing.T) {
		p := airquality.Normalize(map[string]any{"pm10": 5.0})
		assert.Contains(t, p, airquality.PollutantDust)
		assert.Nil(t, p[airquality.PollutantDust])
	})
}
