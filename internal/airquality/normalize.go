package airquality

// PollutantAliases lists, per canonical key, the upstream field names to try
// in order. The first alias carrying a non-null value wins.
var PollutantAliases = map[Pollutant][]string{
	PollutantPM25:            {"pm2_5", "pm25", "pm_2_5", "pm2.5"},
	PollutantPM10:            {"pm10", "pm_10"},
	PollutantCarbonMonoxide:  {"carbon_monoxide", "co"},
	PollutantOzone:           {"ozone", "o3"},
	PollutantSulphurDioxide:  {"sulphur_dioxide", "sulfur_dioxide", "so2"},
	PollutantNitrogenDioxide: {"nitrogen_dioxide", "no2"},
	PollutantAmmonia:         {"ammonia", "nh3"},
	PollutantDust:            {"dust"},
	PollutantUVIndex:         {"uv_index", "uv", "uvi"},
}

// Normalize maps an upstream object onto the canonical pollutant schema.
// Missing or malformed fields become nil; it never fails.
func Normalize(raw map[string]any) Pollutants {
	out := NewPollutants()
	if raw == nil {
		return out
	}

	for key, aliases := range PollutantAliases {
		for _, alias := range aliases {
			v, ok := raw[alias]
			if !ok || v == nil {
				continue
			}
			if f, ok := ParseNumber(v); ok {
				out[key] = &f
			}
			break
		}
	}
	return out
}
