package airquality

import (
	"encoding/json"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Resolver turns a possibly missing value into something displayable.
type Resolver interface {
	Resolve(raw any, baseline, severity float64) float64
}

// RandomResolver returns measured values as-is (rounded) and a randomized,
// baseline-derived placeholder otherwise.
type RandomResolver struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewResolver creates a resolver seeded from the wall clock.
func NewResolver() *RandomResolver {
	return NewRandomResolver(uint64(time.Now().UnixNano()))
}

// NewRandomResolver creates a resolver with a fixed seed.
func NewRandomResolver(seed uint64) *RandomResolver {
	return &RandomResolver{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Resolve implements Resolver.
func (r *RandomResolver) Resolve(raw any, baseline, severity float64) float64 {
	if v, ok := ParseNumber(raw); ok {
		return Round1(v)
	}

	spread := math.Max(1, baseline*0.1)

	r.mu.Lock()
	jitter := r.rng.Float64()
	r.mu.Unlock()

	return Round1(baseline + severity*0.05 + jitter*spread)
}

// Float64 exposes the underlying random source for synthetic series.
func (r *RandomResolver) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Float64()
}

// DisplayBaselines are plausible typical concentrations used when a
// pollutant is missing from the upstream payload.
var DisplayBaselines = map[Pollutant]float64{
	PollutantPM25:            25,
	PollutantPM10:            40,
	PollutantCarbonMonoxide:  300,
	PollutantOzone:           60,
	PollutantSulphurDioxide:  10,
	PollutantNitrogenDioxide: 20,
	PollutantAmmonia:         5,
	PollutantDust:            15,
	PollutantUVIndex:         3,
}

// Resolved renders display values for every pollutant. PM2.5 is resolved
// first and drives the severity used for the other placeholders.
func Resolved(p Pollutants, r Resolver) map[Pollutant]float64 {
	out := make(map[Pollutant]float64, len(AllPollutants()))

	pm25 := r.Resolve(rawValue(p, PollutantPM25), DisplayBaselines[PollutantPM25], 0)
	out[PollutantPM25] = pm25

	for _, key := range AllPollutants() {
		if key == PollutantPM25 {
			continue
		}
		out[key] = r.Resolve(rawValue(p, key), DisplayBaselines[key], pm25)
	}
	return out
}

func rawValue(p Pollutants, key Pollutant) any {
	if v, ok := p.Value(key); ok {
		return v
	}
	return nil
}

// ParseNumber converts numeric JSON-ish input into a finite float64.
func ParseNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case *float64:
		if n == nil {
			return 0, false
		}
		f = *n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
