package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airdash/internal/provider/resilience"
)

func registered(t *testing.T, registry *resilience.Registry, name string) *resilience.Client {
	t.Helper()
	cfg := resilience.DefaultClientConfig(name)
	cfg.Registry = registry
	return resilience.NewClient(cfg)
}

func TestRegistry_RegisterAndGetHealth(t *testing.T) {
	registry := resilience.NewRegistry()
	registered(t, registry, "open-meteo-air-quality")

	assert.Equal(t, 1, registry.ProviderCount())

	health := registry.GetHealth("open-meteo-air-quality")
	require.NotNil(t, health)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.True(t, health.IsHealthy())
	assert.False(t, health.IsDegraded())
	assert.False(t, health.IsUnhealthy())
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)
}

func TestRegistry_Unregister(t *testing.T) {
	registry := resilience.NewRegistry()
	registered(t, registry, "geocoding")

	registry.Unregister("geocoding")

	assert.Equal(t, 0, registry.ProviderCount())
	assert.Nil(t, registry.GetHealth("geocoding"))
}

func TestRegistry_RecordOutcomes(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC))
	registry := resilience.NewRegistryWithClock(clock)
	registered(t, registry, "air")

	registry.RecordSuccess("air")
	clock.Advance(time.Minute)
	registry.RecordFailure("air", errors.New("connection refused"))

	health := registry.GetHealth("air")
	require.NotNil(t, health)
	require.NotNil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.Equal(t, time.Minute, health.LastFailureAt.Sub(*health.LastSuccessAt))
	assert.Equal(t, "connection refused", health.LastError)
}

func TestRegistry_RecordUnknownProviderIsIgnored(t *testing.T) {
	registry := resilience.NewRegistry()

	registry.RecordSuccess("missing")
	registry.RecordFailure("missing", errors.New("boom"))

	assert.Equal(t, 0, registry.ProviderCount())
}

func TestRegistry_GetAllHealthSorted(t *testing.T) {
	registry := resilience.NewRegistry()
	registered(t, registry, "open-meteo-geocoding")
	registered(t, registry, "open-meteo-air-quality")

	all := registry.GetAllHealth()
	require.Len(t, all, 2)
	assert.Equal(t, "open-meteo-air-quality", all[0].Name)
	assert.Equal(t, "open-meteo-geocoding", all[1].Name)
}
