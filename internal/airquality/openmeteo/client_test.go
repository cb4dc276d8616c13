package openmeteo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airdash/internal/airquality"
	"github.com/breatheroute/airdash/internal/airquality/openmeteo"
	"github.com/breatheroute/airdash/internal/provider/resilience"
)

var delhi = airquality.Coordinates{Latitude: 28.6139, Longitude: 77.209}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*openmeteo.Client, *resilience.Registry) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	registry := resilience.NewRegistry()
	rc := resilience.DefaultClientConfig(openmeteo.ProviderName)
	rc.MaxRetries = 0
	rc.Registry = registry

	client := openmeteo.NewClient(openmeteo.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: resilience.NewClient(rc),
		Registry:   registry,
		Clock:      clockwork.NewFakeClockAt(time.Date(2024, time.January, 1, 1, 30, 0, 0, time.UTC)),
	})
	return client, registry
}

func TestClient_Fetch(t *testing.T) {
	client, registry := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "28.6139", q.Get("latitude"))
		assert.Equal(t, "77.209", q.Get("longitude"))
		assert.Contains(t, q.Get("current"), "pm2_5")
		assert.Contains(t, q.Get("current"), "uv_index")
		assert.Equal(t, "pm2_5", q.Get("hourly"))
		assert.Equal(t, "auto", q.Get("timezone"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"current": {"time": "2024-01-01T01:00", "pm2_5": 43.2},
			"hourly": {"time": ["2024-01-01T00:00", "2024-01-01T01:00"], "pm2_5": [40, 45]}
		}`))
	})

	payload, err := client.Fetch(context.Background(), delhi)
	require.NoError(t, err)

	assert.Equal(t, openmeteo.ProviderName, payload.Provider)
	assert.Equal(t, 43.2, payload.Current["pm2_5"])
	assert.Len(t, payload.Hourly["pm2_5"], 2)
	assert.Equal(t, 1, payload.ReceivedAt.Hour())

	health := registry.GetHealth(openmeteo.ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastSuccessAt)
}

func TestClient_FetchErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{}`, airquality.ErrProviderUnavailable},
		{"bad request", http.StatusBadRequest, `{"error":true,"reason":"Latitude must be in range"}`, airquality.ErrProviderUnavailable},
		{"not json", http.StatusOK, `<html>`, airquality.ErrMalformedResponse},
		{"no data blocks", http.StatusOK, `{"latitude": 28.6}`, airquality.ErrMalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, registry := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			payload, err := client.Fetch(context.Background(), delhi)
			assert.Nil(t, payload)
			require.ErrorIs(t, err, tt.wantErr)

			health := registry.GetHealth(openmeteo.ProviderName)
			require.NotNil(t, health)
			assert.NotNil(t, health.LastFailureAt)
		})
	}
}

func TestClient_CancelledFetchLeavesHealthUntouched(t *testing.T) {
	client, registry := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"current": {"pm2_5": 12}}`))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	payload, err := client.Fetch(ctx, delhi)
	assert.Nil(t, payload)
	require.ErrorIs(t, err, resilience.ErrRequestCancelled)

	health := registry.GetHealth(openmeteo.ProviderName)
	require.NotNil(t, health)
	assert.Nil(t, health.LastFailureAt)
	assert.True(t, health.IsHealthy())
}

func TestClient_OnlyHourlyBlockIsAccepted(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"hourly": {"time": [], "pm2_5": []}}`))
	})

	payload, err := client.Fetch(context.Background(), delhi)
	require.NoError(t, err)
	assert.Nil(t, payload.Current)
	assert.NotNil(t, payload.Hourly)
}

func TestClient_Name(t *testing.T) {
	client := openmeteo.NewClient(openmeteo.ClientConfig{})
	assert.Equal(t, openmeteo.ProviderName, client.Name())
}
