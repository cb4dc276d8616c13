package dashboard_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/breatheroute/airdash/internal/airquality"
	"github.com/breatheroute/airdash/internal/airquality/openmeteo"
	"github.com/breatheroute/airdash/internal/alert"
	"github.com/breatheroute/airdash/internal/dashboard"
	"github.com/breatheroute/airdash/internal/notice"
	"github.com/breatheroute/airdash/internal/provider/resilience"
)

var start = time.Date(2024, time.January, 1, 1, 30, 0, 0, time.UTC)

type stubProvider struct {
	mu       sync.Mutex
	calls    int
	payloads []*airquality.Payload
	errs     []error
	block    chan struct{}
}

func (p *stubProvider) Fetch(ctx context.Context, _ airquality.Coordinates) (*airquality.Payload, error) {
	p.mu.Lock()
	i := p.calls
	p.calls++
	block := p.block
	p.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if i < len(p.errs) && p.errs[i] != nil {
		return nil, p.errs[i]
	}
	if len(p.payloads) == 0 {
		return &airquality.Payload{}, nil
	}
	if i >= len(p.payloads) {
		i = len(p.payloads) - 1
	}
	return p.payloads[i], nil
}

func (p *stubProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []alert.HazardEvent
}

func (r *recordingPublisher) Publish(_ context.Context, e alert.HazardEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingPublisher) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func pm25Payload(v float64) *airquality.Payload {
	return &airquality.Payload{Current: map[string]any{"pm2_5": v}}
}

func newOrchestrator(t *testing.T, provider dashboard.Provider) (*dashboard.Orchestrator, *notice.Board, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(start)
	board := notice.NewBoard(notice.BoardConfig{Clock: clock})
	o := dashboard.NewOrchestrator(dashboard.Config{
		Provider: provider,
		Resolver: airquality.NewRandomResolver(3),
		Notices:  board,
		Clock:    clock,
	})
	t.Cleanup(o.Close)
	return o, board, clock
}

func TestOrchestrator_EndToEndFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"current": {"pm2_5": 43.2},
			"hourly": {"time": ["2024-01-01T00:00", "2024-01-01T01:00"], "pm2_5": [40, 45]}
		}`))
	}))
	defer server.Close()

	rc := resilience.DefaultClientConfig(openmeteo.ProviderName)
	rc.MaxRetries = 0
	client := openmeteo.NewClient(openmeteo.ClientConfig{
		BaseURL:    server.URL,
		HTTPClient: resilience.NewClient(rc),
	})
	o, board, _ := newOrchestrator(t, client)

	o.TriggerFetch(context.Background(), dashboard.DefaultLocation, false)

	snap := o.Snapshot()
	require.NotNil(t, snap.Reading)
	pm25, ok := snap.Reading.PM25()
	require.True(t, ok)
	assert.Equal(t, 43.2, pm25)
	assert.Equal(t, []float64{40, 45}, snap.Series.Values())
	assert.False(t, snap.Series.Synthetic)
	assert.Equal(t, dashboard.StateIdle, snap.State)
	assert.False(t, snap.Spinner)
	assert.Equal(t, dashboard.OutcomeSuccess, snap.LastOutcome)
	require.NotNil(t, snap.LastUpdated)
	assert.Equal(t, start, *snap.LastUpdated)
	require.NotNil(t, snap.Status)
	assert.Equal(t, "Unhealthy (Sensitive)", snap.Status.Label)
	assert.Empty(t, board.Active())
}

func TestOrchestrator_FailureKeepsPreviousData(t *testing.T) {
	provider := &stubProvider{
		payloads: []*airquality.Payload{pm25Payload(20), pm25Payload(20)},
		errs:     []error{nil, fmt.Errorf("%w: dial tcp", airquality.ErrProviderUnavailable)},
	}
	o, board, clock := newOrchestrator(t, provider)

	o.TriggerFetch(context.Background(), dashboard.DefaultLocation, false)
	first := o.Snapshot()

	clock.Advance(time.Minute)
	o.TriggerFetch(context.Background(), dashboard.DefaultLocation, true)
	second := o.Snapshot()

	assert.Same(t, first.Reading, second.Reading)
	assert.Equal(t, *first.LastUpdated, *second.LastUpdated)
	assert.Equal(t, dashboard.OutcomeNetworkFailure, second.LastOutcome)
	assert.Equal(t, dashboard.StateIdle, second.State)

	active := board.Active()
	require.Len(t, active, 1)
	assert.Equal(t, notice.KindNetworkFailure, active[0].Kind)
}

func TestOrchestrator_MalformedResponseNotice(t *testing.T) {
	provider := &stubProvider{errs: []error{fmt.Errorf("%w: not json", airquality.ErrMalformedResponse)}}
	o, board, _ := newOrchestrator(t, provider)

	o.TriggerFetch(context.Background(), dashboard.DefaultLocation, false)

	assert.Equal(t, dashboard.OutcomeMalformedResponse, o.Snapshot().LastOutcome)
	assert.Nil(t, o.Snapshot().Reading)
	active := board.Active()
	require.Len(t, active, 1)
	assert.Equal(t, notice.KindMalformedResponse, active[0].Kind)
}

func TestOrchestrator_MissingHourlyFallsBackToSynthetic(t *testing.T) {
	o, _, _ := newOrchestrator(t, &stubProvider{payloads: []*airquality.Payload{pm25Payload(30)}})

	o.TriggerFetch(context.Background(), dashboard.DefaultLocation, false)

	snap := o.Snapshot()
	assert.True(t, snap.Series.Synthetic)
	assert.Equal(t, airquality.MaxSeriesPoints, snap.Series.Len())
}

func TestOrchestrator_SpinnerOnlyForVisibleFetch(t *testing.T) {
	provider := &stubProvider{block: make(chan struct{})}
	o, _, _ := newOrchestrator(t, provider)

	tests := []struct {
		name    string
		silent  bool
		spinner bool
	}{
		{"visible", false, true},
		{"silent", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan struct{})
			go func() {
				o.TriggerFetch(context.Background(), dashboard.DefaultLocation, tt.silent)
				close(done)
			}()

			require.Eventually(t, func() bool {
				return o.Snapshot().State == dashboard.StateLoading
			}, time.Second, time.Millisecond)
			assert.Equal(t, tt.spinner, o.Snapshot().Spinner)

			provider.block <- struct{}{}
			<-done
			assert.Equal(t, dashboard.StateIdle, o.Snapshot().State)
			assert.False(t, o.Snapshot().Spinner)
		})
	}
}

func TestOrchestrator_HazardAlertAndDismiss(t *testing.T) {
	provider := &stubProvider{payloads: []*airquality.Payload{
		pm25Payload(180), pm25Payload(190), pm25Payload(40), pm25Payload(200),
	}}
	publisher := &recordingPublisher{}
	clock := clockwork.NewFakeClockAt(start)
	o := dashboard.NewOrchestrator(dashboard.Config{
		Provider: provider,
		Resolver: airquality.NewRandomResolver(1),
		Alerts:   publisher,
		Clock:    clock,
	})
	defer o.Close()
	ctx := context.Background()

	o.TriggerFetch(ctx, dashboard.DefaultLocation, false)
	assert.True(t, o.Snapshot().HazardAlert)
	assert.Equal(t, 1, publisher.Len())

	o.DismissHazard()
	assert.False(t, o.Snapshot().HazardAlert)

	o.TriggerFetch(ctx, dashboard.DefaultLocation, true)
	assert.True(t, o.Snapshot().HazardAlert, "next fetch clears the dismissal")
	assert.Equal(t, 1, publisher.Len(), "still hazardous, no new event")

	o.TriggerFetch(ctx, dashboard.DefaultLocation, true)
	assert.False(t, o.Snapshot().HazardAlert)

	o.TriggerFetch(ctx, dashboard.DefaultLocation, true)
	assert.Equal(t, 2, publisher.Len())
}

func TestOrchestrator_AutoRefreshToggle(t *testing.T) {
	provider := &stubProvider{payloads: []*airquality.Payload{pm25Payload(10)}}
	o, _, clock := newOrchestrator(t, provider)

	o.SetAutoRefresh(true, 5*time.Second)
	assert.Zero(t, o.SetAutoRefresh(false, 5*time.Second))
	period := o.SetAutoRefresh(true, 5*time.Second)
	assert.Equal(t, 10*time.Second, period)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1), "exactly one live timer")

	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool { return provider.Calls() == 1 }, time.Second, time.Millisecond)
	assert.Eventually(t, func() bool { return o.Snapshot().Reading != nil }, time.Second, time.Millisecond)

	snap := o.Snapshot()
	assert.True(t, snap.AutoRefresh)
	assert.Equal(t, 10*time.Second, snap.RefreshInterval)
	assert.False(t, snap.Spinner)
}

func TestOrchestrator_CancelledFetchIsNotAFailure(t *testing.T) {
	provider := &stubProvider{block: make(chan struct{})}
	o, board, clock := newOrchestrator(t, provider)
	o.SetAutoRefresh(true, 10*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(10 * time.Second)
	require.Eventually(t, func() bool {
		return o.Snapshot().State == dashboard.StateLoading
	}, time.Second, time.Millisecond)

	// Restarting the timer cancels the silent fetch still waiting upstream.
	o.SetAutoRefresh(true, 30*time.Second)

	snap := o.Snapshot()
	assert.Equal(t, dashboard.StateIdle, snap.State)
	assert.Equal(t, dashboard.OutcomeNone, snap.LastOutcome)
	assert.Empty(t, snap.LastError)
	assert.Empty(t, board.Active())
}

func TestOrchestrator_CallerCancellation(t *testing.T) {
	provider := &stubProvider{block: make(chan struct{})}
	o, board, _ := newOrchestrator(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		o.TriggerFetch(ctx, dashboard.DefaultLocation, false)
		close(done)
	}()
	require.Eventually(t, func() bool {
		return o.Snapshot().Spinner
	}, time.Second, time.Millisecond)

	cancel()
	<-done

	snap := o.Snapshot()
	assert.False(t, snap.Spinner)
	assert.Equal(t, dashboard.OutcomeNone, snap.LastOutcome)
	assert.Empty(t, board.Active())
}

func TestOrchestrator_SetLocationFetchesAndRestartsTimer(t *testing.T) {
	provider := &stubProvider{payloads: []*airquality.Payload{pm25Payload(10)}}
	o, _, clock := newOrchestrator(t, provider)
	o.SetAutoRefresh(true, 30*time.Second)

	clock.Advance(20 * time.Second)
	london := airquality.Location{
		Coordinates: airquality.Coordinates{Latitude: 51.5072, Longitude: -0.1276},
		Name:        "London, United Kingdom",
	}
	o.SetLocation(context.Background(), london)

	assert.Equal(t, 1, provider.Calls())
	assert.Equal(t, london, o.Location())
	assert.Equal(t, "London, United Kingdom", o.Snapshot().Reading.LocationName)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	// The timer restarted at the switch, so the old deadline passes quietly.
	clock.Advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, provider.Calls())

	clock.Advance(20 * time.Second)
	assert.Eventually(t, func() bool { return provider.Calls() == 2 }, time.Second, time.Millisecond)
}

func TestOrchestrator_CloseStopsTimer(t *testing.T) {
	var calls atomic.Int32
	provider := &countingProvider{calls: &calls}
	clock := clockwork.NewFakeClock()
	o := dashboard.NewOrchestrator(dashboard.Config{Provider: provider, Clock: clock})

	o.SetAutoRefresh(true, 10*time.Second)
	o.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 0))
	clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, calls.Load())
}

type countingProvider struct {
	calls *atomic.Int32
}

func (p *countingProvider) Fetch(context.Context, airquality.Coordinates) (*airquality.Payload, error) {
	p.calls.Add(1)
	return &airquality.Payload{}, nil
}
