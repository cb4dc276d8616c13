// Package openmeteo provides a client for the Open-Meteo air quality API.
package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/breatheroute/airdash/internal/airquality"
	"github.com/breatheroute/airdash/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the Open-Meteo air quality endpoint.
	DefaultBaseURL = "https://air-quality-api.open-meteo.com/v1/air-quality"

	// ProviderName identifies this provider.
	ProviderName = "open-meteo-air-quality"
)

// CurrentFields is the comma list requested for the current block.
var CurrentFields = []string{
	"pm10",
	"pm2_5",
	"carbon_monoxide",
	"nitrogen_dioxide",
	"sulphur_dioxide",
	"ozone",
	"ammonia",
	"dust",
	"uv_index",
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the air quality client.
type ClientConfig struct {
	// BaseURL is the endpoint URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient executes requests. If nil, a resilient client is created.
	HTTPClient HTTPDoer

	// Registry receives provider health updates (optional).
	Registry *resilience.Registry

	// Clock stamps received payloads (defaults to the real clock).
	Clock clockwork.Clock
}

// Client fetches current and hourly air quality for a coordinate.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	registry   *resilience.Registry
	clock      clockwork.Clock
}

// NewClient creates a new air quality client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Registry = cfg.Registry
		httpClient = resilience.NewClient(rc)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
		registry:   cfg.Registry,
		clock:      clock,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Fetch retrieves the current pollutant block and the last day of hourly
// PM2.5 for the given coordinates.
func (c *Client) Fetch(ctx context.Context, coords airquality.Coordinates) (*airquality.Payload, error) {
	payload, err := c.fetch(ctx, coords)
	if c.registry != nil && ctx.Err() == nil {
		if err != nil {
			c.registry.RecordFailure(ProviderName, err)
		} else {
			c.registry.RecordSuccess(ProviderName)
		}
	}
	return payload, err
}

func (c *Client) fetch(ctx context.Context, coords airquality.Coordinates) (*airquality.Payload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(coords), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", airquality.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", airquality.ErrProviderUnavailable, resp.StatusCode)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", airquality.ErrMalformedResponse, err)
	}

	current, _ := body["current"].(map[string]any)
	hourly, _ := body["hourly"].(map[string]any)
	if current == nil && hourly == nil {
		return nil, fmt.Errorf("%w: %w", airquality.ErrMalformedResponse, errMissingBlocks)
	}

	return &airquality.Payload{
		Current:    current,
		Hourly:     hourly,
		Provider:   ProviderName,
		ReceivedAt: c.clock.Now(),
	}, nil
}

var errMissingBlocks = errors.New("response has neither current nor hourly data")

func (c *Client) requestURL(coords airquality.Coordinates) string {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(coords.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(coords.Longitude, 'f', -1, 64))
	params.Set("current", strings.Join(CurrentFields, ","))
	params.Set("hourly", "pm2_5")
	params.Set("timezone", "auto")
	params.Set("past_days", "1")
	return c.baseURL + "?" + params.Encode()
}

