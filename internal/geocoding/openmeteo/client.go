// Package openmeteo provides a client for the Open-Meteo geocoding API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/breatheroute/airdash/internal/geocoding"
	"github.com/breatheroute/airdash/internal/provider/resilience"
)

const (
	// DefaultBaseURL is the Open-Meteo geocoding search endpoint.
	DefaultBaseURL = "https://geocoding-api.open-meteo.com/v1/search"

	// ProviderName identifies this provider.
	ProviderName = "open-meteo-geocoding"
)

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the geocoding client.
type ClientConfig struct {
	BaseURL    string
	HTTPClient HTTPDoer
	Registry   *resilience.Registry

	// Language for place names. Default: en.
	Language string
}

// Client searches places by name.
type Client struct {
	baseURL    string
	httpClient HTTPDoer
	registry   *resilience.Registry
	language   string
}

// NewClient creates a new geocoding client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.HTTPClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.MaxRetries = 1
		rc.Registry = cfg.Registry
		cfg.HTTPClient = resilience.NewClient(rc)
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		registry:   cfg.Registry,
		language:   cfg.Language,
	}
}

type searchResponse struct {
	Results []struct {
		ID        int64   `json:"id"`
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Country   string  `json:"country"`
		Admin1    string  `json:"admin1"`
	} `json:"results"`
}

// Search implements geocoding.Provider. A response without results is an
// empty list, not an error.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]geocoding.Candidate, error) {
	results, err := c.search(ctx, query, limit)
	if c.registry != nil && ctx.Err() == nil {
		if err != nil {
			c.registry.RecordFailure(ProviderName, err)
		} else {
			c.registry.RecordSuccess(ProviderName)
		}
	}
	return results, err
}

func (c *Client) search(ctx context.Context, query string, limit int) ([]geocoding.Candidate, error) {
	params := url.Values{}
	params.Set("name", query)
	params.Set("count", strconv.Itoa(limit))
	params.Set("language", c.language)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", geocoding.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", geocoding.ErrProviderUnavailable, resp.StatusCode)
	}

	var body searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", geocoding.ErrProviderUnavailable, err)
	}

	out := make([]geocoding.Candidate, 0, len(body.Results))
	for _, r := range body.Results {
		out = append(out, geocoding.Candidate{
			ID:        r.ID,
			Name:      r.Name,
			Admin1:    r.Admin1,
			Country:   r.Country,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
