// internal/adapter/marketdata/client.go

// Package marketdata implements the market-trend provider client: per-term
// interest-over-time series fetched from an external trends API.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"trendwire/internal/domain/trend"
)

// Client fetches market signals over HTTP. The provider is rate limited, so
// the client enforces a minimum interval between requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string

	mu          sync.Mutex
	lastRequest time.Time
	minInterval time.Duration
}

// Config configures the market data client.
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MinInterval time.Duration
}

// NewClient creates a market data client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = time.Second
	}

	return &Client{
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		minInterval: cfg.MinInterval,
	}
}

// interestResponse is the provider's interest-over-time payload.
type interestResponse struct {
	Term   string `json:"term"`
	Points []struct {
		Time  time.Time `json:"time"`
		Value float64   `json:"value"`
	} `json:"points"`
}

// Fetch returns a fresh interest-over-time snapshot for the term.
func (c *Client) Fetch(ctx context.Context, term string, r trend.TimeRange) (*trend.MarketSignal, error) {
	c.throttle()

	endpoint := fmt.Sprintf("%s/api/v1/interest?%s", c.baseURL, url.Values{
		"term": {term},
		"from": {r.From.UTC().Format(time.RFC3339)},
		"to":   {r.To.UTC().Format(time.RFC3339)},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach trends API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trends API returned status code %d", resp.StatusCode)
	}

	var body interestResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode trends API response: %w", err)
	}

	signal := &trend.MarketSignal{
		Term:      term,
		Points:    make([]trend.SignalPoint, 0, len(body.Points)),
		FetchedAt: time.Now().UTC(),
	}
	for _, p := range body.Points {
		signal.Points = append(signal.Points, trend.SignalPoint{
			Bucket: p.Time.UTC(),
			Value:  p.Value,
		})
	}

	return signal, nil
}

// throttle blocks until the minimum interval since the previous request has
// elapsed.
func (c *Client) throttle() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if wait := c.minInterval - time.Since(c.lastRequest); wait > 0 {
		time.Sleep(wait)
	}
	c.lastRequest = time.Now()
}
