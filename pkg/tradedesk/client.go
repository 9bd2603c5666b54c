// Package tradedesk provides a Go SDK for the tradedesk-server API.
package tradedesk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Bar is one OHLC price record.
type Bar struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// MarketStatus is the exchange session state reported by the server.
type MarketStatus struct {
	State        string `json:"state"`
	StateDisplay string `json:"state_display"`
	IsOpen       bool   `json:"is_open"`
}

// MarketData is the response of GET /api/trader/market-data. Nullable fields
// are pointers; a nil Error means the series is healthy.
type MarketData struct {
	Success        bool          `json:"success"`
	Data           []Bar         `json:"data"`
	Provider       *string       `json:"provider"`
	Cached         bool          `json:"cached"`
	CacheExpiresAt *string       `json:"cache_expires_at"`
	MarketStatus   *MarketStatus `json:"market_status"`
	Error          *string       `json:"error"`
}

// SourceState is the refresh state of one data source.
type SourceState struct {
	Status        string    `json:"status"`
	LastError     string    `json:"last_error,omitempty"`
	LastRefreshed time.Time `json:"last_refreshed,omitzero"`
	Countdown     int       `json:"countdown"`
	AutoRefresh   bool      `json:"auto_refresh"`
}

// RefreshEvent is one entry of the server's refresh journal.
type RefreshEvent struct {
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
}

// Status is the response of GET /api/trader/status.
type Status struct {
	BackendDown  bool                   `json:"backend_down"`
	Refreshing   bool                   `json:"refreshing"`
	CacheVersion uint64                 `json:"cache_version"`
	CachedSeries int                    `json:"cached_series"`
	Sources      map[string]SourceState `json:"sources"`
	RecentEvents []RefreshEvent         `json:"recent_events"`
}

// Symbols is the response of GET /api/trader/symbols.
type Symbols struct {
	Symbols    []string `json:"symbols"`
	Timeframes []string `json:"timeframes"`
}

// Client talks to a running tradedesk-server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new tradedesk API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// GetMarketData retrieves a cached OHLC series. periods <= 0 uses the server
// default; force bypasses the server's cache.
func (c *Client) GetMarketData(ctx context.Context, symbol, timeframe string, periods int, force bool) (*MarketData, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("timeframe", timeframe)
	if periods > 0 {
		q.Set("periods", strconv.Itoa(periods))
	}
	if force {
		q.Set("force_refresh", "true")
	}

	var out MarketData
	if err := c.getJSON(ctx, "/api/trader/market-data?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetStatus retrieves backend availability and refresh state.
func (c *Client) GetStatus(ctx context.Context) (*Status, error) {
	var out Status
	if err := c.getJSON(ctx, "/api/trader/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSymbols retrieves the symbols and timeframes the server caches.
func (c *Client) GetSymbols(ctx context.Context) (*Symbols, error) {
	var out Symbols
	if err := c.getJSON(ctx, "/api/trader/symbols", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TriggerRefresh asks the server to warm its cache in the background.
func (c *Client) TriggerRefresh(ctx context.Context, force bool) error {
	path := "/api/trader/refresh"
	if force {
		path += "?force=true"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("tradedesk: refresh returned status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("tradedesk: %s (status %d)", apiErr.Error, resp.StatusCode)
		}
		return fmt.Errorf("tradedesk: status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
