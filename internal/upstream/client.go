// Package upstream implements the HTTP client for the remote analytics proxy
// that serves market data. All network-error classification happens here,
// once, at the call boundary: callers receive a typed *Error and switch on
// its Kind instead of matching message strings.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradedesk/internal/domain"
)

// ErrorKind discriminates upstream failures.
type ErrorKind int

const (
	// KindConnection: the proxy/backend could not be reached, or reported
	// itself unavailable (HTTP 503 or a recognised unavailable-message).
	// Callers recover locally with fallback data.
	KindConnection ErrorKind = iota + 1

	// KindApplication: the backend was reachable but returned a logical
	// failure (validation, bad symbol, computation error). Surfaced to the
	// user while prior data is retained.
	KindApplication
)

// Error is a classified upstream failure.
type Error struct {
	Kind       ErrorKind
	StatusCode int // 0 for transport-level failures
	Message    string
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upstream: %s (status %d)", e.Message, e.StatusCode)
	}
	return "upstream: " + e.Message
}

// IsConnection reports whether err is a connection-class upstream failure.
func IsConnection(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Kind == KindConnection
}

// IsApplication reports whether err is an application-class upstream failure.
func IsApplication(err error) bool {
	var ue *Error
	return errors.As(err, &ue) && ue.Kind == KindApplication
}

// Phrases in error bodies that mean "the backend is down" rather than "the
// request was bad". Matched only here; nowhere else in the codebase.
var unavailablePhrases = []string{
	"backend unavailable",
	"could not connect",
}

func messageSignalsUnavailable(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range unavailablePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// MarketDataResponse is the proxy's wire format for market-data requests.
type MarketDataResponse struct {
	Success            bool                 `json:"success"`
	Data               []domain.Bar         `json:"data"`
	Provider           string               `json:"provider"`
	Cached             bool                 `json:"cached"`
	CacheExpiresAt     string               `json:"cache_expires_at"`
	RateLimitRemaining *int                 `json:"rate_limit_remaining"`
	MarketStatus       *domain.MarketStatus `json:"market_status"`
	Error              string               `json:"error"`
}

// Client talks to the analytics proxy.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a proxy client with the given base URL and timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// GetMarketData fetches bars for a symbol/timeframe from the proxy. On
// failure it returns a *Error whose Kind has already been classified; a
// context cancellation is returned as-is so callers can distinguish an
// aborted request from a dead backend.
func (c *Client) GetMarketData(ctx context.Context, symbol domain.Symbol, timeframe domain.Timeframe, periods int, forceRefresh bool) (*MarketDataResponse, error) {
	q := url.Values{}
	q.Set("symbol", string(symbol))
	q.Set("timeframe", string(timeframe))
	q.Set("periods", strconv.Itoa(periods))
	if forceRefresh {
		q.Set("force_refresh", "true")
	}

	reqURL := c.baseURL + "/api/trader/market-data?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &Error{Kind: KindApplication, Message: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Transport-level failure: refused, reset, DNS, timeout.
		return nil, &Error{Kind: KindConnection, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Kind: KindConnection, Message: "reading response: " + err.Error()}
	}

	if resp.StatusCode == http.StatusServiceUnavailable {
		return nil, &Error{Kind: KindConnection, StatusCode: resp.StatusCode, Message: errorMessage(body, "backend unavailable")}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(body, http.StatusText(resp.StatusCode))
		kind := KindApplication
		if messageSignalsUnavailable(msg) {
			kind = KindConnection
		}
		return nil, &Error{Kind: kind, StatusCode: resp.StatusCode, Message: msg}
	}

	var parsed MarketDataResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, &Error{Kind: KindApplication, StatusCode: resp.StatusCode, Message: "decoding response: " + err.Error()}
	}

	if !parsed.Success {
		msg := parsed.Error
		if msg == "" {
			msg = "request failed"
		}
		kind := KindApplication
		if messageSignalsUnavailable(msg) {
			kind = KindConnection
		}
		return nil, &Error{Kind: kind, StatusCode: resp.StatusCode, Message: msg}
	}

	return &parsed, nil
}

// errorMessage extracts an error string from a JSON error body, falling back
// to the raw body or the given default.
func errorMessage(body []byte, fallback string) string {
	var payload struct {
		Error  string `json:"error"`
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	if s := strings.TrimSpace(string(body)); s != "" && len(s) < 512 {
		return s
	}
	return fallback
}
