package httpapi

import (
	"time"

	"tradedesk/internal/domain"
	"tradedesk/internal/refresh"
)

// MarketDataJSON is the market-data payload served to the dashboard. Nullable
// fields are pointers so absent values encode as JSON null, never "".
type MarketDataJSON struct {
	Success        bool                 `json:"success"`
	Data           []domain.Bar         `json:"data"`
	Provider       *string              `json:"provider"`
	Cached         bool                 `json:"cached"`
	CacheExpiresAt *string              `json:"cache_expires_at"`
	MarketStatus   *domain.MarketStatus `json:"market_status"`
	Error          *string              `json:"error"`
}

// StatusResponse summarizes backend availability and refresh state.
type StatusResponse struct {
	BackendDown  bool                           `json:"backend_down"`
	Refreshing   bool                           `json:"refreshing"`
	CacheVersion uint64                         `json:"cache_version"`
	CachedSeries int                            `json:"cached_series"`
	Sources      map[refresh.Source]refresh.State `json:"sources"`
	RecentEvents []RefreshEventJSON             `json:"recent_events"`
}

// RefreshEventJSON is one journal entry as served to the dashboard.
type RefreshEventJSON struct {
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
}

// SymbolsResponse lists the series the cache serves.
type SymbolsResponse struct {
	Symbols    []domain.Symbol    `json:"symbols"`
	Timeframes []domain.Timeframe `json:"timeframes"`
}

// WatchlistResponse lists the symbols on the broker watchlist.
type WatchlistResponse struct {
	Symbols []string `json:"symbols"`
}

// AutoRefreshRequest is the body of PUT /api/trader/auto-refresh/{source}.
type AutoRefreshRequest struct {
	Enabled bool `json:"enabled"`
}

// ExportResponse reports one completed series export.
type ExportResponse struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Bars      int    `json:"bars"`
}

// StreamEvent is pushed to WebSocket clients after every cache mutation.
// Clients re-read /api/trader/market-data when the version advances.
type StreamEvent struct {
	Type        string `json:"type"`
	Version     uint64 `json:"version"`
	BackendDown bool   `json:"backend_down"`
}
