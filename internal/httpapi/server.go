// Package httpapi serves the trader dashboard HTTP API: cached market data,
// backend status, refresh controls, broker watchlist, parquet export, and a
// WebSocket stream of cache updates.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	alpacaapi "github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"

	"tradedesk/internal/domain"
	"tradedesk/internal/export"
	"tradedesk/internal/journal"
	"tradedesk/internal/marketdata"
	"tradedesk/internal/refresh"
)

const watchlistName = "tradedesk"

// Server serves the trader dashboard API on top of the market-data cache.
type Server struct {
	svc      *marketdata.Service
	coord    *refresh.Coordinator
	recorder journal.Recorder
	exporter *export.SeriesStore
	hub      *Hub
	log      *slog.Logger

	symbols        []domain.Symbol
	timeframes     []domain.Timeframe
	defaultPeriods int

	// refreshFn triggers a full cache warmup; nil when no warmer is wired.
	refreshFn func(ctx context.Context, force bool) error

	// Alpaca client for watchlist (nil if not configured).
	alpacaClient *alpacaapi.Client
	wlMu         sync.Mutex
	watchlistID  string

	unsubscribe func()
}

// NewServer creates the dashboard server and bridges cache mutations onto the
// WebSocket hub. Call Close to detach from the cache service.
func NewServer(
	svc *marketdata.Service,
	coord *refresh.Coordinator,
	recorder journal.Recorder,
	exporter *export.SeriesStore,
	alpacaClient *alpacaapi.Client,
	log *slog.Logger,
	symbols []domain.Symbol,
	timeframes []domain.Timeframe,
	defaultPeriods int,
) *Server {
	if defaultPeriods <= 0 {
		defaultPeriods = marketdata.DefaultPeriods
	}
	s := &Server{
		svc:            svc,
		coord:          coord,
		recorder:       recorder,
		exporter:       exporter,
		hub:            NewHub(log),
		log:            log,
		symbols:        symbols,
		timeframes:     timeframes,
		defaultPeriods: defaultPeriods,
		alpacaClient:   alpacaClient,
	}

	s.unsubscribe = svc.Subscribe(func() {
		snap := svc.Snapshot()
		b, err := json.Marshal(StreamEvent{
			Type:        "cache_update",
			Version:     snap.Version,
			BackendDown: snap.BackendDown,
		})
		if err != nil {
			return
		}
		s.hub.Broadcast(b)
	})

	// Discover or create the broker watchlist.
	if alpacaClient != nil {
		go s.initWatchlist()
	}

	return s
}

// Run starts the WebSocket hub loop and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) {
	s.hub.Run(ctx)
}

// Close detaches the server from the cache service.
func (s *Server) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// SetRefreshFunc wires the manual-refresh trigger, typically the prefetch
// warmer's Run.
func (s *Server) SetRefreshFunc(fn func(ctx context.Context, force bool) error) {
	s.refreshFn = fn
}

func (s *Server) initWatchlist() {
	lists, err := s.alpacaClient.GetWatchlists()
	if err != nil {
		s.log.Warn("listing watchlists", "error", err)
		return
	}
	for _, w := range lists {
		if w.Name == watchlistName {
			s.setWatchlistID(w.ID)
			s.log.Info("watchlist found", "id", w.ID)
			return
		}
	}
	w, err := s.alpacaClient.CreateWatchlist(alpacaapi.CreateWatchlistRequest{Name: watchlistName})
	if err != nil {
		s.log.Warn("creating watchlist", "error", err)
		return
	}
	s.setWatchlistID(w.ID)
	s.log.Info("watchlist created", "id", w.ID)
}

func (s *Server) setWatchlistID(id string) {
	s.wlMu.Lock()
	s.watchlistID = id
	s.wlMu.Unlock()
}

func (s *Server) getWatchlistID() string {
	s.wlMu.Lock()
	defer s.wlMu.Unlock()
	return s.watchlistID
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/trader/market-data", s.handleMarketData)
	mux.HandleFunc("GET /api/trader/status", s.handleStatus)
	mux.HandleFunc("GET /api/trader/symbols", s.handleSymbols)
	mux.HandleFunc("POST /api/trader/refresh", s.handleTriggerRefresh)
	mux.HandleFunc("PUT /api/trader/auto-refresh/{source}", s.handleAutoRefresh)
	mux.HandleFunc("GET /api/trader/watchlist", s.handleGetWatchlist)
	mux.HandleFunc("PUT /api/trader/watchlist/{symbol}", s.handleAddWatchlist)
	mux.HandleFunc("DELETE /api/trader/watchlist/{symbol}", s.handleRemoveWatchlist)
	mux.HandleFunc("POST /api/trader/export/{symbol}/{timeframe}", s.handleExport)
	mux.HandleFunc("GET /api/trader/stream", s.handleStream)
}

// Handler returns an http.Handler with CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// handleMarketData serves one cached series. The cache layer absorbs backend
// failures, so this endpoint answers 200 with usable data whenever the
// arguments are valid: real bars, stale bars with an error message, or
// synthetic fallback bars.
func (s *Server) handleMarketData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	symbol := domain.Symbol(strings.ToUpper(q.Get("symbol")))
	if symbol == "" {
		symbol = domain.SymbolDJI
	}
	if !domain.ValidSymbol(symbol) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown symbol %q", symbol))
		return
	}

	timeframe := domain.Timeframe(q.Get("timeframe"))
	if timeframe == "" {
		timeframe = domain.TF1Day
	}
	if !domain.ValidTimeframe(timeframe) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown timeframe %q", timeframe))
		return
	}

	periods := s.defaultPeriods
	if v := q.Get("periods"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "periods must be a positive integer")
			return
		}
		periods = n
	}
	force := q.Get("force_refresh") == "true"

	entry, err := s.svc.Fetch(r.Context(), symbol, timeframe, periods, force)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, convertEntry(entry, timeframe))
}

// convertEntry maps a cache entry to the dashboard wire shape.
func convertEntry(entry *marketdata.Entry, timeframe domain.Timeframe) MarketDataJSON {
	resp := MarketDataJSON{
		Success:      entry.Err == "",
		Data:         entry.Bars,
		Cached:       entry.IsCached,
		MarketStatus: entry.MarketStatus,
	}
	if resp.Data == nil {
		resp.Data = []domain.Bar{}
	}
	if entry.Provider != "" {
		p := entry.Provider
		resp.Provider = &p
	}
	if entry.Err != "" {
		e := entry.Err
		resp.Error = &e
	}
	if !entry.LastUpdated.IsZero() {
		exp := entry.LastUpdated.Add(marketdata.StalenessTTL(timeframe)).Format(time.RFC3339)
		resp.CacheExpiresAt = &exp
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.Snapshot()

	resp := StatusResponse{
		BackendDown:  snap.BackendDown,
		Refreshing:   s.coord.AnyRefreshing(),
		CacheVersion: snap.Version,
		CachedSeries: len(snap.Entries),
		Sources:      s.coord.States(),
		RecentEvents: []RefreshEventJSON{},
	}

	events, err := s.recorder.Recent(r.Context(), 20)
	if err != nil {
		s.log.Warn("reading refresh journal", "error", err)
	}
	for _, ev := range events {
		resp.RecentEvents = append(resp.RecentEvents, RefreshEventJSON{
			Source:     string(ev.Source),
			StartedAt:  ev.StartedAt,
			FinishedAt: ev.FinishedAt,
			OK:         ev.OK,
			Error:      ev.Error,
		})
	}

	writeJSON(w, resp)
}

func (s *Server) handleSymbols(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, SymbolsResponse{Symbols: s.symbols, Timeframes: s.timeframes})
}

// handleTriggerRefresh kicks off a warmup in the background and returns
// immediately. Progress is visible through /api/trader/status.
func (s *Server) handleTriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if s.refreshFn == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh not configured")
		return
	}
	force := r.URL.Query().Get("force") == "true"

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.refreshFn(ctx, force); err != nil {
			s.log.Warn("manual refresh failed", "error", err)
		}
	}()

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"status": "started"})
}

func (s *Server) handleAutoRefresh(w http.ResponseWriter, r *http.Request) {
	src := refresh.Source(r.PathValue("source"))
	known := false
	for _, v := range refresh.Sources {
		if v == src {
			known = true
			break
		}
	}
	if !known {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown source %q", src))
		return
	}

	var req AutoRefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.coord.SetAutoRefreshEnabled(src, req.Enabled)
	writeJSON(w, s.coord.States())
}

func (s *Server) handleGetWatchlist(w http.ResponseWriter, r *http.Request) {
	id := s.getWatchlistID()
	if s.alpacaClient == nil || id == "" {
		writeJSON(w, WatchlistResponse{Symbols: []string{}})
		return
	}

	wl, err := s.alpacaClient.GetWatchlist(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get watchlist")
		return
	}

	symbols := make([]string, 0, len(wl.Assets))
	for _, a := range wl.Assets {
		symbols = append(symbols, a.Symbol)
	}
	sort.Strings(symbols)
	writeJSON(w, WatchlistResponse{Symbols: symbols})
}

func (s *Server) handleAddWatchlist(w http.ResponseWriter, r *http.Request) {
	id := s.getWatchlistID()
	if s.alpacaClient == nil || id == "" {
		writeError(w, http.StatusServiceUnavailable, "watchlist not configured")
		return
	}

	symbol := strings.ToUpper(r.PathValue("symbol"))
	_, err := s.alpacaClient.AddSymbolToWatchlist(id, alpacaapi.AddSymbolToWatchlistRequest{Symbol: symbol})
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to add %s: %v", symbol, err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveWatchlist(w http.ResponseWriter, r *http.Request) {
	id := s.getWatchlistID()
	if s.alpacaClient == nil || id == "" {
		writeError(w, http.StatusServiceUnavailable, "watchlist not configured")
		return
	}

	symbol := strings.ToUpper(r.PathValue("symbol"))
	err := s.alpacaClient.RemoveSymbolFromWatchlist(id, alpacaapi.RemoveSymbolFromWatchlistRequest{Symbol: symbol})
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to remove %s: %v", symbol, err))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleExport writes one cached series to the parquet export directory.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, "export not configured")
		return
	}

	symbol := domain.Symbol(strings.ToUpper(r.PathValue("symbol")))
	timeframe := domain.Timeframe(r.PathValue("timeframe"))
	if !domain.ValidSymbol(symbol) || !domain.ValidTimeframe(timeframe) {
		writeError(w, http.StatusBadRequest, "unknown symbol or timeframe")
		return
	}

	key := marketdata.Key{Symbol: symbol, Timeframe: timeframe}
	entry := s.svc.Entry(key)
	if entry == nil || len(entry.Bars) == 0 {
		writeError(w, http.StatusNotFound, fmt.Sprintf("no cached data for %s", key))
		return
	}

	if err := s.exporter.WriteSeries(key, entry); err != nil {
		s.log.Warn("exporting series", "key", key.String(), "error", err)
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	writeJSON(w, ExportResponse{
		Symbol:    string(symbol),
		Timeframe: string(timeframe),
		Bars:      len(entry.Bars),
	})
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	s.hub.ServeWS(w, r)
}
