package prefetch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tradedesk/internal/domain"
	"tradedesk/internal/journal"
	"tradedesk/internal/marketdata"
	"tradedesk/internal/refresh"
	"tradedesk/internal/upstream"
	"tradedesk/internal/util"
)

type countingSource struct {
	calls atomic.Int64
	fail  atomic.Bool
}

func (c *countingSource) GetMarketData(_ context.Context, symbol domain.Symbol, _ domain.Timeframe, periods int, _ bool) (*upstream.MarketDataResponse, error) {
	c.calls.Add(1)
	if c.fail.Load() {
		return nil, &upstream.Error{Kind: upstream.KindConnection, Message: "connection refused"}
	}
	return &upstream.MarketDataResponse{
		Success:  true,
		Data:     marketdata.GenerateBars(symbol, domain.TF1Day, periods, time.Now()),
		Provider: "yfinance",
	}, nil
}

// capturingRecorder collects journal events in memory.
type capturingRecorder struct {
	mu     sync.Mutex
	events []journal.Event
}

func (c *capturingRecorder) Record(_ context.Context, ev journal.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *capturingRecorder) Recent(context.Context, int) ([]journal.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]journal.Event(nil), c.events...), nil
}

func (c *capturingRecorder) Close() error { return nil }

func TestKeysCrossProduct(t *testing.T) {
	keys := Keys(
		[]domain.Symbol{domain.SymbolDJI, domain.SymbolSPX},
		[]domain.Timeframe{domain.TF1Hour, domain.TF1Day},
	)
	if len(keys) != 4 {
		t.Fatalf("Keys returned %d keys, want 4", len(keys))
	}
	want := marketdata.Key{Symbol: domain.SymbolSPX, Timeframe: domain.TF1Day}
	found := false
	for _, k := range keys {
		if k == want {
			found = true
		}
	}
	if !found {
		t.Errorf("Keys missing %v", want)
	}
}

func TestWarmerRunFillsCache(t *testing.T) {
	src := &countingSource{}
	svc := marketdata.NewService(src, util.NewLogger("error", "text"))
	coord := refresh.NewCoordinator()
	rec := &capturingRecorder{}

	keys := Keys([]domain.Symbol{domain.SymbolDJI, domain.SymbolSPX}, []domain.Timeframe{domain.TF1Day})
	w := NewWarmer(svc, coord, rec, util.NewLogger("error", "text"), keys, 10, 4, 6000)

	if err := w.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := src.calls.Load(); got != 2 {
		t.Errorf("upstream calls = %d, want 2", got)
	}
	for _, k := range keys {
		if svc.Entry(k) == nil {
			t.Errorf("key %v not cached after warmup", k)
		}
	}
	if got := coord.States()[refresh.SourceMarketData].Status; got != refresh.StatusSuccess {
		t.Errorf("coordinator status = %q, want success", got)
	}
	if len(rec.events) != 1 || !rec.events[0].OK {
		t.Errorf("journal events = %+v, want one successful event", rec.events)
	}
}

func TestWarmerRunSurvivesBackendOutage(t *testing.T) {
	src := &countingSource{}
	src.fail.Store(true)
	svc := marketdata.NewService(src, util.NewLogger("error", "text"))
	coord := refresh.NewCoordinator()
	rec := &capturingRecorder{}

	keys := Keys([]domain.Symbol{domain.SymbolDJI}, []domain.Timeframe{domain.TF1Day, domain.TF1Hour})
	w := NewWarmer(svc, coord, rec, util.NewLogger("error", "text"), keys, 10, 2, 6000)

	// Connection failures fall back to synthetic data; the batch still
	// succeeds from the warmer's point of view.
	if err := w.Run(context.Background(), false); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, k := range keys {
		entry := svc.Entry(k)
		if entry == nil {
			t.Fatalf("key %v not cached", k)
		}
		if entry.Provider != marketdata.ProviderFallback {
			t.Errorf("key %v provider = %q, want fallback", k, entry.Provider)
		}
	}
	if !svc.BackendDown() {
		t.Error("BackendDown = false after outage warmup")
	}
}

func TestWarmerRunForceRefetches(t *testing.T) {
	src := &countingSource{}
	svc := marketdata.NewService(src, util.NewLogger("error", "text"))
	coord := refresh.NewCoordinator()
	rec := &capturingRecorder{}

	keys := Keys([]domain.Symbol{domain.SymbolDJI}, []domain.Timeframe{domain.TF1Day})
	w := NewWarmer(svc, coord, rec, util.NewLogger("error", "text"), keys, 10, 2, 6000)

	if err := w.Run(context.Background(), false); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	// Cache is fresh: a non-forced run fetches nothing.
	if err := w.Run(context.Background(), false); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if got := src.calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d after fresh re-run, want 1", got)
	}
	// A forced run always refetches.
	if err := w.Run(context.Background(), true); err != nil {
		t.Fatalf("forced Run: %v", err)
	}
	if got := src.calls.Load(); got != 2 {
		t.Errorf("upstream calls = %d after forced run, want 2", got)
	}
}
