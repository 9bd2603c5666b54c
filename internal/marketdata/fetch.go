package marketdata

import (
	"context"
	"fmt"

	"tradedesk/internal/domain"
	"tradedesk/internal/upstream"
)

// DefaultPeriods is used when a caller does not specify how many bars to
// request.
const DefaultPeriods = 300

// Fetch returns the cached entry for (symbol, timeframe), fetching from the
// upstream proxy when needed.
//
// Concurrent calls for the same key share one in-flight request. A fresh
// cached entry (per the staleness policy) is returned without any network
// call. force bypasses both the in-flight coalescing and the staleness check,
// guaranteeing a network attempt.
//
// Upstream failures never surface as errors to the caller: a connection-class
// failure produces a synthetic fallback entry (Provider "fallback", no error
// message) and marks the backend down; an application-class failure sets the
// entry's Err while retaining previously cached data. The returned error is
// non-nil only for invalid arguments or a cancelled context.
func (s *Service) Fetch(ctx context.Context, symbol domain.Symbol, timeframe domain.Timeframe, periods int, force bool) (*Entry, error) {
	if !domain.ValidSymbol(symbol) {
		return nil, fmt.Errorf("marketdata: unknown symbol %q", symbol)
	}
	if !domain.ValidTimeframe(timeframe) {
		return nil, fmt.Errorf("marketdata: unknown timeframe %q", timeframe)
	}
	if periods <= 0 {
		periods = DefaultPeriods
	}
	key := Key{Symbol: symbol, Timeframe: timeframe}

	s.mu.Lock()
	if !force {
		// Coalesce onto an in-flight request for this key.
		if call, ok := s.pending[key]; ok {
			s.mu.Unlock()
			select {
			case <-call.done:
				return call.entry, call.err
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		// Serve fresh cache without touching the network.
		if entry := s.entries[key]; !IsStale(entry, timeframe, s.now()) {
			s.mu.Unlock()
			return entry, nil
		}
	}

	// Register the in-flight handle before any suspension point so calls
	// arriving from here on coalesce onto it. A force call overwrites any
	// existing handle; the overwritten call still completes for its waiters.
	call := &inflight{done: make(chan struct{})}
	s.pending[key] = call
	s.mu.Unlock()

	entry, err := s.doFetch(ctx, key, periods, force)

	call.entry, call.err = entry, err
	s.mu.Lock()
	// Clear the pending slot on every exit path, but only if it is still
	// ours; a concurrent force refresh may have replaced it.
	if s.pending[key] == call {
		delete(s.pending, key)
	}
	s.mu.Unlock()
	close(call.done)

	return entry, err
}

// doFetch performs one network round-trip and folds the classified result
// into the cache.
func (s *Service) doFetch(ctx context.Context, key Key, periods int, force bool) (*Entry, error) {
	resp, err := s.source.GetMarketData(ctx, key.Symbol, key.Timeframe, periods, force)

	switch {
	case err == nil:
		entry := &Entry{
			Bars:         normalizeBars(resp.Data),
			LastUpdated:  s.now(),
			MarketStatus: resp.MarketStatus,
			Provider:     resp.Provider,
			IsCached:     resp.Cached,
		}
		// Any successful fetch proves the backend is reachable again.
		s.setEntryAndFlag(key, entry, false)
		return entry, nil

	case upstream.IsConnection(err):
		s.log.Warn("backend unreachable, serving fallback data",
			"key", key.String(), "error", err)
		entry := &Entry{
			Bars:        GenerateBars(key.Symbol, key.Timeframe, periods, s.now()),
			LastUpdated: s.now(),
			Provider:    ProviderFallback,
		}
		s.setEntryAndFlag(key, entry, true)
		return entry, nil

	case upstream.IsApplication(err):
		s.log.Warn("upstream application error",
			"key", key.String(), "error", err)
		entry := &Entry{
			LastUpdated: s.now(),
			Err:         err.Error(),
		}
		// Keep showing the last known-good data alongside the error.
		if prev := s.Entry(key); prev != nil {
			entry.Bars = prev.Bars
			entry.MarketStatus = prev.MarketStatus
			entry.Provider = prev.Provider
		}
		s.SetEntry(key, entry)
		return entry, nil

	default:
		// Cancellation or an unclassified failure: leave the cache as-is.
		return nil, err
	}
}
