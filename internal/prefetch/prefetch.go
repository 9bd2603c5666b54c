// Package prefetch warms the market-data cache for all configured series, at
// startup and on the auto-refresh schedule.
package prefetch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tradedesk/internal/domain"
	"tradedesk/internal/journal"
	"tradedesk/internal/marketdata"
	"tradedesk/internal/refresh"
	"tradedesk/internal/util"
)

// Warmer fetches a fixed set of series with bounded concurrency, driving the
// refresh coordinator and journal around each batch.
type Warmer struct {
	svc      *marketdata.Service
	coord    *refresh.Coordinator
	recorder journal.Recorder
	limiter  *util.RateLimiter
	log      *slog.Logger

	keys          []marketdata.Key
	periods       int
	maxConcurrent int
}

// NewWarmer creates a warmer over the given keys. maxConcurrent bounds
// simultaneous upstream requests; ratePerMin bounds their rate.
func NewWarmer(
	svc *marketdata.Service,
	coord *refresh.Coordinator,
	recorder journal.Recorder,
	log *slog.Logger,
	keys []marketdata.Key,
	periods, maxConcurrent, ratePerMin int,
) *Warmer {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &Warmer{
		svc:           svc,
		coord:         coord,
		recorder:      recorder,
		limiter:       util.NewRateLimiter(ratePerMin),
		log:           log,
		keys:          keys,
		periods:       periods,
		maxConcurrent: maxConcurrent,
	}
}

// Run fetches every configured series once. force bypasses the staleness
// check on each key. The batch is reported to the refresh coordinator and
// recorded in the journal; per-key failures do not stop the batch.
func (w *Warmer) Run(ctx context.Context, force bool) error {
	started := time.Now()
	w.coord.StartRefresh(refresh.SourceMarketData)

	sem := make(chan struct{}, w.maxConcurrent)
	g, gctx := errgroup.WithContext(ctx)

	fallbacks := 0
	results := make([]error, len(w.keys))
	fellBack := make([]bool, len(w.keys))

	for i, key := range w.keys {
		i, key := i, key
		g.Go(func() error {
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := w.limiter.Wait(gctx); err != nil {
				results[i] = err
				return err
			}

			entry, err := w.svc.Fetch(gctx, key.Symbol, key.Timeframe, w.periods, force)
			if err != nil {
				results[i] = err
				w.log.Warn("warmup fetch failed", "key", key.String(), "error", err)
				return nil // keep warming the other keys
			}
			fellBack[i] = entry.Provider == marketdata.ProviderFallback
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		for i := range results {
			if results[i] != nil {
				err = results[i]
				break
			}
		}
	}
	for i := range fellBack {
		if fellBack[i] {
			fallbacks++
		}
	}

	w.coord.CompleteRefresh(refresh.SourceMarketData, err)

	ev := journal.Event{
		Source:     refresh.SourceMarketData,
		StartedAt:  started,
		FinishedAt: time.Now(),
		OK:         err == nil,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	// Journal writes are best-effort; retry briefly and move on.
	if rerr := util.Retry(ctx, 3, 50*time.Millisecond, func() error {
		return w.recorder.Record(ctx, ev)
	}); rerr != nil {
		w.log.Warn("recording refresh event", "error", rerr)
	}

	w.log.Info("warmup complete",
		"keys", len(w.keys), "fallbacks", fallbacks, "elapsed", time.Since(started), "ok", err == nil)
	return err
}

// Keys builds the warmup key set as the cross product of the configured
// symbols and timeframes.
func Keys(symbols []domain.Symbol, timeframes []domain.Timeframe) []marketdata.Key {
	keys := make([]marketdata.Key, 0, len(symbols)*len(timeframes))
	for _, s := range symbols {
		for _, tf := range timeframes {
			keys = append(keys, marketdata.Key{Symbol: s, Timeframe: tf})
		}
	}
	return keys
}
