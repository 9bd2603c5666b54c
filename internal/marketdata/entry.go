// Package marketdata implements the shared market-data cache: a keyed store
// of OHLC series with request coalescing, per-timeframe staleness, synthetic
// fallback on backend outage, and pub/sub snapshots for dashboard consumers.
package marketdata

import (
	"sort"
	"time"

	"tradedesk/internal/domain"
)

// ProviderFallback tags entries synthesized locally because the backend was
// unreachable.
const ProviderFallback = "fallback"

// Key identifies one cached series.
type Key struct {
	Symbol    domain.Symbol
	Timeframe domain.Timeframe
}

func (k Key) String() string {
	return string(k.Symbol) + ":" + string(k.Timeframe)
}

// Entry is the cached state for one (symbol, timeframe) series. Entries are
// owned by the Service; consumers receive them through snapshots and must
// treat them as read-only.
type Entry struct {
	// Bars is ascending by time with no duplicate timestamps. When Err is
	// non-empty this still holds the most recent successfully retrieved
	// data (stale-but-present), never emptied by a failed refresh.
	Bars         []domain.Bar
	LastUpdated  time.Time
	MarketStatus *domain.MarketStatus
	// Provider is the upstream provider tag, ProviderFallback for locally
	// synthesized data, or "" when no data origin is known.
	Provider string
	// IsCached is true if the upstream response was itself served from an
	// upstream cache. Informational, passed through.
	IsCached bool
	// Err is the last application-error message, or "" when the entry is
	// healthy. Connection failures never set Err; they produce fallback
	// entries instead.
	Err string
}

// normalizeBars sorts bars ascending by time and drops duplicate timestamps,
// keeping the last occurrence. Upstream data is usually already ordered; this
// enforces the entry invariant regardless.
func normalizeBars(bars []domain.Bar) []domain.Bar {
	if len(bars) < 2 {
		return bars
	}
	out := make([]domain.Bar, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	dedup := out[:1]
	for _, b := range out[1:] {
		if b.Time.Equal(dedup[len(dedup)-1].Time) {
			dedup[len(dedup)-1] = b
			continue
		}
		dedup = append(dedup, b)
	}
	return dedup
}
