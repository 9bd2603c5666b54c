package marketdata

import (
	"time"

	"tradedesk/internal/domain"
)

// ttlByTimeframe maps each timeframe to how long its cached data stays
// usable. Shorter timeframes move faster and refresh far more often.
var ttlByTimeframe = map[domain.Timeframe]time.Duration{
	domain.TF1Min:  30 * time.Second,
	domain.TF5Min:  time.Minute,
	domain.TF15Min: 3 * time.Minute,
	domain.TF30Min: 5 * time.Minute,
	domain.TF1Hour: 10 * time.Minute,
	domain.TF4Hour: 30 * time.Minute,
	domain.TF1Day:  time.Hour,
	domain.TF1Week: 6 * time.Hour,
	domain.TF1Mon:  24 * time.Hour,
}

// StalenessTTL returns the time-to-live for cached data of the given
// timeframe. Unknown timeframes get the shortest TTL so they are never served
// stale for long.
func StalenessTTL(tf domain.Timeframe) time.Duration {
	if ttl, ok := ttlByTimeframe[tf]; ok {
		return ttl
	}
	return 30 * time.Second
}

// IsStale reports whether the cached entry must be refetched. A nil entry is
// always stale. Pure function of its inputs.
func IsStale(entry *Entry, tf domain.Timeframe, now time.Time) bool {
	if entry == nil {
		return true
	}
	return now.Sub(entry.LastUpdated) > StalenessTTL(tf)
}
