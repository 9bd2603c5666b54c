package marketdata

import (
	"hash/fnv"
	"math/rand"
	"time"

	"tradedesk/internal/domain"
)

// basePrices anchors the synthetic walk near each symbol's usual level so
// fallback charts look plausible next to real ones.
var basePrices = map[domain.Symbol]float64{
	domain.SymbolDJI:  39000,
	domain.SymbolSPX:  5200,
	domain.SymbolIXIC: 16500,
	domain.SymbolNDX:  18200,
	domain.SymbolRUT:  2100,
	domain.SymbolVIX:  15,
}

// GenerateBars produces a synthetic OHLC series for use when the backend is
// unreachable, so the dashboard never renders an empty chart. It returns
// exactly count bars with strictly ascending timestamps ending near now, each
// satisfying low <= min(open, close) and high >= max(open, close). No network
// access, no allocation surprises, completes synchronously.
func GenerateBars(symbol domain.Symbol, tf domain.Timeframe, count int, now time.Time) []domain.Bar {
	if count < 1 {
		return nil
	}

	base, ok := basePrices[symbol]
	if !ok || base <= 0 {
		h := fnv.New32a()
		h.Write([]byte(symbol))
		base = 50 + float64(h.Sum32()%950)
	}

	step := tf.Duration()
	start := now.Add(-step * time.Duration(count-1))

	h := fnv.New64a()
	h.Write([]byte(symbol))
	h.Write([]byte(tf))
	rng := rand.New(rand.NewSource(int64(h.Sum64()) ^ now.UnixNano()))

	bars := make([]domain.Bar, count)
	price := base
	for i := 0; i < count; i++ {
		open := price
		// Random walk: ±1% per bar keeps the series continuous without
		// extreme outliers.
		delta := (rng.Float64() - 0.5) * 0.02 * open
		close := open + delta
		if close <= 0 {
			close = open * 0.99
		}

		hi := open
		if close > hi {
			hi = close
		}
		lo := open
		if close < lo {
			lo = close
		}
		high := hi * (1 + rng.Float64()*0.004)
		low := lo * (1 - rng.Float64()*0.004)

		bars[i] = domain.Bar{
			Time:  start.Add(step * time.Duration(i)),
			Open:  open,
			High:  high,
			Low:   low,
			Close: close,
		}
		price = close
	}
	return bars
}
