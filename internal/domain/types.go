// Package domain defines the core value types shared across the tradedesk
// platform: market symbols, chart timeframes, OHLC bars, and market status.
package domain

import "time"

// Symbol identifies a tradable instrument or index.
type Symbol string

// The fixed set of symbols the dashboard serves.
const (
	SymbolDJI  Symbol = "DJI"
	SymbolSPX  Symbol = "SPX"
	SymbolIXIC Symbol = "IXIC"
	SymbolNDX  Symbol = "NDX"
	SymbolRUT  Symbol = "RUT"
	SymbolVIX  Symbol = "VIX"
)

// Symbols lists all supported symbols in display order.
var Symbols = []Symbol{SymbolDJI, SymbolSPX, SymbolIXIC, SymbolNDX, SymbolRUT, SymbolVIX}

// ValidSymbol reports whether s is one of the supported symbols.
func ValidSymbol(s Symbol) bool {
	for _, v := range Symbols {
		if v == s {
			return true
		}
	}
	return false
}

// Timeframe is the bar bucket size for a chart.
type Timeframe string

// Supported timeframes, intraday minutes through monthly.
const (
	TF1Min  Timeframe = "1m"
	TF5Min  Timeframe = "5m"
	TF15Min Timeframe = "15m"
	TF30Min Timeframe = "30m"
	TF1Hour Timeframe = "1h"
	TF4Hour Timeframe = "4h"
	TF1Day  Timeframe = "1D"
	TF1Week Timeframe = "1W"
	TF1Mon  Timeframe = "1M"
)

// Timeframes lists all supported timeframes from shortest to longest.
var Timeframes = []Timeframe{
	TF1Min, TF5Min, TF15Min, TF30Min, TF1Hour, TF4Hour, TF1Day, TF1Week, TF1Mon,
}

// ValidTimeframe reports whether tf is one of the supported timeframes.
func ValidTimeframe(tf Timeframe) bool {
	for _, v := range Timeframes {
		if v == tf {
			return true
		}
	}
	return false
}

// Duration returns the nominal wall-clock span of one bar. Weeks and months
// use calendar approximations; that is fine for bucket spacing.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF1Min:
		return time.Minute
	case TF5Min:
		return 5 * time.Minute
	case TF15Min:
		return 15 * time.Minute
	case TF30Min:
		return 30 * time.Minute
	case TF1Hour:
		return time.Hour
	case TF4Hour:
		return 4 * time.Hour
	case TF1Day:
		return 24 * time.Hour
	case TF1Week:
		return 7 * 24 * time.Hour
	case TF1Mon:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// Bar is a single time-bucketed OHLC price record.
type Bar struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// MarketState is the exchange session state.
type MarketState string

const (
	MarketOpen       MarketState = "open"
	MarketClosed     MarketState = "closed"
	MarketPreMarket  MarketState = "pre-market"
	MarketAfterHours MarketState = "after-hours"
)

// MarketStatus is the upstream's view of the exchange session. Informational
// only; the cache passes it through untouched.
type MarketStatus struct {
	State        MarketState `json:"state"`
	StateDisplay string      `json:"state_display"`
	IsOpen       bool        `json:"is_open"`
}
