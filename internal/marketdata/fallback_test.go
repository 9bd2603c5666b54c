package marketdata

import (
	"math"
	"testing"
	"time"

	"tradedesk/internal/domain"
)

func TestGenerateBarsInvariants(t *testing.T) {
	now := time.Now()
	for _, symbol := range domain.Symbols {
		for _, tf := range domain.Timeframes {
			for _, count := range []int{1, 2, 50, 300} {
				bars := GenerateBars(symbol, tf, count, now)
				if len(bars) != count {
					t.Fatalf("GenerateBars(%s, %s, %d) returned %d bars", symbol, tf, count, len(bars))
				}
				for i, b := range bars {
					if b.Low > math.Min(b.Open, b.Close) {
						t.Fatalf("%s/%s bar %d: low %.4f > min(open, close) %.4f", symbol, tf, i, b.Low, math.Min(b.Open, b.Close))
					}
					if b.High < math.Max(b.Open, b.Close) {
						t.Fatalf("%s/%s bar %d: high %.4f < max(open, close) %.4f", symbol, tf, i, b.High, math.Max(b.Open, b.Close))
					}
					if b.High < b.Low {
						t.Fatalf("%s/%s bar %d: high %.4f < low %.4f", symbol, tf, i, b.High, b.Low)
					}
					if i > 0 && !bars[i-1].Time.Before(b.Time) {
						t.Fatalf("%s/%s bar %d: time %v not after previous %v", symbol, tf, i, b.Time, bars[i-1].Time)
					}
				}
			}
		}
	}
}

func TestGenerateBarsContinuousWalk(t *testing.T) {
	bars := GenerateBars(domain.SymbolDJI, domain.TF1Day, 200, time.Now())
	for i := 1; i < len(bars); i++ {
		// Each bar opens at the previous close and moves at most ~1%.
		if bars[i].Open != bars[i-1].Close {
			t.Fatalf("bar %d opens at %.4f, previous close %.4f", i, bars[i].Open, bars[i-1].Close)
		}
		change := math.Abs(bars[i].Close-bars[i].Open) / bars[i].Open
		if change > 0.02 {
			t.Fatalf("bar %d moved %.2f%%, want bounded walk", i, change*100)
		}
	}
}

func TestGenerateBarsZeroCount(t *testing.T) {
	if bars := GenerateBars(domain.SymbolSPX, domain.TF1Hour, 0, time.Now()); bars != nil {
		t.Errorf("GenerateBars(count=0) = %v, want nil", bars)
	}
	if bars := GenerateBars(domain.SymbolSPX, domain.TF1Hour, -3, time.Now()); bars != nil {
		t.Errorf("GenerateBars(count=-3) = %v, want nil", bars)
	}
}

func TestGenerateBarsUnknownSymbolStillPlausible(t *testing.T) {
	bars := GenerateBars(domain.Symbol("ZZZ"), domain.TF1Day, 10, time.Now())
	if len(bars) != 10 {
		t.Fatalf("got %d bars, want 10", len(bars))
	}
	for _, b := range bars {
		if b.Open <= 0 || b.Close <= 0 {
			t.Fatalf("non-positive price in synthetic bar: %+v", b)
		}
	}
}
