package domain

import (
	"testing"
	"time"
)

func TestTypesExist(t *testing.T) {
	// Verify Bar can be instantiated with zero values.
	bar := Bar{}
	if !bar.Time.IsZero() {
		t.Error("expected zero Time for zero-value Bar")
	}
	if bar.Open != 0 || bar.High != 0 || bar.Low != 0 || bar.Close != 0 {
		t.Error("expected zero OHLC values for zero-value Bar")
	}

	// Verify MarketStatus can be instantiated with zero values.
	ms := MarketStatus{}
	if ms.State != "" || ms.StateDisplay != "" {
		t.Error("expected empty state fields for zero-value MarketStatus")
	}
	if ms.IsOpen {
		t.Error("expected IsOpen=false for zero-value MarketStatus")
	}
}

func TestValidSymbol(t *testing.T) {
	for _, s := range Symbols {
		if !ValidSymbol(s) {
			t.Errorf("ValidSymbol(%q) = false, want true", s)
		}
	}
	if ValidSymbol("DOGE") {
		t.Error("ValidSymbol(DOGE) = true, want false")
	}
	if ValidSymbol("") {
		t.Error("ValidSymbol(\"\") = true, want false")
	}
}

func TestValidTimeframe(t *testing.T) {
	for _, tf := range Timeframes {
		if !ValidTimeframe(tf) {
			t.Errorf("ValidTimeframe(%q) = false, want true", tf)
		}
	}
	if ValidTimeframe("2D") {
		t.Error("ValidTimeframe(2D) = true, want false")
	}
}

func TestTimeframeDurationsAscending(t *testing.T) {
	var prev time.Duration
	for _, tf := range Timeframes {
		d := tf.Duration()
		if d <= 0 {
			t.Fatalf("Duration(%q) = %v, want > 0", tf, d)
		}
		if d < prev {
			t.Errorf("Duration(%q) = %v, shorter than preceding timeframe (%v)", tf, d, prev)
		}
		prev = d
	}
}
