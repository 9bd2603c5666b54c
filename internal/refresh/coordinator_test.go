package refresh

import (
	"errors"
	"testing"
)

func TestLifecycle(t *testing.T) {
	c := NewCoordinator()

	states := c.States()
	if states[SourceMarketData].Status != StatusIdle {
		t.Fatalf("initial status = %q, want idle", states[SourceMarketData].Status)
	}

	c.StartRefresh(SourceMarketData)
	if got := c.States()[SourceMarketData].Status; got != StatusRefreshing {
		t.Fatalf("status after start = %q, want refreshing", got)
	}
	if !c.AnyRefreshing() {
		t.Fatal("AnyRefreshing = false while a source refreshes")
	}

	c.CompleteRefresh(SourceMarketData, nil)
	st := c.States()[SourceMarketData]
	if st.Status != StatusSuccess {
		t.Fatalf("status after success = %q, want success", st.Status)
	}
	if st.LastError != "" {
		t.Errorf("LastError = %q after success, want empty", st.LastError)
	}
	if st.LastRefreshed.IsZero() {
		t.Error("LastRefreshed not recorded")
	}
	if c.AnyRefreshing() {
		t.Error("AnyRefreshing = true after completion")
	}
}

func TestCompleteWithError(t *testing.T) {
	c := NewCoordinator()

	c.StartRefresh(SourceIndicators)
	c.CompleteRefresh(SourceIndicators, errors.New("backend timeout"))

	st := c.States()[SourceIndicators]
	if st.Status != StatusError {
		t.Fatalf("status = %q, want error", st.Status)
	}
	if st.LastError != "backend timeout" {
		t.Errorf("LastError = %q, want %q", st.LastError, "backend timeout")
	}

	// A new refresh clears the previous error.
	c.StartRefresh(SourceIndicators)
	if got := c.States()[SourceIndicators].LastError; got != "" {
		t.Errorf("LastError = %q after restart, want empty", got)
	}
}

func TestCountdownAndAutoRefresh(t *testing.T) {
	c := NewCoordinator()

	c.UpdateCountdown(SourceMarketStatus, 42)
	if got := c.States()[SourceMarketStatus].Countdown; got != 42 {
		t.Errorf("Countdown = %d, want 42", got)
	}
	c.UpdateCountdown(SourceMarketStatus, -5)
	if got := c.States()[SourceMarketStatus].Countdown; got != 0 {
		t.Errorf("Countdown = %d for negative input, want clamped 0", got)
	}

	if !c.AutoRefreshEnabled(SourceMarketData) {
		t.Error("auto-refresh disabled by default")
	}
	c.SetAutoRefreshEnabled(SourceMarketData, false)
	if c.AutoRefreshEnabled(SourceMarketData) {
		t.Error("auto-refresh still enabled after disable")
	}
}

func TestAnyRefreshingAcrossSources(t *testing.T) {
	c := NewCoordinator()

	c.StartRefresh(SourceMarketData)
	c.StartRefresh(SourceIndicators)
	c.CompleteRefresh(SourceMarketData, nil)

	if !c.AnyRefreshing() {
		t.Fatal("AnyRefreshing = false while indicators still refreshing")
	}
	c.CompleteRefresh(SourceIndicators, nil)
	if c.AnyRefreshing() {
		t.Fatal("AnyRefreshing = true with all sources settled")
	}
}

func TestUnknownSourceRegisteredOnUse(t *testing.T) {
	c := NewCoordinator()
	c.StartRefresh(Source("journal"))
	if got := c.States()[Source("journal")].Status; got != StatusRefreshing {
		t.Fatalf("status = %q for ad-hoc source, want refreshing", got)
	}
}
