package marketdata

import (
	"testing"
	"time"

	"tradedesk/internal/domain"
	"tradedesk/internal/util"
)

func newTestService(src BarSource) *Service {
	return NewService(src, util.NewLogger("error", "text"))
}

func TestSnapshotStableBetweenMutations(t *testing.T) {
	s := newTestService(nil)

	s1 := s.Snapshot()
	s2 := s.Snapshot()
	if s1 != s2 {
		t.Fatal("Snapshot allocated a new object without a mutation")
	}

	key := Key{Symbol: domain.SymbolDJI, Timeframe: domain.TF1Day}
	s.SetEntry(key, &Entry{Provider: "test", LastUpdated: time.Now()})

	s3 := s.Snapshot()
	if s3 == s1 {
		t.Fatal("Snapshot did not change after SetEntry")
	}
	if s3.Version <= s1.Version {
		t.Errorf("Version = %d after mutation, want > %d", s3.Version, s1.Version)
	}
	if s.Snapshot() != s3 {
		t.Fatal("Snapshot unstable between mutations")
	}
	if got := s3.Entries[key]; got == nil || got.Provider != "test" {
		t.Errorf("snapshot entry = %+v, want provider test", got)
	}
}

func TestEmptySnapshotIsStatic(t *testing.T) {
	if EmptySnapshot() != EmptySnapshot() {
		t.Fatal("EmptySnapshot not referentially stable")
	}
	if len(EmptySnapshot().Entries) != 0 {
		t.Fatal("EmptySnapshot has entries")
	}
	if EmptySnapshot().BackendDown {
		t.Fatal("EmptySnapshot reports backend down")
	}
}

func TestSubscribeNotifyOrder(t *testing.T) {
	s := newTestService(nil)

	var order []int
	s.Subscribe(func() { order = append(order, 1) })
	s.Subscribe(func() { order = append(order, 2) })
	s.Subscribe(func() { order = append(order, 3) })

	s.SetEntry(Key{Symbol: domain.SymbolSPX, Timeframe: domain.TF1Hour}, &Entry{})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("notification order = %v, want [1 2 3]", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	s := newTestService(nil)

	calls := 0
	unsub := s.Subscribe(func() { calls++ })

	key := Key{Symbol: domain.SymbolDJI, Timeframe: domain.TF1Min}
	s.SetEntry(key, &Entry{})
	if calls != 1 {
		t.Fatalf("calls = %d after first SetEntry, want 1", calls)
	}

	unsub()
	s.SetEntry(key, &Entry{})
	if calls != 1 {
		t.Fatalf("calls = %d after unsubscribe, want 1", calls)
	}

	// Unsubscribing twice must be harmless.
	unsub()
}

func TestEntryNilWhenNeverFetched(t *testing.T) {
	s := newTestService(nil)
	if e := s.Entry(Key{Symbol: domain.SymbolVIX, Timeframe: domain.TF1Mon}); e != nil {
		t.Fatalf("Entry = %+v for never-fetched key, want nil", e)
	}
}

func TestNormalizeBars(t *testing.T) {
	t0 := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	bars := []domain.Bar{
		{Time: t0.Add(2 * time.Hour), Close: 3},
		{Time: t0, Close: 1},
		{Time: t0.Add(time.Hour), Close: 2},
		{Time: t0.Add(time.Hour), Close: 2.5}, // duplicate timestamp, later wins
	}
	got := normalizeBars(bars)
	if len(got) != 3 {
		t.Fatalf("normalizeBars returned %d bars, want 3", len(got))
	}
	if got[0].Close != 1 || got[1].Close != 2.5 || got[2].Close != 3 {
		t.Errorf("normalizeBars order = %v %v %v, want 1 2.5 3", got[0].Close, got[1].Close, got[2].Close)
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].Time.Before(got[i].Time) {
			t.Fatalf("bar %d not strictly after bar %d", i, i-1)
		}
	}
}
