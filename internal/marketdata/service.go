package marketdata

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradedesk/internal/domain"
	"tradedesk/internal/upstream"
)

// Snapshot is an immutable view of the whole cache. The Service hands out the
// same *Snapshot pointer until a mutation occurs, so consumers can compare
// pointers (or Version) to decide whether anything changed.
type Snapshot struct {
	// Entries maps each fetched key to its cached entry. Both the map and
	// the entries are read-only.
	Entries map[Key]*Entry
	// BackendDown is true after any fetch was classified as a connection
	// failure, until the next successful fetch on any key.
	BackendDown bool
	// Version increments on every mutation.
	Version uint64
}

var emptySnapshot = &Snapshot{Entries: map[Key]*Entry{}}

// EmptySnapshot returns the static no-data snapshot, for consumers that need
// a stable default before any service exists (for example a server-rendered
// page with no cache process attached).
func EmptySnapshot() *Snapshot {
	return emptySnapshot
}

// BarSource fetches a series from the remote analytics proxy. Implemented by
// *upstream.Client; test doubles substitute it.
type BarSource interface {
	GetMarketData(ctx context.Context, symbol domain.Symbol, timeframe domain.Timeframe, periods int, forceRefresh bool) (*upstream.MarketDataResponse, error)
}

// subscriber pairs a registration ID with a listener so notifications run in
// registration order and unsubscription is O(1) by ID lookup.
type subscriber struct {
	id int
	fn func()
}

// inflight is the shared handle for one in-flight fetch. Concurrent callers
// for the same key block on done and read the shared result.
type inflight struct {
	done  chan struct{}
	entry *Entry
	err   error
}

// Service owns the market-data cache: the entry map, the pending-request map
// used for request coalescing, the backend-availability flag, and the
// subscriber registry. All mutation goes through Service methods; reads get
// copy-on-write snapshots. Safe for concurrent use.
type Service struct {
	source BarSource
	log    *slog.Logger
	now    func() time.Time // test seam

	mu       sync.Mutex
	entries  map[Key]*Entry
	pending  map[Key]*inflight
	down     bool
	version  uint64
	snapshot *Snapshot

	subMu  sync.Mutex
	subs   []subscriber
	nextID int
}

// NewService creates a cache service backed by the given source. Construct
// one per process at startup and inject it into consumers.
func NewService(source BarSource, log *slog.Logger) *Service {
	return &Service{
		source:   source,
		log:      log,
		now:      time.Now,
		entries:  make(map[Key]*Entry),
		pending:  make(map[Key]*inflight),
		snapshot: emptySnapshot,
	}
}

// Entry returns the current cached entry for key, or nil if the key was never
// fetched. Non-blocking.
func (s *Service) Entry(key Key) *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries[key]
}

// SetEntry overwrites the entry for key and notifies all subscribers.
func (s *Service) SetEntry(key Key, entry *Entry) {
	s.mu.Lock()
	s.entries[key] = entry
	s.rebuildSnapshotLocked()
	s.mu.Unlock()
	s.notify()
}

// BackendDown reports whether the backend is currently considered
// unreachable.
func (s *Service) BackendDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.down
}

// Snapshot returns the current cache snapshot. The returned pointer is stable
// between mutations: a fresh object is allocated only when an entry or the
// backend flag changes.
func (s *Service) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Subscribe registers a listener invoked synchronously after every mutation
// (entry write or backend-flag change), in registration order. The returned
// function unsubscribes; it is safe to call more than once.
func (s *Service) Subscribe(fn func()) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		for i := range s.subs {
			if s.subs[i].id == id {
				s.subs = append(s.subs[:i], s.subs[i+1:]...)
				break
			}
		}
		s.subMu.Unlock()
	}
}

// setEntryAndFlag writes an entry and the backend flag in one mutation so
// subscribers see a single consistent change.
func (s *Service) setEntryAndFlag(key Key, entry *Entry, down bool) {
	s.mu.Lock()
	s.entries[key] = entry
	s.down = down
	s.rebuildSnapshotLocked()
	s.mu.Unlock()
	s.notify()
}

// rebuildSnapshotLocked allocates a fresh snapshot from current state.
// Callers must hold mu.
func (s *Service) rebuildSnapshotLocked() {
	s.version++
	entries := make(map[Key]*Entry, len(s.entries))
	for k, e := range s.entries {
		entries[k] = e
	}
	s.snapshot = &Snapshot{
		Entries:     entries,
		BackendDown: s.down,
		Version:     s.version,
	}
}

// notify invokes all current listeners in registration order. Listeners run
// outside the state lock so they may read snapshots freely.
func (s *Service) notify() {
	s.subMu.Lock()
	listeners := make([]func(), len(s.subs))
	for i := range s.subs {
		listeners[i] = s.subs[i].fn
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
