// Package refresh tracks per-source refresh status for the dashboard: which
// data sources are currently refreshing, their countdowns, and whether
// auto-refresh is enabled. Pure bookkeeping; callers wrap their own fetches
// with StartRefresh/CompleteRefresh.
package refresh

import (
	"sync"
	"time"
)

// Source names a refreshable data source feeding a dashboard panel.
type Source string

// The fixed set of refreshable sources.
const (
	SourceMarketData   Source = "market-data"
	SourceIndicators   Source = "indicators"
	SourceMarketStatus Source = "market-status"
)

// Sources lists all known sources.
var Sources = []Source{SourceMarketData, SourceIndicators, SourceMarketStatus}

// Status is the lifecycle state of one source.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusRefreshing Status = "refreshing"
	StatusSuccess    Status = "success"
	StatusError      Status = "error"
)

// State is the externally visible state of one source.
type State struct {
	Status        Status    `json:"status"`
	LastError     string    `json:"last_error,omitempty"`
	LastRefreshed time.Time `json:"last_refreshed,omitzero"`
	Countdown     int       `json:"countdown"`
	AutoRefresh   bool      `json:"auto_refresh"`
}

// Coordinator holds refresh state for all sources. Safe for concurrent use.
type Coordinator struct {
	mu     sync.Mutex
	states map[Source]*State
	now    func() time.Time
}

// NewCoordinator creates a coordinator with every known source idle and
// auto-refresh enabled.
func NewCoordinator() *Coordinator {
	states := make(map[Source]*State, len(Sources))
	for _, src := range Sources {
		states[src] = &State{Status: StatusIdle, AutoRefresh: true}
	}
	return &Coordinator{states: states, now: time.Now}
}

// StartRefresh marks a source as refreshing. Unknown sources are registered
// on first use.
func (c *Coordinator) StartRefresh(src Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stateLocked(src)
	st.Status = StatusRefreshing
	st.LastError = ""
}

// CompleteRefresh marks a refresh as finished. A nil err means success; a
// non-nil err records the message and the error state. Success and error are
// rest states until the next StartRefresh.
func (c *Coordinator) CompleteRefresh(src Source, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stateLocked(src)
	st.LastRefreshed = c.now()
	if err != nil {
		st.Status = StatusError
		st.LastError = err.Error()
		return
	}
	st.Status = StatusSuccess
	st.LastError = ""
}

// UpdateCountdown sets the seconds remaining until the next auto-refresh.
func (c *Coordinator) UpdateCountdown(src Source, seconds int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seconds < 0 {
		seconds = 0
	}
	c.stateLocked(src).Countdown = seconds
}

// SetAutoRefreshEnabled toggles auto-refresh for a source.
func (c *Coordinator) SetAutoRefreshEnabled(src Source, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stateLocked(src).AutoRefresh = enabled
}

// AutoRefreshEnabled reports whether auto-refresh is on for a source.
func (c *Coordinator) AutoRefreshEnabled(src Source) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked(src).AutoRefresh
}

// AnyRefreshing reports whether any source is currently refreshing.
func (c *Coordinator) AnyRefreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.states {
		if st.Status == StatusRefreshing {
			return true
		}
	}
	return false
}

// States returns a copy of all source states.
func (c *Coordinator) States() map[Source]State {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[Source]State, len(c.states))
	for src, st := range c.states {
		out[src] = *st
	}
	return out
}

func (c *Coordinator) stateLocked(src Source) *State {
	st, ok := c.states[src]
	if !ok {
		st = &State{Status: StatusIdle, AutoRefresh: true}
		c.states[src] = st
	}
	return st
}
