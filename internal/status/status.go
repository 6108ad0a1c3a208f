// Package status provides a thread-safe status tracker for the controller.
// The control loop writes it; HTTP handlers read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/ac-controller/internal/logic"
	"github.com/sweeney/ac-controller/internal/store"
)

// NetworkInfo contains network state as provided by the environment.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains controller configuration for display.
type Config struct {
	DeviceID   string
	CycleMs    int64
	DebounceMs int64
	IntervalMs int64
	Broker     string
	HTTPAddr   string
	Layout     string
	Thresholds logic.Thresholds
}

// Counts are running totals of control events since start.
type Counts struct {
	Captures       int
	DecodeFailures int
	Replays        int
	EmptySlots     int
	SensorFailures int
	Commands       int
	Unrecognized   int
	Toggles        int
}

// Snapshot is a point-in-time view of controller state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Mode        logic.Mode
	Cursor      int
	Slots       []string
	Learned     map[string]bool
	LastReading logic.Reading
	Counts      Counts
	StartTime   time.Time
	Now         time.Time
	Link        string
	Network     *NetworkInfo
	Config      Config
}

// Uptime returns the duration since the controller started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// DefaultEventHistory is how many recent events the tracker keeps.
const DefaultEventHistory = 50

// Tracker holds mutable controller state behind an RWMutex.
type Tracker struct {
	mu     sync.RWMutex
	snap   Snapshot
	events []store.JournalEntry
	limit  int
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			Mode:      logic.ModeAuto,
			StartTime: startTime,
			Config:    cfg,
			Link:      "disconnected",
		},
		limit: DefaultEventHistory,
	}
}

// Update sets the arbiter state and counters. Called once per control cycle.
func (t *Tracker) Update(mode logic.Mode, cursor int, counts Counts) {
	t.mu.Lock()
	t.snap.Mode = mode
	t.snap.Cursor = cursor
	t.snap.Counts = counts
	t.mu.Unlock()
}

// SetSlots records the slot order and which slots hold a signal.
func (t *Tracker) SetSlots(slots []string, learned map[string]bool) {
	cp := make(map[string]bool, len(learned))
	for k, v := range learned {
		cp[k] = v
	}
	t.mu.Lock()
	t.snap.Slots = append([]string(nil), slots...)
	t.snap.Learned = cp
	t.mu.Unlock()
}

// SetLearned marks one slot as holding a signal.
func (t *Tracker) SetLearned(slot string) {
	t.mu.Lock()
	learned := make(map[string]bool, len(t.snap.Learned)+1)
	for k, v := range t.snap.Learned {
		learned[k] = v
	}
	learned[slot] = true
	t.snap.Learned = learned
	t.mu.Unlock()
}

// SetReading records the most recent sensor sample.
func (t *Tracker) SetReading(r logic.Reading) {
	t.mu.Lock()
	t.snap.LastReading = r
	t.mu.Unlock()
}

// SetLink sets the broker link state.
func (t *Tracker) SetLink(state string) {
	t.mu.Lock()
	t.snap.Link = state
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Record keeps e in the in-memory event history, dropping the oldest.
func (t *Tracker) Record(e store.JournalEntry) {
	t.mu.Lock()
	t.events = append(t.events, e)
	if len(t.events) > t.limit {
		t.events = append([]store.JournalEntry(nil), t.events[len(t.events)-t.limit:]...)
	}
	t.mu.Unlock()
}

// Events returns up to limit recent events, newest first.
func (t *Tracker) Events(limit int) []store.JournalEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if limit <= 0 || limit > len(t.events) {
		limit = len(t.events)
	}
	out := make([]store.JournalEntry, 0, limit)
	for i := len(t.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, t.events[i])
	}
	return out
}

// Snapshot returns a point-in-time copy of the controller state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
