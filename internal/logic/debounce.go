package logic

import "time"

// Debouncer turns a noisy digital input into clean toggle requests.
// It never sleeps: each Sample call is a time-gated poll.
type Debouncer struct {
	window     time.Duration
	edge       Edge
	lastRaw    bool
	lastStable bool
	lastChange time.Time
	presses    int
}

// NewDebouncer creates a debouncer that assumes the input starts at its idle level.
func NewDebouncer(window time.Duration, edge Edge) *Debouncer {
	idle := edge.idle()
	return &Debouncer{
		window:     window,
		edge:       edge,
		lastRaw:    idle,
		lastStable: idle,
	}
}

// Sample feeds one raw reading taken at now. It returns true exactly once per
// stable transition in the active direction.
func (d *Debouncer) Sample(raw bool, now time.Time) bool {
	if raw != d.lastRaw {
		d.lastRaw = raw
		d.lastChange = now
	}

	if now.Sub(d.lastChange) <= d.window || raw == d.lastStable {
		return false
	}

	d.lastStable = raw
	if raw == d.edge.idle() {
		// Release.
		return false
	}
	d.presses++
	return true
}

// Stable returns the last committed (debounced) level.
func (d *Debouncer) Stable() bool {
	return d.lastStable
}

// Presses returns how many toggle requests have been emitted.
func (d *Debouncer) Presses() int {
	return d.presses
}
