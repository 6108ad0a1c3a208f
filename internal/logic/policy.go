package logic

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Thresholds are the temperature bounds for automatic control.
type Thresholds struct {
	High float64
	Low  float64
}

// Validate checks High > Low.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.High) || math.IsNaN(t.Low) {
		return errors.New("thresholds must be numbers")
	}
	if !(t.High > t.Low) {
		return fmt.Errorf("temp_high (%.1f) must be greater than temp_low (%.1f)", t.High, t.Low)
	}
	return nil
}

// Action is the policy's decision for one sampling interval.
type Action string

const (
	ActionNone       Action = "NONE"
	ActionActivate   Action = "ACTIVATE"
	ActionDeactivate Action = "DEACTIVATE"
	// ActionSkip means the reading was invalid and no decision was made.
	ActionSkip Action = "SKIP"
)

// Policy is the threshold climate policy. It is a level trigger: every interval
// is evaluated on its own, so a reading that stays out of band re-asserts the
// same action each time.
type Policy struct {
	thresholds Thresholds
	interval   time.Duration
	lastRun    time.Time
	ran        bool
}

// NewPolicy creates a policy that samples at most once per interval.
// The first call to Due returns true.
func NewPolicy(t Thresholds, interval time.Duration) (*Policy, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if interval <= 0 {
		return nil, fmt.Errorf("policy interval must be positive, got %v", interval)
	}
	return &Policy{thresholds: t, interval: interval}, nil
}

// Thresholds returns the configured bounds.
func (p *Policy) Thresholds() Thresholds {
	return p.thresholds
}

// Due reports whether a sample should be taken at now and, if so, starts the
// next hold-off period.
func (p *Policy) Due(now time.Time) bool {
	if p.ran && now.Sub(p.lastRun) < p.interval {
		return false
	}
	p.ran = true
	p.lastRun = now
	return true
}

// Decide applies the threshold rule to one reading.
func (p *Policy) Decide(r Reading) Action {
	if !r.Valid {
		return ActionSkip
	}
	switch {
	case r.Temperature >= p.thresholds.High:
		return ActionActivate
	case r.Temperature <= p.thresholds.Low:
		return ActionDeactivate
	}
	return ActionNone
}
