// Package logic contains the pure control state of the appliance controller.
// This package has NO external dependencies (no GPIO, MQTT, IR, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Mode is the controller's operating mode.
type Mode string

const (
	ModeAuto  Mode = "AUTO"
	ModeLearn Mode = "LEARN"
)

// ParseMode converts "auto"/"learn" (any case) to a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case ModeAuto:
		return ModeAuto, nil
	case ModeLearn:
		return ModeLearn, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Other returns the mode a toggle would switch to.
func (m Mode) Other() Mode {
	if m == ModeLearn {
		return ModeAuto
	}
	return ModeLearn
}

// Edge selects which debounced transition of the physical input counts as a press.
type Edge string

const (
	// EdgeFalling fires on high -> low (pull-up button, pressed = low).
	EdgeFalling Edge = "falling"
	// EdgeRising fires on low -> high.
	EdgeRising Edge = "rising"
)

// ParseEdge converts a config string to an Edge.
func ParseEdge(s string) (Edge, error) {
	switch Edge(strings.ToLower(strings.TrimSpace(s))) {
	case EdgeFalling:
		return EdgeFalling, nil
	case EdgeRising:
		return EdgeRising, nil
	}
	return "", fmt.Errorf("unknown edge %q (want falling or rising)", s)
}

// idle returns the raw level of the input when it is not pressed.
func (e Edge) idle() bool {
	return e != EdgeRising
}

// Reason says what caused a mode transition.
type Reason string

const (
	ReasonToggle   Reason = "toggle"
	ReasonCommand  Reason = "command"
	ReasonComplete Reason = "learning complete"
)

// Transition describes a mode change applied by the Arbiter.
type Transition struct {
	From   Mode
	To     Mode
	Reason Reason
	// Discarded is the number of slots captured in an abandoned learning pass.
	Discarded int
}

// Reading is one temperature/humidity sample.
type Reading struct {
	Temperature float64
	Humidity    float64
	Valid       bool
	Time        time.Time
}

// NewReading builds a Reading, marking it invalid if either value is not a number.
func NewReading(temp, hum float64, at time.Time) Reading {
	return Reading{
		Temperature: temp,
		Humidity:    hum,
		Valid:       !math.IsNaN(temp) && !math.IsNaN(hum) && !math.IsInf(temp, 0) && !math.IsInf(hum, 0),
		Time:        at,
	}
}

// InvalidReading is what a failed sensor read turns into.
func InvalidReading(at time.Time) Reading {
	return Reading{Temperature: math.NaN(), Humidity: math.NaN(), Time: at}
}
