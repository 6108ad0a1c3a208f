package logic

// Arbiter is the single owner of the operating Mode and the learning cursor.
// Every other component asks it to change state; none writes them directly.
type Arbiter struct {
	mode   Mode
	cursor int
	slots  int
}

// NewArbiter creates an Arbiter in AUTO mode for a learning sequence of n slots.
func NewArbiter(n int) *Arbiter {
	return &Arbiter{mode: ModeAuto, slots: n}
}

// Mode returns the current mode.
func (a *Arbiter) Mode() Mode {
	return a.mode
}

// Cursor returns the index of the slot the next accepted capture is stored in.
func (a *Arbiter) Cursor() int {
	return a.cursor
}

// Toggle flips the mode in response to the physical input.
// Leaving LEARN mid-pass discards the progress.
func (a *Arbiter) Toggle() Transition {
	return a.transition(a.mode.Other(), ReasonToggle)
}

// SetMode applies an explicit mode command. ok is false when already in m,
// in which case nothing changes (the cursor is kept).
func (a *Arbiter) SetMode(m Mode) (t Transition, ok bool) {
	if m == a.mode {
		return Transition{}, false
	}
	return a.transition(m, ReasonCommand), true
}

// Advance moves the cursor past the slot that was just stored. When the pass
// is complete it switches to AUTO and returns the transition.
func (a *Arbiter) Advance() (t Transition, complete bool) {
	if a.mode != ModeLearn {
		return Transition{}, false
	}
	a.cursor++
	if a.cursor < a.slots {
		return Transition{}, false
	}
	t = a.transition(ModeAuto, ReasonComplete)
	t.Discarded = 0
	return t, true
}

func (a *Arbiter) transition(to Mode, reason Reason) Transition {
	t := Transition{From: a.mode, To: to, Reason: reason}
	if a.mode == ModeLearn {
		t.Discarded = a.cursor
	}
	a.mode = to
	// Entering AUTO always restarts the sequence; LEARN never resumes a partial pass.
	a.cursor = 0
	return t
}
