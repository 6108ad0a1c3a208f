// Package controller owns the control state of the appliance and runs one
// control cycle at a time: link poll, command drain, input poll, then exactly
// one mode step (signal capture in LEARN, threshold policy in AUTO).
//
// Controller is not safe for concurrent use. Producers on other goroutines
// reach it only through the inbox.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sweeney/ac-controller/internal/gpio"
	"github.com/sweeney/ac-controller/internal/inbox"
	"github.com/sweeney/ac-controller/internal/ir"
	"github.com/sweeney/ac-controller/internal/logger"
	"github.com/sweeney/ac-controller/internal/logic"
	"github.com/sweeney/ac-controller/internal/mqtt"
	"github.com/sweeney/ac-controller/internal/sensor"
	"github.com/sweeney/ac-controller/internal/status"
	"github.com/sweeney/ac-controller/internal/store"
)

var (
	// ErrDecodeFailure means a capture was garbled and was not stored.
	ErrDecodeFailure = errors.New("decode failure")
	// ErrSensorUnavailable means the reading for an interval was invalid.
	ErrSensorUnavailable = errors.New("sensor unavailable")
	// ErrUnrecognizedCommand means an inbound payload matched no command.
	ErrUnrecognizedCommand = errors.New("unrecognized command")
)

// StartupMessage is published once when the controller starts.
const StartupMessage = "System Initialized. Press button to enter Learning Mode."

// Link is the connectivity state machine polled at the start of each cycle.
// Poll returns the connectivity events to report.
type Link interface {
	Poll(now time.Time) []mqtt.Notice
	State() mqtt.State
}

// Journal persists diagnostic events.
type Journal interface {
	Append(ctx context.Context, e store.JournalEntry) error
}

// Config holds the control parameters.
type Config struct {
	Debounce   time.Duration
	ActiveEdge logic.Edge
	Thresholds logic.Thresholds
	// Interval is the minimum time between policy samples.
	Interval       time.Duration
	ActivateSlot   string
	DeactivateSlot string
	CarrierHz      int
	// Vocabulary maps payloads to commands; nil uses the default for the store's slots.
	Vocabulary logic.Vocabulary
}

// Deps are the collaborators. Link, Journal and Tracker are optional.
type Deps struct {
	Store       *store.Store
	Receiver    ir.Receiver
	Transmitter ir.Transmitter
	Sensor      sensor.Reader
	Button      gpio.Reader
	Inbox       *inbox.Inbox
	Publisher   mqtt.Publisher
	Link        Link
	Journal     Journal
	Tracker     *status.Tracker
	Log         *logger.Logger
}

// Controller is the single owner of Mode, the learning cursor and the store.
type Controller struct {
	cfg   Config
	slots []string

	arbiter   *logic.Arbiter
	debouncer *logic.Debouncer
	policy    *logic.Policy
	vocab     logic.Vocabulary

	store   *store.Store
	rx      ir.Receiver
	tx      ir.Transmitter
	sensor  sensor.Reader
	button  gpio.Reader
	inbox   *inbox.Inbox
	pub     mqtt.Publisher
	link    Link
	journal Journal
	tracker *status.Tracker
	log     *logger.Logger

	counts    status.Counts
	buttonErr bool
}

// New validates cfg and wires the collaborators.
func New(cfg Config, d Deps) (*Controller, error) {
	if d.Store == nil || d.Receiver == nil || d.Transmitter == nil ||
		d.Sensor == nil || d.Button == nil || d.Inbox == nil || d.Publisher == nil {
		return nil, errors.New("controller: missing collaborator")
	}
	policy, err := logic.NewPolicy(cfg.Thresholds, cfg.Interval)
	if err != nil {
		return nil, err
	}
	slots := d.Store.Slots()
	if !contains(slots, cfg.ActivateSlot) {
		return nil, fmt.Errorf("activate slot %q is not a configured slot", cfg.ActivateSlot)
	}
	if !contains(slots, cfg.DeactivateSlot) {
		return nil, fmt.Errorf("deactivate slot %q is not a configured slot", cfg.DeactivateSlot)
	}
	if cfg.ActiveEdge == "" {
		cfg.ActiveEdge = logic.EdgeFalling
	}
	if cfg.CarrierHz <= 0 {
		cfg.CarrierHz = ir.DefaultCarrierHz
	}
	vocab := cfg.Vocabulary
	if vocab == nil {
		if vocab, err = logic.NewVocabulary(slots); err != nil {
			return nil, err
		}
	}
	log := d.Log
	if log == nil {
		log = logger.Nop()
	}

	return &Controller{
		cfg:       cfg,
		slots:     slots,
		arbiter:   logic.NewArbiter(len(slots)),
		debouncer: logic.NewDebouncer(cfg.Debounce, cfg.ActiveEdge),
		policy:    policy,
		vocab:     vocab,
		store:     d.Store,
		rx:        d.Receiver,
		tx:        d.Transmitter,
		sensor:    d.Sensor,
		button:    d.Button,
		inbox:     d.Inbox,
		pub:       d.Publisher,
		link:      d.Link,
		journal:   d.Journal,
		tracker:   d.Tracker,
		log:       log,
	}, nil
}

// Mode returns the current mode.
func (c *Controller) Mode() logic.Mode {
	return c.arbiter.Mode()
}

// Cursor returns the learning cursor.
func (c *Controller) Cursor() int {
	return c.arbiter.Cursor()
}

// Counts returns the running event totals.
func (c *Controller) Counts() status.Counts {
	return c.counts
}

// Start announces the controller and seeds the status tracker.
func (c *Controller) Start(ctx context.Context, now time.Time) {
	if c.tracker != nil {
		learned := make(map[string]bool, len(c.slots))
		for _, e := range c.store.List() {
			learned[e.Slot] = e.Signal != nil
		}
		c.tracker.SetSlots(c.slots, learned)
	}
	c.log.Infow("controller started", "slots", c.slots, "mode", c.arbiter.Mode())
	c.diag(ctx, now, "startup", "", StartupMessage)
	c.sync()
}

// Stop announces a shutdown.
func (c *Controller) Stop(ctx context.Context, now time.Time, reason string) {
	c.diag(ctx, now, "shutdown", "", "Shutting down: "+reason)
	c.sync()
}

// Cycle runs one control cycle. Errors are reported as diagnostics and never
// stop the loop.
func (c *Controller) Cycle(ctx context.Context, now time.Time) {
	if c.link != nil {
		for _, n := range c.link.Poll(now) {
			c.diag(ctx, now, "link", "", n.Message)
		}
	}
	for _, msg := range c.inbox.Drain() {
		_ = c.HandleCommand(ctx, now, msg.Payload)
	}
	c.pollInput(ctx, now)
	_ = c.Step(ctx, now)
	c.sync()
}

func (c *Controller) pollInput(ctx context.Context, now time.Time) {
	raw, err := c.button.Read()
	if err != nil {
		if !c.buttonErr {
			c.log.Warnw("input read failed", "error", err)
			c.buttonErr = true
		}
		return
	}
	c.buttonErr = false
	if c.debouncer.Sample(raw, now) {
		c.Toggle(ctx, now)
	}
}

// Toggle flips the mode as the physical input does.
func (c *Controller) Toggle(ctx context.Context, now time.Time) {
	c.counts.Toggles++
	c.announce(ctx, now, c.arbiter.Toggle())
}

// HandleCommand echoes payload and applies the command it names.
func (c *Controller) HandleCommand(ctx context.Context, now time.Time, payload []byte) error {
	payload = logic.Truncate(payload)
	c.counts.Commands++
	c.diag(ctx, now, "command", "", string(payload))

	cmd := c.vocab.Parse(payload)
	switch cmd.Op {
	case logic.OpSetMode:
		t, changed := c.arbiter.SetMode(cmd.Mode)
		if !changed {
			c.log.Debugw("mode unchanged", "mode", cmd.Mode)
			return nil
		}
		c.announce(ctx, now, t)
		return nil
	case logic.OpReplay:
		return c.Replay(ctx, now, cmd.Slot)
	default:
		c.counts.Unrecognized++
		c.diag(ctx, now, "unrecognized", "", fmt.Sprintf("Unrecognized command: %q", cmd.Text))
		return fmt.Errorf("%w: %q", ErrUnrecognizedCommand, cmd.Text)
	}
}

func (c *Controller) announce(ctx context.Context, now time.Time, t logic.Transition) {
	msg := "Switched to LEARNING Mode"
	if t.To == logic.ModeAuto {
		msg = "Switched to AUTO CONTROL Mode"
	}
	if t.Discarded > 0 {
		msg = fmt.Sprintf("%s (learning pass abandoned after %d slot(s))", msg, t.Discarded)
	}
	c.log.Infow("mode transition", "from", t.From, "to", t.To, "reason", t.Reason, "discarded", t.Discarded)
	c.diag(ctx, now, "mode", "", msg)
}

// Step runs exactly one mode-appropriate step.
func (c *Controller) Step(ctx context.Context, now time.Time) error {
	if c.arbiter.Mode() == logic.ModeLearn {
		return c.captureStep(ctx, now)
	}
	return c.policyStep(ctx, now)
}

func (c *Controller) sync() {
	if c.tracker == nil {
		return
	}
	c.tracker.Update(c.arbiter.Mode(), c.arbiter.Cursor(), c.counts)
	if c.link != nil {
		c.tracker.SetLink(c.link.State().String())
	}
}

// diag reports one diagnostic event on every sink.
func (c *Controller) diag(ctx context.Context, now time.Time, kind, slot, msg string) {
	c.log.Infow(msg, "kind", kind, "slot", slot)
	if err := c.pub.PublishLog(msg); err != nil {
		c.log.Warnw("publish log failed", "error", err)
	}
	e := store.JournalEntry{OccurredAt: now.UTC(), Kind: kind, Slot: slot, Message: msg}
	if c.tracker != nil {
		c.tracker.Record(e)
	}
	if c.journal != nil {
		if err := c.journal.Append(ctx, e); err != nil {
			c.log.Warnw("journal append failed", "error", err)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
