package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sweeney/ac-controller/internal/controller"
	"github.com/sweeney/ac-controller/internal/gpio"
	"github.com/sweeney/ac-controller/internal/inbox"
	"github.com/sweeney/ac-controller/internal/ir"
	"github.com/sweeney/ac-controller/internal/logger"
	"github.com/sweeney/ac-controller/internal/logic"
	"github.com/sweeney/ac-controller/internal/mqtt"
	"github.com/sweeney/ac-controller/internal/sensor"
	"github.com/sweeney/ac-controller/internal/signal"
	"github.com/sweeney/ac-controller/internal/status"
	"github.com/sweeney/ac-controller/internal/store"
	"github.com/sweeney/ac-controller/internal/web"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	cycle    = 10 * time.Millisecond
	slotSize = 400
)

var (
	startTime = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	slotNames = []string{"cool", "fan", "off"}
)

type system struct {
	ctrl    *controller.Controller
	store   *store.Store
	path    string
	rx      *ir.FakeReceiver
	tx      *ir.FakeTransmitter
	button  *gpio.FakeReader
	inbox   *inbox.Inbox
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
	now     time.Time
}

// newSystem wires a controller to a file-backed store and fakes for every device.
func newSystem(t *testing.T, path string, button []bool, samples ...sensor.Sample) *system {
	t.Helper()
	codec, err := signal.NewCodec(signal.LayoutRaw, "NEC", slotSize)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	region, err := store.OpenRegion(path, len(slotNames), slotSize)
	if err != nil {
		t.Fatalf("open region: %v", err)
	}
	st, err := store.New(slotNames, codec, region)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	s := &system{
		store:   st,
		path:    path,
		rx:      ir.NewFakeReceiver(),
		tx:      ir.NewFakeTransmitter(),
		button:  gpio.NewFakeReader(button...),
		inbox:   inbox.New(8),
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(startTime, status.Config{DeviceID: "ac1"}),
		now:     startTime,
	}
	s.ctrl, err = controller.New(controller.Config{
		Debounce:       50 * time.Millisecond,
		ActiveEdge:     logic.EdgeFalling,
		Thresholds:     logic.Thresholds{High: 27, Low: 23},
		Interval:       5 * time.Second,
		ActivateSlot:   "cool",
		DeactivateSlot: "off",
		CarrierHz:      38000,
	}, controller.Deps{
		Store:       st,
		Receiver:    s.rx,
		Transmitter: s.tx,
		Sensor:      sensor.NewFakeReader(samples...),
		Button:      s.button,
		Inbox:       s.inbox,
		Publisher:   s.pub,
		Tracker:     s.tracker,
		Log:         logger.Nop(),
	})
	if err != nil {
		t.Fatalf("controller: %v", err)
	}
	s.ctrl.Start(testContext(t), s.now)
	return s
}

// run advances the simulated clock by n cycles.
func (s *system) run(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		s.now = s.now.Add(cycle)
		s.ctrl.Cycle(testContext(t), s.now)
	}
}

// testContext mirrors testing.T.Context (Go 1.24+): the context is
// cancelled when the test finishes.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

func frame(seed uint16) []uint16 {
	return []uint16{9000 + seed, 4500, 560, 560, 560, 1690, 560}
}

// press returns button levels for one press: idle, held for 100ms, released.
func press() []bool {
	levels := []bool{true, true}
	for i := 0; i < 10; i++ {
		levels = append(levels, false)
	}
	return append(levels, true)
}

func containsLog(logs []string, want string) bool {
	for _, l := range logs {
		if l == want {
			return true
		}
	}
	return false
}

// TestIntegrationLearnThenControl walks the button-driven learning pass and
// the policy replay that follows it, then reopens the store from disk.
func TestIntegrationLearnThenControl(t *testing.T) {
	path := filepath.Join(t.TempDir(), "slots.bin")
	s := newSystem(t, path, press(), sensor.Sample{Temp: 28.4, Hum: 41})
	for i := range slotNames {
		s.rx.Push(ir.Capture{Decoded: true, Signal: signal.RawPulseTrain{Durations: frame(uint16(i))}})
	}

	// 6s of cycles: the press, three captures and at least one sample after
	// the learning pass.
	s.run(t, 600)

	if got := s.ctrl.Mode(); got != logic.ModeAuto {
		t.Fatalf("mode after pass: got %s, want AUTO", got)
	}
	for _, want := range []string{
		controller.StartupMessage,
		"Switched to LEARNING Mode",
		"Received IR signal 1. Saving...",
		"Saved 7 values @cool",
		"Received IR signal 3. Saving...",
		"All signals saved. Switching to AUTO.",
		"Temp: 28.4C, Hum: 41.0%",
		"Sending COOL signal.",
	} {
		if !containsLog(s.pub.Logs, want) {
			t.Errorf("missing log %q in %q", want, s.pub.Logs)
		}
	}

	if len(s.tx.Sent) == 0 {
		t.Fatal("expected the cool signal to be transmitted")
	}
	last := s.tx.Sent[len(s.tx.Sent)-1]
	if len(last.Raw) != len(frame(0)) || last.Raw[0] != frame(0)[0] {
		t.Errorf("transmitted %v, want cool frame %v", last.Raw, frame(0))
	}
	if last.CarrierHz != 38000 {
		t.Errorf("carrier: got %d, want 38000", last.CarrierHz)
	}

	snap := s.tracker.Snapshot()
	if snap.Counts.Captures != 3 {
		t.Errorf("captures: got %d, want 3", snap.Counts.Captures)
	}
	for _, name := range slotNames {
		if !snap.Learned[name] {
			t.Errorf("slot %s not marked learned", name)
		}
	}

	// A fresh store over the same file sees every learned signal.
	if err := s.store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	reopened := newSystem(t, path, []bool{true})
	for i, name := range slotNames {
		sig, err := reopened.store.Get(name)
		if err != nil {
			t.Fatalf("get %s: %v", name, err)
		}
		raw, ok := sig.(signal.RawPulseTrain)
		if !ok || raw.Durations[0] != frame(uint16(i))[0] {
			t.Errorf("slot %s: got %v", name, sig)
		}
	}
}

// TestIntegrationHTTPCommand posts a command through the web API and checks
// that the next cycle applies it and the status endpoint reports it.
func TestIntegrationHTTPCommand(t *testing.T) {
	s := newSystem(t, filepath.Join(t.TempDir(), "slots.bin"), []bool{true}, sensor.Sample{Temp: 25, Hum: 50})
	router := web.NewHandler(s.tracker, s.inbox, nil, logger.Nop()).InitRoutes()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/command", bytes.NewBufferString(`{"command":" Learn "}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusAccepted {
		t.Fatalf("POST command: got %d, want 202 (%s)", w.Code, w.Body.String())
	}
	if s.ctrl.Mode() != logic.ModeAuto {
		t.Fatal("command must not apply before the next cycle")
	}

	s.run(t, 1)

	if s.ctrl.Mode() != logic.ModeLearn {
		t.Fatalf("mode: got %s, want LEARN", s.ctrl.Mode())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET status: got %d", w.Code)
	}
	var body status.StatusJSON
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if body.Status.Mode != "LEARN" {
		t.Errorf("status mode: got %q, want LEARN", body.Status.Mode)
	}
	if body.Status.Counts.Commands != 1 {
		t.Errorf("commands: got %d, want 1", body.Status.Counts.Commands)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/events?limit=5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET events: got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Switched to LEARNING Mode") {
		t.Errorf("events missing mode change: %s", w.Body.String())
	}
}

// TestIntegrationMQTTReplay pushes a slot name as the MQTT link would and
// checks that it is replayed in AUTO without changing mode.
func TestIntegrationMQTTReplay(t *testing.T) {
	s := newSystem(t, filepath.Join(t.TempDir(), "slots.bin"), []bool{true}, sensor.Sample{Temp: 25, Hum: 50})
	if err := s.store.Put("fan", signal.RawPulseTrain{Durations: frame(7)}); err != nil {
		t.Fatalf("put: %v", err)
	}

	s.inbox.Push(inbox.SourceMQTT, []byte("FAN"))
	s.run(t, 1)

	if len(s.tx.Sent) != 1 {
		t.Fatalf("sent: got %d, want 1", len(s.tx.Sent))
	}
	if s.tx.Sent[0].Raw[0] != frame(7)[0] {
		t.Errorf("sent %v, want fan frame", s.tx.Sent[0].Raw)
	}
	if s.ctrl.Mode() != logic.ModeAuto {
		t.Errorf("mode changed to %s", s.ctrl.Mode())
	}
	if !containsLog(s.pub.Logs, "FAN") {
		t.Errorf("command echo missing: %q", s.pub.Logs)
	}
}

// TestIntegrationStatusPayloadFormat checks the retained status document.
func TestIntegrationStatusPayloadFormat(t *testing.T) {
	s := newSystem(t, filepath.Join(t.TempDir(), "slots.bin"), []bool{true}, sensor.Sample{Temp: 24.96, Hum: 55.04})
	s.run(t, 1)

	if len(s.pub.Statuses) != 1 {
		t.Fatalf("statuses: got %d, want 1", len(s.pub.Statuses))
	}
	want := `{"temp":25.0,"hum":55.0}`
	if got := string(s.pub.Statuses[0]); got != want {
		t.Errorf("status payload: got %s, want %s", got, want)
	}
	// 24.96 is in band: nothing is sent.
	if len(s.tx.Sent) != 0 {
		t.Errorf("in-band reading transmitted %d signal(s)", len(s.tx.Sent))
	}
}
