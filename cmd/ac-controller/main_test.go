package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gopkg.in/yaml.v3"

	"github.com/sweeney/ac-controller/internal/config"
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
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// TestEnvVarNames verifies the env var constants match what pi-helper writes
// to /run/pi-helper.env. If pi-helper changes its var names, this test fails
// and we update the constants, not the other way around.
func TestEnvVarNames(t *testing.T) {
	want := map[string]string{
		"NETWORK_TYPE":        envNetworkType,
		"NETWORK_IP":          envNetworkIP,
		"NETWORK_STATUS":      envNetworkStatus,
		"NETWORK_GATEWAY":     envNetworkGateway,
		"NETWORK_WIFI_STATUS": envNetworkWifiStatus,
		"NETWORK_WIFI_SSID":   envNetworkWifiSSID,
	}
	for canonical, got := range want {
		if got != canonical {
			t.Errorf("env var constant: got %q, want %q", got, canonical)
		}
	}
}

func TestReadNetworkInfoAllSet(t *testing.T) {
	t.Setenv(envNetworkType, "wifi")
	t.Setenv(envNetworkIP, "192.168.1.100")
	t.Setenv(envNetworkStatus, "connected")
	t.Setenv(envNetworkGateway, "192.168.1.1")
	t.Setenv(envNetworkWifiStatus, "connected")
	t.Setenv(envNetworkWifiSSID, "MyNetwork")

	info := readNetworkInfo()
	require.NotNil(t, info)
	assert.Equal(t, status.NetworkInfo{
		Type:       "wifi",
		IP:         "192.168.1.100",
		Status:     "connected",
		Gateway:    "192.168.1.1",
		WifiStatus: "connected",
		SSID:       "MyNetwork",
	}, *info)
}

func TestReadNetworkInfoNoneSet(t *testing.T) {
	t.Setenv(envNetworkStatus, "")
	assert.Nil(t, readNetworkInfo(), "nil when NETWORK_STATUS is unset")
}

func TestReadNetworkInfoPartial(t *testing.T) {
	t.Setenv(envNetworkStatus, "connected")

	info := readNetworkInfo()
	require.NotNil(t, info)
	assert.Equal(t, status.NetworkInfo{Status: "connected"}, *info)
}

// --- runLoop tests ---

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Only runLoop's goroutine calls it.
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

var t0 = time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)

type rig struct {
	ctrl    *controller.Controller
	store   *store.Store
	tx      *ir.FakeTransmitter
	rx      *ir.FakeReceiver
	button  *gpio.FakeReader
	inbox   *inbox.Inbox
	pub     *mqtt.FakePublisher
	tracker *status.Tracker
}

func newRig(t *testing.T, samples ...sensor.Sample) *rig {
	t.Helper()
	slots := []string{"cool", "fan", "off"}
	codec, err := signal.NewCodec(signal.LayoutRaw, "NEC", 400)
	require.NoError(t, err)
	st, err := store.New(slots, codec, store.NewMemRegion(len(slots), 400))
	require.NoError(t, err)

	r := &rig{
		store:   st,
		tx:      ir.NewFakeTransmitter(),
		rx:      ir.NewFakeReceiver(),
		button:  gpio.NewFakeReader(true),
		inbox:   inbox.New(8),
		pub:     mqtt.NewFakePublisher(),
		tracker: status.NewTracker(t0, status.Config{}),
	}
	r.ctrl, err = controller.New(controller.Config{
		Debounce:       50 * time.Millisecond,
		ActiveEdge:     logic.EdgeFalling,
		Thresholds:     logic.Thresholds{High: 27, Low: 23},
		Interval:       5 * time.Second,
		ActivateSlot:   "cool",
		DeactivateSlot: "off",
		CarrierHz:      38000,
	}, controller.Deps{
		Store:       st,
		Receiver:    r.rx,
		Transmitter: r.tx,
		Sensor:      sensor.NewFakeReader(samples...),
		Button:      r.button,
		Inbox:       r.inbox,
		Publisher:   r.pub,
		Tracker:     r.tracker,
	})
	require.NoError(t, err)
	return r
}

// runRunLoop drives runLoop for nTicks and then delivers sig.
func runRunLoop(t *testing.T, ctrl loopController, clock func() time.Time, nTicks int, sig os.Signal) error {
	t.Helper()
	tick := make(chan time.Time)
	sigCh := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(context.Background(), ctrl, logger.Nop(), clock, tick, sigCh)
	}()

	for i := 0; i < nTicks; i++ {
		tick <- time.Time{}
	}
	sigCh <- sig

	return <-errCh
}

func TestRunLoopStartupAndShutdown(t *testing.T) {
	r := newRig(t)
	err := runRunLoop(t, r.ctrl, fakeClock(t0, 10*time.Millisecond), 0, syscall.SIGTERM)
	require.NoError(t, err)

	require.Len(t, r.pub.Logs, 2)
	assert.Equal(t, controller.StartupMessage, r.pub.Logs[0])
	assert.Equal(t, "Shutting down: SIGTERM", r.pub.Logs[1])
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	r := newRig(t)
	require.NoError(t, runRunLoop(t, r.ctrl, fakeClock(t0, 10*time.Millisecond), 3, syscall.SIGINT))
	assert.Equal(t, "Shutting down: SIGINT", r.pub.Logs[len(r.pub.Logs)-1])
}

func TestRunLoopPolicyReplaysLearnedSignal(t *testing.T) {
	r := newRig(t, sensor.Sample{Temp: 28, Hum: 40})
	cool := signal.RawPulseTrain{Durations: []uint16{9000, 4500, 560, 560, 560, 1690}}
	require.NoError(t, r.store.Put("cool", cool))

	// Ticks 10ms apart stay inside one 5s interval: exactly one sample.
	require.NoError(t, runRunLoop(t, r.ctrl, fakeClock(t0, 10*time.Millisecond), 5, syscall.SIGTERM))

	require.Len(t, r.tx.Sent, 1)
	assert.Equal(t, cool.Durations, r.tx.Sent[0].Raw)
	assert.Equal(t, 38000, r.tx.Sent[0].CarrierHz)
	require.Len(t, r.pub.Statuses, 1)
	assert.JSONEq(t, `{"temp":28.0,"hum":40.0}`, string(r.pub.Statuses[0]))
	assert.Contains(t, r.pub.Logs, "Temp: 28.0C, Hum: 40.0%")
	assert.Contains(t, r.pub.Logs, "Sending COOL signal.")
}

func TestRunLoopInboxCommandSwitchesMode(t *testing.T) {
	r := newRig(t, sensor.Sample{Temp: 25, Hum: 40})
	require.True(t, r.inbox.Push(inbox.SourceHTTP, []byte("learn")))

	require.NoError(t, runRunLoop(t, r.ctrl, fakeClock(t0, 10*time.Millisecond), 1, syscall.SIGTERM))

	assert.Equal(t, logic.ModeLearn, r.ctrl.Mode())
	assert.Contains(t, r.pub.Logs, "Switched to LEARNING Mode")
	assert.Equal(t, logic.ModeLearn, r.tracker.Snapshot().Mode)
}

func TestRunLoopContextCancel(t *testing.T) {
	r := newRig(t)
	ctx, cancel := context.WithCancel(context.Background())
	tick := make(chan time.Time)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(ctx, r.ctrl, logger.Nop(), fakeClock(t0, time.Millisecond), tick, make(chan os.Signal))
	}()
	tick <- time.Time{}
	cancel()

	require.NoError(t, <-errCh)
	assert.Equal(t, "Shutting down: context cancelled", r.pub.Logs[len(r.pub.Logs)-1])
}

func TestSignalName(t *testing.T) {
	assert.Equal(t, "SIGINT", signalName(syscall.SIGINT))
	assert.Equal(t, "SIGTERM", signalName(syscall.SIGTERM))
	assert.Equal(t, "UNKNOWN", signalName(syscall.SIGHUP))
}

// --- backend and subcommand output ---

func testConfig(t *testing.T, driver string) config.Config {
	t.Helper()
	v := config.NewViper()
	v.Set("store.driver", driver)
	v.Set("store.path", filepath.Join(t.TempDir(), "slots.db"))
	cfg, err := config.Decode(v)
	require.NoError(t, err)
	return cfg
}

func TestOpenBackendFile(t *testing.T) {
	cfg := testConfig(t, config.DriverFile)
	b, err := openBackend(cfg)
	require.NoError(t, err)
	assert.Nil(t, b.journal, "journal is off without journal.path")

	sig := signal.RawPulseTrain{Durations: []uint16{100, 200, 300, 400, 500, 600}}
	require.NoError(t, b.store.Put("fan", sig))
	require.NoError(t, b.Close())

	b, err = openBackend(cfg)
	require.NoError(t, err)
	defer b.Close()
	got, err := b.store.Get("fan")
	require.NoError(t, err)
	assert.Equal(t, sig, got)
}

func TestOpenBackendSQLiteSharesJournal(t *testing.T) {
	cfg := testConfig(t, config.DriverSQLite)
	cfg.Journal.Path = cfg.Store.Path

	b, err := openBackend(cfg)
	require.NoError(t, err)
	defer b.Close()
	require.NotNil(t, b.journal)
	assert.Len(t, b.closers, 1, "shared connection is closed once, by the store")

	ctx := context.Background()
	require.NoError(t, b.journal.Append(ctx, store.JournalEntry{OccurredAt: t0, Kind: "startup", Message: "hello"}))
	events, err := b.journal.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "hello", events[0].Message)
}

func TestOpenBackendSeparateJournal(t *testing.T) {
	cfg := testConfig(t, config.DriverFile)
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")

	b, err := openBackend(cfg)
	require.NoError(t, err)
	require.NotNil(t, b.journal)
	assert.Len(t, b.closers, 2)
	require.NoError(t, b.Close())
}

func TestOpenBackendSQLiteGeometryMismatch(t *testing.T) {
	cfg := testConfig(t, config.DriverSQLite)
	b, err := openBackend(cfg)
	require.NoError(t, err)
	require.NoError(t, b.Close())

	cfg.Slots = append(cfg.Slots, "heat")
	_, err = openBackend(cfg)
	assert.Error(t, err)
}

func TestPrintSlots(t *testing.T) {
	var buf bytes.Buffer
	err := printSlots(&buf, []store.Entry{
		{Slot: "cool", Signal: signal.RawPulseTrain{Durations: []uint16{1, 2}}},
		{Slot: "fan"},
		{Slot: "off", Err: signal.ErrCorrupt},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "SLOT"))
	assert.Contains(t, lines[1], "learned")
	assert.Contains(t, lines[2], "empty")
	assert.Contains(t, lines[3], "unreadable")
}

func TestWriteConfig(t *testing.T) {
	cfg := testConfig(t, config.DriverFile)
	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, cfg))

	var got map[string]any
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "ac1", got["device_id"])
	assert.Equal(t, "10ms", got["cycle"])
	assert.Contains(t, buf.String(), "temp_high: 27")
}
