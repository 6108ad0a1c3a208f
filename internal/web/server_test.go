package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/ac-controller/internal/inbox"
	"github.com/sweeney/ac-controller/internal/logic"
	"github.com/sweeney/ac-controller/internal/status"
	"github.com/sweeney/ac-controller/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeEvents struct {
	entries   []store.JournalEntry
	err       error
	lastLimit int
}

func (f *fakeEvents) Recent(_ context.Context, limit int) ([]store.JournalEntry, error) {
	f.lastLimit = limit
	return f.entries, f.err
}

func newTestServer(t *testing.T, events EventSource) (*httptest.Server, *status.Tracker, *inbox.Inbox) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		DeviceID:   "ac1",
		CycleMs:    10,
		DebounceMs: 50,
		IntervalMs: 5000,
		Broker:     "tcp://192.168.1.200:1883",
		HTTPAddr:   ":8080",
		Layout:     "raw",
		Thresholds: logic.Thresholds{High: 27, Low: 23},
	}
	tr := status.NewTracker(start, cfg)
	tr.SetSlots([]string{"cool", "fan", "off"}, map[string]bool{"cool": true})
	in := inbox.New(2)
	srv := New(":0", tr, in, events, nil)
	ts := httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(ts.Close)
	return ts, tr, in
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t, nil)
	tr.Update(logic.ModeLearn, 1, status.Counts{Captures: 1, Replays: 4})
	tr.SetLink("connected")
	tr.SetReading(logic.NewReading(28, 40, time.Now()))

	resp, err := http.Get(ts.URL + "/api/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json"))

	var sj status.StatusJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sj))
	assert.Equal(t, "LEARN", sj.Status.Mode)
	assert.Equal(t, 1, sj.Status.Cursor)
	assert.True(t, sj.Status.MQTT.Connected)
	assert.Equal(t, "tcp://192.168.1.200:1883", sj.Status.MQTT.Broker)
	assert.Equal(t, 4, sj.Status.Counts.Replays)
	require.NotNil(t, sj.Status.Reading)
	assert.Equal(t, 28.0, sj.Status.Reading.Temperature)
	assert.Equal(t, []status.SlotJSON{{Name: "cool", Learned: true}, {Name: "fan"}, {Name: "off"}}, sj.Status.Slots)
}

func TestIndexHTML(t *testing.T) {
	ts, tr, _ := newTestServer(t, nil)
	tr.SetReading(logic.NewReading(24.25, 51, time.Now()))

	for _, path := range []string{"/", "/index.html"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
		html := string(body)
		for _, want := range []string{"AC Controller", "AUTO", "cool", "learned", "24.2 C", "tcp://192.168.1.200:1883", "disconnected"} {
			assert.Contains(t, html, want, path)
		}
	}
}

func TestUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPostCommandQueues(t *testing.T) {
	ts, _, in := newTestServer(t, nil)

	resp, err := http.Post(ts.URL+"/api/v1/command", "application/json", strings.NewReader(`{"command":"learn"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	msgs := in.Drain()
	require.Len(t, msgs, 1)
	assert.Equal(t, inbox.SourceHTTP, msgs[0].Source)
	assert.Equal(t, "learn", string(msgs[0].Payload))
}

func TestPostCommandValidation(t *testing.T) {
	ts, _, in := newTestServer(t, nil)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", `learn`, http.StatusBadRequest},
		{"missing field", `{}`, http.StatusBadRequest},
		{"blank", `{"command":"   "}`, http.StatusBadRequest},
		{"too long", `{"command":"` + strings.Repeat("x", logic.MaxPayload+1) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/v1/command", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
	assert.Empty(t, in.Drain())
}

func TestPostCommandQueueFull(t *testing.T) {
	ts, _, _ := newTestServer(t, nil)
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		resp, err := http.Post(ts.URL+"/api/v1/command", "application/json", strings.NewReader(`{"command":"off"}`))
		require.NoError(t, err)
		resp.Body.Close()
		codes = append(codes, resp.StatusCode)
	}
	assert.Equal(t, []int{http.StatusAccepted, http.StatusAccepted, http.StatusServiceUnavailable}, codes)
}

func TestEventsFromTracker(t *testing.T) {
	ts, tr, _ := newTestServer(t, nil)
	tr.Record(store.JournalEntry{Kind: "startup", Message: "first"})
	tr.Record(store.JournalEntry{Kind: "mode", Message: "second"})

	resp, err := http.Get(ts.URL + "/api/v1/events?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out struct {
		Count  int                  `json:"count"`
		Events []store.JournalEntry `json:"events"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "second", out.Events[0].Message)
}

func TestEventsFromJournal(t *testing.T) {
	ev := &fakeEvents{entries: []store.JournalEntry{{ID: "e1", Kind: "sent", Slot: "cool", Message: "Sent IR @cool"}}}
	ts, _, _ := newTestServer(t, ev)

	resp, err := http.Get(ts.URL + "/api/v1/events")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"slot":"cool"`)
	assert.Equal(t, defaultEventLimit, ev.lastLimit)

	resp, err = http.Get(ts.URL + "/api/v1/events?limit=100000")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, maxEventLimit, ev.lastLimit)
}

func TestEventsErrors(t *testing.T) {
	ev := &fakeEvents{err: errors.New("database is locked")}
	ts, _, _ := newTestServer(t, ev)

	resp, err := http.Get(ts.URL + "/api/v1/events?limit=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/v1/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestEventsEmptyListIsArray(t *testing.T) {
	ts, _, _ := newTestServer(t, &fakeEvents{})
	resp, err := http.Get(ts.URL + "/api/v1/events")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.JSONEq(t, `{"count":0,"events":[]}`, string(body))
}
