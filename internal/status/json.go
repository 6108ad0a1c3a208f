package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Mode          string       `json:"mode"`
	Cursor        int          `json:"cursor"`
	Slots         []SlotJSON   `json:"slots"`
	Reading       *ReadingJSON `json:"reading,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// SlotJSON reports whether one slot holds a signal.
type SlotJSON struct {
	Name    string `json:"name"`
	Learned bool   `json:"learned"`
}

// ReadingJSON is the last valid sensor sample.
type ReadingJSON struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
	Timestamp   string  `json:"timestamp"`
}

// MQTTStatus reports broker link state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	State     string `json:"state"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Captures       int `json:"captures"`
	DecodeFailures int `json:"decode_failures"`
	Replays        int `json:"replays"`
	EmptySlots     int `json:"empty_slots"`
	SensorFailures int `json:"sensor_failures"`
	Commands       int `json:"commands"`
	Unrecognized   int `json:"unrecognized"`
	Toggles        int `json:"toggles"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of controller config.
type ConfigJSON struct {
	DeviceID   string  `json:"device_id"`
	CycleMs    int64   `json:"cycle_ms"`
	DebounceMs int64   `json:"debounce_ms"`
	IntervalMs int64   `json:"interval_ms"`
	Broker     string  `json:"broker"`
	HTTPAddr   string  `json:"http_addr"`
	Layout     string  `json:"layout"`
	TempHigh   float64 `json:"temp_high"`
	TempLow    float64 `json:"temp_low"`
}

func buildInner(snap Snapshot) StatusInner {
	mode := string(snap.Mode)
	if mode == "" {
		mode = "UNKNOWN"
	}

	slots := make([]SlotJSON, 0, len(snap.Slots))
	for _, s := range snap.Slots {
		slots = append(slots, SlotJSON{Name: s, Learned: snap.Learned[s]})
	}

	inner := StatusInner{
		Mode:          mode,
		Cursor:        snap.Cursor,
		Slots:         slots,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.Link == "connected",
			State:     snap.Link,
			Broker:    snap.Config.Broker,
		},
		Counts: CountsJSON(snap.Counts),
		Config: ConfigJSON{
			DeviceID:   snap.Config.DeviceID,
			CycleMs:    snap.Config.CycleMs,
			DebounceMs: snap.Config.DebounceMs,
			IntervalMs: snap.Config.IntervalMs,
			Broker:     snap.Config.Broker,
			HTTPAddr:   snap.Config.HTTPAddr,
			Layout:     snap.Config.Layout,
			TempHigh:   snap.Config.Thresholds.High,
			TempLow:    snap.Config.Thresholds.Low,
		},
	}

	// Invalid samples carry NaN, which encoding/json refuses.
	if r := snap.LastReading; r.Valid && !math.IsNaN(r.Temperature) && !math.IsNaN(r.Humidity) {
		inner.Reading = &ReadingJSON{
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			Timestamp:   r.Time.UTC().Format(time.RFC3339),
		}
	}

	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
	return inner
}

// Build returns the status document for snap.
func Build(snap Snapshot) StatusJSON {
	return StatusJSON{Status: buildInner(snap)}
}

// FormatJSON returns the indented JSON status document.
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(Build(snap), "", "  ")
	return data
}
