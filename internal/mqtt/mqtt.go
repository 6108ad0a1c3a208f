// Package mqtt carries the remote command channel and the outbound log and
// status channels over an MQTT broker.
package mqtt

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"

	"github.com/sweeney/ac-controller/internal/logic"
)

// Topics are the per-device MQTT topics.
type Topics struct {
	// Cmd carries inbound text commands.
	Cmd string
	// Log carries free-text diagnostics.
	Log string
	// Status carries one reading per successful sampling interval.
	Status string
}

// TopicsFor derives the topics from a device id, e.g. "ac1/cmd".
func TopicsFor(deviceID string) Topics {
	return Topics{
		Cmd:    deviceID + "/cmd",
		Log:    deviceID + "/log",
		Status: deviceID + "/status",
	}
}

// Publisher publishes to the outbound channels. Implementations must not block
// the control loop.
type Publisher interface {
	// PublishLog sends a free-text diagnostic.
	PublishLog(msg string) error
	// PublishStatus sends a formatted status record.
	PublishStatus(payload []byte) error
}

// ConnectionStatus reports the link state.
type ConnectionStatus interface {
	IsConnected() bool
}

// oneDecimal marshals a float with exactly one decimal place (28 -> 28.0).
type oneDecimal float64

func (d oneDecimal) MarshalJSON() ([]byte, error) {
	return strconv.AppendFloat(nil, math.Round(float64(d)*10)/10, 'f', 1, 64), nil
}

// StatusPayload is the status channel record.
type StatusPayload struct {
	Temp oneDecimal `json:"temp"`
	Hum  oneDecimal `json:"hum"`
}

// ErrInvalidReading is returned when asked to format an invalid reading.
var ErrInvalidReading = errors.New("reading is not valid")

// FormatStatus creates the status JSON, e.g. {"temp":28.0,"hum":40.0}.
// Invalid readings are never formatted.
func FormatStatus(r logic.Reading) ([]byte, error) {
	if !r.Valid || math.IsNaN(r.Temperature) || math.IsNaN(r.Humidity) {
		return nil, ErrInvalidReading
	}
	return json.Marshal(StatusPayload{
		Temp: oneDecimal(r.Temperature),
		Hum:  oneDecimal(r.Humidity),
	})
}
