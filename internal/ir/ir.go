// Package ir provides infrared capture and transmit with hardware abstraction.
// The real implementation uses the Linux LIRC character device.
// The fake implementation allows testing without hardware.
package ir

import (
	"errors"

	"github.com/sweeney/ac-controller/internal/signal"
)

// DefaultCarrierHz is the carrier used for capture and raw replay.
const DefaultCarrierHz = 38000

// ErrUnsupportedProtocol is returned for protocols this package cannot encode.
var ErrUnsupportedProtocol = errors.New("unsupported IR protocol")

// Capture is one completed inbound signal.
type Capture struct {
	// Signal is the captured value; nil when Decoded is false.
	Signal signal.Signal
	// Decoded is false when the frame was garbled or not understood.
	Decoded bool
	// Reason describes why decoding failed.
	Reason string
}

// Receiver polls for captured signals. Poll must not block.
type Receiver interface {
	// Poll returns (capture, true, nil) when a frame completed since the last
	// call and (Capture{}, false, nil) when nothing is available.
	Poll() (Capture, bool, error)
	Close() error
}

// Transmitter emits infrared signals.
type Transmitter interface {
	// SendRaw emits mark/space durations (microseconds) at carrierHz.
	SendRaw(durations []uint16, carrierHz int) error
	// SendCode emits a decoded protocol code.
	SendCode(protocol string, code uint32, bits uint16) error
	Close() error
}
