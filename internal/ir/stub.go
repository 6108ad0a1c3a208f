//go:build !linux

package ir

import (
	"errors"

	"github.com/sweeney/ac-controller/internal/signal"
)

var errNotSupported = errors.New("ir: not supported on this platform (requires Linux LIRC)")

// LIRCReceiver is not available on non-Linux platforms.
type LIRCReceiver struct{}

// OpenReceiver returns an error on non-Linux platforms.
func OpenReceiver(dev string, layout signal.Layout, protocol string) (*LIRCReceiver, error) {
	return nil, errNotSupported
}

// Poll is not implemented on non-Linux platforms.
func (r *LIRCReceiver) Poll() (Capture, bool, error) {
	return Capture{}, false, errNotSupported
}

// Close is not implemented on non-Linux platforms.
func (r *LIRCReceiver) Close() error {
	return nil
}

// LIRCTransmitter is not available on non-Linux platforms.
type LIRCTransmitter struct{}

// OpenTransmitter returns an error on non-Linux platforms.
func OpenTransmitter(dev string) (*LIRCTransmitter, error) {
	return nil, errNotSupported
}

// SendRaw is not implemented on non-Linux platforms.
func (t *LIRCTransmitter) SendRaw(durations []uint16, carrierHz int) error {
	return errNotSupported
}

// SendCode is not implemented on non-Linux platforms.
func (t *LIRCTransmitter) SendCode(protocol string, code uint32, bits uint16) error {
	return errNotSupported
}

// Close is not implemented on non-Linux platforms.
func (t *LIRCTransmitter) Close() error {
	return nil
}
