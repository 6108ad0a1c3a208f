//go:build linux

package ir

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/sweeney/ac-controller/internal/signal"
)

// LIRC ioctls and sample encoding (linux/lirc.h).
const (
	lircSetSendCarrier = 0x40046913
	lircSetRecMode     = 0x40046912
	lircSetRecTimeout  = 0x40046918

	lircModeMode2 = 0x00000004

	lircMode2Mask    = 0xFF000000
	lircValueMask    = 0x00FFFFFF
	lircMode2Space   = 0x00000000
	lircMode2Pulse   = 0x01000000
	lircMode2Timeout = 0x03000000
)

const (
	// A space longer than this ends a frame.
	frameGapMicros = 20000
	// Raw frames shorter than this are treated as noise.
	minRawDurations = 6
)

// LIRCReceiver reads mode2 samples from a LIRC receive device without blocking.
type LIRCReceiver struct {
	fd       int
	layout   signal.Layout
	protocol string
	buf      []byte
	frame    []uint16
	ready    [][]uint16
}

// OpenReceiver opens a LIRC receive device such as /dev/lirc1.
func OpenReceiver(dev string, layout signal.Layout, protocol string) (*LIRCReceiver, error) {
	fd, err := unix.Open(dev, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dev, err)
	}
	if err := unix.IoctlSetPointerInt(fd, lircSetRecMode, lircModeMode2); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("set mode2 on %s: %w", dev, err)
	}
	// Not every driver supports a receive timeout; the gap check covers it.
	_ = unix.IoctlSetPointerInt(fd, lircSetRecTimeout, frameGapMicros)

	return &LIRCReceiver{
		fd:       fd,
		layout:   layout,
		protocol: strings.ToUpper(protocol),
		buf:      make([]byte, 4*512),
	}, nil
}

// Poll implements Receiver.
func (r *LIRCReceiver) Poll() (Capture, bool, error) {
	for len(r.ready) == 0 {
		n, err := unix.Read(r.fd, r.buf)
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) || n == 0 {
			return Capture{}, false, nil
		}
		if err != nil {
			return Capture{}, false, fmt.Errorf("read lirc: %w", err)
		}
		for i := 0; i+4 <= n; i += 4 {
			r.sample(binary.NativeEndian.Uint32(r.buf[i:]))
		}
	}
	d := r.ready[0]
	r.ready = r.ready[1:]
	return Classify(d, r.layout, r.protocol, minRawDurations), true, nil
}

func (r *LIRCReceiver) sample(v uint32) {
	val := v & lircValueMask
	switch v & lircMode2Mask {
	case lircMode2Pulse:
		r.frame = append(r.frame, clamp(val))
	case lircMode2Space:
		if len(r.frame) == 0 {
			return
		}
		if val >= frameGapMicros {
			r.flush()
			return
		}
		r.frame = append(r.frame, clamp(val))
	case lircMode2Timeout:
		r.flush()
	}
}

func (r *LIRCReceiver) flush() {
	if len(r.frame) > 0 {
		r.ready = append(r.ready, r.frame)
		r.frame = nil
	}
}

// Close implements Receiver.
func (r *LIRCReceiver) Close() error {
	return unix.Close(r.fd)
}

// LIRCTransmitter writes pulse/space durations to a LIRC transmit device.
type LIRCTransmitter struct {
	fd      int
	carrier int
}

// OpenTransmitter opens a LIRC transmit device such as /dev/lirc0.
func OpenTransmitter(dev string) (*LIRCTransmitter, error) {
	fd, err := unix.Open(dev, unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dev, err)
	}
	return &LIRCTransmitter{fd: fd}, nil
}

// SendRaw implements Transmitter.
func (t *LIRCTransmitter) SendRaw(durations []uint16, carrierHz int) error {
	if len(durations) == 0 {
		return errors.New("nothing to send")
	}
	if carrierHz != t.carrier {
		if err := unix.IoctlSetPointerInt(t.fd, lircSetSendCarrier, carrierHz); err != nil {
			return fmt.Errorf("set carrier %d Hz: %w", carrierHz, err)
		}
		t.carrier = carrierHz
	}
	// LIRC requires an odd count: the frame must end on a pulse.
	if len(durations)%2 == 0 {
		durations = durations[:len(durations)-1]
	}
	out := make([]byte, 4*len(durations))
	for i, d := range durations {
		binary.NativeEndian.PutUint32(out[4*i:], uint32(d))
	}
	if _, err := unix.Write(t.fd, out); err != nil {
		return fmt.Errorf("write lirc: %w", err)
	}
	return nil
}

// SendCode implements Transmitter.
func (t *LIRCTransmitter) SendCode(protocol string, code uint32, bits uint16) error {
	if !strings.EqualFold(protocol, ProtocolNEC) {
		return fmt.Errorf("%w: %s", ErrUnsupportedProtocol, protocol)
	}
	d, err := EncodeNEC(code, bits)
	if err != nil {
		return err
	}
	return t.SendRaw(d, DefaultCarrierHz)
}

// Close implements Transmitter.
func (t *LIRCTransmitter) Close() error {
	return unix.Close(t.fd)
}

func clamp(v uint32) uint16 {
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}
