package signal

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	rawHeaderSize   = 2
	protocolSize    = 6
	maxProtocolBits = 32
	erased          = 0xFF

	// MaxRawDurations is the longest train the 2-byte length prefix can
	// carry. 0xFFFF is the erased marker, so it is never a valid length.
	MaxRawDurations = 0xFFFE
	// MaxRawSlotSize is the largest raw sub-region with addressable room.
	MaxRawSlotSize = rawHeaderSize + 2*MaxRawDurations
)

var (
	// ErrEmpty means the sub-region holds no signal.
	ErrEmpty = errors.New("empty slot")
	// ErrCapacity means the signal does not fit in its sub-region.
	ErrCapacity = errors.New("signal exceeds slot capacity")
	// ErrLayout means the signal variant does not match the store layout.
	ErrLayout = errors.New("signal does not match store layout")
	// ErrCorrupt means the stored bytes are not a valid entry.
	ErrCorrupt = errors.New("corrupt slot entry")
)

// Codec encodes and decodes one slot sub-region.
type Codec struct {
	Layout Layout
	// Protocol is the protocol identifier every LayoutProtocol entry carries.
	// The byte layout has no room for it, so it is a deployment constant.
	Protocol string
	// Size is the sub-region size in bytes.
	Size int
}

// NewCodec validates the layout parameters.
func NewCodec(layout Layout, protocol string, size int) (Codec, error) {
	c := Codec{Layout: layout, Protocol: strings.ToUpper(protocol), Size: size}
	switch layout {
	case LayoutRaw:
		if size < rawHeaderSize+2 {
			return Codec{}, fmt.Errorf("raw slot size %d too small", size)
		}
		if size > MaxRawSlotSize {
			return Codec{}, fmt.Errorf("raw slot size %d exceeds the %d bytes a 16-bit length can address", size, MaxRawSlotSize)
		}
	case LayoutProtocol:
		if size < protocolSize {
			return Codec{}, fmt.Errorf("protocol slot size %d too small (need %d)", size, protocolSize)
		}
		if c.Protocol == "" {
			return Codec{}, errors.New("protocol layout requires a protocol identifier")
		}
	default:
		return Codec{}, fmt.Errorf("unknown layout %q", layout)
	}
	return c, nil
}

// MaxDurations is how many durations a raw sub-region can hold.
func (c Codec) MaxDurations() int {
	return min((c.Size-rawHeaderSize)/2, MaxRawDurations)
}

// Erased returns a sub-region in its never-written state.
func (c Codec) Erased() []byte {
	buf := make([]byte, c.Size)
	for i := range buf {
		buf[i] = erased
	}
	return buf
}

// Encode returns the complete sub-region image for s. The whole entry is
// built before anything is written so a store can commit it in one operation.
func (c Codec) Encode(s Signal) ([]byte, error) {
	if s == nil || s.Layout() != c.Layout {
		return nil, fmt.Errorf("%w: have %v, store is %s", ErrLayout, s, c.Layout)
	}
	buf := c.Erased()

	switch v := s.(type) {
	case RawPulseTrain:
		n := len(v.Durations)
		if n == 0 {
			return nil, fmt.Errorf("%w: raw pulse train has no durations", ErrCorrupt)
		}
		if n > c.MaxDurations() {
			return nil, fmt.Errorf("%w: %d durations, room for %d", ErrCapacity, n, c.MaxDurations())
		}
		binary.BigEndian.PutUint16(buf, uint16(n))
		for i, d := range v.Durations {
			binary.BigEndian.PutUint16(buf[rawHeaderSize+2*i:], d)
		}
	case ProtocolCode:
		// Decode reports c.Protocol, so only the canonical spelling round-trips.
		if v.Protocol != c.Protocol {
			return nil, fmt.Errorf("%w: protocol %s, store is %s", ErrLayout, v.Protocol, c.Protocol)
		}
		if v.Bits == 0 || v.Bits > maxProtocolBits {
			return nil, fmt.Errorf("%w: bit length %d", ErrCorrupt, v.Bits)
		}
		binary.BigEndian.PutUint32(buf, v.Code)
		binary.BigEndian.PutUint16(buf[4:], v.Bits)
	}
	return buf, nil
}

// Decode parses a sub-region. It returns ErrEmpty for a never-written region.
func (c Codec) Decode(buf []byte) (Signal, error) {
	if len(buf) < c.Size {
		return nil, fmt.Errorf("%w: region is %d bytes, want %d", ErrCorrupt, len(buf), c.Size)
	}

	switch c.Layout {
	case LayoutRaw:
		n := int(binary.BigEndian.Uint16(buf))
		if n == 0 || n == 0xFFFF {
			return nil, ErrEmpty
		}
		if n > c.MaxDurations() {
			return nil, fmt.Errorf("%w: length %d exceeds capacity %d", ErrCorrupt, n, c.MaxDurations())
		}
		d := make([]uint16, n)
		for i := range d {
			d[i] = binary.BigEndian.Uint16(buf[rawHeaderSize+2*i:])
		}
		return RawPulseTrain{Durations: d}, nil
	case LayoutProtocol:
		bits := binary.BigEndian.Uint16(buf[4:])
		if bits == 0 || bits == 0xFFFF {
			return nil, ErrEmpty
		}
		if bits > maxProtocolBits {
			return nil, fmt.Errorf("%w: bit length %d", ErrCorrupt, bits)
		}
		return ProtocolCode{
			Protocol: c.Protocol,
			Code:     binary.BigEndian.Uint32(buf),
			Bits:     bits,
		}, nil
	}
	return nil, fmt.Errorf("unknown layout %q", c.Layout)
}
