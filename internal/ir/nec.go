package ir

import (
	"fmt"
	"strings"

	"github.com/sweeney/ac-controller/internal/signal"
)

// ProtocolNEC is the protocol identifier for NEC frames.
const ProtocolNEC = "NEC"

// NEC timings in microseconds.
const (
	necHeaderMark  = 9000
	necHeaderSpace = 4500
	necBitMark     = 560
	necOneSpace    = 1690
	necZeroSpace   = 560
	necBits        = 32
	// Matching tolerance, percent.
	tolerance = 25
)

func match(measured, want uint16) bool {
	lo := uint32(want) * (100 - tolerance) / 100
	hi := uint32(want) * (100 + tolerance) / 100
	return uint32(measured) >= lo && uint32(measured) <= hi
}

// DecodeNEC decodes a 32-bit NEC frame from mark/space durations. Bits are
// assembled in the order received, first bit most significant.
func DecodeNEC(d []uint16) (signal.ProtocolCode, error) {
	// header (2) + 32 bits (64) + stop mark (1)
	if len(d) < 2+2*necBits+1 {
		return signal.ProtocolCode{}, fmt.Errorf("NEC: %d durations, need %d", len(d), 2+2*necBits+1)
	}
	if !match(d[0], necHeaderMark) || !match(d[1], necHeaderSpace) {
		return signal.ProtocolCode{}, fmt.Errorf("NEC: bad header %d/%d", d[0], d[1])
	}

	var code uint32
	for i := 0; i < necBits; i++ {
		mark, space := d[2+2*i], d[3+2*i]
		if !match(mark, necBitMark) {
			return signal.ProtocolCode{}, fmt.Errorf("NEC: bad mark %d at bit %d", mark, i)
		}
		code <<= 1
		switch {
		case match(space, necOneSpace):
			code |= 1
		case match(space, necZeroSpace):
		default:
			return signal.ProtocolCode{}, fmt.Errorf("NEC: bad space %d at bit %d", space, i)
		}
	}
	if !match(d[2+2*necBits], necBitMark) {
		return signal.ProtocolCode{}, fmt.Errorf("NEC: missing stop mark")
	}
	return signal.ProtocolCode{Protocol: ProtocolNEC, Code: code, Bits: necBits}, nil
}

// EncodeNEC renders code as mark/space durations ending in a stop mark.
func EncodeNEC(code uint32, bits uint16) ([]uint16, error) {
	if bits == 0 || bits > necBits {
		return nil, fmt.Errorf("NEC: invalid bit length %d", bits)
	}
	d := make([]uint16, 0, 2+2*int(bits)+1)
	d = append(d, necHeaderMark, necHeaderSpace)
	for i := int(bits) - 1; i >= 0; i-- {
		space := uint16(necZeroSpace)
		if code&(1<<uint(i)) != 0 {
			space = necOneSpace
		}
		d = append(d, necBitMark, space)
	}
	return append(d, necBitMark), nil
}

// Classify turns a completed frame into a Capture for the given layout.
// Raw captures are accepted when they look like a real frame; protocol
// captures must decode as the deployment's protocol.
func Classify(d []uint16, layout signal.Layout, protocol string, minRaw int) Capture {
	switch layout {
	case signal.LayoutProtocol:
		if !strings.EqualFold(protocol, ProtocolNEC) {
			return Capture{Reason: fmt.Sprintf("no decoder for %s", protocol)}
		}
		pc, err := DecodeNEC(d)
		if err != nil {
			return Capture{Reason: err.Error()}
		}
		return Capture{Signal: pc, Decoded: true}
	default:
		if len(d) < minRaw {
			return Capture{Reason: fmt.Sprintf("frame too short (%d durations)", len(d))}
		}
		return Capture{Signal: signal.RawPulseTrain{Durations: append([]uint16(nil), d...)}, Decoded: true}
	}
}
