// Package signal defines the learned remote-control signals and the byte
// layouts they are persisted in.
package signal

import (
	"fmt"
	"strings"
)

// Layout is the persistent representation a deployment commits to.
// Every slot in a store uses the same layout.
type Layout string

const (
	// LayoutRaw stores a 2-byte big-endian length followed by that many
	// 2-byte big-endian durations (microseconds).
	LayoutRaw Layout = "raw"
	// LayoutProtocol stores a 4-byte big-endian code followed by a 2-byte bit length.
	LayoutProtocol Layout = "protocol"
)

// ParseLayout converts a config string to a Layout.
func ParseLayout(s string) (Layout, error) {
	switch Layout(strings.ToLower(strings.TrimSpace(s))) {
	case LayoutRaw:
		return LayoutRaw, nil
	case LayoutProtocol:
		return LayoutProtocol, nil
	}
	return "", fmt.Errorf("unknown signal layout %q (want raw or protocol)", s)
}

// Signal is a learned signal: either a RawPulseTrain or a ProtocolCode.
type Signal interface {
	// Layout returns the layout this variant is stored with.
	Layout() Layout
	String() string
	isSignal()
}

// RawPulseTrain is a protocol-agnostic capture: alternating mark/space
// durations in microseconds, starting with a mark.
type RawPulseTrain struct {
	Durations []uint16
}

// Layout implements Signal.
func (RawPulseTrain) Layout() Layout { return LayoutRaw }

func (r RawPulseTrain) String() string {
	const show = 8
	parts := make([]string, 0, show+1)
	for i, d := range r.Durations {
		if i == show {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprint(d))
	}
	return fmt.Sprintf("raw[%d]{%s}", len(r.Durations), strings.Join(parts, ","))
}

func (RawPulseTrain) isSignal() {}

// ProtocolCode is a decoded capture.
type ProtocolCode struct {
	Protocol string
	Code     uint32
	Bits     uint16
}

// Layout implements Signal.
func (ProtocolCode) Layout() Layout { return LayoutProtocol }

func (p ProtocolCode) String() string {
	return fmt.Sprintf("%s 0x%08X/%d", p.Protocol, p.Code, p.Bits)
}

func (ProtocolCode) isSignal() {}
