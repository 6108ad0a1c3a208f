// Package store persists learned signals in named slots.
//
// A Store partitions a backend into one fixed-size sub-region per slot and
// uses a single signal.Codec for all of them, so the layout is fixed for the
// lifetime of a deployment.
package store

import (
	"errors"
	"fmt"

	"github.com/sweeney/ac-controller/internal/signal"
)

// ErrEmptySlot is returned when a slot has never been learned.
var ErrEmptySlot = errors.New("empty slot")

// ErrUnknownSlot is returned for a slot name outside the configured set.
var ErrUnknownSlot = errors.New("unknown slot")

// Backend is addressable storage of fixed-size slot sub-regions.
type Backend interface {
	// ReadSlot returns the sub-region for slot index i.
	ReadSlot(i int) ([]byte, error)
	// WriteSlot replaces the sub-region for slot index i in one commit:
	// after a failure the old content must still be intact.
	WriteSlot(i int, data []byte) error
	Close() error
}

// Store maps slot names to learned signals.
type Store struct {
	slots   []string
	index   map[string]int
	codec   signal.Codec
	backend Backend
}

// New creates a Store over backend. slots defines the order of sub-regions.
func New(slots []string, codec signal.Codec, backend Backend) (*Store, error) {
	if len(slots) == 0 {
		return nil, errors.New("store needs at least one slot")
	}
	index := make(map[string]int, len(slots))
	for i, s := range slots {
		if s == "" {
			return nil, fmt.Errorf("slot %d has no name", i)
		}
		if _, dup := index[s]; dup {
			return nil, fmt.Errorf("duplicate slot %q", s)
		}
		index[s] = i
	}
	return &Store{
		slots:   append([]string(nil), slots...),
		index:   index,
		codec:   codec,
		backend: backend,
	}, nil
}

// Slots returns the slot names in learning order.
func (s *Store) Slots() []string {
	return append([]string(nil), s.slots...)
}

// Codec returns the codec all slots are encoded with.
func (s *Store) Codec() signal.Codec {
	return s.codec
}

// Put encodes sig and commits it to slot.
func (s *Store) Put(slot string, sig signal.Signal) error {
	i, ok := s.index[slot]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	buf, err := s.codec.Encode(sig)
	if err != nil {
		return fmt.Errorf("encode %s: %w", slot, err)
	}
	if err := s.backend.WriteSlot(i, buf); err != nil {
		return fmt.Errorf("write %s: %w", slot, err)
	}
	return nil
}

// Get reads the signal in slot. It returns ErrEmptySlot if nothing was learned.
func (s *Store) Get(slot string) (signal.Signal, error) {
	i, ok := s.index[slot]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSlot, slot)
	}
	buf, err := s.backend.ReadSlot(i)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", slot, err)
	}
	sig, err := s.codec.Decode(buf)
	if errors.Is(err, signal.ErrEmpty) {
		return nil, fmt.Errorf("%w: %s", ErrEmptySlot, slot)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", slot, err)
	}
	return sig, nil
}

// Entry is one slot as reported by List.
type Entry struct {
	Slot   string
	Signal signal.Signal // nil when empty
	Err    error         // set for unreadable entries
}

// List returns every slot in order.
func (s *Store) List() []Entry {
	out := make([]Entry, 0, len(s.slots))
	for _, name := range s.slots {
		sig, err := s.Get(name)
		e := Entry{Slot: name, Signal: sig}
		if err != nil && !errors.Is(err, ErrEmptySlot) {
			e.Err = err
		}
		out = append(out, e)
	}
	return out
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
