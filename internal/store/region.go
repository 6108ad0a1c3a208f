package store

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Region is a fixed-size image file partitioned into equal slot sub-regions,
// laid out like the controller's EEPROM: slot i starts at i*slotSize.
// Writes replace the whole file via a temp file and rename, so a crash
// mid-write leaves either the old or the new image.
type Region struct {
	mu       sync.Mutex
	path     string
	slots    int
	slotSize int
	image    []byte
}

// OpenRegion opens or creates the image at path. A new image is erased (0xFF).
// An existing image whose size does not match slots*slotSize is rejected.
func OpenRegion(path string, slots, slotSize int) (*Region, error) {
	want := slots * slotSize
	if want <= 0 {
		return nil, fmt.Errorf("invalid region geometry %dx%d", slots, slotSize)
	}
	r := &Region{path: path, slots: slots, slotSize: slotSize}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		r.image = bytes.Repeat([]byte{0xFF}, want)
		if err := r.commit(r.image); err != nil {
			return nil, fmt.Errorf("create region %q: %w", path, err)
		}
	case err != nil:
		return nil, fmt.Errorf("read region %q: %w", path, err)
	case len(data) != want:
		return nil, fmt.Errorf("region %q is %d bytes, layout needs %d (%d slots x %d)", path, len(data), want, slots, slotSize)
	default:
		r.image = data
	}
	return r, nil
}

// ReadSlot implements Backend.
func (r *Region) ReadSlot(i int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(i); err != nil {
		return nil, err
	}
	off := i * r.slotSize
	return append([]byte(nil), r.image[off:off+r.slotSize]...), nil
}

// WriteSlot implements Backend.
func (r *Region) WriteSlot(i int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(i); err != nil {
		return err
	}
	if len(data) != r.slotSize {
		return fmt.Errorf("slot data is %d bytes, want %d", len(data), r.slotSize)
	}
	next := append([]byte(nil), r.image...)
	copy(next[i*r.slotSize:], data)
	if err := r.commit(next); err != nil {
		return err
	}
	r.image = next
	return nil
}

// Close implements Backend.
func (r *Region) Close() error {
	return nil
}

func (r *Region) check(i int) error {
	if i < 0 || i >= r.slots {
		return fmt.Errorf("slot index %d out of range [0,%d)", i, r.slots)
	}
	return nil
}

func (r *Region) commit(image []byte) error {
	dir := filepath.Dir(r.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("commit region: %w", err)
	}
	return nil
}

// MemRegion is an in-memory Backend for tests and dry runs.
type MemRegion struct {
	mu       sync.Mutex
	slotSize int
	slots    [][]byte
	// WriteError, if set, is returned by WriteSlot and nothing is stored.
	WriteError error
	// Writes counts successful WriteSlot calls.
	Writes int
}

// NewMemRegion creates an erased in-memory region.
func NewMemRegion(slots, slotSize int) *MemRegion {
	m := &MemRegion{slotSize: slotSize, slots: make([][]byte, slots)}
	for i := range m.slots {
		m.slots[i] = bytes.Repeat([]byte{0xFF}, slotSize)
	}
	return m
}

// ReadSlot implements Backend.
func (m *MemRegion) ReadSlot(i int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.slots) {
		return nil, fmt.Errorf("slot index %d out of range", i)
	}
	return append([]byte(nil), m.slots[i]...), nil
}

// WriteSlot implements Backend.
func (m *MemRegion) WriteSlot(i int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteError != nil {
		return m.WriteError
	}
	if i < 0 || i >= len(m.slots) {
		return fmt.Errorf("slot index %d out of range", i)
	}
	if len(data) != m.slotSize {
		return fmt.Errorf("slot data is %d bytes, want %d", len(data), m.slotSize)
	}
	m.slots[i] = append([]byte(nil), data...)
	m.Writes++
	return nil
}

// Close implements Backend.
func (m *MemRegion) Close() error {
	return nil
}
