package store

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const queryTimeout = 5 * time.Second

const (
	selectMetaSQL = `SELECT layout, slots, slot_size FROM signal_meta WHERE id = 1`
	insertMetaSQL = `INSERT INTO signal_meta (id, layout, slots, slot_size) VALUES (1, ?, ?, ?)`

	selectSlotSQL = `SELECT data FROM signal_slots WHERE slot = ?`

	upsertSlotSQL = `
		INSERT INTO signal_slots (slot, data, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			data=excluded.data,
			updated_at=excluded.updated_at
	`
)

// SQLiteBackend stores each slot sub-region as one row. A slot write is a
// single upsert, so the entry is committed atomically.
type SQLiteBackend struct {
	db       *sql.DB
	slots    int
	slotSize int
	owned    bool
}

// NewSQLiteBackend binds db to a store geometry. The first open records the
// layout; later opens with a different layout or geometry are rejected.
func NewSQLiteBackend(db *sql.DB, layout string, slots, slotSize int) (*SQLiteBackend, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var (
		gotLayout string
		gotSlots  int
		gotSize   int
	)
	err := db.QueryRowContext(ctx, selectMetaSQL).Scan(&gotLayout, &gotSlots, &gotSize)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, insertMetaSQL, layout, slots, slotSize); err != nil {
			return nil, fmt.Errorf("record store layout: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("read store layout: %w", err)
	case gotLayout != layout || gotSlots != slots || gotSize != slotSize:
		return nil, fmt.Errorf("store was created as %s %dx%d, config is %s %dx%d",
			gotLayout, gotSlots, gotSize, layout, slots, slotSize)
	}

	return &SQLiteBackend{db: db, slots: slots, slotSize: slotSize}, nil
}

// OpenSQLiteBackend opens path and binds it; Close closes the database.
func OpenSQLiteBackend(path, layout string, slots, slotSize int) (*SQLiteBackend, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	b, err := NewSQLiteBackend(db, layout, slots, slotSize)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	b.owned = true
	return b, nil
}

// DB exposes the underlying database (shared with the journal).
func (b *SQLiteBackend) DB() *sql.DB {
	return b.db
}

// ReadSlot implements Backend. A missing row reads as an erased sub-region.
func (b *SQLiteBackend) ReadSlot(i int) ([]byte, error) {
	if i < 0 || i >= b.slots {
		return nil, fmt.Errorf("slot index %d out of range [0,%d)", i, b.slots)
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var data []byte
	err := b.db.QueryRowContext(ctx, selectSlotSQL, i).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return bytes.Repeat([]byte{0xFF}, b.slotSize), nil
	}
	if err != nil {
		return nil, err
	}
	if len(data) != b.slotSize {
		return nil, fmt.Errorf("slot %d row is %d bytes, want %d", i, len(data), b.slotSize)
	}
	return data, nil
}

// WriteSlot implements Backend.
func (b *SQLiteBackend) WriteSlot(i int, data []byte) error {
	if i < 0 || i >= b.slots {
		return fmt.Errorf("slot index %d out of range [0,%d)", i, b.slots)
	}
	if len(data) != b.slotSize {
		return fmt.Errorf("slot data is %d bytes, want %d", len(data), b.slotSize)
	}
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	_, err := b.db.ExecContext(ctx, upsertSlotSQL, i, data, time.Now().UTC())
	return err
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	if !b.owned {
		return nil
	}
	return b.db.Close()
}
