package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JournalEntry is one recorded diagnostic event.
type JournalEntry struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Kind       string    `json:"kind"`
	Slot       string    `json:"slot,omitempty"`
	Message    string    `json:"message"`
}

// Journal appends diagnostic events to SQLite.
type Journal struct {
	db *sql.DB
}

// NewJournal uses db, which must have been opened with OpenDB.
func NewJournal(db *sql.DB) *Journal {
	return &Journal{db: db}
}

// Append inserts e. Empty ID and zero OccurredAt are filled in.
func (j *Journal) Append(ctx context.Context, e JournalEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	var slot *string
	if e.Slot != "" {
		slot = &e.Slot
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO journal (id, occurred_at, kind, slot, message)
		VALUES (?, ?, ?, ?, ?)
	`,
		e.ID,
		e.OccurredAt.UTC(),
		e.Kind,
		slot,
		e.Message,
	)
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, occurred_at, kind, slot, message
		FROM journal
		ORDER BY occurred_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var (
			e    JournalEntry
			slot sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.OccurredAt, &e.Kind, &slot, &e.Message); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.Slot = slot.String
		out = append(out, e)
	}
	return out, rows.Err()
}
