package main

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/sweeney/ac-controller/internal/config"
	"github.com/sweeney/ac-controller/internal/store"
)

// backend is the opened persistence layer: the slot store and, when
// configured, the event journal.
type backend struct {
	store   *store.Store
	journal *store.Journal
	closers []func() error
}

// openBackend opens the store driver named in cfg. A journal on the same
// SQLite file as the store shares its connection.
func openBackend(cfg config.Config) (*backend, error) {
	codec, err := cfg.Codec()
	if err != nil {
		return nil, err
	}

	b := &backend{}
	var (
		raw store.Backend
		db  *sql.DB
	)
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		sb, err := store.OpenSQLiteBackend(cfg.Store.Path, cfg.Signal.Layout, len(cfg.Slots), cfg.Signal.SlotSize)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		raw, db = sb, sb.DB()
	default:
		r, err := store.OpenRegion(cfg.Store.Path, len(cfg.Slots), cfg.Signal.SlotSize)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		raw = r
	}

	st, err := store.New(cfg.Slots, codec, raw)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}
	b.store = st
	b.closers = append(b.closers, st.Close)

	if cfg.Journal.Path == "" {
		return b, nil
	}
	if db == nil || cfg.Journal.Path != cfg.Store.Path {
		jdb, err := store.OpenDB(cfg.Journal.Path)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
		db = jdb
		b.closers = append(b.closers, jdb.Close)
	}
	b.journal = store.NewJournal(db)
	return b, nil
}

// Close releases everything in reverse open order.
func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i]())
	}
	b.closers = nil
	return errors.Join(errs...)
}
