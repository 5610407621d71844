// Package store persists canonical records and snapshots in SQLite. It
// implements the binnacle.Resolver collaborator so imports can resolve
// tickers, currencies and accounts and save what they produce.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/patrickmn/go-cache"

	_ "github.com/mattn/go-sqlite3"

	"github.com/DarioAlonsoCerezo/binnacle"
)

// Store is a SQLite-backed persistence collaborator. Records are stored as
// their canonical JSON next to the columns queries filter on, so reads
// return exactly what the import produced. A store serves one writer at a
// time; callers running concurrent imports into the same database must
// serialize them.
type Store struct {
	db  *sql.DB
	ids *cache.Cache // entity ids by "table:key", warm for the lifetime of the store
}

var _ binnacle.Resolver = (*Store)(nil)

// Open opens the database at path, creating it and the schema when needed.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("cannot open database %q: %w", path, err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot initialize schema in %q: %w", path, err)
	}
	return &Store{db: db, ids: cache.New(cache.NoExpiration, 0)}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// GetOrCreateTicker returns the id of the ticker symbol, creating it on
// first sight.
func (s *Store) GetOrCreateTicker(ctx context.Context, symbol string) (int64, bool, error) {
	return s.getOrCreate(ctx, "tickers", "symbol", symbol)
}

// GetOrCreateCurrency returns the id of the ISO currency code, creating it
// on first sight.
func (s *Store) GetOrCreateCurrency(ctx context.Context, code string) (int64, bool, error) {
	return s.getOrCreate(ctx, "currencies", "code", code)
}

// GetOrCreateAccount returns the id of the account name, creating it on
// first sight.
func (s *Store) GetOrCreateAccount(ctx context.Context, name string) (int64, bool, error) {
	return s.getOrCreate(ctx, "accounts", "name", name)
}

// getOrCreate looks the key up in the given entity table, inserting it when
// absent. Ids are memoized so repeated imports resolve without touching the
// database. table and column are package constants, never caller input.
func (s *Store) getOrCreate(ctx context.Context, table, column, key string) (int64, bool, error) {
	ck := table + ":" + key
	if v, ok := s.ids.Get(ck); ok {
		return v.(int64), false, nil
	}

	var id int64
	created := false
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE %s = ?", table, column), key).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, err := s.db.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO %s (%s) VALUES (?)", table, column), key)
		if err != nil {
			return 0, false, fmt.Errorf("cannot create %s %q: %w", table, key, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, false, err
		}
		created = true
	case err != nil:
		return 0, false, fmt.Errorf("cannot look up %s %q: %w", table, key, err)
	}

	s.ids.Set(ck, id, cache.NoExpiration)
	return id, created, nil
}

// SaveOptionTrade persists one option contract-unit. Saving an id again
// replaces the row, which is how matcher updates to IsOpen and ClosedWith
// reach the database.
func (s *Store) SaveOptionTrade(ctx context.Context, t *binnacle.OptionTrade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("cannot encode option trade %s: %w", t.ID(), err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO option_trades
		(id, time, account, currency, ticker, open, closed_with, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID(), t.When().UTC(), t.Account(), t.Currency(), t.Ticker(),
		t.IsOpen, t.ClosedWith, string(data),
	)
	if err != nil {
		return fmt.Errorf("cannot save option trade %s: %w", t.ID(), err)
	}
	return nil
}

// SaveEquityTrade persists one equity execution.
func (s *Store) SaveEquityTrade(ctx context.Context, t *binnacle.EquityTrade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("cannot encode equity trade %s: %w", t.ID(), err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO equity_trades
		(id, time, account, currency, ticker, data)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID(), t.When().UTC(), t.Account(), t.Currency(), t.Ticker(), string(data),
	)
	if err != nil {
		return fmt.Errorf("cannot save equity trade %s: %w", t.ID(), err)
	}
	return nil
}

// SaveMovement persists one cash movement or transfer.
func (s *Store) SaveMovement(ctx context.Context, m *binnacle.Movement) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("cannot encode movement %s: %w", m.ID(), err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO movements
		(id, time, account, currency, ticker, type, data)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.ID(), m.When().UTC(), m.Account(), m.Currency(), m.Ticker(),
		string(m.Type), string(data),
	)
	if err != nil {
		return fmt.Errorf("cannot save movement %s: %w", m.ID(), err)
	}
	return nil
}

// SaveSnapshot persists one dated snapshot. A snapshot only replaces the
// stored row when its MovementCounter is higher, so re-imports supersede
// and stale writes are ignored.
func (s *Store) SaveSnapshot(ctx context.Context, snap *binnacle.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cannot encode snapshot %s/%s@%s: %w",
			snap.Account, snap.Currency, snap.Date, err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (account, currency, date, movement_counter, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (account, currency, date) DO UPDATE
		SET movement_counter = excluded.movement_counter, data = excluded.data
		WHERE excluded.movement_counter > snapshots.movement_counter`,
		snap.Account, snap.Currency, snap.Date.String(), snap.MovementCounter, string(data),
	)
	if err != nil {
		return fmt.Errorf("cannot save snapshot %s/%s@%s: %w",
			snap.Account, snap.Currency, snap.Date, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		slog.Warn("stale snapshot ignored",
			"account", snap.Account, "currency", snap.Currency,
			"date", snap.Date.String(), "movementCounter", snap.MovementCounter)
	}
	return nil
}
