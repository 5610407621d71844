package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/DarioAlonsoCerezo/binnacle"
)

// Accounts returns every account name the store knows, sorted.
func (s *Store) Accounts(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM accounts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// ListOpenOptions returns the option legs of an account still open, oldest
// first. Record ids are time-sortable, so ordering by id is creation order.
func (s *Store) ListOpenOptions(ctx context.Context, account string) ([]*binnacle.OptionTrade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM option_trades
		WHERE account = ? AND open = 1
		ORDER BY id`, account)
	if err != nil {
		return nil, fmt.Errorf("cannot list open options of %q: %w", account, err)
	}
	return decodeRows[binnacle.OptionTrade](rows)
}

// ListOptionTrades returns every option leg of an account, oldest first.
func (s *Store) ListOptionTrades(ctx context.Context, account string) ([]*binnacle.OptionTrade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM option_trades
		WHERE account = ?
		ORDER BY time, id`, account)
	if err != nil {
		return nil, fmt.Errorf("cannot list option trades of %q: %w", account, err)
	}
	return decodeRows[binnacle.OptionTrade](rows)
}

// ListEquityTrades returns every equity execution of an account, oldest
// first.
func (s *Store) ListEquityTrades(ctx context.Context, account string) ([]*binnacle.EquityTrade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM equity_trades
		WHERE account = ?
		ORDER BY time, id`, account)
	if err != nil {
		return nil, fmt.Errorf("cannot list equity trades of %q: %w", account, err)
	}
	return decodeRows[binnacle.EquityTrade](rows)
}

// ListMovements returns every cash movement and transfer of an account,
// oldest first.
func (s *Store) ListMovements(ctx context.Context, account string) ([]*binnacle.Movement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM movements
		WHERE account = ?
		ORDER BY time, id`, account)
	if err != nil {
		return nil, fmt.Errorf("cannot list movements of %q: %w", account, err)
	}
	return decodeRows[binnacle.Movement](rows)
}

// ListSnapshots returns the authoritative snapshot trail of an account,
// every currency, ordered by currency then date.
func (s *Store) ListSnapshots(ctx context.Context, account string) ([]*binnacle.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT data FROM snapshots
		WHERE account = ?
		ORDER BY currency, date`, account)
	if err != nil {
		return nil, fmt.Errorf("cannot list snapshots of %q: %w", account, err)
	}
	return decodeRows[binnacle.Snapshot](rows)
}

// ListRecords returns every canonical record of an account merged across
// kinds, in timestamp order with ties broken by creation order. This is
// the stream bnc export encodes.
func (s *Store) ListRecords(ctx context.Context, account string) ([]binnacle.Record, error) {
	options, err := s.ListOptionTrades(ctx, account)
	if err != nil {
		return nil, err
	}
	equities, err := s.ListEquityTrades(ctx, account)
	if err != nil {
		return nil, err
	}
	movements, err := s.ListMovements(ctx, account)
	if err != nil {
		return nil, err
	}

	records := make([]binnacle.Record, 0, len(options)+len(equities)+len(movements))
	for _, t := range options {
		records = append(records, t)
	}
	for _, t := range equities {
		records = append(records, t)
	}
	for _, m := range movements {
		records = append(records, m)
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].When().Equal(records[j].When()) {
			return records[i].When().Before(records[j].When())
		}
		return records[i].ID() < records[j].ID()
	})
	return records, nil
}

// decodeRows drains a single-column result set of canonical JSON into
// typed records.
func decodeRows[T any](rows *sql.Rows) ([]*T, error) {
	defer rows.Close()

	var out []*T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		rec := new(T)
		if err := json.Unmarshal([]byte(data), rec); err != nil {
			return nil, fmt.Errorf("cannot decode stored record: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
