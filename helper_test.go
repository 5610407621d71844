package binnacle

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DarioAlonsoCerezo/binnacle/date"
)

// USD is a helper for tests to create dollar money from a constant.
func USD(v float64) Money { return M(v, "USD") }

// EUR is a helper for tests to create euro money from a constant.
func EUR(v float64) Money { return M(v, "EUR") }

// at parses an RFC3339-ish timestamp for test fixtures.
func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		panic(err.Error())
	}
	return t
}

// strike converts a float constant to a decimal strike.
func strike(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// putAt builds a single-unit SPY put trade for matcher and snapshot tests.
func putAt(when string, code OptionCode, strikePrice, value float64) *OptionTrade {
	return NewOptionTrade(at(when), "SPY", "main", code, Put,
		strike(strikePrice), date.New(2024, time.June, 21), Q(1),
		USD(value), USD(0), USD(0))
}

// memResolver is an in-memory persistence collaborator for tests.
type memResolver struct {
	tickers    map[string]int64
	currencies map[string]int64
	accounts   map[string]int64
	nextID     int64

	options   []*OptionTrade
	equities  []*EquityTrade
	movements []*Movement
	snapshots []*Snapshot

	failWith  error // when set, every call fails with it
	failSaves error // when set, only the Save methods fail
}

func newMemResolver() *memResolver {
	return &memResolver{
		tickers:    make(map[string]int64),
		currencies: make(map[string]int64),
		accounts:   make(map[string]int64),
	}
}

func (m *memResolver) getOrCreate(table map[string]int64, key string) (int64, bool, error) {
	if m.failWith != nil {
		return 0, false, m.failWith
	}
	if id, ok := table[key]; ok {
		return id, false, nil
	}
	m.nextID++
	table[key] = m.nextID
	return m.nextID, true, nil
}

func (m *memResolver) GetOrCreateTicker(_ context.Context, symbol string) (int64, bool, error) {
	return m.getOrCreate(m.tickers, symbol)
}

func (m *memResolver) GetOrCreateCurrency(_ context.Context, code string) (int64, bool, error) {
	return m.getOrCreate(m.currencies, code)
}

func (m *memResolver) GetOrCreateAccount(_ context.Context, name string) (int64, bool, error) {
	return m.getOrCreate(m.accounts, name)
}

func (m *memResolver) saveErr() error {
	if m.failWith != nil {
		return m.failWith
	}
	return m.failSaves
}

func (m *memResolver) SaveOptionTrade(_ context.Context, t *OptionTrade) error {
	if err := m.saveErr(); err != nil {
		return err
	}
	m.options = append(m.options, t)
	return nil
}

func (m *memResolver) SaveEquityTrade(_ context.Context, t *EquityTrade) error {
	if err := m.saveErr(); err != nil {
		return err
	}
	m.equities = append(m.equities, t)
	return nil
}

func (m *memResolver) SaveMovement(_ context.Context, mv *Movement) error {
	if err := m.saveErr(); err != nil {
		return err
	}
	m.movements = append(m.movements, mv)
	return nil
}

func (m *memResolver) SaveSnapshot(_ context.Context, s *Snapshot) error {
	if err := m.saveErr(); err != nil {
		return err
	}
	m.snapshots = append(m.snapshots, s)
	return nil
}
