// Package broker defines the broker-neutral shape of parsed transaction
// history: the raw transaction record every parser produces, the per-row
// error carrier, and the classification of raw type/subtype/action triples
// into the canonical taxonomy.
package broker

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Instrument types as reported by brokers.
const (
	InstrumentEquity       = "Equity"
	InstrumentEquityOption = "Equity Option"
	InstrumentFuture       = "Future"
	InstrumentCrypto       = "Cryptocurrency"
)

// RawTransaction is one transaction-history row, parsed but not yet
// classified. It is immutable once produced by a parser.
type RawTransaction struct {
	Date             time.Time
	Type             string // broker transaction type, e.g. "Trade"
	SubType          string // broker sub type, e.g. "Sell to Open"
	Action           string // broker action code, e.g. "SELL_TO_OPEN"
	Symbol           string
	InstrumentType   string
	Description      string
	Value            decimal.Decimal
	Quantity         decimal.Decimal
	AveragePrice     decimal.Decimal
	Commissions      decimal.Decimal
	Fees             decimal.Decimal
	Multiplier       decimal.Decimal
	RootSymbol       string
	UnderlyingSymbol string
	Expiration       time.Time // zero when the row has no expiration
	Strike           decimal.Decimal
	CallOrPut        string // "CALL", "PUT" or ""
	OrderID          string
	Currency         string

	// Diagnostics, carried through the whole pipeline.
	Line int    // 1-based line number in the source file
	Raw  string // the raw source line
}

// Underlying returns the best known underlying ticker for the row: the
// underlying symbol when present, else the root symbol, else the symbol.
func (t RawTransaction) Underlying() string {
	if t.UnderlyingSymbol != "" {
		return t.UnderlyingSymbol
	}
	if t.RootSymbol != "" {
		return t.RootSymbol
	}
	return t.Symbol
}

// RowError records a row that failed to parse or classify. The file
// continues past it.
type RowError struct {
	Line int
	Raw  string
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// SkippedSection records an input section that was recognized as irrelevant
// and deliberately not parsed.
type SkippedSection struct {
	Name   string
	Reason string
}

// Result is the outcome of parsing one file.
//
// Success is false as soon as one row failed, but Transactions still holds
// every row that parsed. Only an unreadable input or an invalid header
// yields a Result with no transactions at all.
type Result struct {
	Success      bool
	Transactions []RawTransaction
	Errors       []RowError
	Skipped      []SkippedSection
	Processed    int // rows successfully parsed
	SkippedRows  int // rows deliberately not parsed (subtotals, irrelevant sections)
}

// Fail records a row-level failure.
func (r *Result) Fail(line int, raw string, err error) {
	r.Success = false
	r.Errors = append(r.Errors, RowError{Line: line, Raw: raw, Err: err})
}

// Keep records a successfully parsed transaction.
func (r *Result) Keep(tx RawTransaction) {
	r.Transactions = append(r.Transactions, tx)
	r.Processed++
}

// Skip records a deliberately skipped section.
func (r *Result) Skip(name, reason string) {
	r.Skipped = append(r.Skipped, SkippedSection{Name: name, Reason: reason})
}
