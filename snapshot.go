package binnacle

import (
	"encoding/json"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/DarioAlonsoCerezo/binnacle/date"
)

// Snapshot is the rolling financial aggregate of one account and currency
// on one date. Snapshots supersede rather than mutate: when a later import
// touches a date again, the new version carries a higher MovementCounter
// and the highest counter is authoritative.
type Snapshot struct {
	Account  string
	Currency string
	Date     date.Date

	// MovementCounter increases by one for every record folded into the
	// account's history, across dates, so it totals the records seen.
	MovementCounter int

	RealizedGains     Money
	UnrealizedGains   Money
	Invested          Money
	Commissions       Money
	Fees              Money
	Deposited         Money
	Withdrawn         Money
	DividendsReceived Money
	OptionsIncome     Money
	OtherIncome       Money

	// OpenTrades reports whether any option leg or equity lot was still
	// open after the last folded record.
	OpenTrades bool
}

func newSnapshot(account, currency string, day date.Date) *Snapshot {
	zero := M(0, currency)
	return &Snapshot{
		Account: account, Currency: currency, Date: day,
		RealizedGains: zero, UnrealizedGains: zero, Invested: zero,
		Commissions: zero, Fees: zero, Deposited: zero, Withdrawn: zero,
		DividendsReceived: zero, OptionsIncome: zero, OtherIncome: zero,
	}
}

// NetCashFlow is the net external cash flow, Deposited minus Withdrawn.
// It is derived on every call, never stored, so the identity holds for
// every snapshot.
func (s *Snapshot) NetCashFlow() Money { return s.Deposited.Sub(s.Withdrawn) }

// MarshalJSON implements the json.Marshaler interface for Snapshot.
// Monetary fields are bare decimals in the snapshot's single currency.
// NetCashFlow is not written; it is derived, never stored.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("account", s.Account)
	w.Append("currency", s.Currency)
	w.Append("date", s.Date)
	w.Append("movementCounter", s.MovementCounter)
	w.Append("realizedGains", s.RealizedGains.Decimal())
	w.Append("unrealizedGains", s.UnrealizedGains.Decimal())
	w.Append("invested", s.Invested.Decimal())
	w.Append("commissions", s.Commissions.Decimal())
	w.Append("fees", s.Fees.Decimal())
	w.Append("deposited", s.Deposited.Decimal())
	w.Append("withdrawn", s.Withdrawn.Decimal())
	w.Append("dividendsReceived", s.DividendsReceived.Decimal())
	w.Append("optionsIncome", s.OptionsIncome.Decimal())
	w.Append("otherIncome", s.OtherIncome.Decimal())
	w.Append("openTrades", s.OpenTrades)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface for Snapshot.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var temp struct {
		Account           string          `json:"account"`
		Currency          string          `json:"currency"`
		Date              date.Date       `json:"date"`
		MovementCounter   int             `json:"movementCounter"`
		RealizedGains     decimal.Decimal `json:"realizedGains"`
		UnrealizedGains   decimal.Decimal `json:"unrealizedGains"`
		Invested          decimal.Decimal `json:"invested"`
		Commissions       decimal.Decimal `json:"commissions"`
		Fees              decimal.Decimal `json:"fees"`
		Deposited         decimal.Decimal `json:"deposited"`
		Withdrawn         decimal.Decimal `json:"withdrawn"`
		DividendsReceived decimal.Decimal `json:"dividendsReceived"`
		OptionsIncome     decimal.Decimal `json:"optionsIncome"`
		OtherIncome       decimal.Decimal `json:"otherIncome"`
		OpenTrades        bool            `json:"openTrades"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	s.Account = temp.Account
	s.Currency = temp.Currency
	s.Date = temp.Date
	s.MovementCounter = temp.MovementCounter
	s.RealizedGains = M(temp.RealizedGains, temp.Currency)
	s.UnrealizedGains = M(temp.UnrealizedGains, temp.Currency)
	s.Invested = M(temp.Invested, temp.Currency)
	s.Commissions = M(temp.Commissions, temp.Currency)
	s.Fees = M(temp.Fees, temp.Currency)
	s.Deposited = M(temp.Deposited, temp.Currency)
	s.Withdrawn = M(temp.Withdrawn, temp.Currency)
	s.DividendsReceived = M(temp.DividendsReceived, temp.Currency)
	s.OptionsIncome = M(temp.OptionsIncome, temp.Currency)
	s.OtherIncome = M(temp.OtherIncome, temp.Currency)
	s.OpenTrades = temp.OpenTrades
	return nil
}

// Supersedes reports whether s replaces other as the authoritative
// snapshot of the same account, currency and date.
func (s *Snapshot) Supersedes(other *Snapshot) bool {
	return s.Account == other.Account && s.Currency == other.Currency &&
		s.Date == other.Date && s.MovementCounter > other.MovementCounter
}

// Aggregator folds canonical records into dated snapshots, one trail per
// account and currency. It keeps the running position state the fold
// needs: equity lots for FIFO cost basis, open option legs, and realized
// totals.
type Aggregator struct {
	prices   *PriceTable
	books    map[bookKey]*book
	openings map[string]*OptionTrade // option openings folded so far, by id
}

type bookKey struct{ account, currency string }

type book struct {
	account  string
	currency string
	counter  int
	history  date.History[*Snapshot]

	lots        map[string]lots // equity lots per ticker
	realized    Money           // running realized gains
	longPremium Money           // premium outlay of option legs bought and still open
	openOptions int             // option legs open as of the fold point
}

// NewAggregator returns an aggregator reading prices from the given
// table. A nil table means no unrealized marks beyond cost.
func NewAggregator(prices *PriceTable) *Aggregator {
	if prices == nil {
		prices = NewPriceTable()
	}
	return &Aggregator{
		prices:   prices,
		books:    make(map[bookKey]*book),
		openings: make(map[string]*OptionTrade),
	}
}

// Aggregate folds a batch of records into the snapshot trail. Records are
// ordered by timestamp, ties broken by input order, before folding, so
// call it once with the whole batch. It returns the full trail.
func (a *Aggregator) Aggregate(records []Record) []*Snapshot {
	ordered := make([]Record, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].When().Before(ordered[j].When())
	})
	for _, r := range ordered {
		a.fold(r)
	}
	return a.Snapshots()
}

// Latest returns the authoritative snapshot of an account and currency,
// or nil when no record ever touched that pair.
func (a *Aggregator) Latest(account, currency string) *Snapshot {
	b := a.books[bookKey{account, currency}]
	if b == nil {
		return nil
	}
	_, s := b.history.Latest()
	return s
}

// Snapshots returns the whole trail ordered by account, currency, date.
func (a *Aggregator) Snapshots() []*Snapshot {
	keys := make([]bookKey, 0, len(a.books))
	for key := range a.books {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].account != keys[j].account {
			return keys[i].account < keys[j].account
		}
		return keys[i].currency < keys[j].currency
	})
	var out []*Snapshot
	for _, key := range keys {
		for _, s := range a.books[key].history.Values() {
			out = append(out, s)
		}
	}
	return out
}

func (a *Aggregator) book(account, currency string) *book {
	key := bookKey{account, currency}
	b := a.books[key]
	if b == nil {
		b = &book{
			account:     account,
			currency:    currency,
			lots:        make(map[string]lots),
			realized:    M(0, currency),
			longPremium: M(0, currency),
		}
		a.books[key] = b
	}
	return b
}

// snapshotFor returns the snapshot under construction for a day, seeding
// it from the latest earlier snapshot on first touch.
func (b *book) snapshotFor(day date.Date) *Snapshot {
	if s, ok := b.history.Get(day); ok {
		return s
	}
	s := newSnapshot(b.account, b.currency, day)
	if _, prev := b.history.Latest(); prev != nil {
		seeded := *prev
		seeded.Date = day
		s = &seeded
	}
	b.history.Append(day, s)
	return s
}

func (a *Aggregator) fold(r Record) {
	b := a.book(r.Account(), r.Currency())
	s := b.snapshotFor(date.FromTime(r.When()))
	b.counter++
	s.MovementCounter = b.counter

	switch rec := r.(type) {
	case *Movement:
		a.foldMovement(b, s, rec)
	case *EquityTrade:
		a.foldEquity(b, s, rec)
	case *OptionTrade:
		a.foldOption(b, s, rec)
	}

	s.RealizedGains = b.realized
	s.Invested = b.invested()
	s.UnrealizedGains = b.unrealized(a.prices, s.Date)
	s.OpenTrades = b.openPositions()
}

func (a *Aggregator) foldMovement(b *book, s *Snapshot, m *Movement) {
	switch m.Type {
	case MovementDeposit, MovementACATMoneyIn:
		s.Deposited = s.Deposited.Add(m.Amount.Abs())
	case MovementWithdrawal, MovementACATMoneyOut:
		s.Withdrawn = s.Withdrawn.Add(m.Amount.Abs())
	case MovementDividend:
		// Signed, so a dividend reversal row takes the payout back.
		s.DividendsReceived = s.DividendsReceived.Add(m.Amount)
	case MovementFee:
		// Fee amounts arrive negative; the bucket counts costs positive.
		s.Fees = s.Fees.Sub(m.Amount)
	case MovementInterestEarned, MovementInterestPaid,
		MovementBalanceAdjustment, MovementConversion, MovementOther:
		s.OtherIncome = s.OtherIncome.Add(m.Amount)
	case MovementACATSecuritiesIn:
		// The transfer amount, when the broker reports one, becomes the
		// basis of the incoming lot.
		b.lots[m.Ticker()] = b.lots[m.Ticker()].buy(m.When(), m.Quantity, m.Amount.Abs())
	case MovementACATSecuritiesOut:
		// Transferring out removes lots without realizing a gain.
		b.lots[m.Ticker()] = b.lots[m.Ticker()].sell(m.Quantity)
	}
}

func (a *Aggregator) foldEquity(b *book, s *Snapshot, t *EquityTrade) {
	s.Commissions = s.Commissions.Add(t.Commissions)
	s.Fees = s.Fees.Add(t.Fees)

	ticker := t.Ticker()
	if t.Quantity.IsNegative() {
		sold := t.Quantity.Abs()
		basis := b.lots[ticker].fifoCostOfSelling(sold)
		b.lots[ticker] = b.lots[ticker].sell(sold)
		proceeds := t.Price.Mul(sold)
		b.realized = b.realized.Add(proceeds.Sub(basis))
	} else {
		b.lots[ticker] = b.lots[ticker].buy(t.When(), t.Quantity, t.Price.Mul(t.Quantity))
	}
	a.prices.Learn(ticker, date.FromTime(t.When()), t.Price)
}

func (a *Aggregator) foldOption(b *book, s *Snapshot, t *OptionTrade) {
	s.Commissions = s.Commissions.Add(t.Commissions)
	s.Fees = s.Fees.Add(t.Fees)
	s.OptionsIncome = s.OptionsIncome.Add(t.NetPremium)

	switch {
	case t.Code.IsOpening():
		a.openings[t.ID()] = t
		b.openOptions++
		if t.Code == OptBuyToOpen {
			b.longPremium = b.longPremium.Add(t.NetPremium.Neg())
		}
	case t.Code.IsClosing() && t.ClosedWith != "":
		// Realized gains come from linked pairs only; an unlinked closing
		// stays in OptionsIncome until a later import supplies its
		// opening.
		opening, ok := a.openings[t.ClosedWith]
		if !ok {
			return
		}
		b.realized = b.realized.Add(opening.NetPremium).Add(t.NetPremium)
		b.openOptions--
		if opening.Code == OptBuyToOpen {
			b.longPremium = b.longPremium.Sub(opening.NetPremium.Neg())
		}
	}
	// Expiration and exercise notations fold their fees and premium but
	// never position state. A linked assignment realizes like a closing.
}

// invested totals the cost basis of held equity lots plus the premium
// outlay of long option legs still open.
func (b *book) invested() Money {
	total := b.longPremium
	for _, l := range b.lots {
		total = total.Add(l.costBasis())
	}
	return total
}

// unrealized marks held equity lots against the last price known on or
// before the day. Open option legs carry no mark; imports provide no
// option quotes.
func (b *book) unrealized(prices *PriceTable, day date.Date) Money {
	total := M(0, b.currency)
	for ticker, l := range b.lots {
		position := l.position()
		if position.IsZero() {
			continue
		}
		price, ok := prices.AsOf(ticker, day)
		if !ok || price.Currency() != b.currency {
			continue
		}
		total = total.Add(price.Mul(position).Sub(l.costBasis()))
	}
	return total
}

func (b *book) openPositions() bool {
	if b.openOptions > 0 {
		return true
	}
	for _, l := range b.lots {
		if !l.position().IsZero() {
			return true
		}
	}
	return false
}
