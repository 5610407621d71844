package binnacle

import (
	"context"
	"fmt"

	"github.com/DarioAlonsoCerezo/binnacle/broker"
	"github.com/DarioAlonsoCerezo/binnacle/date"
)

// Classified is a raw broker transaction with its canonical classification
// attached.
type Classified struct {
	broker.RawTransaction
	Class broker.Classification
}

// ClassifyAll classifies every raw transaction. Rows with an unrecognized
// type triple become RowErrors; the rest keep their input order.
func ClassifyAll(txs []broker.RawTransaction) (classified []Classified, errs []broker.RowError) {
	for _, tx := range txs {
		class, err := broker.Classify(tx.Type, tx.SubType, tx.Action)
		if err != nil {
			errs = append(errs, broker.RowError{Line: tx.Line, Raw: tx.Raw, Err: err})
			continue
		}
		classified = append(classified, Classified{RawTransaction: tx, Class: class})
	}
	return classified, errs
}

// Resolver is the persistence collaborator. Get-or-create calls return the
// entity id and whether the call created it; Save calls persist canonical
// records after matching and aggregation.
type Resolver interface {
	GetOrCreateTicker(ctx context.Context, symbol string) (id int64, created bool, err error)
	GetOrCreateCurrency(ctx context.Context, code string) (id int64, created bool, err error)
	GetOrCreateAccount(ctx context.Context, name string) (id int64, created bool, err error)
	SaveOptionTrade(ctx context.Context, t *OptionTrade) error
	SaveEquityTrade(ctx context.Context, t *EquityTrade) error
	SaveMovement(ctx context.Context, m *Movement) error
	SaveSnapshot(ctx context.Context, s *Snapshot) error
}

// Conversion is the outcome of converting one file's classified
// transactions.
type Conversion struct {
	Records    []Record // option trades are still unexpanded candidates
	Errors     []broker.RowError
	NewTickers int
}

// DefaultCurrency is assumed when a broker row carries no currency code.
const DefaultCurrency = "USD"

var optionCodes = map[broker.SubType]OptionCode{
	broker.SubBuyToOpen:   OptBuyToOpen,
	broker.SubSellToOpen:  OptSellToOpen,
	broker.SubBuyToClose:  OptBuyToClose,
	broker.SubSellToClose: OptSellToClose,
	// Plain buys and sells on an option row carry no open/close intent;
	// they are taken as openings and left to the matcher.
	broker.SubBuy:  OptBuyToOpen,
	broker.SubSell: OptSellToOpen,
}

var tradeCodes = map[broker.SubType]TradeCode{
	broker.SubBuy:         TradeBuy,
	broker.SubSell:        TradeSell,
	broker.SubBuyToOpen:   TradeBuyToOpen,
	broker.SubSellToOpen:  TradeSellToOpen,
	broker.SubBuyToClose:  TradeBuyToClose,
	broker.SubSellToClose: TradeSellToClose,
}

// Convert maps classified, adjustment-resolved transactions into canonical
// records. Records keep the input order; the legs of detected adjustment
// pairs follow them (downstream stages order by timestamp). Row-scoped
// conversion failures land in Conversion.Errors; the returned error is
// non-nil only when the persistence collaborator fails.
func Convert(ctx context.Context, resolver Resolver, account string, txs []Classified, pairs []DetectedAdjustment) (*Conversion, error) {
	c := &converter{
		ctx:        ctx,
		resolver:   resolver,
		account:    account,
		currencies: make(map[string]bool),
		tickers:    make(map[string]bool),
		out:        &Conversion{},
	}
	if _, _, err := resolver.GetOrCreateAccount(ctx, account); err != nil {
		return nil, fmt.Errorf("cannot resolve account %q: %w", account, err)
	}

	for _, tx := range txs {
		if err := c.convert(tx); err != nil {
			return nil, err
		}
	}
	for _, pair := range pairs {
		if err := c.convertPair(pair); err != nil {
			return nil, err
		}
	}
	return c.out, nil
}

type converter struct {
	ctx        context.Context
	resolver   Resolver
	account    string
	currencies map[string]bool // resolved currency codes
	tickers    map[string]bool // resolved ticker symbols
	out        *Conversion
}

// fail records a row-scoped conversion failure.
func (c *converter) fail(tx Classified, err error) {
	c.out.Errors = append(c.out.Errors, broker.RowError{Line: tx.Line, Raw: tx.Raw, Err: err})
}

// keep appends a canonical record.
func (c *converter) keep(r Record) { c.out.Records = append(c.out.Records, r) }

// currency returns the row currency, defaulting when the broker left it
// blank, and get-or-creates it once per code.
func (c *converter) currency(tx broker.RawTransaction) (string, error) {
	code := tx.Currency
	if code == "" {
		code = DefaultCurrency
	}
	if !c.currencies[code] {
		if _, _, err := c.resolver.GetOrCreateCurrency(c.ctx, code); err != nil {
			return "", fmt.Errorf("cannot resolve currency %q: %w", code, err)
		}
		c.currencies[code] = true
	}
	return code, nil
}

// ticker get-or-creates the symbol once and counts first creations.
func (c *converter) ticker(symbol string) error {
	if symbol == "" || c.tickers[symbol] {
		return nil
	}
	_, created, err := c.resolver.GetOrCreateTicker(c.ctx, symbol)
	if err != nil {
		return fmt.Errorf("cannot resolve ticker %q: %w", symbol, err)
	}
	c.tickers[symbol] = true
	if created {
		c.out.NewTickers++
	}
	return nil
}

// convert maps one classified transaction. Returns a non-nil error only on
// collaborator failure.
func (c *converter) convert(tx Classified) error {
	switch tx.Class.Class {
	case broker.ClassTrade:
		if isOption(tx.RawTransaction) {
			code, ok := optionCodes[tx.Class.SubType]
			if !ok {
				c.fail(tx, broker.ErrInvalidType(tx.Type, tx.SubType, tx.Action))
				return nil
			}
			return c.convertOption(tx, code)
		}
		code, ok := tradeCodes[tx.Class.SubType]
		if !ok {
			c.fail(tx, broker.ErrInvalidType(tx.Type, tx.SubType, tx.Action))
			return nil
		}
		return c.convertEquity(tx, code)

	case broker.ClassMoneyMovement:
		return c.convertMovement(tx)

	case broker.ClassReceiveDeliver:
		return c.convertReceiveDeliver(tx)
	}
	c.fail(tx, broker.ErrInvalidType(tx.Type, tx.SubType, tx.Action))
	return nil
}

// isOption reports whether a trade row is an option execution.
func isOption(tx broker.RawTransaction) bool {
	return tx.CallOrPut != "" || tx.InstrumentType == broker.InstrumentEquityOption
}

// convertOption builds an option trade candidate from one row. The fast
// failures here are the converter's contract: missing option type,
// expiration or strike fail the row, not the file.
func (c *converter) convertOption(tx Classified, code OptionCode) error {
	ticker := tx.Underlying()
	if ticker == "" {
		c.fail(tx, broker.ErrMissingField("Symbol"))
		return nil
	}
	var optionType OptionType
	switch tx.CallOrPut {
	case "CALL":
		optionType = Call
	case "PUT":
		optionType = Put
	default:
		c.fail(tx, broker.ErrMissingField("Call or Put"))
		return nil
	}
	if tx.Expiration.IsZero() {
		c.fail(tx, broker.ErrMissingField("Expiration Date"))
		return nil
	}
	if !tx.Strike.IsPositive() {
		c.fail(tx, broker.ErrMissingField("Strike Price"))
		return nil
	}

	currency, err := c.currency(tx.RawTransaction)
	if err != nil {
		return err
	}
	if err := c.ticker(ticker); err != nil {
		return err
	}

	quantity := Q(tx.Quantity).Abs()
	if quantity.IsZero() {
		quantity = Q(1)
	}
	t := NewOptionTrade(tx.Date, ticker, c.account, code, optionType,
		tx.Strike, date.FromTime(tx.Expiration), quantity,
		M(tx.Value, currency),
		M(tx.Commissions, currency).Abs(),
		M(tx.Fees, currency).Abs())
	if tx.Multiplier.IsPositive() {
		t.Multiplier = Q(tx.Multiplier)
	}
	t.notes = tx.Description
	c.keep(t)
	return nil
}

func (c *converter) convertEquity(tx Classified, code TradeCode) error {
	ticker := tx.Underlying()
	if ticker == "" {
		c.fail(tx, broker.ErrMissingField("Symbol"))
		return nil
	}
	currency, err := c.currency(tx.RawTransaction)
	if err != nil {
		return err
	}
	if err := c.ticker(ticker); err != nil {
		return err
	}

	quantity := Q(tx.Quantity).Abs()
	if quantity.IsZero() {
		c.fail(tx, broker.ErrMissingField("Quantity"))
		return nil
	}
	if !code.IsBuy() {
		quantity = quantity.Mul(Q(-1))
	}
	t := NewEquityTrade(tx.Date, ticker, c.account, code, quantity,
		M(tx.AveragePrice, currency).Abs(),
		M(tx.Commissions, currency).Abs(),
		M(tx.Fees, currency).Abs())
	t.notes = tx.Description
	c.keep(t)
	return nil
}

func (c *converter) convertMovement(tx Classified) error {
	currency, err := c.currency(tx.RawTransaction)
	if err != nil {
		return err
	}

	var mt MovementType
	switch tx.Class.SubType {
	case broker.SubDeposit:
		mt = MovementDeposit
	case broker.SubWithdrawal:
		mt = MovementWithdrawal
	case broker.SubTransfer:
		// The sub type does not carry direction; the sign does.
		if tx.Value.IsNegative() {
			mt = MovementWithdrawal
		} else {
			mt = MovementDeposit
		}
	case broker.SubCreditInterest:
		mt = MovementInterestEarned
	case broker.SubDebitInterest:
		mt = MovementInterestPaid
	case broker.SubDividend:
		mt = MovementDividend
	case broker.SubFee:
		mt = MovementFee
	case broker.SubBalanceAdjustment:
		mt = MovementBalanceAdjustment
	case broker.SubConversion:
		mt = MovementConversion
	case broker.SubMarkToMarket:
		mt = MovementOther
	default:
		c.fail(tx, broker.ErrInvalidType(tx.Type, tx.SubType, tx.Action))
		return nil
	}

	m := NewMovement(tx.Date, mt, c.account, M(tx.Value, currency), tx.Description)
	if ticker := tx.Underlying(); ticker != "" && mt == MovementDividend {
		if err := c.ticker(ticker); err != nil {
			return err
		}
		m.ticker = ticker
	}
	c.keep(m)
	return nil
}

func (c *converter) convertReceiveDeliver(tx Classified) error {
	switch tx.Class.SubType {
	case broker.SubACAT:
		return c.convertACAT(tx)

	case broker.SubExpiration:
		return c.convertOption(tx, OptExpired)
	case broker.SubAssignment:
		return c.convertOption(tx, OptAssigned)
	case broker.SubExercise:
		return c.convertOption(tx, OptExercised)

	case broker.SubSpecialDividend:
		// An unpaired special dividend leg converts as a plain option
		// trade; the side follows the premium sign.
		code := OptSellToOpen
		if tx.Value.IsNegative() {
			code = OptBuyToClose
		}
		return c.convertOption(tx, code)

	case broker.SubSymbolChange, broker.SubForwardSplit, broker.SubReverseSplit:
		currency, err := c.currency(tx.RawTransaction)
		if err != nil {
			return err
		}
		notes := fmt.Sprintf("%s %s", tx.Class.SubType, tx.Underlying())
		if tx.Description != "" {
			notes = tx.Description
		}
		m := NewMovement(tx.Date, MovementOther, c.account, M(tx.Value, currency), notes)
		if ticker := tx.Underlying(); ticker != "" {
			if err := c.ticker(ticker); err != nil {
				return err
			}
			m.ticker = ticker
		}
		c.keep(m)
		return nil
	}
	c.fail(tx, broker.ErrInvalidType(tx.Type, tx.SubType, tx.Action))
	return nil
}

// convertACAT distinguishes securities transfers (a symbol is present) from
// money transfers, and direction by the sign of the quantity or amount.
func (c *converter) convertACAT(tx Classified) error {
	currency, err := c.currency(tx.RawTransaction)
	if err != nil {
		return err
	}

	ticker := tx.Underlying()
	if ticker != "" {
		if err := c.ticker(ticker); err != nil {
			return err
		}
		mt := MovementACATSecuritiesIn
		out := tx.Quantity.IsNegative()
		if tx.Quantity.IsZero() {
			out = tx.Value.IsNegative()
		}
		if out {
			mt = MovementACATSecuritiesOut
		}
		m := NewMovement(tx.Date, mt, c.account, M(tx.Value, currency), tx.Description)
		m.ticker = ticker
		m.Quantity = Q(tx.Quantity).Abs()
		if m.Quantity.IsZero() {
			c.fail(tx, broker.ErrMissingField("Quantity"))
			return nil
		}
		c.keep(m)
		return nil
	}

	mt := MovementACATMoneyIn
	if tx.Value.IsNegative() {
		mt = MovementACATMoneyOut
	}
	c.keep(NewMovement(tx.Date, mt, c.account, M(tx.Value, currency), tx.Description))
	return nil
}

// convertPair turns a detected strike adjustment into its two option legs.
// The closing leg carries the original strike, the reopening leg the
// lowered one; both carry the adjustment summary in their notes.
func (c *converter) convertPair(pair DetectedAdjustment) error {
	notes := fmt.Sprintf("special dividend strike adjustment %s: strike %s to %s, dividend %s",
		pair.Ticker, pair.OriginalStrike, pair.NewStrike, pair.Dividend)

	closing := Classified{RawTransaction: pair.Closing}
	if err := c.convertOption(closing, OptBuyToClose); err != nil {
		return err
	}
	opening := Classified{RawTransaction: pair.Opening}
	if err := c.convertOption(opening, OptSellToOpen); err != nil {
		return err
	}

	// convertOption appended both legs (the pair was validated by the
	// detector, so neither can fail a required field).
	n := len(c.out.Records)
	if n >= 2 {
		if t, ok := c.out.Records[n-2].(*OptionTrade); ok {
			t.notes = notes
		}
		if t, ok := c.out.Records[n-1].(*OptionTrade); ok {
			t.notes = notes
		}
	}
	return nil
}
