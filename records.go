package binnacle

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DarioAlonsoCerezo/binnacle/date"
)

// RecordKind is a typed string identifying canonical record types.
type RecordKind string

// Record kinds used as the JSONL discriminator.
const (
	KindOptionTrade RecordKind = "option-trade"
	KindEquityTrade RecordKind = "equity-trade"
	KindMovement    RecordKind = "movement"
)

// DefaultMultiplier is the contract multiplier assumed when a broker row
// carries none.
var DefaultMultiplier = Q(100)

// Record is the common interface of all canonical records produced by an
// import.
type Record interface {
	Kind() RecordKind  // Kind returns the record discriminator (e.g. "option-trade").
	ID() string        // ID returns the record's unique, time-sortable identifier.
	When() time.Time   // When returns the record's timestamp.
	Account() string   // Account returns the broker account the record belongs to.
	Currency() string  // Currency returns the record's ISO currency code.
	Equal(Record) bool // Equal reports field-by-field equality with another record.
	Validate() error   // Validate checks the record's own invariants.
}

type baseRec struct {
	record RecordKind
	id     string
	time   time.Time
	notes  string
}

// Kind returns the record discriminator.
func (r baseRec) Kind() RecordKind { return r.record }

// ID returns the record identifier.
func (r baseRec) ID() string { return r.id }

// When returns the record timestamp.
func (r baseRec) When() time.Time { return r.time }

// Notes returns the free-form note attached to the record.
func (r baseRec) Notes() string { return r.notes }

func (r baseRec) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("record", r.record)
	w.Append("id", r.id)
	w.Append("time", r.time)
	w.Optional("notes", r.notes)
	return w.MarshalJSON()
}

func (r baseRec) validate() error {
	if r.id == "" {
		return errors.New("record id is missing")
	}
	if r.time.IsZero() {
		return errors.New("record timestamp is missing")
	}
	return nil
}

// assetRec is the component shared by records that belong to an account and
// a currency, and usually to a ticker.
type assetRec struct {
	baseRec
	ticker   string
	account  string
	currency string
}

// Ticker returns the record's underlying ticker symbol ("" for pure cash
// movements).
func (r assetRec) Ticker() string { return r.ticker }

// Account returns the broker account identifier.
func (r assetRec) Account() string { return r.account }

// Currency returns the ISO currency code.
func (r assetRec) Currency() string { return r.currency }

func (r assetRec) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(r.baseRec)
	w.Optional("ticker", r.ticker)
	w.Append("account", r.account)
	w.Append("currency", r.currency)
	return w.MarshalJSON()
}

func (r assetRec) validate() error {
	if err := r.baseRec.validate(); err != nil {
		return err
	}
	if r.account == "" {
		return errors.New("record account is missing")
	}
	if r.currency == "" {
		return errors.New("record currency is missing")
	}
	return nil
}

// jsonBase mirrors the embedded components for unmarshaling.
type jsonBase struct {
	Record   RecordKind `json:"record"`
	ID       string     `json:"id"`
	Time     time.Time  `json:"time"`
	Notes    string     `json:"notes"`
	Ticker   string     `json:"ticker"`
	Account  string     `json:"account"`
	Currency string     `json:"currency"`
}

func (j jsonBase) assetRec() assetRec {
	return assetRec{
		baseRec:  baseRec{record: j.Record, id: j.ID, time: j.Time, notes: j.Notes},
		ticker:   j.Ticker,
		account:  j.Account,
		currency: j.Currency,
	}
}

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "CALL"
	Put  OptionType = "PUT"
)

// OptionCode identifies what an option record did.
type OptionCode string

const (
	OptBuyToOpen   OptionCode = "BuyToOpen"
	OptSellToOpen  OptionCode = "SellToOpen"
	OptBuyToClose  OptionCode = "BuyToClose"
	OptSellToClose OptionCode = "SellToClose"
	OptAssigned    OptionCode = "Assigned"
	OptExpired     OptionCode = "Expired"
	OptExercised   OptionCode = "Exercised"
)

// IsOpening reports whether the code opens a position.
func (c OptionCode) IsOpening() bool { return c == OptBuyToOpen || c == OptSellToOpen }

// IsClosing reports whether the code closes a position. Expired and
// Exercised records memorialize an event without mutating position state.
func (c OptionCode) IsClosing() bool {
	return c == OptBuyToClose || c == OptSellToClose || c == OptAssigned
}

// TradeCode identifies what an equity trade did.
type TradeCode string

const (
	TradeBuy         TradeCode = "Buy"
	TradeSell        TradeCode = "Sell"
	TradeBuyToOpen   TradeCode = "BuyToOpen"
	TradeSellToOpen  TradeCode = "SellToOpen"
	TradeBuyToClose  TradeCode = "BuyToClose"
	TradeSellToClose TradeCode = "SellToClose"
)

// IsBuy reports whether the code acquires shares.
func (c TradeCode) IsBuy() bool {
	return c == TradeBuy || c == TradeBuyToOpen || c == TradeBuyToClose
}

// MovementType is the canonical taxonomy of cash and transfer movements.
type MovementType string

const (
	MovementDeposit           MovementType = "Deposit"
	MovementWithdrawal        MovementType = "Withdrawal"
	MovementDividend          MovementType = "Dividend"
	MovementInterestEarned    MovementType = "InterestEarned"
	MovementInterestPaid      MovementType = "InterestPaid"
	MovementFee               MovementType = "Fee"
	MovementBalanceAdjustment MovementType = "BalanceAdjustment"
	MovementACATSecuritiesIn  MovementType = "ACATSecuritiesIn"
	MovementACATSecuritiesOut MovementType = "ACATSecuritiesOut"
	MovementACATMoneyIn       MovementType = "ACATMoneyIn"
	MovementACATMoneyOut      MovementType = "ACATMoneyOut"
	MovementConversion        MovementType = "Conversion"
	MovementOther             MovementType = "Other"
)

var knownMovements = map[MovementType]bool{
	MovementDeposit: true, MovementWithdrawal: true, MovementDividend: true,
	MovementInterestEarned: true, MovementInterestPaid: true, MovementFee: true,
	MovementBalanceAdjustment: true, MovementACATSecuritiesIn: true,
	MovementACATSecuritiesOut: true, MovementACATMoneyIn: true,
	MovementACATMoneyOut: true, MovementConversion: true, MovementOther: true,
}

// --- OptionTrade ---

// OptionTrade is one option contract-unit. After expansion Quantity is
// always 1; converter output that still awaits expansion may carry a larger
// quantity.
//
// Lifecycle: opening records are created with IsOpen=true and ClosedWith
// empty, and are mutated exactly once by the matcher when a closing record
// consumes them. Closing records are created with IsOpen=false and receive
// the opening record's id in ClosedWith on a successful match; a closing
// that found no opening keeps an empty ClosedWith, which is reported as a
// warning, never an error.
type OptionTrade struct {
	assetRec
	Expiration  date.Date
	Strike      decimal.Decimal
	Multiplier  Quantity
	Premium     Money // |value| of the execution
	NetPremium  Money // value - commissions - fees
	Commissions Money
	Fees        Money
	OptionType  OptionType
	Code        OptionCode
	Quantity    Quantity
	IsOpen      bool
	ClosedWith  string
}

// NewOptionTrade creates an option trade record from one broker execution.
// Premium and NetPremium are derived from the signed execution value;
// IsOpen follows the code. The multiplier defaults to 100.
func NewOptionTrade(at time.Time, ticker, account string, code OptionCode, optionType OptionType,
	strike decimal.Decimal, expiration date.Date, quantity Quantity, value, commissions, fees Money) *OptionTrade {
	return &OptionTrade{
		assetRec: assetRec{
			baseRec:  baseRec{record: KindOptionTrade, id: NewID(), time: at},
			ticker:   ticker,
			account:  account,
			currency: value.Currency(),
		},
		Expiration:  expiration,
		Strike:      strike,
		Multiplier:  DefaultMultiplier,
		Premium:     value.Abs(),
		NetPremium:  value.Sub(commissions).Sub(fees),
		Commissions: commissions,
		Fees:        fees,
		OptionType:  optionType,
		Code:        code,
		Quantity:    quantity,
		IsOpen:      code.IsOpening(),
	}
}

// MarshalJSON implements the json.Marshaler interface for OptionTrade.
func (t OptionTrade) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.assetRec)
	w.Append("expiration", t.Expiration)
	w.Append("strike", t.Strike)
	w.Append("multiplier", t.Multiplier)
	w.Append("premium", t.Premium.Decimal())
	w.Append("netPremium", t.NetPremium.Decimal())
	w.Append("commissions", t.Commissions.Decimal())
	w.Append("fees", t.Fees.Decimal())
	w.Append("optionType", t.OptionType)
	w.Append("code", t.Code)
	w.Append("quantity", t.Quantity)
	w.Append("open", t.IsOpen)
	w.Optional("closedWith", t.ClosedWith)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface for OptionTrade.
// Monetary fields are bare decimals sharing the record's single currency.
func (t *OptionTrade) UnmarshalJSON(data []byte) error {
	var temp struct {
		jsonBase
		Expiration  date.Date       `json:"expiration"`
		Strike      decimal.Decimal `json:"strike"`
		Multiplier  Quantity        `json:"multiplier"`
		Premium     decimal.Decimal `json:"premium"`
		NetPremium  decimal.Decimal `json:"netPremium"`
		Commissions decimal.Decimal `json:"commissions"`
		Fees        decimal.Decimal `json:"fees"`
		OptionType  OptionType      `json:"optionType"`
		Code        OptionCode      `json:"code"`
		Quantity    Quantity        `json:"quantity"`
		Open        bool            `json:"open"`
		ClosedWith  string          `json:"closedWith"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	t.assetRec = temp.assetRec()
	t.Expiration = temp.Expiration
	t.Strike = temp.Strike
	t.Multiplier = temp.Multiplier
	t.Premium = M(temp.Premium, temp.Currency)
	t.NetPremium = M(temp.NetPremium, temp.Currency)
	t.Commissions = M(temp.Commissions, temp.Currency)
	t.Fees = M(temp.Fees, temp.Currency)
	t.OptionType = temp.OptionType
	t.Code = temp.Code
	t.Quantity = temp.Quantity
	t.IsOpen = temp.Open
	t.ClosedWith = temp.ClosedWith
	return nil
}

func (t *OptionTrade) Equal(other Record) bool {
	o, ok := other.(*OptionTrade)
	return ok && t.record == o.record && t.id == o.id && t.time.Equal(o.time) &&
		t.notes == o.notes && t.ticker == o.ticker && t.account == o.account &&
		t.currency == o.currency && t.Expiration == o.Expiration &&
		t.Strike.Equal(o.Strike) && t.Multiplier.Equal(o.Multiplier) &&
		t.Premium.Equal(o.Premium) && t.NetPremium.Equal(o.NetPremium) &&
		t.Commissions.Equal(o.Commissions) && t.Fees.Equal(o.Fees) &&
		t.OptionType == o.OptionType && t.Code == o.Code &&
		t.Quantity.Equal(o.Quantity) && t.IsOpen == o.IsOpen &&
		t.ClosedWith == o.ClosedWith
}

// Validate checks the option trade's fields against the lifecycle rules.
func (t *OptionTrade) Validate() error {
	if err := t.assetRec.validate(); err != nil {
		return err
	}
	if t.ticker == "" {
		return errors.New("option trade ticker is missing")
	}
	if t.OptionType != Call && t.OptionType != Put {
		return fmt.Errorf("option trade type must be %s or %s, got %q", Call, Put, t.OptionType)
	}
	if !t.Strike.IsPositive() {
		return fmt.Errorf("option trade strike must be positive, got %s", t.Strike)
	}
	if t.Expiration.IsZero() {
		return errors.New("option trade expiration is missing")
	}
	if !t.Quantity.IsPositive() {
		return fmt.Errorf("option trade quantity must be positive, got %s", t.Quantity)
	}
	if !t.Multiplier.IsPositive() {
		return fmt.Errorf("option trade multiplier must be positive, got %s", t.Multiplier)
	}
	if t.IsOpen && t.ClosedWith != "" {
		return fmt.Errorf("option trade %s is open but linked to %s", t.id, t.ClosedWith)
	}
	if t.IsOpen && !t.Code.IsOpening() {
		return fmt.Errorf("option trade %s has code %s and cannot be open", t.id, t.Code)
	}
	if !t.IsOpen && t.ClosedWith == "" && t.Code.IsOpening() {
		return fmt.Errorf("option trade %s is closed but not linked to a closing record", t.id)
	}
	return nil
}

// --- EquityTrade ---

// EquityTrade is one stock execution. One record per source row, never
// expanded.
type EquityTrade struct {
	assetRec
	Quantity    Quantity // signed: positive buys, negative sells
	Price       Money    // average price per share
	Commissions Money
	Fees        Money
	Code        TradeCode
}

// NewEquityTrade creates an equity trade record. The record currency
// follows the price.
func NewEquityTrade(at time.Time, ticker, account string, code TradeCode, quantity Quantity, price, commissions, fees Money) *EquityTrade {
	return &EquityTrade{
		assetRec: assetRec{
			baseRec:  baseRec{record: KindEquityTrade, id: NewID(), time: at},
			ticker:   ticker,
			account:  account,
			currency: price.Currency(),
		},
		Quantity:    quantity,
		Price:       price,
		Commissions: commissions,
		Fees:        fees,
		Code:        code,
	}
}

// MarshalJSON implements the json.Marshaler interface for EquityTrade.
func (t EquityTrade) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.assetRec)
	w.Append("quantity", t.Quantity)
	w.Append("price", t.Price.Decimal())
	w.Append("commissions", t.Commissions.Decimal())
	w.Append("fees", t.Fees.Decimal())
	w.Append("code", t.Code)
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface for EquityTrade.
func (t *EquityTrade) UnmarshalJSON(data []byte) error {
	var temp struct {
		jsonBase
		Quantity    Quantity        `json:"quantity"`
		Price       decimal.Decimal `json:"price"`
		Commissions decimal.Decimal `json:"commissions"`
		Fees        decimal.Decimal `json:"fees"`
		Code        TradeCode       `json:"code"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	t.assetRec = temp.assetRec()
	t.Quantity = temp.Quantity
	t.Price = M(temp.Price, temp.Currency)
	t.Commissions = M(temp.Commissions, temp.Currency)
	t.Fees = M(temp.Fees, temp.Currency)
	t.Code = temp.Code
	return nil
}

func (t *EquityTrade) Equal(other Record) bool {
	o, ok := other.(*EquityTrade)
	return ok && t.record == o.record && t.id == o.id && t.time.Equal(o.time) &&
		t.notes == o.notes && t.ticker == o.ticker && t.account == o.account &&
		t.currency == o.currency && t.Quantity.Equal(o.Quantity) &&
		t.Price.Equal(o.Price) && t.Commissions.Equal(o.Commissions) &&
		t.Fees.Equal(o.Fees) && t.Code == o.Code
}

// Validate checks the equity trade's fields.
func (t *EquityTrade) Validate() error {
	if err := t.assetRec.validate(); err != nil {
		return err
	}
	if t.ticker == "" {
		return errors.New("equity trade ticker is missing")
	}
	if t.Quantity.IsZero() {
		return errors.New("equity trade quantity cannot be zero")
	}
	if t.Price.IsNegative() {
		return fmt.Errorf("equity trade price cannot be negative, got %v", t.Price)
	}
	if t.Code.IsBuy() == t.Quantity.IsNegative() {
		return fmt.Errorf("equity trade code %s does not match quantity %s", t.Code, t.Quantity)
	}
	return nil
}

// --- Movement ---

// Movement is a cash movement or a broker-to-broker transfer. ACAT
// securities transfers carry the ticker and quantity; pure cash movements
// leave them empty.
type Movement struct {
	assetRec
	Type     MovementType
	Amount   Money // signed as reported by the broker
	Quantity Quantity
}

// NewMovement creates a cash movement record. The record currency follows
// the amount.
func NewMovement(at time.Time, mt MovementType, account string, amount Money, notes string) *Movement {
	return &Movement{
		assetRec: assetRec{
			baseRec:  baseRec{record: KindMovement, id: NewID(), time: at, notes: notes},
			account:  account,
			currency: amount.Currency(),
		},
		Type:   mt,
		Amount: amount,
	}
}

// MarshalJSON implements the json.Marshaler interface for Movement.
func (t Movement) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.EmbedFrom(t.assetRec)
	w.Append("type", t.Type)
	w.Append("amount", t.Amount.Decimal())
	if !t.Quantity.IsZero() {
		w.Append("quantity", t.Quantity)
	}
	return w.MarshalJSON()
}

// UnmarshalJSON implements the json.Unmarshaler interface for Movement.
func (t *Movement) UnmarshalJSON(data []byte) error {
	var temp struct {
		jsonBase
		Type     MovementType    `json:"type"`
		Amount   decimal.Decimal `json:"amount"`
		Quantity Quantity        `json:"quantity"`
	}
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	t.assetRec = temp.assetRec()
	t.Type = temp.Type
	t.Amount = M(temp.Amount, temp.Currency)
	t.Quantity = temp.Quantity
	return nil
}

func (t *Movement) Equal(other Record) bool {
	o, ok := other.(*Movement)
	return ok && t.record == o.record && t.id == o.id && t.time.Equal(o.time) &&
		t.notes == o.notes && t.ticker == o.ticker && t.account == o.account &&
		t.currency == o.currency && t.Type == o.Type &&
		t.Amount.Equal(o.Amount) && t.Quantity.Equal(o.Quantity)
}

// Validate checks the movement's fields.
func (t *Movement) Validate() error {
	if err := t.assetRec.validate(); err != nil {
		return err
	}
	if !knownMovements[t.Type] {
		return fmt.Errorf("unknown movement type %q", t.Type)
	}
	switch t.Type {
	case MovementACATSecuritiesIn, MovementACATSecuritiesOut:
		if t.ticker == "" {
			return fmt.Errorf("%s movement requires a ticker", t.Type)
		}
		if t.Quantity.IsZero() {
			return fmt.Errorf("%s movement requires a quantity", t.Type)
		}
	}
	return nil
}
