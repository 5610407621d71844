package broker

import "strings"

// Class is the top-level canonical transaction class.
type Class string

const (
	ClassTrade          Class = "Trade"
	ClassMoneyMovement  Class = "Money Movement"
	ClassReceiveDeliver Class = "Receive Deliver"
)

// SubType is the canonical transaction sub type within a class.
type SubType string

// Trade sub types.
const (
	SubBuyToOpen   SubType = "Buy to Open"
	SubSellToOpen  SubType = "Sell to Open"
	SubBuyToClose  SubType = "Buy to Close"
	SubSellToClose SubType = "Sell to Close"
	SubBuy         SubType = "Buy"
	SubSell        SubType = "Sell"
)

// Money Movement sub types.
const (
	SubDeposit           SubType = "Deposit"
	SubWithdrawal        SubType = "Withdrawal"
	SubTransfer          SubType = "Transfer"
	SubCreditInterest    SubType = "Credit Interest"
	SubDebitInterest     SubType = "Debit Interest"
	SubDividend          SubType = "Dividend"
	SubFee               SubType = "Fee"
	SubBalanceAdjustment SubType = "Balance Adjustment"
	SubMarkToMarket      SubType = "Mark to Market"
	SubConversion        SubType = "Conversion"
)

// Receive Deliver sub types.
const (
	SubExpiration      SubType = "Expiration"
	SubAssignment      SubType = "Assignment"
	SubExercise        SubType = "Exercise"
	SubACAT            SubType = "ACAT"
	SubSpecialDividend SubType = "Special Dividend"
	SubSymbolChange    SubType = "Symbol Change"
	SubForwardSplit    SubType = "Forward Split"
	SubReverseSplit    SubType = "Reverse Split"
)

// Action is the broker action code on trade-like rows.
type Action string

const (
	ActionBuyToOpen   Action = "BUY_TO_OPEN"
	ActionSellToOpen  Action = "SELL_TO_OPEN"
	ActionBuyToClose  Action = "BUY_TO_CLOSE"
	ActionSellToClose Action = "SELL_TO_CLOSE"
	ActionBuy         Action = "BUY"
	ActionSell        Action = "SELL"
)

// Classification is the canonical tag of one raw transaction: its class,
// sub type, and (for trade-like rows) the action code.
type Classification struct {
	Class   Class
	SubType SubType
	Action  Action // empty except on trade-like rows
}

// IsTrade reports whether the row is a plain trade.
func (c Classification) IsTrade() bool { return c.Class == ClassTrade }

// IsOpening reports whether the row opens a position.
func (c Classification) IsOpening() bool {
	return c.SubType == SubBuyToOpen || c.SubType == SubSellToOpen
}

// IsClosing reports whether the row closes a position.
func (c Classification) IsClosing() bool {
	return c.SubType == SubBuyToClose || c.SubType == SubSellToClose
}

var tradeSubTypes = map[string]SubType{
	"buy to open":   SubBuyToOpen,
	"sell to open":  SubSellToOpen,
	"buy to close":  SubBuyToClose,
	"sell to close": SubSellToClose,
	"buy":           SubBuy,
	"sell":          SubSell,
}

var movementSubTypes = map[string]SubType{
	"deposit":            SubDeposit,
	"withdrawal":         SubWithdrawal,
	"transfer":           SubTransfer,
	"credit interest":    SubCreditInterest,
	"debit interest":     SubDebitInterest,
	"dividend":           SubDividend,
	"fee":                SubFee,
	"balance adjustment": SubBalanceAdjustment,
	"mark to market":     SubMarkToMarket,
	"conversion":         SubConversion,
}

var receiveDeliverSubTypes = map[string]SubType{
	"expiration":       SubExpiration,
	"assignment":       SubAssignment,
	"exercise":         SubExercise,
	"acat":             SubACAT,
	"special dividend": SubSpecialDividend,
	"symbol change":    SubSymbolChange,
	"forward split":    SubForwardSplit,
	"reverse split":    SubReverseSplit,
}

var actions = map[string]Action{
	"buy_to_open":   ActionBuyToOpen,
	"sell_to_open":  ActionSellToOpen,
	"buy_to_close":  ActionBuyToClose,
	"sell_to_close": ActionSellToClose,
	"buy":           ActionBuy,
	"sell":          ActionSell,
}

// Classify maps a raw (type, subtype, action) triple to its canonical tag.
// Matching is case-insensitive and ignores surrounding whitespace. An
// unrecognized combination returns an *Error of kind
// KindInvalidTransactionType; the caller treats it as a row-level failure.
func Classify(txType, subType, action string) (Classification, error) {
	norm := func(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

	var c Classification
	switch norm(txType) {
	case "trade":
		sub, ok := tradeSubTypes[norm(subType)]
		if !ok {
			return c, ErrInvalidType(txType, subType, action)
		}
		act, ok := actions[norm(action)]
		if !ok {
			return c, ErrInvalidType(txType, subType, action)
		}
		return Classification{Class: ClassTrade, SubType: sub, Action: act}, nil

	case "money movement":
		sub, ok := movementSubTypes[norm(subType)]
		if !ok {
			return c, ErrInvalidType(txType, subType, action)
		}
		return Classification{Class: ClassMoneyMovement, SubType: sub}, nil

	case "receive deliver", "receive & deliver":
		sub, ok := receiveDeliverSubTypes[norm(subType)]
		if !ok {
			return c, ErrInvalidType(txType, subType, action)
		}
		// Receive Deliver rows may carry a trade-like action (assignment
		// legs, special dividend adjustments). It is optional.
		act := actions[norm(action)]
		return Classification{Class: ClassReceiveDeliver, SubType: sub, Action: act}, nil

	default:
		return c, ErrInvalidType(txType, subType, action)
	}
}
