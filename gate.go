package binnacle

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/shopspring/decimal"

	"github.com/DarioAlonsoCerezo/binnacle/date"
)

// Trades entered by hand in the host application arrive as loosely shaped
// JSON; every UI version serializes its own envelope. The gate digs the
// canonical fields out with jsonpath queries, trying known spellings in
// order, so envelope drift does not reach the core types.

// submissionPaths lists, per canonical field, the paths tried in order.
var submissionPaths = map[string][]string{
	"ticker":      {"$.ticker", "$.symbol", "$.underlying", "$.trade.ticker"},
	"account":     {"$.account", "$.accountName", "$.trade.account"},
	"currency":    {"$.currency", "$.currencyCode", "$.trade.currency"},
	"code":        {"$.code", "$.action", "$.trade.code"},
	"optionType":  {"$.optionType", "$.callOrPut", "$.trade.optionType"},
	"strike":      {"$.strike", "$.strikePrice", "$.trade.strike"},
	"expiration":  {"$.expiration", "$.expirationDate", "$.trade.expiration"},
	"quantity":    {"$.quantity", "$.contracts", "$.trade.quantity"},
	"value":       {"$.value", "$.premium", "$.trade.value"},
	"commissions": {"$.commissions", "$.trade.commissions"},
	"fees":        {"$.fees", "$.trade.fees"},
	"time":        {"$.time", "$.date", "$.executedAt", "$.trade.time"},
	"multiplier":  {"$.multiplier", "$.trade.multiplier"},
	"notes":       {"$.notes", "$.comment", "$.trade.notes"},
}

func submissionValue(jobj any, field string) (any, bool) {
	for _, path := range submissionPaths[field] {
		jval, err := jsonpath.Get(path, jobj)
		if err != nil {
			continue
		}
		// jsonpath is never clear about whether it returns a list of one
		// answer or a single answer; keep the first one if any.
		if jlist, ok := jval.([]any); ok {
			if len(jlist) == 0 {
				continue
			}
			jval = jlist[0]
		}
		if jval == nil {
			continue
		}
		return jval, true
	}
	return nil, false
}

func submissionString(jobj any, field string) string {
	jval, ok := submissionValue(jobj, field)
	if !ok {
		return ""
	}
	s, _ := jval.(string)
	return strings.TrimSpace(s)
}

func submissionDecimal(jobj any, field string) (decimal.Decimal, error) {
	jval, ok := submissionValue(jobj, field)
	if !ok {
		return decimal.Zero, nil
	}
	switch v := jval.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return decimal.Zero, fmt.Errorf("field %q: invalid number %q", field, v)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("field %q: cannot read a number from %v", field, jval)
}

var submissionCodes = map[string]OptionCode{
	"buytoopen":     OptBuyToOpen,
	"buy_to_open":   OptBuyToOpen,
	"selltoopen":    OptSellToOpen,
	"sell_to_open":  OptSellToOpen,
	"buytoclose":    OptBuyToClose,
	"buy_to_close":  OptBuyToClose,
	"selltoclose":   OptSellToClose,
	"sell_to_close": OptSellToClose,
	"assigned":      OptAssigned,
	"expired":       OptExpired,
	"exercised":     OptExercised,
}

// ParseTradeSubmission turns one UI-originated option trade envelope into
// its expanded unit records, validated and ready for matching. The caller
// persists them and re-runs matching over the account's history.
func ParseTradeSubmission(data []byte) ([]*OptionTrade, error) {
	var jobj any
	if err := json.Unmarshal(data, &jobj); err != nil {
		return nil, fmt.Errorf("invalid trade submission: %w", err)
	}

	code, ok := submissionCodes[strings.ToLower(submissionString(jobj, "code"))]
	if !ok {
		return nil, fmt.Errorf("invalid trade submission: unknown code %q", submissionString(jobj, "code"))
	}
	var optionType OptionType
	switch strings.ToUpper(submissionString(jobj, "optionType")) {
	case "CALL", "C":
		optionType = Call
	case "PUT", "P":
		optionType = Put
	default:
		return nil, fmt.Errorf("invalid trade submission: unknown option type %q", submissionString(jobj, "optionType"))
	}

	expiration, err := date.Parse(submissionString(jobj, "expiration"))
	if err != nil {
		return nil, fmt.Errorf("invalid trade submission: %w", err)
	}
	at := time.Now().UTC()
	if s := submissionString(jobj, "time"); s != "" {
		at, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("invalid trade submission: bad time %q: %w", s, err)
		}
	}

	strike, err := submissionDecimal(jobj, "strike")
	if err != nil {
		return nil, fmt.Errorf("invalid trade submission: %w", err)
	}
	quantity, err := submissionDecimal(jobj, "quantity")
	if err != nil {
		return nil, fmt.Errorf("invalid trade submission: %w", err)
	}
	if quantity.IsZero() {
		quantity = decimal.NewFromInt(1)
	}
	value, err := submissionDecimal(jobj, "value")
	if err != nil {
		return nil, fmt.Errorf("invalid trade submission: %w", err)
	}
	commissions, err := submissionDecimal(jobj, "commissions")
	if err != nil {
		return nil, fmt.Errorf("invalid trade submission: %w", err)
	}
	fees, err := submissionDecimal(jobj, "fees")
	if err != nil {
		return nil, fmt.Errorf("invalid trade submission: %w", err)
	}

	currency := submissionString(jobj, "currency")
	if currency == "" {
		currency = DefaultCurrency
	}

	t := NewOptionTrade(at,
		submissionString(jobj, "ticker"),
		submissionString(jobj, "account"),
		code, optionType, strike, expiration, Q(quantity.Abs()),
		M(value, currency),
		M(commissions.Abs(), currency),
		M(fees.Abs(), currency))
	if multiplier, err := submissionDecimal(jobj, "multiplier"); err == nil && multiplier.IsPositive() {
		t.Multiplier = Q(multiplier)
	}
	t.notes = submissionString(jobj, "notes")

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid trade submission: %w", err)
	}
	return ExpandOptionLots(t), nil
}
