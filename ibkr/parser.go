// Package ibkr parses Interactive Brokers Activity Statement CSV exports.
//
// An activity statement is a multi-section file: column 0 names the section,
// column 1 marks the row as Header, Data, SubTotal or Total, and each
// section has its own column layout. Sections irrelevant to transaction
// reconstruction are skipped by name with a recorded reason; a malformed
// data row fails only that row.
package ibkr

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DarioAlonsoCerezo/binnacle/broker"
)

// Section names this parser consumes.
const (
	sectionTrades      = "Trades"
	sectionDeposits    = "Deposits & Withdrawals"
	sectionDividends   = "Dividends"
	sectionFees        = "Fees"
	sectionInterest    = "Interest"
	sectionPositions   = "Open Positions"
	sectionInstruments = "Financial Instrument Information"
	sectionCashReport  = "Cash Report"
	sectionRates       = "Exchange Rates"
	sectionAccountInfo = "Account Information"
)

// Sections recognized but deliberately not parsed, with the reason recorded
// on the result.
var informational = map[string]string{
	sectionCashReport:  "cash summary, derived from movements",
	sectionInstruments: "instrument metadata only",
	sectionRates:       "exchange rates not needed",
	sectionAccountInfo: "identifying account information",
}

// OpenPosition is a summary row from the Open Positions section. It is not
// a transaction; it feeds last-known prices for unrealized gains.
type OpenPosition struct {
	Symbol        string
	AssetCategory string
	Currency      string
	Quantity      decimal.Decimal
	CostPrice     decimal.Decimal
	ClosePrice    decimal.Decimal
	Value         decimal.Decimal
	Unrealized    decimal.Decimal
}

// Statement is the full outcome of parsing one activity statement: the
// broker-neutral rows plus the section data that is state rather than
// transactions.
type Statement struct {
	*broker.Result
	Positions []OpenPosition

	skipped map[string]bool // sections already recorded on Result.Skipped
}

// skipOnce records a skipped section at most once, however many rows it has.
func (st *Statement) skipOnce(name, reason string) {
	if st.skipped[name] {
		return
	}
	st.skipped[name] = true
	st.Skip(name, reason)
}

// Date/time formats found across activity statement exports, tried in order.
var dateLayouts = []string{
	"2006-01-02, 15:04:05",
	"2006-01-02;15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// Parse reads a whole activity statement and returns the broker-neutral
// rows. The error is non-nil only for unreadable input.
func Parse(r io.Reader) (*broker.Result, error) {
	st, err := ParseStatement(r)
	if err != nil {
		return nil, err
	}
	return st.Result, nil
}

// ParseStatement is Parse plus the non-transaction sections (open
// positions).
func ParseStatement(r io.Reader) (*Statement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.LazyQuotes = true

	st := &Statement{
		Result:  &broker.Result{Success: true},
		skipped: make(map[string]bool),
	}
	headers := make(map[string][]string) // section name -> header row

	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, broker.ErrValidation("cannot read input", err)
		}
		if len(record) < 2 {
			continue
		}
		line, _ := cr.FieldPos(0)
		section, rowType := record[0], record[1]

		if rowType == "Header" {
			headers[section] = record
			continue
		}
		if rowType != "Data" {
			// SubTotal, Total, Notes rows carry no transactions.
			st.SkippedRows++
			continue
		}

		switch section {
		case sectionTrades:
			st.parseTrade(line, record, headers[section])
		case sectionDeposits:
			st.parseCashRow(line, record, headers[section])
		case sectionDividends:
			st.parseDividend(line, record, headers[section])
		case sectionFees:
			st.parseFee(line, record, headers[section])
		case sectionInterest:
			st.parseInterest(line, record, headers[section])
		case sectionPositions:
			st.parsePosition(line, record, headers[section])
		default:
			if reason, ok := informational[section]; ok {
				st.skipOnce(section, reason)
			} else {
				st.skipOnce(section, "unsupported section")
			}
			st.SkippedRows++
		}
	}
	if len(headers) == 0 {
		return nil, broker.ErrValidation("not an activity statement: no section headers found", nil)
	}
	return st, nil
}

// field returns the value of the named column for a data row, using the
// section's header row to locate it.
func field(record, header []string, name string) (string, bool) {
	for i, h := range header {
		if strings.EqualFold(strings.TrimSpace(h), name) && i < len(record) {
			return strings.TrimSpace(record[i]), true
		}
	}
	return "", false
}

func rawLine(record []string) string { return strings.Join(record, ",") }

// parseTrade handles one Trades data row. Only execution rows
// (DataDiscriminator "Order") become transactions; closed-lot rows are
// bookkeeping detail and are skipped. Stocks, options and forex share the
// section and split on Asset Category.
func (st *Statement) parseTrade(line int, record, header []string) {
	disc, _ := field(record, header, "DataDiscriminator")
	if disc != "Order" {
		st.SkippedRows++
		return
	}

	assetCategory, _ := field(record, header, "Asset Category")
	currency, _ := field(record, header, "Currency")
	symbol, _ := field(record, header, "Symbol")
	dateStr, _ := field(record, header, "Date/Time")

	when, err := parseAnyDate(dateStr)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}

	quantity, err := parseAmount("Quantity", record, header)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	price, err := parseAmount("T. Price", record, header)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	proceeds, err := parseAmount("Proceeds", record, header)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	commission, err := parseAmount("Comm/Fee", record, header)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	code, _ := field(record, header, "Code")

	tx := broker.RawTransaction{
		Date:         when,
		Symbol:       symbol,
		Currency:     strings.ToUpper(currency),
		Quantity:     quantity,
		AveragePrice: price,
		Value:        proceeds,
		Commissions:  commission,
		Line:         line,
		Raw:          rawLine(record),
	}

	switch {
	case strings.EqualFold(assetCategory, "Stocks"):
		tx.InstrumentType = broker.InstrumentEquity
		tx.UnderlyingSymbol = symbol
		tx.Type, tx.SubType, tx.Action = synthesizeTradeType(quantity, code)

	case strings.EqualFold(assetCategory, "Equity and Index Options"):
		tx.InstrumentType = broker.InstrumentEquityOption
		underlying, expiration, strike, callOrPut, err := parseOptionSymbol(symbol)
		if err != nil {
			st.Fail(line, rawLine(record), err)
			return
		}
		tx.UnderlyingSymbol = underlying
		tx.RootSymbol = underlying
		tx.Expiration = expiration
		tx.Strike = strike
		tx.CallOrPut = callOrPut
		tx.Type, tx.SubType, tx.Action = synthesizeTradeType(quantity, code)

	case strings.EqualFold(assetCategory, "Forex"):
		tx.InstrumentType = "Forex"
		tx.Type = string(broker.ClassMoneyMovement)
		tx.SubType = string(broker.SubConversion)
		tx.Description = fmt.Sprintf("forex trade %s", symbol)

	default:
		st.skipOnce(sectionTrades+"/"+assetCategory, "unsupported asset category")
		st.SkippedRows++
		return
	}

	st.Keep(tx)
}

// synthesizeTradeType maps a signed quantity and an IBKR code field
// (O opening, C closing, possibly combined like "C;P") to the canonical
// type/subtype/action strings.
func synthesizeTradeType(quantity decimal.Decimal, code string) (txType, subType, action string) {
	buy := !quantity.IsNegative()
	opening := false
	closing := false
	for _, c := range strings.Split(code, ";") {
		switch strings.TrimSpace(c) {
		case "O":
			opening = true
		case "C":
			closing = true
		}
	}

	switch {
	case opening && buy:
		return string(broker.ClassTrade), string(broker.SubBuyToOpen), string(broker.ActionBuyToOpen)
	case opening && !buy:
		return string(broker.ClassTrade), string(broker.SubSellToOpen), string(broker.ActionSellToOpen)
	case closing && buy:
		return string(broker.ClassTrade), string(broker.SubBuyToClose), string(broker.ActionBuyToClose)
	case closing && !buy:
		return string(broker.ClassTrade), string(broker.SubSellToClose), string(broker.ActionSellToClose)
	case buy:
		return string(broker.ClassTrade), string(broker.SubBuy), string(broker.ActionBuy)
	default:
		return string(broker.ClassTrade), string(broker.SubSell), string(broker.ActionSell)
	}
}

// parseCashRow handles one Deposits & Withdrawals data row. Direction
// follows the amount sign; rows describing ACAT transfers keep their ACAT
// nature.
func (st *Statement) parseCashRow(line int, record, header []string) {
	currency, _ := field(record, header, "Currency")
	if strings.HasPrefix(currency, "Total") {
		st.SkippedRows++
		return
	}
	dateStr, _ := field(record, header, "Settle Date")
	when, err := parseAnyDate(dateStr)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	amount, err := parseAmount("Amount", record, header)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	description, _ := field(record, header, "Description")

	tx := broker.RawTransaction{
		Date:        when,
		Currency:    strings.ToUpper(currency),
		Value:       amount,
		Description: description,
		Line:        line,
		Raw:         rawLine(record),
	}
	switch {
	case strings.Contains(strings.ToUpper(description), "ACAT"):
		tx.Type = string(broker.ClassReceiveDeliver)
		tx.SubType = string(broker.SubACAT)
	case amount.IsNegative():
		tx.Type = string(broker.ClassMoneyMovement)
		tx.SubType = string(broker.SubWithdrawal)
	default:
		tx.Type = string(broker.ClassMoneyMovement)
		tx.SubType = string(broker.SubDeposit)
	}
	st.Keep(tx)
}

func (st *Statement) parseDividend(line int, record, header []string) {
	currency, _ := field(record, header, "Currency")
	if strings.HasPrefix(currency, "Total") {
		st.SkippedRows++
		return
	}
	dateStr, _ := field(record, header, "Date")
	when, err := parseAnyDate(dateStr)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	amount, err := parseAmount("Amount", record, header)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	description, _ := field(record, header, "Description")

	st.Keep(broker.RawTransaction{
		Date:             when,
		Type:             string(broker.ClassMoneyMovement),
		SubType:          string(broker.SubDividend),
		Symbol:           dividendSymbol(description),
		UnderlyingSymbol: dividendSymbol(description),
		Currency:         strings.ToUpper(currency),
		Value:            amount,
		Description:      description,
		Line:             line,
		Raw:              rawLine(record),
	})
}

func (st *Statement) parseFee(line int, record, header []string) {
	currency, _ := field(record, header, "Currency")
	if strings.HasPrefix(currency, "Total") {
		st.SkippedRows++
		return
	}
	dateStr, _ := field(record, header, "Date")
	when, err := parseAnyDate(dateStr)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	amount, err := parseAmount("Amount", record, header)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	description, _ := field(record, header, "Description")

	st.Keep(broker.RawTransaction{
		Date:        when,
		Type:        string(broker.ClassMoneyMovement),
		SubType:     string(broker.SubFee),
		Currency:    strings.ToUpper(currency),
		Value:       amount,
		Description: description,
		Line:        line,
		Raw:         rawLine(record),
	})
}

func (st *Statement) parseInterest(line int, record, header []string) {
	currency, _ := field(record, header, "Currency")
	if strings.HasPrefix(currency, "Total") {
		st.SkippedRows++
		return
	}
	dateStr, _ := field(record, header, "Date")
	when, err := parseAnyDate(dateStr)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	amount, err := parseAmount("Amount", record, header)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	description, _ := field(record, header, "Description")

	subType := broker.SubCreditInterest
	if amount.IsNegative() {
		subType = broker.SubDebitInterest
	}
	st.Keep(broker.RawTransaction{
		Date:        when,
		Type:        string(broker.ClassMoneyMovement),
		SubType:     string(subType),
		Currency:    strings.ToUpper(currency),
		Value:       amount,
		Description: description,
		Line:        line,
		Raw:         rawLine(record),
	})
}

// parsePosition handles one Open Positions summary row.
func (st *Statement) parsePosition(line int, record, header []string) {
	disc, _ := field(record, header, "DataDiscriminator")
	if disc != "Summary" {
		st.SkippedRows++
		return
	}
	symbol, _ := field(record, header, "Symbol")
	assetCategory, _ := field(record, header, "Asset Category")
	currency, _ := field(record, header, "Currency")

	quantity, err := parseAmount("Quantity", record, header)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	costPrice, err := parseAmount("Cost Price", record, header)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	closePrice, err := parseAmount("Close Price", record, header)
	if err != nil {
		st.Fail(line, rawLine(record), err)
		return
	}
	value, _ := parseAmount("Value", record, header)
	unrealized, _ := parseAmount("Unrealized P/L", record, header)

	st.Positions = append(st.Positions, OpenPosition{
		Symbol:        symbol,
		AssetCategory: assetCategory,
		Currency:      strings.ToUpper(currency),
		Quantity:      quantity,
		CostPrice:     costPrice,
		ClosePrice:    closePrice,
		Value:         value,
		Unrealized:    unrealized,
	})
}

// parseAmount parses the named numeric column, stripping thousands
// separators. A missing or blank column is zero.
func parseAmount(name string, record, header []string) (decimal.Decimal, error) {
	s, ok := field(record, header, name)
	if !ok || s == "" {
		return decimal.Zero, nil
	}
	cleaned := strings.ReplaceAll(s, ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, broker.ErrInvalidAmount(name, s)
	}
	return d, nil
}

func parseAnyDate(s string) (time.Time, error) {
	v := strings.TrimSpace(s)
	if v == "" {
		return time.Time{}, broker.ErrMissingField("Date")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, broker.ErrInvalidDate("Date", v)
}

// parseOptionSymbol splits an IBKR option symbol like "SPXL 17MAY24 120 P"
// into its parts.
func parseOptionSymbol(symbol string) (underlying string, expiration time.Time, strike decimal.Decimal, callOrPut string, err error) {
	parts := strings.Fields(symbol)
	if len(parts) != 4 {
		return "", time.Time{}, decimal.Zero, "", broker.ErrInvalidData("Symbol", symbol)
	}
	underlying = parts[0]

	expiration, err = time.Parse("02Jan06", parts[1])
	if err != nil {
		return "", time.Time{}, decimal.Zero, "", broker.ErrInvalidDate("Symbol", symbol)
	}

	strike, err = decimal.NewFromString(parts[2])
	if err != nil {
		return "", time.Time{}, decimal.Zero, "", broker.ErrInvalidData("Symbol", symbol)
	}

	switch strings.ToUpper(parts[3]) {
	case "C":
		callOrPut = "CALL"
	case "P":
		callOrPut = "PUT"
	default:
		return "", time.Time{}, decimal.Zero, "", broker.ErrInvalidData("Symbol", symbol)
	}
	return underlying, expiration, strike, callOrPut, nil
}

// dividendSymbol extracts the ticker from an IBKR dividend description like
// "VTI(US9229087690) Cash Dividend USD 0.9305 per Share".
func dividendSymbol(description string) string {
	i := strings.Index(description, "(")
	if i <= 0 {
		return ""
	}
	return strings.TrimSpace(description[:i])
}
