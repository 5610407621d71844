// Package tastytrade parses Tastytrade transaction-history CSV exports.
//
// The export is a single flat table with a fixed, order-sensitive 20-column
// header. A header mismatch fails the whole file; a malformed data row only
// fails that row.
package tastytrade

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DarioAlonsoCerezo/binnacle/broker"
)

// Header is the exact column list of a Tastytrade transaction-history
// export, in order.
var Header = []string{
	"Date", "Type", "Sub Type", "Action", "Symbol", "Instrument Type",
	"Description", "Value", "Quantity", "Average Price", "Commissions",
	"Fees", "Multiplier", "Root Symbol", "Underlying Symbol",
	"Expiration Date", "Strike Price", "Call or Put", "Order #", "Currency",
}

// Column indexes into a data row.
const (
	colDate = iota
	colType
	colSubType
	colAction
	colSymbol
	colInstrumentType
	colDescription
	colValue
	colQuantity
	colAveragePrice
	colCommissions
	colFees
	colMultiplier
	colRootSymbol
	colUnderlyingSymbol
	colExpirationDate
	colStrikePrice
	colCallOrPut
	colOrderNumber
	colCurrency
)

// Transaction dates carry an ISO timestamp with a zone offset. Expiration
// dates use the short month/day/year family.
var (
	dateLayouts = []string{
		"2006-01-02T15:04:05-0700",
		time.RFC3339,
		"2006-01-02T15:04:05",
	}
	expirationLayouts = []string{
		"1/2/06",
		"1/2/2006",
		"2006-01-02",
	}
)

// Parse reads a whole Tastytrade export and returns the parsed rows.
//
// The returned error is non-nil only when the input is unreadable or the
// header does not match; every other failure is a row-level entry in the
// Result.
func Parse(r io.Reader) (*broker.Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	res := &broker.Result{Success: true}
	line := 0
	headerSeen := false

	for scanner.Scan() {
		line++
		raw := scanner.Text()
		if strings.TrimSpace(raw) == "" {
			continue
		}

		fields, err := splitRow(raw)
		if err != nil {
			if !headerSeen {
				return nil, broker.ErrValidation(fmt.Sprintf("line %d: cannot read header", line), err)
			}
			res.Fail(line, raw, broker.ErrValidation("cannot split row", err))
			continue
		}

		if !headerSeen {
			if err := validateHeader(fields); err != nil {
				return nil, err
			}
			headerSeen = true
			continue
		}

		tx, err := parseRow(fields)
		if err != nil {
			res.Fail(line, raw, err)
			continue
		}
		tx.Line = line
		tx.Raw = raw
		res.Keep(tx)
	}
	if err := scanner.Err(); err != nil {
		return nil, broker.ErrValidation("cannot read input", err)
	}
	if !headerSeen {
		return nil, broker.ErrValidation("empty file: no header found", nil)
	}
	return res, nil
}

// splitRow splits one CSV line honoring quoted fields containing commas.
func splitRow(raw string) ([]string, error) {
	cr := csv.NewReader(strings.NewReader(raw))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr.Read()
}

// validateHeader checks the column count and every column name, in order,
// case-insensitively.
func validateHeader(fields []string) error {
	if len(fields) != len(Header) {
		return broker.ErrValidation(
			fmt.Sprintf("header has %d columns, want %d", len(fields), len(Header)), nil)
	}
	for i, want := range Header {
		if !strings.EqualFold(strings.TrimSpace(fields[i]), want) {
			return broker.ErrValidation(
				fmt.Sprintf("header column %d is %q, want %q", i+1, strings.TrimSpace(fields[i]), want), nil)
		}
	}
	return nil
}

func parseRow(fields []string) (broker.RawTransaction, error) {
	var tx broker.RawTransaction
	if len(fields) != len(Header) {
		return tx, broker.ErrInvalidData("row", fmt.Sprintf("%d columns, want %d", len(fields), len(Header)))
	}

	date, err := parseDate(fields[colDate])
	if err != nil {
		return tx, err
	}
	tx.Date = date

	tx.Type = clean(fields[colType])
	tx.SubType = clean(fields[colSubType])
	tx.Action = clean(fields[colAction])
	tx.Symbol = clean(fields[colSymbol])
	tx.InstrumentType = clean(fields[colInstrumentType])
	tx.Description = strings.TrimSpace(fields[colDescription])
	tx.RootSymbol = clean(fields[colRootSymbol])
	tx.UnderlyingSymbol = clean(fields[colUnderlyingSymbol])
	tx.OrderID = clean(fields[colOrderNumber])
	tx.Currency = strings.ToUpper(clean(fields[colCurrency]))

	if tx.Type == "" {
		return tx, broker.ErrMissingField("Type")
	}

	if tx.Value, err = parseDecimal("Value", fields[colValue]); err != nil {
		return tx, err
	}
	if tx.Quantity, err = parseDecimal("Quantity", fields[colQuantity]); err != nil {
		return tx, err
	}
	if tx.AveragePrice, err = parseDecimal("Average Price", fields[colAveragePrice]); err != nil {
		return tx, err
	}
	if tx.Commissions, err = parseDecimal("Commissions", fields[colCommissions]); err != nil {
		return tx, err
	}
	if tx.Fees, err = parseDecimal("Fees", fields[colFees]); err != nil {
		return tx, err
	}
	if tx.Multiplier, err = parseDecimal("Multiplier", fields[colMultiplier]); err != nil {
		return tx, err
	}
	if tx.Strike, err = parseDecimal("Strike Price", fields[colStrikePrice]); err != nil {
		return tx, err
	}

	if exp := clean(fields[colExpirationDate]); exp != "" {
		tx.Expiration, err = parseExpiration(exp)
		if err != nil {
			return tx, err
		}
	}

	tx.CallOrPut, err = parseCallOrPut(fields[colCallOrPut])
	if err != nil {
		return tx, err
	}

	return tx, nil
}

// clean trims a field and maps the Tastytrade empty token "--" to "".
func clean(s string) string {
	s = strings.TrimSpace(s)
	if s == "--" {
		return ""
	}
	return s
}

// parseDecimal parses a numeric field. Blank and "--" both mean zero;
// thousands separators are stripped.
func parseDecimal(field, s string) (decimal.Decimal, error) {
	cleaned := clean(s)
	if cleaned == "" {
		return decimal.Zero, nil
	}
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, broker.ErrInvalidAmount(field, strings.TrimSpace(s))
	}
	return d, nil
}

func parseDate(s string) (time.Time, error) {
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

func parseExpiration(v string) (time.Time, error) {
	for _, layout := range expirationLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, nil
		}
	}
	return time.Time{}, broker.ErrInvalidDate("Expiration Date", v)
}

func parseCallOrPut(s string) (string, error) {
	switch v := strings.ToUpper(clean(s)); v {
	case "":
		return "", nil
	case "CALL", "C":
		return "CALL", nil
	case "PUT", "P":
		return "PUT", nil
	default:
		return "", broker.ErrInvalidData("Call or Put", strings.TrimSpace(s))
	}
}
