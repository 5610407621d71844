package tastytrade

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DarioAlonsoCerezo/binnacle/broker"
)

const header = "Date,Type,Sub Type,Action,Symbol,Instrument Type,Description,Value,Quantity,Average Price,Commissions,Fees,Multiplier,Root Symbol,Underlying Symbol,Expiration Date,Strike Price,Call or Put,Order #,Currency"

func parseString(t *testing.T, content string) *broker.Result {
	t.Helper()
	res, err := Parse(strings.NewReader(content))
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func TestParseOptionTrade(t *testing.T) {
	content := header + "\n" +
		`2024-05-06T09:30:12-0500,Trade,Sell to Open,SELL_TO_OPEN,SPXL  240517P00120000,Equity Option,"Sold 1 SPXL 05/17/24 Put 120.00 @ 1.05",105.00,1,1.05,-1.00,-0.14,100,SPXL,SPXL,5/17/24,120,PUT,304854711,USD`

	res := parseString(t, content)

	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Processed)
	require.Len(t, res.Transactions, 1)

	tx := res.Transactions[0]
	assert.Equal(t, "Trade", tx.Type)
	assert.Equal(t, "Sell to Open", tx.SubType)
	assert.Equal(t, "SELL_TO_OPEN", tx.Action)
	assert.Equal(t, "SPXL  240517P00120000", tx.Symbol)
	assert.Equal(t, broker.InstrumentEquityOption, tx.InstrumentType)
	assert.Equal(t, "Sold 1 SPXL 05/17/24 Put 120.00 @ 1.05", tx.Description)
	assert.True(t, tx.Value.Equal(decimal.RequireFromString("105.00")), "Value = %s", tx.Value)
	assert.True(t, tx.Quantity.Equal(decimal.NewFromInt(1)))
	assert.True(t, tx.Commissions.Equal(decimal.RequireFromString("-1.00")))
	assert.True(t, tx.Fees.Equal(decimal.RequireFromString("-0.14")))
	assert.True(t, tx.Strike.Equal(decimal.NewFromInt(120)))
	assert.Equal(t, "PUT", tx.CallOrPut)
	assert.Equal(t, "SPXL", tx.UnderlyingSymbol)
	assert.Equal(t, "USD", tx.Currency)
	assert.Equal(t, 2, tx.Line)

	wantDate := time.Date(2024, 5, 6, 9, 30, 12, 0, time.FixedZone("", -5*3600))
	assert.True(t, tx.Date.Equal(wantDate), "Date = %v want %v", tx.Date, wantDate)
	assert.Equal(t, time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC), tx.Expiration)
}

func TestParseMoneyMovementWithDashTokens(t *testing.T) {
	content := header + "\n" +
		`2024-05-01T11:00:00-0500,Money Movement,Deposit,,,,Wire Funds Received,"1,500.00",0,--,0.00,0.00,--,--,--,--,--,--,,USD`

	res := parseString(t, content)

	require.Len(t, res.Transactions, 1)
	tx := res.Transactions[0]
	assert.Equal(t, "Money Movement", tx.Type)
	assert.Equal(t, "Deposit", tx.SubType)
	assert.True(t, tx.Value.Equal(decimal.RequireFromString("1500.00")), "Value = %s", tx.Value)
	// "--" and blank both mean zero or empty.
	assert.True(t, tx.AveragePrice.IsZero())
	assert.True(t, tx.Multiplier.IsZero())
	assert.True(t, tx.Strike.IsZero())
	assert.Empty(t, tx.RootSymbol)
	assert.Empty(t, tx.CallOrPut)
	assert.True(t, tx.Expiration.IsZero())
}

func TestParseQuotedDescriptionWithCommas(t *testing.T) {
	content := header + "\n" +
		`2024-06-03T10:00:00-0500,Trade,Buy,BUY,AAPL,Equity,"Bought 10 AAPL @ 191.05, routed",-1910.50,10,191.05,-1.00,-0.08,--,--,AAPL,--,--,--,55501,USD`

	res := parseString(t, content)

	require.Len(t, res.Transactions, 1)
	assert.Equal(t, "Bought 10 AAPL @ 191.05, routed", res.Transactions[0].Description)
}

func TestParseHeaderMismatch(t *testing.T) {
	// The Currency column is missing entirely.
	truncated := strings.TrimSuffix(header, ",Currency")
	content := truncated + "\n" +
		`2024-05-06T09:30:12-0500,Trade,Buy,BUY,AAPL,Equity,desc,-100,1,100,0,0,--,--,AAPL,--,--,--,1`

	res, err := Parse(strings.NewReader(content))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, broker.IsKind(err, broker.KindValidation), "err = %v", err)
}

func TestParseHeaderWrongName(t *testing.T) {
	content := strings.Replace(header, "Strike Price", "Strike", 1) + "\n"

	_, err := Parse(strings.NewReader(content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Strike Price")
}

func TestParseRowErrorsDoNotAbortFile(t *testing.T) {
	content := header + "\n" +
		`2024-05-06T09:30:12-0500,Trade,Buy,BUY,AAPL,Equity,ok,-100.00,1,100,0,0,--,--,AAPL,--,--,--,1,USD` + "\n" +
		`garbage-date,Trade,Buy,BUY,AAPL,Equity,bad date,-100.00,1,100,0,0,--,--,AAPL,--,--,--,2,USD` + "\n" +
		`2024-05-07T09:30:12-0500,Trade,Buy,BUY,AAPL,Equity,bad value,not-a-number,1,100,0,0,--,--,AAPL,--,--,--,3,USD` + "\n" +
		`2024-05-08T09:30:12-0500,Trade,Buy,BUY,MSFT,Equity,ok,-410.00,1,410,0,0,--,--,MSFT,--,--,--,4,USD`

	res := parseString(t, content)

	assert.False(t, res.Success)
	assert.Equal(t, 2, res.Processed)
	require.Len(t, res.Errors, 2)

	assert.Equal(t, 3, res.Errors[0].Line)
	assert.True(t, broker.IsKind(res.Errors[0], broker.KindInvalidDateFormat), "err = %v", res.Errors[0])
	assert.Contains(t, res.Errors[0].Raw, "garbage-date")

	assert.Equal(t, 4, res.Errors[1].Line)
	assert.True(t, broker.IsKind(res.Errors[1], broker.KindInvalidAmount), "err = %v", res.Errors[1])
}

func TestParseInvalidCallOrPut(t *testing.T) {
	content := header + "\n" +
		`2024-05-06T09:30:12-0500,Trade,Sell to Open,SELL_TO_OPEN,X,Equity Option,desc,10,1,0.10,0,0,100,X,X,5/17/24,5,MAYBE,9,USD`

	res := parseString(t, content)

	assert.False(t, res.Success)
	assert.Empty(t, res.Transactions)
	require.Len(t, res.Errors, 1)
	assert.True(t, broker.IsKind(res.Errors[0], broker.KindInvalidDataFormat), "err = %v", res.Errors[0])
}

func TestParseEmptyInput(t *testing.T) {
	_, err := Parse(strings.NewReader(""))
	require.Error(t, err)

	_, err = Parse(strings.NewReader("\n\n"))
	require.Error(t, err)
}

func TestParseExpirationFormats(t *testing.T) {
	rows := []struct {
		exp  string
		want time.Time
	}{
		{"5/17/24", time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)},
		{"05/17/24", time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)},
		{"5/17/2024", time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)},
		{"2024-05-17", time.Date(2024, 5, 17, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range rows {
		content := header + "\n" +
			`2024-05-06T09:30:12-0500,Trade,Sell to Open,SELL_TO_OPEN,X,Equity Option,d,10,1,0.10,0,0,100,X,X,` + tc.exp + `,5,PUT,9,USD`
		res := parseString(t, content)
		require.Len(t, res.Transactions, 1, "expiration %q", tc.exp)
		assert.Equal(t, tc.want, res.Transactions[0].Expiration, "expiration %q", tc.exp)
	}
}
