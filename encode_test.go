package binnacle

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"
	"testing"

	"github.com/PaesslerAG/jsonpath"
)

func TestDecodeRecords(t *testing.T) {
	// A JSONL stream with every record kind, blank lines included.
	jsonlStream := `
{"record":"option-trade","id":"01HZA3B4C5D6E7F8G9HJKMNPQR","time":"2024-05-01T10:00:00Z","ticker":"SPY","account":"main","currency":"USD","expiration":"2024-06-21","strike":450,"multiplier":100,"premium":240,"netPremium":238.86,"commissions":1,"fees":0.14,"optionType":"PUT","code":"SellToOpen","quantity":1,"open":true}

{"record":"equity-trade","id":"01HZA3B4C5D6E7F8G9JKMNPQRS","time":"2024-05-02T14:30:00Z","ticker":"VTI","account":"main","currency":"USD","quantity":10,"price":250,"commissions":1,"fees":0,"code":"Buy"}
{"record":"movement","id":"01HZA3B4C5D6E7F8G9KMNPQRST","time":"2024-05-03T09:00:00Z","account":"main","currency":"USD","type":"Deposit","amount":5000}
`

	records, err := DecodeRecords(strings.NewReader(jsonlStream))

	// 1. Check for unexpected errors.
	if err != nil {
		t.Fatalf("DecodeRecords() returned an unexpected error: %v", err)
	}

	// 2. Check the number of records decoded.
	if len(records) != 3 {
		t.Fatalf("DecodeRecords() decoded wrong number of records. Got: %d, want: %d", len(records), 3)
	}

	// 3. Check the type of each decoded record.
	expectedTypes := []reflect.Type{
		reflect.TypeOf(&OptionTrade{}),
		reflect.TypeOf(&EquityTrade{}),
		reflect.TypeOf(&Movement{}),
	}
	for i, r := range records {
		if reflect.TypeOf(r) != expectedTypes[i] {
			t.Errorf("Record %d has wrong type. Got: %T, want: %v", i+1, r, expectedTypes[i])
		}
	}

	// 4. Spot-check the fields of the first record.
	trade, ok := records[0].(*OptionTrade)
	if !ok {
		t.Fatalf("records[0] is %T, want *OptionTrade", records[0])
	}
	if trade.Ticker() != "SPY" || trade.Account() != "main" || trade.Currency() != "USD" {
		t.Errorf("decoded identity = %s/%s/%s, want SPY/main/USD",
			trade.Ticker(), trade.Account(), trade.Currency())
	}
	if got, want := trade.NetPremium, USD(238.86); !got.Equal(want) {
		t.Errorf("NetPremium = %v, want %v", got, want)
	}
	if !trade.IsOpen {
		t.Error("decoded trade must be open")
	}
	if err := trade.Validate(); err != nil {
		t.Errorf("decoded trade is invalid: %v", err)
	}
}

func TestEncodeRecordsRoundTrip(t *testing.T) {
	opening := putAt("2024-05-01 10:00:00", OptSellToOpen, 450, 12.34)
	closing := putAt("2024-05-04 10:00:00", OptBuyToClose, 450, -9.00)
	MatchOptions([]*OptionTrade{opening, closing})

	in := []Record{
		NewMovement(at("2024-05-01 09:00:00"), MovementDeposit, "main", USD(5000), "ACH"),
		opening,
		NewEquityTrade(at("2024-05-02 14:30:00"), "VTI", "main", TradeBuy, Q(10), USD(250), USD(1), USD(0)),
		closing,
	}

	var buffer bytes.Buffer
	if err := EncodeRecords(&buffer, in); err != nil {
		t.Fatalf("EncodeRecords() returned an unexpected error: %v", err)
	}
	out, err := DecodeRecords(&buffer)
	if err != nil {
		t.Fatalf("DecodeRecords() returned an unexpected error: %v", err)
	}

	if len(out) != len(in) {
		t.Fatalf("round trip changed the record count. Got: %d, want: %d", len(out), len(in))
	}
	for i := range in {
		if !in[i].Equal(out[i]) {
			t.Errorf("record %d did not survive the round trip.\nGot:  %+v\nWant: %+v", i, out[i], in[i])
		}
	}
	// The matcher's links survive too.
	decoded := out[3].(*OptionTrade)
	if decoded.ClosedWith != opening.ID() {
		t.Errorf("decoded ClosedWith = %q, want %q", decoded.ClosedWith, opening.ID())
	}
}

func TestEncodeRecordsStreamShape(t *testing.T) {
	records := []Record{
		NewMovement(at("2024-05-01 09:00:00"), MovementDeposit, "main", USD(5000), ""),
		putAt("2024-05-01 10:00:00", OptSellToOpen, 450, 12.34),
	}

	var buffer bytes.Buffer
	if err := EncodeRecords(&buffer, records); err != nil {
		t.Fatalf("EncodeRecords() returned an unexpected error: %v", err)
	}

	// One JSON object per line, each self-identifying through its record key.
	lines := strings.Split(strings.TrimRight(buffer.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("encoded %d lines, want 2", len(lines))
	}
	wantKinds := []string{"movement", "option-trade"}
	for i, line := range lines {
		var jobj any
		if err := json.Unmarshal([]byte(line), &jobj); err != nil {
			t.Fatalf("line %d is not a JSON object: %v", i+1, err)
		}
		kind, err := jsonpath.Get("$.record", jobj)
		if err != nil {
			t.Fatalf("line %d has no record key: %v", i+1, err)
		}
		if kind != wantKinds[i] {
			t.Errorf("line %d record = %v, want %s", i+1, kind, wantKinds[i])
		}
	}

	// Monetary fields are bare numbers, not quoted strings.
	var jobj any
	if err := json.Unmarshal([]byte(lines[1]), &jobj); err != nil {
		t.Fatalf("cannot parse option line: %v", err)
	}
	premium, err := jsonpath.Get("$.premium", jobj)
	if err != nil {
		t.Fatalf("option line has no premium: %v", err)
	}
	if got, ok := premium.(float64); !ok || got != 12.34 {
		t.Errorf("premium = %v (%T), want the bare number 12.34", premium, premium)
	}
	// An unlinked trade leaves closedWith off the wire entirely.
	if _, err := jsonpath.Get("$.closedWith", jobj); err == nil {
		t.Error("closedWith must be omitted while the trade is unlinked")
	}
}

func TestDecodeRecordsRejectsUnknownKind(t *testing.T) {
	jsonlStream := `{"record":"movement","id":"x1","time":"2024-05-03T09:00:00Z","account":"main","currency":"USD","type":"Deposit","amount":5000}
{"record":"stock-split","id":"x2","time":"2024-05-03T09:00:00Z"}
`
	_, err := DecodeRecords(strings.NewReader(jsonlStream))
	if err == nil {
		t.Fatal("DecodeRecords() error = nil, want unknown kind rejected")
	}
	if !strings.Contains(err.Error(), "unknown record kind") || !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error %q must name the kind problem and the line", err)
	}
}

func TestDecodeRecordsRejectsMalformedLine(t *testing.T) {
	_, err := DecodeRecords(strings.NewReader("not json at all\n"))
	if err == nil {
		t.Fatal("DecodeRecords() error = nil, want malformed line rejected")
	}
	if !strings.Contains(err.Error(), "line 1") {
		t.Errorf("error %q must name the line", err)
	}
}
