package binnacle

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DarioAlonsoCerezo/binnacle/broker"
)

// specialLeg builds one classified special dividend leg for detector tests.
func specialLeg(line int, when time.Time, ticker string, strikePrice, value float64) Classified {
	return Classified{
		RawTransaction: broker.RawTransaction{
			Date:             when,
			Type:             "Receive Deliver",
			SubType:          "Special Dividend",
			Symbol:           ticker,
			UnderlyingSymbol: ticker,
			InstrumentType:   broker.InstrumentEquityOption,
			Value:            decimal.NewFromFloat(value),
			Quantity:         decimal.NewFromInt(1),
			Strike:           decimal.NewFromFloat(strikePrice),
			Expiration:       time.Date(2024, time.June, 21, 0, 0, 0, 0, time.UTC),
			CallOrPut:        "PUT",
			Currency:         "USD",
			Line:             line,
		},
		Class: broker.Classification{Class: broker.ClassReceiveDeliver, SubType: broker.SubSpecialDividend},
	}
}

func TestDetectAdjustmentsPairsLegs(t *testing.T) {
	// The broker closed the 30 put and reopened it at 29.70, one second
	// later, with premiums that cancel exactly.
	when := at("2024-05-15 09:30:00")
	txs := []Classified{
		specialLeg(4, when, "MPW", 30, -12.34),
		specialLeg(5, when.Add(time.Second), "MPW", 29.70, 12.34),
	}

	pairs, remaining, warnings := DetectAdjustments(txs)

	if len(pairs) != 1 {
		t.Fatalf("DetectAdjustments() found %d pairs, want 1", len(pairs))
	}
	if len(remaining) != 0 {
		t.Errorf("remaining has %d transactions, want 0", len(remaining))
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v, want none", warnings)
	}

	pair := pairs[0]
	if pair.Ticker != "MPW" {
		t.Errorf("Ticker = %q, want MPW", pair.Ticker)
	}
	if !pair.OriginalStrike.Equal(decimal.NewFromInt(30)) {
		t.Errorf("OriginalStrike = %s, want 30", pair.OriginalStrike)
	}
	if !pair.NewStrike.Equal(decimal.NewFromFloat(29.70)) {
		t.Errorf("NewStrike = %s, want 29.7", pair.NewStrike)
	}
	if !pair.StrikeDelta.Equal(decimal.NewFromFloat(-0.30)) {
		t.Errorf("StrikeDelta = %s, want -0.3", pair.StrikeDelta)
	}
	if !pair.Dividend.Equal(USD(12.34)) {
		t.Errorf("Dividend = %v, want %v", pair.Dividend, USD(12.34))
	}
	if !pair.Closing.Value.IsNegative() {
		t.Errorf("Closing leg premium = %s, want the negative leg", pair.Closing.Value)
	}
}

func TestDetectAdjustmentsPremiumTolerance(t *testing.T) {
	when := at("2024-05-15 09:30:00")

	// One cent of rounding residue is still a pair.
	pairs, _, _ := DetectAdjustments([]Classified{
		specialLeg(1, when, "MPW", 30, -12.34),
		specialLeg(2, when, "MPW", 29.70, 12.35),
	})
	if len(pairs) != 1 {
		t.Errorf("one cent residue: found %d pairs, want 1", len(pairs))
	}

	// Two cents is not.
	pairs, remaining, warnings := DetectAdjustments([]Classified{
		specialLeg(1, when, "MPW", 30, -12.34),
		specialLeg(2, when, "MPW", 29.70, 12.36),
	})
	if len(pairs) != 0 {
		t.Errorf("two cents residue: found %d pairs, want 0", len(pairs))
	}
	if len(remaining) != 2 {
		t.Errorf("remaining has %d transactions, want both legs back", len(remaining))
	}
	if len(warnings) != 2 {
		t.Errorf("warnings = %v, want one per unmatched leg", warnings)
	}
}

func TestDetectAdjustmentsTimeWindow(t *testing.T) {
	when := at("2024-05-15 09:30:00")

	// Two seconds apart is within the event window.
	pairs, _, _ := DetectAdjustments([]Classified{
		specialLeg(1, when, "MPW", 30, -12.34),
		specialLeg(2, when.Add(2*time.Second), "MPW", 29.70, 12.34),
	})
	if len(pairs) != 1 {
		t.Errorf("2s apart: found %d pairs, want 1", len(pairs))
	}

	// Three seconds is two separate events.
	pairs, _, warnings := DetectAdjustments([]Classified{
		specialLeg(1, when, "MPW", 30, -12.34),
		specialLeg(2, when.Add(3*time.Second), "MPW", 29.70, 12.34),
	})
	if len(pairs) != 0 {
		t.Errorf("3s apart: found %d pairs, want 0", len(pairs))
	}
	if len(warnings) != 2 {
		t.Errorf("3s apart: warnings = %v, want one per leg", warnings)
	}
}

func TestDetectAdjustmentsRequiresSameContract(t *testing.T) {
	when := at("2024-05-15 09:30:00")

	differentExpiration := specialLeg(2, when, "MPW", 29.70, 12.34)
	differentExpiration.Expiration = time.Date(2024, time.July, 19, 0, 0, 0, 0, time.UTC)

	differentType := specialLeg(2, when, "MPW", 29.70, 12.34)
	differentType.CallOrPut = "CALL"

	sameStrike := specialLeg(2, when, "MPW", 30, 12.34)

	differentQuantity := specialLeg(2, when, "MPW", 29.70, 12.34)
	differentQuantity.Quantity = decimal.NewFromInt(2)

	for name, opening := range map[string]Classified{
		"different expiration": differentExpiration,
		"different type":       differentType,
		"same strike":          sameStrike,
		"different quantity":   differentQuantity,
	} {
		pairs, _, _ := DetectAdjustments([]Classified{
			specialLeg(1, when, "MPW", 30, -12.34),
			opening,
		})
		if len(pairs) != 0 {
			t.Errorf("%s: found %d pairs, want 0", name, len(pairs))
		}
	}
}

func TestDetectAdjustmentsUnmatchedFlowsThrough(t *testing.T) {
	// A lone closing leg plus an ordinary trade row: the detector must
	// keep both, in order, and warn about the lone leg only.
	when := at("2024-05-15 09:30:00")
	trade := Classified{
		RawTransaction: broker.RawTransaction{
			Date: when, Type: "Trade", SubType: "Sell to Open", Symbol: "SPY",
			Value: decimal.NewFromFloat(5), Line: 2,
		},
		Class: broker.Classification{Class: broker.ClassTrade, SubType: broker.SubSellToOpen},
	}
	lone := specialLeg(3, when, "MPW", 30, -12.34)

	pairs, remaining, warnings := DetectAdjustments([]Classified{trade, lone})

	if len(pairs) != 0 {
		t.Fatalf("found %d pairs, want 0", len(pairs))
	}
	if len(remaining) != 2 || remaining[0].Line != 2 || remaining[1].Line != 3 {
		t.Errorf("remaining must keep both rows in input order, got %+v", remaining)
	}
	if len(warnings) != 1 {
		t.Fatalf("warnings = %v, want exactly one", warnings)
	}
	if !strings.Contains(warnings[0], "no matching pair") || !strings.Contains(warnings[0], "line 3") {
		t.Errorf("warning %q must name the unmatched line", warnings[0])
	}
}

func TestDetectAdjustmentsConsumesEachLegOnce(t *testing.T) {
	// Two identical closings compete for one opening: exactly one pair,
	// one warning for the loser.
	when := at("2024-05-15 09:30:00")
	pairs, remaining, warnings := DetectAdjustments([]Classified{
		specialLeg(1, when, "MPW", 30, -12.34),
		specialLeg(2, when, "MPW", 30, -12.34),
		specialLeg(3, when, "MPW", 29.70, 12.34),
	})

	if len(pairs) != 1 {
		t.Fatalf("found %d pairs, want 1", len(pairs))
	}
	if pairs[0].Closing.Line != 1 {
		t.Errorf("first closing in input order must win, got line %d", pairs[0].Closing.Line)
	}
	if len(remaining) != 1 || remaining[0].Line != 2 {
		t.Errorf("remaining = %+v, want only the losing closing", remaining)
	}
	if len(warnings) != 1 {
		t.Errorf("warnings = %v, want one", warnings)
	}
}
