package binnacle

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/DarioAlonsoCerezo/binnacle/broker"
)

// Tolerances for accepting a special dividend adjustment pair.
var (
	// premiumTolerance is the largest residue allowed when the two legs'
	// premiums are summed. Brokers round each leg independently, so the sum
	// of a genuine pair can be off by one cent.
	premiumTolerance = decimal.New(1, -2) // $0.01

	// pairWindow is the widest time distance between the two legs of one
	// adjustment event.
	pairWindow = 2 * time.Second
)

// DetectedAdjustment is a validated pair of special dividend transactions
// that together represent a strike price adjustment: the broker closed the
// position at the original strike and reopened it at the lowered strike.
type DetectedAdjustment struct {
	Closing broker.RawTransaction // negative premium leg
	Opening broker.RawTransaction // positive premium leg

	Ticker         string
	OriginalStrike decimal.Decimal // the higher strike
	NewStrike      decimal.Decimal // the lower strike
	StrikeDelta    decimal.Decimal // NewStrike - OriginalStrike, negative
	Dividend       Money           // |closing premium| per pair
}

// DetectAdjustments scans classified transactions for special dividend
// strike adjustment pairs. It returns the detected pairs, the transactions
// not consumed by any pair (in input order), and one warning per special
// dividend transaction that found no partner. Unmatched special dividend
// transactions stay in the remaining list and convert as ordinary option
// trades.
//
// Candidate pairs are bucketed by underlying ticker; within a bucket every
// unconsumed closing leg (negative premium) scans the unconsumed opening
// legs (positive premium) in input order and accepts the first one whose
// expiration, option type and quantity match, whose strike differs, whose
// timestamp is within 2 seconds, and whose premium cancels the closing
// premium within one cent. Each transaction is consumed at most once.
func DetectAdjustments(txs []Classified) (pairs []DetectedAdjustment, remaining []Classified, warnings []string) {
	type candidate struct {
		index int // position in txs
		tx    broker.RawTransaction
	}

	// Bucket opening legs per underlying ticker, keeping input order. The
	// 2 second window is enforced pairwise, never across tickers.
	openings := make(map[string][]candidate)
	special := make([]bool, len(txs))
	for i, c := range txs {
		if c.Class.Class != broker.ClassReceiveDeliver || c.Class.SubType != broker.SubSpecialDividend {
			continue
		}
		special[i] = true
		if !c.Value.IsNegative() {
			ticker := c.Underlying()
			openings[ticker] = append(openings[ticker], candidate{i, c.RawTransaction})
		}
	}

	consumed := make(map[int]bool)
	for i, c := range txs {
		if !special[i] || consumed[i] || !c.Value.IsNegative() {
			continue
		}
		ticker := c.Underlying()
		for _, open := range openings[ticker] {
			if consumed[open.index] {
				continue
			}
			if !isAdjustmentPair(c.RawTransaction, open.tx) {
				continue
			}
			consumed[i] = true
			consumed[open.index] = true

			original := decimal.Max(c.Strike, open.tx.Strike)
			lowered := decimal.Min(c.Strike, open.tx.Strike)
			pairs = append(pairs, DetectedAdjustment{
				Closing:        c.RawTransaction,
				Opening:        open.tx,
				Ticker:         ticker,
				OriginalStrike: original,
				NewStrike:      lowered,
				StrikeDelta:    lowered.Sub(original),
				Dividend:       M(c.Value, c.Currency).Abs(),
			})
			break
		}
	}

	for i, c := range txs {
		if consumed[i] {
			continue
		}
		remaining = append(remaining, c)
		if special[i] {
			warnings = append(warnings, fmt.Sprintf(
				"special dividend on line %d (%s %s) has no matching pair, converted as a plain option trade",
				c.Line, c.Underlying(), c.Date.Format("2006-01-02 15:04:05")))
		}
	}
	return pairs, remaining, warnings
}

// isAdjustmentPair reports whether a closing and an opening special dividend leg form
// one adjustment event.
func isAdjustmentPair(closing, opening broker.RawTransaction) bool {
	if closing.Underlying() != opening.Underlying() {
		return false
	}
	if !closing.Expiration.Equal(opening.Expiration) {
		return false
	}
	if closing.CallOrPut == "" || closing.CallOrPut != opening.CallOrPut {
		return false
	}
	gap := closing.Date.Sub(opening.Date)
	if gap < 0 {
		gap = -gap
	}
	if gap > pairWindow {
		return false
	}
	if closing.Value.Sign() == opening.Value.Sign() {
		return false
	}
	if closing.Strike.Equal(opening.Strike) {
		return false
	}
	if closing.Value.Add(opening.Value).Abs().GreaterThan(premiumTolerance) {
		return false
	}
	if !closing.Quantity.Equal(opening.Quantity) {
		return false
	}
	return true
}
