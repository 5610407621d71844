package binnacle

import (
	"fmt"
	"sort"

	"github.com/DarioAlonsoCerezo/binnacle/date"
)

// positionKey identifies the option position a trade belongs to. Two
// trades match only when every component is equal. The strike is keyed by
// its canonical decimal form, so 30 and 30.00 land in the same position.
type positionKey struct {
	ticker     string
	currency   string
	account    string
	optionType OptionType
	strike     string
	expiration date.Date
}

func keyOf(t *OptionTrade) positionKey {
	return positionKey{
		ticker:     t.Ticker(),
		currency:   t.Currency(),
		account:    t.Account(),
		optionType: t.OptionType,
		strike:     t.Strike.String(),
		expiration: t.Expiration,
	}
}

// MatchOptions links closing option trades to their openings, oldest
// opening first. Matching mutates the trades in place: the opening is
// marked closed and both sides record the other's id. It reports how many
// pairs were linked, plus one warning per closing that found no opening.
//
// Trades already linked from an earlier run are left alone, so matching
// is safe to repeat over a growing history. Expiration and exercise
// notation records neither open nor consume positions here; assignments
// consume like any other closing.
func MatchOptions(trades []*OptionTrade) (matched int, warnings []string) {
	ordered := make([]*OptionTrade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].When().Before(ordered[j].When())
	})

	open := make(map[positionKey][]*OptionTrade)
	for _, t := range ordered {
		switch {
		case t.Code.IsOpening():
			if !t.IsOpen {
				continue // consumed in an earlier run
			}
			key := keyOf(t)
			open[key] = append(open[key], t)

		case t.Code.IsClosing():
			if t.ClosedWith != "" {
				continue // linked in an earlier run
			}
			key := keyOf(t)
			queue := open[key]
			if len(queue) == 0 {
				warnings = append(warnings, fmt.Sprintf(
					"no open position for %s closing %s %s %s strike %s expiring %s at %s",
					t.Code, t.Ticker(), t.Account(), t.OptionType,
					t.Strike, t.Expiration, t.When().Format("2006-01-02 15:04:05")))
				continue
			}
			opening := queue[0]
			open[key] = queue[1:]

			opening.IsOpen = false
			opening.ClosedWith = t.ID()
			t.ClosedWith = opening.ID()
			matched++
		}
	}
	return matched, warnings
}

// OpenOptionTrades returns the trades still holding an open position,
// oldest first.
func OpenOptionTrades(trades []*OptionTrade) []*OptionTrade {
	var open []*OptionTrade
	for _, t := range trades {
		if t.IsOpen {
			open = append(open, t)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].When().Before(open[j].When())
	})
	return open
}
