package renderer

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/DarioAlonsoCerezo/binnacle"
)

// MovementsMarkdown renders the cash movements of one account with a
// total row per currency. Amounts keep the broker's sign, so the totals
// are net external flows.
func MovementsMarkdown(ms []*binnacle.Movement) string {
	if len(ms) == 0 {
		return "No cash movements.\n"
	}
	var b strings.Builder

	fmt.Fprintf(&b, "# Cash Movements\n\n")
	fmt.Fprintln(&b, "| Date | Type | Amount | Ticker | Notes |")
	fmt.Fprintln(&b, "|:---|:---|---:|:---|:---|")
	totals := make(map[string]binnacle.Money)
	for _, m := range ms {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			day(m.When()), m.Type, m.Amount.SignedString(), m.Ticker(), m.Notes())
		cur := m.Amount.Currency()
		totals[cur] = totals[cur].Add(m.Amount)
	}
	for _, cur := range slices.Sorted(maps.Keys(totals)) {
		fmt.Fprintf(&b, "| **Total %s** | | **%s** | | |\n", cur, totals[cur].SignedString())
	}
	return b.String()
}
