package renderer

import (
	"fmt"
	"strings"

	"github.com/DarioAlonsoCerezo/binnacle"
)

// OpenOptionsMarkdown renders the open option legs of one account.
// Legs are one contract-unit each, so the code column carries the side
// and no quantity column is needed.
func OpenOptionsMarkdown(legs []*binnacle.OptionTrade) string {
	if len(legs) == 0 {
		return "No open option positions.\n"
	}
	var b strings.Builder

	fmt.Fprintf(&b, "# Open Option Positions\n\n")
	fmt.Fprintf(&b, "%d legs open.\n\n", len(legs))
	fmt.Fprintln(&b, "| Ticker | Type | Strike | Expiration | Code | Net Premium | Opened |")
	fmt.Fprintln(&b, "|:---|:---|---:|:---|:---|---:|:---|")
	for _, t := range legs {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			t.Ticker(),
			t.OptionType,
			t.Strike,
			t.Expiration,
			t.Code,
			t.NetPremium.SignedString(),
			day(t.When()),
		)
	}
	return b.String()
}
