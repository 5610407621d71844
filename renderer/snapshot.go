package renderer

import (
	"fmt"
	"strings"

	"github.com/DarioAlonsoCerezo/binnacle"
)

// SnapshotMarkdown renders one snapshot as a vertical metric table.
func SnapshotMarkdown(s *binnacle.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s %s on %s\n\n", s.Account, s.Currency, s.Date)
	fmt.Fprintln(&b, "| Metric | Amount |")
	fmt.Fprintln(&b, "|:---|---:|")
	fmt.Fprintf(&b, "| Net cash flow | %s |\n", s.NetCashFlow().SignedString())
	fmt.Fprintf(&b, "| Deposited | %s |\n", s.Deposited.SignedString())
	fmt.Fprintf(&b, "| Withdrawn | %s |\n", s.Withdrawn.SignedString())
	fmt.Fprintf(&b, "| Realized gains | %s |\n", s.RealizedGains.SignedString())
	fmt.Fprintf(&b, "| Unrealized gains | %s |\n", s.UnrealizedGains.SignedString())
	fmt.Fprintf(&b, "| Invested | %s |\n", s.Invested.SignedString())
	fmt.Fprintf(&b, "| Options income | %s |\n", s.OptionsIncome.SignedString())
	fmt.Fprintf(&b, "| Dividends received | %s |\n", s.DividendsReceived.SignedString())
	fmt.Fprintf(&b, "| Other income | %s |\n", s.OtherIncome.SignedString())
	fmt.Fprintf(&b, "| Commissions | %s |\n", s.Commissions.String())
	fmt.Fprintf(&b, "| Fees | %s |\n", s.Fees.String())

	fmt.Fprintf(&b, "\nRecords folded: %d. Open positions: %s.\n", s.MovementCounter, yesNo(s.OpenTrades))
	return b.String()
}

// SnapshotsMarkdown renders the snapshot history of one account, one
// section per currency. The input is expected sorted by currency then
// date, the order the store lists them in.
func SnapshotsMarkdown(snaps []*binnacle.Snapshot) string {
	if len(snaps) == 0 {
		return "No snapshots. Import a transaction history first.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# Snapshot History for %s\n", snaps[0].Account)

	currency := ""
	for _, s := range snaps {
		if s.Currency != currency {
			currency = s.Currency
			fmt.Fprintf(&b, "\n## %s\n\n", currency)
			fmt.Fprintln(&b, "| Date | Cash Flow | Realized | Unrealized | Invested | Options | Dividends | Open |")
			fmt.Fprintln(&b, "|:---|---:|---:|---:|---:|---:|---:|:---:|")
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
			s.Date,
			s.NetCashFlow().SignedString(),
			s.RealizedGains.SignedString(),
			s.UnrealizedGains.SignedString(),
			s.Invested.SignedString(),
			s.OptionsIncome.SignedString(),
			s.DividendsReceived.SignedString(),
			yesNo(s.OpenTrades),
		)
	}
	return b.String()
}
