package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/DarioAlonsoCerezo/binnacle"
	"github.com/DarioAlonsoCerezo/binnacle/renderer"
)

type snapshotCmd struct {
	account string
	history bool
}

func (*snapshotCmd) Name() string { return "snapshot" }
func (*snapshotCmd) Synopsis() string {
	return "show the account's latest financial aggregates"
}
func (*snapshotCmd) Usage() string {
	return `bnc snapshot [-a <account>] [-history]

  Shows the latest snapshot of the account, one per currency: net cash
  flow, realized and unrealized gains, options income, dividends,
  commissions and fees. With -history, shows the full day-by-day table
  instead.
`
}

func (p *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.account, "a", "", "Account to report on. Defaults to the configured account.")
	f.BoolVar(&p.history, "history", false, "Show the full day-by-day history.")
}

func (p *snapshotCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := appConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer st.Close()

	account := p.account
	if account == "" {
		account = cfg.Account
	}

	snaps, err := st.ListSnapshots(ctx, account)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if p.history {
		printMarkdown(renderer.SnapshotsMarkdown(snaps))
		return subcommands.ExitSuccess
	}

	// The list is sorted by currency then date, so the last snapshot of
	// each currency is the latest one.
	latest := make(map[string]*binnacle.Snapshot)
	var currencies []string
	for _, s := range snaps {
		if _, seen := latest[s.Currency]; !seen {
			currencies = append(currencies, s.Currency)
		}
		latest[s.Currency] = s
	}
	if len(currencies) == 0 {
		printMarkdown(renderer.SnapshotsMarkdown(nil))
		return subcommands.ExitSuccess
	}

	var b strings.Builder
	for _, cur := range currencies {
		b.WriteString(renderer.SnapshotMarkdown(latest[cur]))
		b.WriteString("\n")
	}
	printMarkdown(b.String())
	return subcommands.ExitSuccess
}
