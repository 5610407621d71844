package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/DarioAlonsoCerezo/binnacle/renderer"
)

type positionsCmd struct {
	account string
}

func (*positionsCmd) Name() string { return "positions" }
func (*positionsCmd) Synopsis() string {
	return "list the account's open option legs"
}
func (*positionsCmd) Usage() string {
	return `bnc positions [-a <account>]

  Lists the option legs still open after matching: ticker, type, strike,
  expiration, side and net premium, oldest first.
`
}

func (p *positionsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.account, "a", "", "Account to report on. Defaults to the configured account.")
}

func (p *positionsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	legs, err := st.ListOpenOptions(ctx, account)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	printMarkdown(renderer.OpenOptionsMarkdown(legs))
	return subcommands.ExitSuccess
}
