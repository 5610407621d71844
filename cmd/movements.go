package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/DarioAlonsoCerezo/binnacle/renderer"
)

type movementsCmd struct {
	account string
}

func (*movementsCmd) Name() string { return "movements" }
func (*movementsCmd) Synopsis() string {
	return "list the account's cash movements and transfers"
}
func (*movementsCmd) Usage() string {
	return `bnc movements [-a <account>]

  Lists deposits, withdrawals, dividends, fees, interest and transfers in
  chronological order, with a total per currency.
`
}

func (p *movementsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.account, "a", "", "Account to report on. Defaults to the configured account.")
}

func (p *movementsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	ms, err := st.ListMovements(ctx, account)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	printMarkdown(renderer.MovementsMarkdown(ms))
	return subcommands.ExitSuccess
}
