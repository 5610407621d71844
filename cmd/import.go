package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/DarioAlonsoCerezo/binnacle"
	"github.com/DarioAlonsoCerezo/binnacle/renderer"
)

type importCmd struct {
	account string
}

func (*importCmd) Name() string { return "import" }
func (*importCmd) Synopsis() string {
	return "import broker transaction-history files into an account"
}
func (*importCmd) Usage() string {
	return `bnc import [-a <account>] <file>...

  Parses Tastytrade or IBKR export files (the format is detected from the
  content), converts the rows into canonical records, matches option legs
  first in first out, and stores the records and the daily snapshots.
  Re-importing the same files is idempotent.
`
}

func (p *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.account, "a", "", "Account to import into. Defaults to the configured account.")
}

func (p *importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Error: at least one file to import is required.")
		return subcommands.ExitUsageError
	}

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

	imp := &binnacle.Importer{
		Resolver: st,
		Account:  account,
		Progress: binnacle.ProgressFunc(func(file string, fraction float64) {
			fmt.Fprintf(os.Stderr, "%3.0f%% %s\n", fraction*100, file)
		}),
	}

	result, err := imp.ImportFiles(ctx, f.Args()...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	printMarkdown(renderer.ImportMarkdown(result))

	if !result.Success {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
