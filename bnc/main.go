package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"github.com/DarioAlonsoCerezo/binnacle/cmd"
)

// completion is the shell completion tree. Install it into the shell
// with COMP_INSTALL=1 bnc, remove it with COMP_UNINSTALL=1 bnc.
func completion() *complete.Command {
	account := map[string]complete.Predictor{"a": predict.Something}
	return &complete.Command{
		Flags: map[string]complete.Predictor{
			"config": predict.Files("*.yaml"),
		},
		Sub: map[string]*complete.Command{
			"import": {
				Flags: account,
				Args:  predict.Files("*.csv"),
			},
			"export": {
				Flags: map[string]complete.Predictor{
					"a": predict.Something,
					"o": predict.Files("*.jsonl"),
				},
			},
			"snapshot": {
				Flags: map[string]complete.Predictor{
					"a":       predict.Something,
					"history": predict.Nothing,
				},
			},
			"positions": {Flags: account},
			"movements": {Flags: account},
			"topic":     {Args: predict.Set{"readme", "file-formats", "fifo", "snapshots", "*"}},
			"assist":    {},
		},
	}
}

func main() {
	completion().Complete(path.Base(os.Args[0]))

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	cmd.Register(commander)

	flag.Parse()

	// Unknown verbs fall through to bnc-<verb> binaries on the PATH,
	// git style.
	if args := flag.Args(); len(args) > 0 && !registered(commander, args[0]) {
		if ran, code := cmd.RunExtension(args[0], args[1:]); ran {
			os.Exit(code)
		}
	}

	os.Exit(int(commander.Execute(context.Background())))
}

func registered(commander *subcommands.Commander, name string) bool {
	found := false
	commander.VisitCommands(func(_ *subcommands.CommandGroup, c subcommands.Command) {
		if c.Name() == name {
			found = true
		}
	})
	return found
}
