// Package cmd implements the CLI application over an imported broker
// transaction history.
package cmd

import (
	"flag"
	"log/slog"
	"os"

	"github.com/google/subcommands"

	"github.com/DarioAlonsoCerezo/binnacle/config"
	"github.com/DarioAlonsoCerezo/binnacle/store"
)

// Register the subcommands.
// A main package calls Register() to declare the subcommands, and
// Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&importCmd{}, "history")
	c.Register(&exportCmd{}, "history")

	c.Register(&snapshotCmd{}, "reports")
	c.Register(&positionsCmd{}, "reports")
	c.Register(&movementsCmd{}, "reports")

	c.Register(&topicCmd{}, "")
	c.Register(&assistCmd{}, "")
}

// As a CLI application the lifecycle is one command per process, so
// shared flags live in package globals.

var configFile = flag.String("config", config.DefaultFile, "Path to the configuration file (YAML)")

// appConfig loads the configuration and configures logging from it.
func appConfig() (*config.Config, error) {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return nil, err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return cfg, nil
}

// openStore opens the configured database, creating it on first use.
func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.Database)
}
