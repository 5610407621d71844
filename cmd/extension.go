package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/DarioAlonsoCerezo/binnacle/config"
)

// Environment passed to extension binaries.
const (
	EnvConfigFile = "BNC_CONFIG"
	EnvDatabase   = "BNC_DB"
	EnvAccount    = "BNC_ACCOUNT"
)

// RunExtension finds and executes an external bnc-<subcommand> binary,
// git style. It returns (true, exitCode) if an extension ran, and
// (false, 0) if none was found on the PATH.
func RunExtension(subcommand string, args []string) (bool, int) {
	name := "bnc-" + subcommand

	lp, err := exec.LookPath(name)
	if err != nil {
		slog.Debug("no extension found", "name", name)
		return false, 0
	}

	c := exec.Command(lp, args...)
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr

	// Extensions get the resolved configuration through the environment,
	// so they never have to re-parse global flags.
	c.Env = append(os.Environ(), EnvConfigFile+"="+*configFile)
	if cfg, err := config.Load(*configFile); err == nil {
		c.Env = append(c.Env, EnvDatabase+"="+cfg.Database, EnvAccount+"="+cfg.Account)
	}

	if err := c.Run(); err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			return true, exitError.ExitCode()
		}
		fmt.Fprintf(os.Stderr, "Error executing external command %q: %v\n", name, err)
		return true, 1
	}
	return true, 0
}
