package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// exitCodeError carries a process exit code that is not a failure of the command itself.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

var rootCmd = &cobra.Command{
	Use:   "sourceguard",
	Short: "Validate sources and enforce quality rules on generated article drafts",
	Long: `SourceGuard checks a generated article draft before publication.

It probes every cited source, asks a search agent for replacements when too
few survive, cross-checks citation markers, applies deterministic fixes and
evaluates the result against the quality rule set.

Configuration is read from the YAML file named by SOURCE_GUARD_CONFIG and
from environment variables (a .env file in the working directory is loaded).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(checkCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit exitCodeError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
