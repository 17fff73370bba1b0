// Package commands implements the scrapeycat CLI commands.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mkforsb/scrapeycat/internal/scripterr"
)

var rootCmd = &cobra.Command{
	Use:   "scrapeycat",
	Short: "A tiny DSL for scraping and scheduling web scrapes",
	Long: `scrapeycat executes small regex-and-HTTP pipeline scripts and can
run them once or schedule them as cron-driven daemon jobs.

Examples:
  # Run a script once, passing positional and keyword arguments
  scrapeycat run temperature --positional Stockholm --location=Sweden/Stockholm

  # Run the scheduler forever against a TOML config
  scrapeycat daemon ./scrapeycat.toml --debug`,
}

// Execute runs the root command and returns the process exit code of
// 0 success, 2 invalid CLI args, and whatever the invoked
// subcommand reports otherwise (1 runtime error, 3 config error).
// Exit code 2 covers the argument errors that the run and daemon
// subcommands report themselves; errors raised by cobra (an unknown
// subcommand or an unknown flag) are not told apart and exit 1.
func Execute() int {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	fmt.Fprintln(os.Stderr, "Error:", err)

	var ue *usageError
	if ok := asUsageError(err, &ue); ok {
		return 2
	}
	return scripterr.ExitCode(err)
}

// usageError marks a CLI-argument-shape error (exit code 2) as
// distinct from a script/config runtime failure.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func newUsageError(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

func asUsageError(err error, target **usageError) bool {
	for err != nil {
		if ue, ok := err.(*usageError); ok {
			*target = ue
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
