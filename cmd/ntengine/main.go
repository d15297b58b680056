// Command ntengine is the platform's CLI: backtest, live, train, and scan
// subcommands wired through cobra. Generalizes the teacher's four separate
// flag-based binaries (cmd/backtest, cmd/train, cmd/analyze, and main.go's
// live bot) into one root command with subcommands, each with typed flags
// instead of bare `flag.String`.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "ntengine",
		Short: "Deterministic equities backtest engine and live trading loop",
	}

	root.AddCommand(newBacktestCmd())
	root.AddCommand(newLiveCmd())
	root.AddCommand(newTrainCmd())
	root.AddCommand(newScanCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
