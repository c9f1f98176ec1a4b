// Package cli wires the stampede commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

// RootCmd is the base command.
var RootCmd = &cobra.Command{
	Use:     "stampede",
	Short:   "Weighted-workload load generator and metrics engine",
	Version: version,
	Long: `Stampede drives a population of simulated clients against a target
service according to a weighted workload mix, measures per-request latency
and outcome, correlates them with host resource readings, and writes a
structured report.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(scenariosCmd)
	RootCmd.AddCommand(historyCmd)
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
