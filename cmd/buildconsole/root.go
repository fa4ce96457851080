package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "buildconsole",
	Short: "Live terminal dashboard for a parallel build/test orchestrator.",
	Long: `buildconsole renders a single, continuously overwritten terminal frame
summarizing a running build and test session: parse/processing progress,
per-worker activity, cache statistics, network throughput, and test
results.`,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to a buildconsole.yaml configuration file.")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
