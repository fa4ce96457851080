package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the dashboard engine's own version, independent of whatever
// orchestrator is feeding it events.
const Version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show buildconsole version and exit.",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(Version)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
