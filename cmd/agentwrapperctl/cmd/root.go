// Package cmd implements the agentwrapperctl CLI commands.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "agentwrapperctl",
	Short: "Drive the agentwrapper gateway from the command line",
	Long: `agentwrapperctl registers the codex and claude_code backends against an
in-process gateway and submits run requests, printing the normalized event
stream as NDJSON.

Examples:
  agentwrapperctl run --backend codex "fix the failing test"
  agentwrapperctl run --backend claude_code --non-interactive=false "explain this diff"`,
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
