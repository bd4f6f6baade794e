package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "icalsync",
	Short: "One-way iCloud to Google Calendar sync",
	Long: `icalsync mirrors events from iCloud calendars into a Google Calendar.
The serve command runs the MCP server and the sync scheduler; the other
commands are one-shot operations against the same data directory.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
