package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var syncDryRun bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass now",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		report, err := a.manager.Sync(cmd.Context(), syncDryRun)
		if report != nil {
			out, _ := json.MarshalIndent(report, "", "  ")
			fmt.Fprintln(os.Stdout, string(out))
		}
		return err
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "produce the plan without touching Google Calendar or the sync state")
	rootCmd.AddCommand(syncCmd)
}
