package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var resetConfirmed bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the sync state",
	Long:  `Reset drops all sync records. Every source event is treated as new on the next sync; already-synced remote events are not touched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetConfirmed {
			return fmt.Errorf("refusing to reset without --yes")
		}

		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.manager.ResetState(); err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, "Sync state reset.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "confirm the reset")
	rootCmd.AddCommand(resetCmd)
}
