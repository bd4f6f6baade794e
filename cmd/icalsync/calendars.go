package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var calendarsGoogle bool

var calendarsCmd = &cobra.Command{
	Use:   "calendars",
	Short: "List iCloud (or, with --google, Google) calendars",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		var out interface{}
		if calendarsGoogle {
			out, err = a.google.ListCalendars(cmd.Context())
		} else {
			out, err = a.manager.Calendars(cmd.Context())
		}
		if err != nil {
			return err
		}

		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}

func init() {
	calendarsCmd.Flags().BoolVar(&calendarsGoogle, "google", false, "list Google calendars instead of iCloud ones")
	rootCmd.AddCommand(calendarsCmd)
}
