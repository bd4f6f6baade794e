package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tazhate/icalsync/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server and the sync scheduler",
	Long: `Serve speaks MCP over stdin/stdout. If auto_start_sync is enabled in
the sync settings, the scheduler starts immediately; otherwise it waits
for a start_sync tool call.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		settings := a.manager.Settings()
		if settings.AutoStartSync && settings.SyncEnabled {
			if err := a.manager.StartScheduler(); err != nil {
				return err
			}
		}
		defer a.manager.StopScheduler()

		server := mcp.NewServer(a.manager, a.google, os.Stdin, os.Stdout, a.log)
		if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
