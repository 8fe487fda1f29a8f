package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yungbote/mockly-backend/internal/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the report worker pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log, err := app.NewLogger()
		if err != nil {
			return err
		}
		a, err := app.New(ctx, log)
		if err != nil {
			log.Error("Startup failed", "error", err)
			log.Sync()
			return err
		}
		defer a.Close()

		if err := a.Run(ctx); err != nil {
			log.Error("Server stopped with error", "error", err)
			return err
		}
		log.Info("Server stopped")
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := app.NewLogger()
		if err != nil {
			return err
		}
		defer log.Sync()
		if err := app.Migrate(log); err != nil {
			return err
		}
		log.Info("Migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}
