package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yungbote/mockly-backend/internal/app"
	"github.com/yungbote/mockly-backend/internal/mlstub"
	"github.com/yungbote/mockly-backend/internal/platform/authtoken"
	"github.com/yungbote/mockly-backend/internal/platform/envutil"
)

var (
	mlstubAddr string

	devtokenUser string
	devtokenTTL  time.Duration
)

var mlstubCmd = &cobra.Command{
	Use:   "mlstub",
	Short: "Serve a stand-in ML scoring service with a fixed scorecard",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		log, err := app.NewLogger()
		if err != nil {
			return err
		}
		defer log.Sync()

		srv := &http.Server{
			Addr:              mlstubAddr,
			Handler:           mlstub.NewRouter(log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() { errCh <- srv.ListenAndServe() }()
		log.Info("ML stub listening", "addr", mlstubAddr)

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		}
	},
}

var devtokenCmd = &cobra.Command{
	Use:   "devtoken",
	Short: "Mint an API bearer token for local testing",
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := uuid.New()
		if devtokenUser != "" {
			parsed, err := uuid.Parse(devtokenUser)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			userID = parsed
		}
		defaults := app.DefaultConfig()
		verifier, err := authtoken.NewVerifier(
			envutil.String("JWT_SECRET_KEY", defaults.Auth.JWTSecret),
			envutil.String("JWT_ISSUER", defaults.Auth.Issuer),
		)
		if err != nil {
			return err
		}
		tok, err := verifier.Issue(userID, devtokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user:  %s\ntoken: %s\n", userID, tok)
		return nil
	},
}

func init() {
	mlstubCmd.Flags().StringVar(&mlstubAddr, "addr", envutil.String("MLSTUB_ADDR", ":8000"), "listen address")
	devtokenCmd.Flags().StringVar(&devtokenUser, "user", "", "user id to embed (random when empty)")
	devtokenCmd.Flags().DurationVar(&devtokenTTL, "ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(mlstubCmd, devtokenCmd)
}
