package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/oakley-grocery/backend/config"
	"github.com/oakley-grocery/backend/internal/app"
)

func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Server.Port = port
			}

			log.Logger = app.NewLogger(cfg.Log, cmd.ErrOrStderr())
			a, err := app.New(cfg, log.Logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return a.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port, overrides server.port")

	return cmd
}
