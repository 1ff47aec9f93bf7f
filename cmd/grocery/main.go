package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/oakley-grocery/backend/config"
	"github.com/oakley-grocery/backend/internal/app"
)

var outputJSON bool

func main() {
	rootCmd := &cobra.Command{
		Use:           "grocery",
		Short:         "Resolve generic grocery items to Woolworths products",
		Version:       app.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(resolveCmd())
	rootCmd.AddCommand(batchCmd())
	rootCmd.AddCommand(learnCmd())
	rootCmd.AddCommand(prefsCmd())
	rootCmd.AddCommand(productCmd())
	rootCmd.AddCommand(specialsCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// withApp loads configuration, builds the application and hands it to fn.
// Commands log at warn unless debug or trace is configured.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if level, err := zerolog.ParseLevel(cfg.Log.Level); err != nil || level == zerolog.InfoLevel {
		cfg.Log.Level = zerolog.WarnLevel.String()
	}
	cfg.Log.Pretty = true
	log := app.NewLogger(cfg.Log, cmd.ErrOrStderr())

	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(cmd.Context(), a)
}
