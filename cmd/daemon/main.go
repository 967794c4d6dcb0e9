package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags cliFlags

	cmd := &cobra.Command{
		Use:   "navicord",
		Short: "Mirror the track playing on a Subsonic server or MPRIS player as Discord rich presence",
		Long: "navicord polls a Subsonic-compatible server (or a local MPRIS player) for the current\n" +
			"track and shows it as a listening activity on Discord.\n\n" +
			"Settings come from NAVICORD_* environment variables and an optional config file.",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), flags)
		},
	}

	cmd.Flags().StringVarP(&flags.ConfigFile, "config", "c", "", "config file (yaml, json or toml)")
	cmd.Flags().BoolVar(&flags.Debug, "debug", false, "enable debug logging")

	return cmd
}

// run starts the application and blocks until an interrupt signal arrives
func run(parent context.Context, flags cliFlags) error {
	app := fx.New(
		AppOptions,
		fx.Supply(flags),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)
	if err := app.Err(); err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	return app.Stop(stopCtx)
}
