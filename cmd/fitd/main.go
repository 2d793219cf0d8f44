// Command fitd runs a standalone FIT worker, typically the registry server
// or the secure access authority of a cluster.
//
//	fitd --config_file fitd.yaml --worker.port 8090 --registry.server true
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/horockey/fit"
	"github.com/horockey/fit/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fitd --config_file <path> [--<key> <value>]...",
		Short: "Run a FIT worker",
		Long: "Run a FIT worker. Every --<key> <value> pair after the config file " +
			"overrides the config entry at the dotted yaml path key.",
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 && (args[0] == "-h" || args[0] == "--help") {
				return cmd.Help()
			}

			cfg, err := config.FromArgs(args)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			w, err := fit.NewWorker(cfg)
			if err != nil {
				return fmt.Errorf("creating worker: %w", err)
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("running worker: %w", err)
			}
			return nil
		},
	}
}
