// Command dvrd runs the distance-vector routing daemon: a periodic
// advertise/listen/learn/age/reconcile cycle over UDP broadcast, driving
// the host's kernel routing table through an external route(8)-like
// command.
//
// The command tree offers a `run` subcommand that starts the engine
// non-interactively, and a `console` subcommand that drives it from
// operator input.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/colinmarsh/dvrd/internal/config"
	"github.com/colinmarsh/dvrd/internal/console"
	"github.com/colinmarsh/dvrd/internal/engine"
	"github.com/colinmarsh/dvrd/internal/routesink"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:   "dvrd",
		Short: "distance-vector route discovery daemon",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a config file (yaml, json, toml)")
	config.BindFlags(root.PersistentFlags())

	root.AddCommand(newRunCmd(&configFile))
	root.AddCommand(newConsoleCmd(&configFile))
	return root
}

func newLogger() (*zap.Logger, error) {
	return zap.NewProduction()
}

func loadConfig(cmd *cobra.Command, configFile string) (config.Config, error) {
	return config.Load(cmd.Flags(), configFile)
}

func newRunCmd(configFile *string) *cobra.Command {
	var routeCommandPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the engine non-interactively until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if routeCommandPath != "" {
				cfg.RouteCommandPath = routeCommandPath
			}

			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync()

			sink := routesink.ExecSink{Path: cfg.RouteCommandPath}
			eng := engine.New(cfg, sink, logger)

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			logger.Info("starting engine", zap.Int("port", cfg.Port))
			return eng.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&routeCommandPath, "route-command", "", "override the route(8)-like binary to invoke")
	return cmd
}

func newConsoleCmd(configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "run an interactive console to toggle routing and list neighbors",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger, err := newLogger()
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync()

			sink := routesink.ExecSink{Path: cfg.RouteCommandPath}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			c := console.New(cfg, sink, logger, os.Stdin, os.Stdout)
			c.Run(ctx)
			return nil
		},
	}
}
