package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pingline/pingline-server/internal/app"
	"github.com/pingline/pingline-server/internal/config"
	"github.com/pingline/pingline-server/internal/log"
)

func main() {
	root := &cobra.Command{
		Use:          "pingline-server",
		Short:        "Real-time one-to-one messaging relay with presence tracking",
		SilenceUsage: true,
	}
	root.AddCommand(serveCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCommand() *cobra.Command {
	var (
		configPath string
		addr       string
		dbPath     string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the pingline server",
		RunE: func(cmd *cobra.Command, args []string) error {
			bootLogger := log.New(logLevel)

			cfg, cfgPath, err := config.Load(bootLogger, configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			// Flags override config file and env.
			if addr != "" {
				cfg.Addr = addr
			}
			if dbPath != "" {
				cfg.DatabasePath = dbPath
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			logger := log.New(cfg.LogLevel)
			logger.Info().Str("config", cfgPath).Str("addr", cfg.Addr).Msg("starting pingline server")

			application, err := app.New(&cfg, logger)
			if err != nil {
				return fmt.Errorf("init app: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := application.Run(ctx); err != nil {
				return fmt.Errorf("server exited: %w", err)
			}

			logger.Info().Msg("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to config file")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	cmd.Flags().StringVar(&dbPath, "db", "", "path to SQLite database file")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	return cmd
}
