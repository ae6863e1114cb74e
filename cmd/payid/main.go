// Command payid validates and normalizes PayIDs and runs the registry service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"payidcheck/internal/app"
	"payidcheck/internal/config"
	"payidcheck/internal/observability"
	"payidcheck/internal/store"
)

// errInvalidInput makes the process exit 1 after the report is already printed.
var errInvalidInput = errors.New("one or more payids are invalid")

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		if !errors.Is(err, errInvalidInput) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "payid",
		Short:         "Validate and normalize PayIDs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", os.Getenv("PAYID_CONFIG"), "Path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format override (text, json)")

	rootCmd.AddCommand(
		newValidateCmd(opts),
		newServeCmd(opts),
		newWorkerCmd(opts),
		newMigrateCmd(opts),
	)
	return rootCmd
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return cfg, fmt.Errorf("config error: %w", err)
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) *slog.Logger {
	return observability.NewLogger(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP validation and registry service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("app init error: %w", err)
			}
			defer a.Close()
			return a.Serve(cmd.Context())
		},
	}
}

func newWorkerCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the DNS liveness worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger := newLogger(cmd, cfg)
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("app init error: %w", err)
			}
			defer a.Close()
			return a.Worker().Run(cmd.Context())
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.Database.DSN, cfg.DatabasePool())
			if err != nil {
				return fmt.Errorf("store error: %w", err)
			}
			defer st.Close()
			if err := st.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("migration error: %w", err)
			}
			newLogger(cmd, cfg).Info("migrations applied")
			return nil
		},
	}
}
