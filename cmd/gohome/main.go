package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/joshp123/gohome-switchbot/internal/config"
	"github.com/joshp123/gohome-switchbot/internal/logging"
)

type rootOptions struct {
	configPath string
	logFormat  string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
}

func main() {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "gohome",
		Short:         "GoHome hub with the SwitchBot Cloud integration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultPath, "Path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format override (console, json)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	rootCmd.AddCommand(
		newServeCommand(opts),
		newSetupCommand(opts),
		newEntriesCommand(opts),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gohome: %v\n", err)
		os.Exit(1)
	}
}

func (o *rootOptions) init(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}

	logger, err := logging.New(cfg.Log.Format, cfg.Log.Level)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)

	o.cfg = cfg
	o.logger = logger
	return nil
}
