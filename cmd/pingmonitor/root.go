package main

import (
	"github.com/spf13/cobra"

	"pingmonitor/internal/config"
	"pingmonitor/internal/logging"
)

type rootOptions struct {
	configPath string
	logLevel   string
	cfg        config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "pingmonitor",
		Short:         "Host reachability and latency monitor",
		Long:          `pingmonitor measures hosts on demand or on a per-host schedule and reports colour-banded latency.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			if opts.logLevel != "" {
				cfg.LogLevel = opts.logLevel
			}
			if cfg.LogLevel != "" {
				logging.SetLevel(cfg.LogLevel)
			}
			if cfg.LogFormat == "json" {
				logging.UseJSON()
			}
			opts.cfg = cfg
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "path to configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newPingCmd(opts))
	rootCmd.AddCommand(newResolveCmd(opts))
	rootCmd.AddCommand(newBatteryCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}
