// Package main implements the backupwatch CLI: filtered scans, sampled
// fingerprints and a change watcher.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shuakami/backupwatch/fingerprint"
	"github.com/shuakami/backupwatch/internal/config"
	"github.com/shuakami/backupwatch/internal/logging"
)

// version information
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds state shared by subcommands once the root command has loaded configuration
type app struct {
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "backupwatch",
		Short: "Filtered directory scans, sampled fingerprints and change watching",
		Long: `backupwatch enumerates files with include/exclude patterns and attribute
masks, computes sampled content fingerprints for change detection, and watches
directories for changes.

Configuration is read from an optional YAML file and BACKUPWATCH_* environment
variables. Command-line flags override both.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.load,
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "log format (json or console)")

	root.AddCommand(newScanCmd(a))
	root.AddCommand(newHashCmd(a))
	root.AddCommand(newWatchCmd(a))

	return root
}

// load reads configuration and builds the logger before any subcommand runs
func (a *app) load(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Logging.Format = a.logFormat
	}

	logCfg, err := cfg.LoggingConfig()
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.cfg = cfg
	a.logger = logger.Named(cmd.Name())
	return nil
}

func (a *app) fingerprinter() (*fingerprint.Fingerprinter, error) {
	opts, err := a.cfg.FingerprintOptions()
	if err != nil {
		return nil, err
	}
	return fingerprint.New(append(opts, fingerprint.WithLogger(a.logger))...)
}
