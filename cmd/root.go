// Package cmd wires the geocapture command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tphakala/geocapture/cmd/analyze"
	"github.com/tphakala/geocapture/cmd/backfill"
	"github.com/tphakala/geocapture/cmd/purge"
	"github.com/tphakala/geocapture/cmd/sun"
	"github.com/tphakala/geocapture/cmd/worker"
	"github.com/tphakala/geocapture/internal/buildinfo"
	"github.com/tphakala/geocapture/internal/conf"
	"github.com/tphakala/geocapture/internal/logger"
	"github.com/tphakala/geocapture/internal/telemetry"
)

// RootCommand creates the root command. settings is filled in by the
// persistent pre-run before any sub-command executes.
func RootCommand(build *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var (
		configFile string
		debug      bool
		flush      = func() {}
	)

	rootCmd := &cobra.Command{
		Use:           "geocapture",
		Short:         "Geo capture analysis pipeline",
		Long:          "Analyzes uploaded geo captures with a vision model and maintains the analysis queue.",
		Version:       build.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/geocapture, /etc/geocapture)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug logging")

	// sun needs no configuration
	noConfig := map[string]bool{"sun": true, "version": true, "help": true}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		if noConfig[cmd.Name()] {
			return nil
		}
		loaded, err := conf.Load(configFile)
		if err != nil {
			return err
		}
		if debug {
			loaded.Debug = true
			loaded.Logging.DefaultLevel = string(logger.LogLevelDebug)
			if loaded.Logging.Console != nil {
				loaded.Logging.Console.Level = string(logger.LogLevelDebug)
			}
		}
		*settings = *loaded

		if err := initLogging(settings); err != nil {
			return err
		}

		flush, err = telemetry.Init(telemetry.Options{
			DSN:   settings.Telemetry.SentryDSN,
			Build: build,
		})
		return err
	}
	rootCmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		flush()
		_ = logger.Global().Flush()
	}

	rootCmd.AddCommand(
		worker.Command(settings),
		analyze.Command(settings),
		sun.Command(),
		backfill.Command(settings),
		purge.Command(settings),
		versionCommand(build),
	)

	return rootCmd
}

// initLogging installs the central logger built from the logging settings.
func initLogging(settings *conf.Settings) error {
	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}

func versionCommand(build *buildinfo.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(build.String())
		},
	}
}
