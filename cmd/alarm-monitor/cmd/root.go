package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-dialer/internal/config"
	"github.com/oshokin/alarm-dialer/internal/service/monitor"
	"github.com/oshokin/alarm-dialer/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// mode selects how documents are consumed, poll or watch.
	mode string
	// pollInterval overrides the configured interval between checks.
	pollInterval time.Duration
	// stateFile overrides the configured alarm state file path.
	stateFile string
	// dryRun logs would-be calls instead of dialing.
	dryRun bool

	// rootCmd represents the base command for monitoring the alarm field.
	rootCmd = &cobra.Command{
		Use:   "alarm-monitor",
		Short: "Watch the gateway collection and dial out on alarm activation.",
		Long: `Background service that watches an OPC-UA gateway collection in CosmosDB
and places a phone call when the configured alarm field goes active.

In poll mode (default) the newest document is sampled on a fixed interval.
In watch mode every inserted document is evaluated in insertion order.
A call is placed only on a fresh inactive-to-active transition: readings
older than the staleness threshold are recorded without calling, and repeat
activations inside the cooldown window stay silent.

Alarm state survives restarts through the state file, so a restart during
an already-handled episode does not dial again.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Create monitor options from command flags.
			monitorOptions := &monitor.Options{
				ConfigPath:   configPath,
				Mode:         mode,
				PollInterval: pollInterval,
				StateFile:    stateFile,
				DryRun:       dryRun,
			}

			return monitor.Run(ctx, monitorOptions)
		},
	}
)

// Execute runs the alarm-monitor CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultConfigFilename, "path to configuration file")
	rootCmd.Flags().StringVarP(&mode, "mode", "m", monitor.ModePoll, "consumption mode: poll or watch")
	rootCmd.Flags().DurationVarP(&pollInterval, "interval", "i", 0, "override polling interval")
	rootCmd.Flags().StringVarP(&stateFile, "state-file", "s", "", "override alarm state file path")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "log would-be calls instead of dialing")
}
