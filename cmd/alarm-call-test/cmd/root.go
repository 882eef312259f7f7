package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-dialer/internal/config"
	"github.com/oshokin/alarm-dialer/internal/service/calltest"
	"github.com/oshokin/alarm-dialer/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// toNumber overrides the configured destination number.
	toNumber string
	// fromNumber overrides the configured caller id.
	fromNumber string

	// rootCmd represents the base command for placing a test call.
	rootCmd = &cobra.Command{
		Use:   "alarm-call-test",
		Short: "Place a single test phone call.",
		Long: `Places one phone call through the telephony service using the configured
credentials, bypassing the alarm pipeline entirely.

Use this to verify the connection string, phone number provisioning and
network reachability before trusting the monitor with real alarms.
Exits non-zero when the call cannot be placed.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Create call test options from command flags.
			callOptions := &calltest.Options{
				ConfigPath: configPath,
				To:         toNumber,
				From:       fromNumber,
			}

			return calltest.Run(ctx, callOptions)
		},
	}
)

// Execute runs the alarm-call-test CLI and exits with non-zero status on error.
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
	rootCmd.Flags().StringVarP(&toNumber, "to", "t", "", "override destination phone number")
	rootCmd.Flags().StringVarP(&fromNumber, "from", "f", "", "override caller id number")
}
