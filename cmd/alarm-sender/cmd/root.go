package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oshokin/alarm-dialer/internal/config"
	"github.com/oshokin/alarm-dialer/internal/service/sender"
	"github.com/oshokin/alarm-dialer/internal/version"
)

var (
	// configPath stores the path to the configuration YAML file.
	configPath string
	// clearAlarm inserts an inactive value to end a synthetic episode.
	clearAlarm bool
	// description annotates the synthetic document.
	description string

	// rootCmd represents the base command for inserting a synthetic alarm.
	rootCmd = &cobra.Command{
		Use:   "alarm-sender",
		Short: "Insert a synthetic alarm document into the gateway collection.",
		Long: `Inserts one alarm document into the monitored CosmosDB collection with the
configured alarm field set to the active sentinel and a current nanosecond
timestamp, exactly the shape the OPC-UA gateway writes.

The running monitor picks the document up on its next cycle and dials out,
exercising the full pipeline end to end. Use --clear afterwards to insert an
inactive value and end the synthetic episode.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			// Create sender options from command flags.
			senderOptions := &sender.Options{
				ConfigPath:  configPath,
				Clear:       clearAlarm,
				Description: description,
			}

			return sender.Run(ctx, senderOptions)
		},
	}
)

// Execute runs the alarm-sender CLI and exits with non-zero status on error.
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
	rootCmd.Flags().BoolVar(&clearAlarm, "clear", false, "insert an inactive value instead of the active sentinel")
	rootCmd.Flags().StringVarP(&description, "description", "d", "", "annotation stored on the document")
}
