// Package calltest places a single test phone call through the telephony
// service, bypassing the alarm pipeline. Used to verify credentials, phone
// number provisioning and connectivity before trusting the monitor with them.
package calltest

import (
	"context"
	"fmt"

	"github.com/oshokin/alarm-dialer/internal/config"
	"github.com/oshokin/alarm-dialer/internal/logger"
	"github.com/oshokin/alarm-dialer/internal/notifier/acs"
)

// Options controls the test call destination and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// To provides an optional destination number override.
	To string
	// From provides an optional caller id override.
	From string
}

// Run places one call and reports the outcome. Returns an error when the
// telephony service rejects or cannot be reached, so the exit code reflects
// whether the credentials work.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-call-test")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Command-line overrides take precedence over configuration.
	to := cfg.PhoneNumberToCall
	if opts.To != "" {
		to = opts.To
	}

	from := cfg.PhoneNumberFrom
	if opts.From != "" {
		from = opts.From
	}

	caller, err := acs.NewCaller(cfg.ACSConnectionString, cfg.CallbackURL, acs.WithTimeout(cfg.CallTimeout))
	if err != nil {
		return fmt.Errorf("build caller: %w", err)
	}

	logger.InfoKV(ctx, "Placing test call", "to", to, "from", from)

	result, err := caller.PlaceCall(ctx, to, from)
	if err != nil {
		return fmt.Errorf("place call: %w", err)
	}

	logger.InfoKV(ctx, "Call initiated", "call_id", result.CallID)

	if cfg.AudioURL != "" {
		if err = caller.PlayAudio(ctx, result.CallID, cfg.AudioURL); err != nil {
			logger.WarnKV(ctx, "Announcement playback failed", "call_id", result.CallID, "error", err)
		}
	}

	return nil
}
