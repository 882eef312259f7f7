package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oshokin/alarm-dialer/internal/config"
	"github.com/oshokin/alarm-dialer/internal/logger"
	"github.com/oshokin/alarm-dialer/internal/metrics"
	"github.com/oshokin/alarm-dialer/internal/notifier/acs"
	repo "github.com/oshokin/alarm-dialer/internal/repository/state"
	source "github.com/oshokin/alarm-dialer/internal/source/mongo"
)

// Monitoring modes.
const (
	// ModePoll fetches the latest document on a fixed interval.
	ModePoll = "poll"
	// ModeWatch follows the collection by insertion order and evaluates
	// every new document.
	ModeWatch = "watch"
)

// Options controls the monitor behavior and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Mode selects the consumption mode, ModePoll or ModeWatch.
	Mode string
	// PollInterval overrides the configured interval between checks.
	PollInterval time.Duration
	// StateFile overrides the configured alarm state file path.
	StateFile string
	// DryRun logs would-be calls instead of dialing.
	DryRun bool
}

// errUnknownMode indicates an unsupported consumption mode was requested.
var errUnknownMode = errors.New("unknown mode, expected poll or watch")

// Run watches the gateway collection and dials out on alarm activation.
// It blocks until the context is canceled.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-monitor")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	// Command-line overrides take precedence over configuration.
	if opts.PollInterval > 0 {
		cfg.PollInterval = opts.PollInterval
	}

	if opts.StateFile != "" {
		cfg.StateFile = opts.StateFile
	}

	if opts.Mode == "" {
		opts.Mode = ModePoll
	}

	if opts.Mode != ModePoll && opts.Mode != ModeWatch {
		return fmt.Errorf("%w: %q", errUnknownMode, opts.Mode)
	}

	if level, ok := logger.ParseLogLevel(cfg.LogLevel); ok {
		logger.SetLevel(level)
	}

	metrics.Serve(ctx, cfg.MetricsAddress)

	// Establish the document source connection.
	src, err := source.Connect(ctx, &source.Options{
		URI:        cfg.MongoURI,
		Database:   cfg.Database,
		Collection: cfg.Collection,
		Timeout:    cfg.FetchTimeout,
	})
	if err != nil {
		return fmt.Errorf("connect document source: %w", err)
	}

	// Ensure connection cleanup on function exit.
	defer func() {
		_ = src.Close(context.Background())
	}()

	caller, err := acs.NewCaller(cfg.ACSConnectionString, cfg.CallbackURL, acs.WithTimeout(cfg.CallTimeout))
	if err != nil {
		return fmt.Errorf("build caller: %w", err)
	}

	svc, err := newService(ctx, cfg, repo.NewFileRepository(cfg.StateFile), src, caller, opts.DryRun)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Monitoring alarm field",
		"mode", opts.Mode,
		"database", cfg.Database,
		"collection", cfg.Collection,
		"field", cfg.AlarmField,
		"interval", cfg.PollInterval.String(),
		"dry_run", opts.DryRun)

	if opts.Mode == ModeWatch {
		return svc.runWatch(ctx, cfg.PollInterval)
	}

	return svc.runPoll(ctx, cfg.PollInterval)
}

// runPoll evaluates the latest document once per interval. The first cycle
// runs immediately so a restart notices an active alarm without waiting.
func (s *service) runPoll(ctx context.Context, interval time.Duration) error {
	s.pollOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
			s.pollOnce(ctx)
		}
	}
}

// runWatch follows the collection by insertion order, evaluating every new
// document instead of sampling the latest. The cursor starts at the current
// tail: history is not replayed on startup.
func (s *service) runWatch(ctx context.Context, interval time.Duration) error {
	cursor, err := s.source.LatestCursor(ctx)
	if err != nil {
		return fmt.Errorf("resolve feed position: %w", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Context canceled, exiting")
			return nil
		case <-ticker.C:
			docs, next, err := s.source.FetchSince(ctx, cursor)
			if err != nil {
				metrics.SourceErrors.Inc()
				logger.WarnKV(ctx, "Document source unavailable, keeping feed position", "error", err)

				continue
			}

			s.processBatch(ctx, docs)
			cursor = next
		}
	}
}
