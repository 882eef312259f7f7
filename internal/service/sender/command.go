// Package sender inserts a synthetic alarm document into the gateway
// collection, exercising the full pipeline end to end: the monitor should
// pick the document up on its next cycle and dial out.
package sender

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/oshokin/alarm-dialer/internal/config"
	"github.com/oshokin/alarm-dialer/internal/logger"
	source "github.com/oshokin/alarm-dialer/internal/source/mongo"
)

// DefaultDescription annotates synthetic documents so they are recognizable
// next to real gateway traffic.
const DefaultDescription = "Manual alarm trigger for end-to-end testing"

// Options controls the synthetic document contents and configuration.
type Options struct {
	// ConfigPath specifies the path to the settings YAML file.
	ConfigPath string
	// Clear inserts an inactive value instead of the active sentinel,
	// letting operators end the synthetic episode.
	Clear bool
	// Description overrides the annotation stored on the document.
	Description string
}

// Run inserts one synthetic alarm document and reports its id.
func Run(ctx context.Context, opts *Options) error {
	// Set context with logger name for tracking.
	ctx = logger.WithName(ctx, "alarm-sender")

	// Load settings from configuration file.
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if opts.Description == "" {
		opts.Description = DefaultDescription
	}

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

	value := cfg.ActiveSentinel
	if opts.Clear {
		value = 0
	}

	now := time.Now()
	doc := bson.M{
		// Nanosecond timestamps match what the gateway writes.
		"timestamp":    now.UnixNano(),
		cfg.AlarmField: value,
		"source":       "manual_trigger",
		"created_at":   now.Format(time.RFC3339),
		"description":  opts.Description,
	}

	id, err := src.Insert(ctx, doc)
	if err != nil {
		return fmt.Errorf("insert alarm document: %w", err)
	}

	logger.InfoKV(ctx, "Alarm document inserted",
		"document_id", id,
		"database", cfg.Database,
		"collection", cfg.Collection,
		"field", cfg.AlarmField,
		"value", value)
	logger.Info(ctx, "The monitor will pick the document up on its next cycle")

	return nil
}
