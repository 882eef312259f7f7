package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/oshokin/alarm-dialer/internal/config"
	domain "github.com/oshokin/alarm-dialer/internal/domain/alarm"
	"github.com/oshokin/alarm-dialer/internal/logger"
	"github.com/oshokin/alarm-dialer/internal/metrics"
	"github.com/oshokin/alarm-dialer/internal/notifier/acs"
	repo "github.com/oshokin/alarm-dialer/internal/repository/state"
	source "github.com/oshokin/alarm-dialer/internal/source/mongo"
	"github.com/oshokin/alarm-dialer/internal/timestamp"
)

// DocumentSource supplies gateway documents. Implemented by the mongo source;
// faked in tests.
type DocumentSource interface {
	FetchLatest(ctx context.Context) (source.Document, error)
	FetchSince(ctx context.Context, cursor primitive.ObjectID) ([]source.Document, primitive.ObjectID, error)
	LatestCursor(ctx context.Context) (primitive.ObjectID, error)
}

// Notifier places outbound calls. Implemented by the ACS caller; faked in tests.
type Notifier interface {
	PlaceCall(ctx context.Context, to, from string) (acs.CallResult, error)
	PlayAudio(ctx context.Context, callID, audioURL string) error
}

// service orchestrates evaluation, notification and persistence.
// It is unexported to keep the CLI decoupled from the implementation.
type service struct {
	// cfg holds the validated settings.
	cfg *config.Config
	// evaluator is the pure alarm decision function.
	evaluator domain.Evaluator
	// repo persists the per-entity state map.
	repo repo.Repository
	// source supplies gateway documents.
	source DocumentSource
	// notifier places phone calls.
	notifier Notifier
	// entityID is the stable key for the monitored collection/field pair.
	// One monitor instance tracks one alarm source, but the state model is
	// keyed so several instances can share a state file.
	entityID string
	// states is the in-memory per-entity alarm state.
	states map[string]domain.State
	// mu serializes state-machine invocations. It is released around the
	// notifier call so a slow dial never blocks state reads elsewhere.
	mu sync.Mutex
	// dryRun logs would-be calls instead of dialing.
	dryRun bool
	// now is the clock, swappable in tests.
	now func() time.Time
}

// newService loads persisted state and wires the collaborators together.
func newService(
	ctx context.Context,
	cfg *config.Config,
	repository repo.Repository,
	documentSource DocumentSource,
	notifier Notifier,
	dryRun bool,
) (*service, error) {
	s := &service{
		cfg: cfg,
		evaluator: domain.Evaluator{
			StaleThreshold: cfg.StaleThreshold,
			NotifyCooldown: cfg.NotifyCooldown,
		},
		repo:     repository,
		source:   documentSource,
		notifier: notifier,
		entityID: fmt.Sprintf("%s.%s:%s", cfg.Database, cfg.Collection, cfg.AlarmField),
		states:   make(map[string]domain.State),
		dryRun:   dryRun,
		now:      time.Now,
	}

	states, err := repository.Load(ctx)

	switch {
	case err == nil:
		s.states = states
	case errors.Is(err, repo.ErrNotFound):
		// First run: every entity starts inactive, never notified.
	default:
		return nil, fmt.Errorf("load state: %w", err)
	}

	return s, nil
}

// pollOnce fetches the latest document and runs it through the pipeline.
// Source failures are recoverable: the cycle is skipped, nothing mutates.
func (s *service) pollOnce(ctx context.Context) {
	defer metrics.PollCycles.Inc()

	doc, err := s.source.FetchLatest(ctx)
	if err != nil {
		metrics.SourceErrors.Inc()
		logger.WarnKV(ctx, "Document source unavailable, skipping cycle", "error", err)

		return
	}

	if doc == nil {
		logger.Debug(ctx, "No documents in collection yet")

		return
	}

	s.process(ctx, doc)
}

// processBatch runs each document of a change-feed batch through the
// pipeline in delivery order. A failure on one document never aborts the
// rest: process logs and recovers internally.
func (s *service) processBatch(ctx context.Context, docs []source.Document) {
	for _, doc := range docs {
		s.process(ctx, doc)
	}
}

// process evaluates one document and acts on the decision. The notifier call
// happens outside the state lock; the final state, including the notified
// timestamp, is committed only after the call attempt completes.
func (s *service) process(ctx context.Context, doc source.Document) {
	obs := s.observationFrom(ctx, doc)
	now := obs.ObservedAt

	metrics.AlarmActive.Set(gaugeValue(obs.Value))

	s.mu.Lock()

	prev := s.states[obs.EntityID]
	out := s.evaluator.Evaluate(prev, obs, now)

	if out.Decision != domain.DecisionNotify {
		s.commitLocked(ctx, obs.EntityID, out.Next)
		s.mu.Unlock()

		s.report(ctx, obs, prev, out)

		return
	}

	s.mu.Unlock()

	s.report(ctx, obs, prev, out)

	notified := s.placeCall(ctx, obs)

	s.mu.Lock()

	next := prev
	if notified {
		next = next.WithNotified(s.now())
	} else {
		next = next.WithAttemptFailed(s.now())
	}

	s.commitLocked(ctx, obs.EntityID, next)
	s.mu.Unlock()
}

// observationFrom converts a raw document into a domain observation.
// An unparseable timestamp is logged and treated as absent, which the
// evaluator counts as fresh: a broken gateway clock must not mute alarms.
func (s *service) observationFrom(ctx context.Context, doc source.Document) domain.Observation {
	raw, _ := doc.Field(s.cfg.AlarmField)

	obs := domain.Observation{
		EntityID:   s.entityID,
		Value:      domain.ValueFromRaw(raw, s.cfg.ActiveSentinel),
		Raw:        raw,
		ObservedAt: s.now(),
	}

	if obs.Value == domain.ValueUnknown {
		logger.WarnKV(ctx, "Alarm field absent or mistyped",
			"document_id", doc.ID(), "field", s.cfg.AlarmField, "raw", fmt.Sprintf("%v", raw))
	}

	tsRaw, ok := doc.Field(s.cfg.TimestampField)
	if !ok {
		return obs
	}

	eventTime, err := timestamp.Normalize(tsRaw)
	if err != nil {
		logger.WarnKV(ctx, "Timestamp unparseable, treating observation as fresh",
			"entity_id", obs.EntityID, "raw", fmt.Sprintf("%v", tsRaw), "error", err)

		return obs
	}

	obs.EventTime = eventTime

	return obs
}

// placeCall dials the configured destination and plays the announcement.
// Returns true when the service accepted the call.
func (s *service) placeCall(ctx context.Context, obs domain.Observation) bool {
	if s.dryRun {
		logger.InfoKV(ctx, "Dry run: alarm call suppressed",
			"entity_id", obs.EntityID, "to", s.cfg.PhoneNumberToCall)
		metrics.Notifications.WithLabelValues("dry_run").Inc()

		return true
	}

	result, err := s.notifier.PlaceCall(ctx, s.cfg.PhoneNumberToCall, s.cfg.PhoneNumberFrom)
	if err != nil || !result.Success {
		metrics.Notifications.WithLabelValues("failed").Inc()
		logger.ErrorKV(ctx, "Alarm call failed, will retry after cooldown",
			"entity_id", obs.EntityID, "to", s.cfg.PhoneNumberToCall, "error", err)

		return false
	}

	metrics.Notifications.WithLabelValues("placed").Inc()
	logger.InfoKV(ctx, "Alarm call placed",
		"entity_id", obs.EntityID, "to", s.cfg.PhoneNumberToCall, "call_id", result.CallID)

	if s.cfg.AudioURL != "" {
		if err = s.notifier.PlayAudio(ctx, result.CallID, s.cfg.AudioURL); err != nil {
			// Best-effort: the call itself succeeded.
			logger.WarnKV(ctx, "Announcement playback failed",
				"call_id", result.CallID, "error", err)
		}
	}

	return true
}

// commitLocked stores and persists one entity's state. Callers hold s.mu.
// Persistence failure is loud but not fatal: in-memory state proceeds, at the
// documented risk of one duplicate call after a crash-restart.
func (s *service) commitLocked(ctx context.Context, entityID string, next domain.State) {
	s.states[entityID] = next

	if err := s.repo.Save(ctx, s.states); err != nil {
		metrics.StateErrors.Inc()
		logger.ErrorKV(ctx, "Failed to persist alarm state, continuing in memory",
			"entity_id", entityID, "error", err)
	}
}

// report logs the evaluation outcome and updates the transition metrics.
func (s *service) report(ctx context.Context, obs domain.Observation, prev domain.State, out domain.Outcome) {
	switch out.Decision {
	case domain.DecisionNotify:
		metrics.Transitions.WithLabelValues("activated").Inc()
		logger.WarnKV(ctx, "Alarm activated",
			"entity_id", obs.EntityID, "field", s.cfg.AlarmField, "raw", fmt.Sprintf("%v", obs.Raw))
	case domain.DecisionCleared:
		metrics.Transitions.WithLabelValues("cleared").Inc()
		logger.InfoKV(ctx, "Alarm cleared",
			"entity_id", obs.EntityID, "raw", fmt.Sprintf("%v", obs.Raw))
	case domain.DecisionSuppressedStale:
		metrics.Suppressions.WithLabelValues("stale").Inc()
		logger.InfoKV(ctx, "Alarm active but stale, not calling",
			"entity_id", obs.EntityID, "event_time", obs.EventTime, "age", obs.ObservedAt.Sub(obs.EventTime).String())
	case domain.DecisionSuppressedCooldown:
		metrics.Suppressions.WithLabelValues("cooldown").Inc()
		logger.InfoKV(ctx, "Alarm active but inside call cooldown",
			"entity_id", obs.EntityID, "last_attempt", prev.LastAttemptAt)
	case domain.DecisionAlreadyNotified:
		logger.DebugKV(ctx, "Alarm still active, already handled", "entity_id", obs.EntityID)
	default:
		logger.DebugKV(ctx, "No state change",
			"entity_id", obs.EntityID, "value", obs.Value.String())
	}
}

// gaugeValue maps the tri-state value onto the active gauge.
func gaugeValue(v domain.Value) float64 {
	if v == domain.ValueActive {
		return 1
	}

	return 0
}
