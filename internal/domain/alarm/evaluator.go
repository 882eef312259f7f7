package alarm

import "time"

// Decision is what the evaluator concluded for one observation.
type Decision int

const (
	// DecisionNone means nothing noteworthy happened.
	DecisionNone Decision = iota
	// DecisionNotify means a call should be placed now.
	DecisionNotify
	// DecisionCleared means the alarm transitioned active to inactive.
	// Log-worthy, never a call trigger.
	DecisionCleared
	// DecisionSuppressedStale means an activation was too old to call for.
	DecisionSuppressedStale
	// DecisionSuppressedCooldown means a call was withheld by the cooldown.
	DecisionSuppressedCooldown
	// DecisionAlreadyNotified means the episode is active and already handled.
	DecisionAlreadyNotified
)

// String returns a human-readable decision name for logs and metrics labels.
func (d Decision) String() string {
	switch d {
	case DecisionNotify:
		return "notify"
	case DecisionCleared:
		return "cleared"
	case DecisionSuppressedStale:
		return "suppressed_stale"
	case DecisionSuppressedCooldown:
		return "suppressed_cooldown"
	case DecisionAlreadyNotified:
		return "already_notified"
	default:
		return "none"
	}
}

// Outcome bundles the evaluation verdict with the state to persist.
// For DecisionNotify, Next is the state to commit when NO call is attempted;
// the driver finalizes the real state with WithNotified or WithAttemptFailed
// after the call attempt completes.
type Outcome struct {
	// Next is the state to persist for this entity.
	Next State
	// Decision is the verdict for this observation.
	Decision Decision
	// Stale is set when an active observation was suppressed for age.
	Stale bool
}

// Evaluator is the pure alarm transition decision function. It performs no
// I/O and holds no mutable state, driver code owns locking and persistence.
type Evaluator struct {
	// StaleThreshold is the maximum event age for an activation to trigger
	// a call. Activations older than this are recorded but not called for.
	StaleThreshold time.Duration
	// NotifyCooldown is the minimum spacing between call attempts for the
	// same entity.
	NotifyCooldown time.Duration
}

// Evaluate decides what to do about one observation given the entity's
// previous state and the current wall-clock time.
//
// Rules, in order:
//   - Unknown readings change nothing.
//   - Active readings whose event time is older than StaleThreshold mark the
//     entity active without calling, so the stale episode is not re-detected
//     as a fresh transition later. A missing or unparseable event time counts
//     as fresh: suppressing a real alarm is worse than a redundant call.
//   - A fresh activation (previous value not Active) notifies unless a call
//     attempt was made within the cooldown.
//   - An activation already notified, or still active from earlier cycles,
//     stays active without another call.
//   - An inactive reading after an active one clears the episode, wiping the
//     notification times so the next activation may call again.
func (e Evaluator) Evaluate(prev State, obs Observation, now time.Time) Outcome {
	switch obs.Value {
	case ValueActive:
		return e.evaluateActive(prev, obs, now)
	case ValueInactive:
		if prev.LastValue == ValueActive {
			return Outcome{Next: prev.withCleared(), Decision: DecisionCleared}
		}

		return Outcome{Next: State{LastValue: ValueInactive,
			LastNotifiedAt: prev.LastNotifiedAt,
			LastAttemptAt:  prev.LastAttemptAt,
		}, Decision: DecisionNone}
	default:
		return Outcome{Next: prev, Decision: DecisionNone}
	}
}

// evaluateActive handles the Active branch: staleness, transition detection
// and cooldown gating.
func (e Evaluator) evaluateActive(prev State, obs Observation, now time.Time) Outcome {
	if e.isStale(obs, now) {
		return Outcome{Next: prev.withActive(), Decision: DecisionSuppressedStale, Stale: true}
	}

	if prev.LastValue == ValueActive {
		return Outcome{Next: prev.withActive(), Decision: DecisionAlreadyNotified}
	}

	if e.inCooldown(prev, now) {
		// Fresh transition, but a call attempt happened too recently.
		// The value is NOT marked active so the transition stays visible
		// and re-evaluates once the cooldown expires.
		return Outcome{Next: prev, Decision: DecisionSuppressedCooldown}
	}

	return Outcome{Next: prev, Decision: DecisionNotify}
}

// isStale reports whether an active observation is too old to call for.
func (e Evaluator) isStale(obs Observation, now time.Time) bool {
	if e.StaleThreshold <= 0 || !obs.HasEventTime() {
		return false
	}

	return now.Sub(obs.EventTime) > e.StaleThreshold
}

// inCooldown reports whether the last call attempt is within the cooldown window.
func (e Evaluator) inCooldown(prev State, now time.Time) bool {
	if e.NotifyCooldown <= 0 || prev.LastAttemptAt.IsZero() {
		return false
	}

	return now.Sub(prev.LastAttemptAt) <= e.NotifyCooldown
}
