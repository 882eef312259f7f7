package alarm

import "time"

// State is the persisted per-entity alarm record. Its zero value is the
// canonical "never seen" state: inactive, never notified.
type State struct {
	// LastValue is the last tri-state value processed for this entity.
	LastValue Value `json:"last_alarm_value"`
	// LastNotifiedAt is when the last successful call was placed for the
	// current active episode. Cleared when the alarm clears, so a new
	// episode may notify again.
	LastNotifiedAt time.Time `json:"last_notified_at,omitzero"`
	// LastAttemptAt is when the last call attempt (successful or not) was
	// made. It spaces retries after notifier failures without marking the
	// entity as notified. Cleared together with LastNotifiedAt.
	LastAttemptAt time.Time `json:"last_attempt_at,omitzero"`
}

// Clone returns a copy of the state.
func (s State) Clone() State {
	return s
}

// Notified reports whether a call succeeded during the current episode.
func (s State) Notified() bool {
	return !s.LastNotifiedAt.IsZero()
}

// WithNotified marks the entity active and successfully notified at now.
// Applied by the driver only after the notifier call succeeded.
func (s State) WithNotified(now time.Time) State {
	s.LastValue = ValueActive
	s.LastNotifiedAt = now
	s.LastAttemptAt = now

	return s
}

// WithAttemptFailed records a failed call attempt at now without marking the
// entity active or notified, so the transition is re-detected and retried on
// a later cycle, spaced by the cooldown.
func (s State) WithAttemptFailed(now time.Time) State {
	s.LastAttemptAt = now

	return s
}

// withActive marks the entity active without touching notification times.
// Used for stale activations so they are not re-detected as fresh transitions.
func (s State) withActive() State {
	s.LastValue = ValueActive

	return s
}

// withCleared resets the episode: value inactive, notification times wiped.
func (s State) withCleared() State {
	return State{LastValue: ValueInactive}
}
