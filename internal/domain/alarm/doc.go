// Package alarm contains the core domain types and the transition decision
// logic for the alarm monitor.
//
// It defines the tri-state Value read from the gateway documents, the
// Observation snapshot, the persisted per-entity State, and the pure
// Evaluator that decides whether a phone call should be placed right now,
// honoring staleness suppression and the notify cooldown.
package alarm
