// Package state implements persistence for per-entity alarm state.
//
// The FileRepository stores the entity map as JSON on disk using a
// write-to-temp-then-rename replace, so a crash mid-write can never corrupt
// the file into silently forgetting an already-notified episode. It exposes a
// Repository interface that the monitor service depends on.
package state
