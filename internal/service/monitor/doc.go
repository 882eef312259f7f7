// Package monitor watches the gateway collection for alarm activations and
// places outbound phone calls on fresh inactive-to-active transitions. It
// owns the per-entity alarm state: evaluation, notification and persistence
// happen here, in that order, so a failed call is never recorded as notified.
package monitor
