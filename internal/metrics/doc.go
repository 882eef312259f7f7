// Package metrics registers the Prometheus instrumentation for the monitor
// and serves the optional /metrics listener.
package metrics
