// Package config defines connection and alarm-evaluation settings used by the
// binaries and provides helpers to load, validate and save them in YAML format.
//
// The Config type holds the CosmosDB (Mongo API) target, the monitored alarm
// field, the Azure Communication Services credentials and phone numbers, and
// the evaluation windows (poll interval, stale threshold, notify cooldown).
// Validation failures are the only fatal startup errors in the system.
package config
