// Package acs places outbound phone calls through the Azure Communication
// Services Call Automation REST API.
//
// There is no official Go SDK for Call Automation, so this package signs
// requests itself using the ACS HMAC-SHA256 shared-key scheme and speaks the
// REST surface directly: create-call to dial, play to announce a fixed audio
// message once connected. Transient failures are retried with a bounded,
// context-cancellable exponential backoff; audio playback is best-effort and
// never affects the call result.
package acs
