package acs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/oshokin/alarm-dialer/internal/logger"
)

// apiVersion is the Call Automation REST API version this client speaks.
const apiVersion = "2024-04-15"

// maxResponseBody caps how much of an error response is read for diagnostics.
const maxResponseBody = 4 << 10

// CallResult reports the outcome of a call placement.
type CallResult struct {
	// Success is true when the service accepted the call.
	Success bool
	// CallID is the call connection id assigned by the service, when any.
	CallID string
}

// Caller places outbound phone calls through one ACS resource.
type Caller struct {
	// conn holds the parsed endpoint and signing key.
	conn *connection
	// httpClient performs the REST requests.
	httpClient *http.Client
	// callbackURL receives Call Automation events.
	callbackURL string
	// maxRetryElapsed caps the total time spent retrying one operation.
	maxRetryElapsed time.Duration
	// now is the clock, swappable in tests for deterministic signatures.
	now func() time.Time
}

// Option configures the caller.
type Option func(*Caller)

// WithHTTPClient replaces the underlying HTTP client (used by tests).
func WithHTTPClient(client *http.Client) Option {
	return func(c *Caller) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout bounds a single call attempt including retries.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Caller) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
			c.maxRetryElapsed = timeout
		}
	}
}

// ErrRejected is returned when the service refused the request with a
// non-retryable status, typically bad numbers or credentials.
var ErrRejected = errors.New("call rejected by service")

// defaultTimeout bounds one call attempt when no option is provided.
const defaultTimeout = 30 * time.Second

// NewCaller builds a caller from the ACS connection string.
func NewCaller(connectionString, callbackURL string, opts ...Option) (*Caller, error) {
	conn, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, fmt.Errorf("parse ACS connection string: %w", err)
	}

	caller := &Caller{
		conn:            conn,
		httpClient:      &http.Client{Timeout: defaultTimeout},
		callbackURL:     callbackURL,
		maxRetryElapsed: defaultTimeout,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(caller)
	}

	return caller, nil
}

// phoneNumber is the REST representation of an E.164 number.
type phoneNumber struct {
	Value string `json:"value"`
}

// callTarget wraps a phone number as a call participant.
type callTarget struct {
	Kind        string      `json:"kind"`
	PhoneNumber phoneNumber `json:"phoneNumber"`
}

// createCallRequest is the create-call request body.
type createCallRequest struct {
	Targets              []callTarget `json:"targets"`
	SourceCallerIDNumber phoneNumber  `json:"sourceCallerIdNumber"`
	CallbackURI          string       `json:"callbackUri"`
}

// createCallResponse carries the fields of the create-call reply we use.
type createCallResponse struct {
	CallConnectionID string `json:"callConnectionId"`
}

// playRequest is the play-audio request body.
type playRequest struct {
	PlaySources []playSource `json:"playSources"`
	PlayTo      []callTarget `json:"playTo"`
}

// playSource points the service at a hosted audio file.
type playSource struct {
	Kind string         `json:"kind"`
	File playSourceFile `json:"file"`
}

// playSourceFile is the hosted-file reference inside a play source.
type playSourceFile struct {
	URI string `json:"uri"`
}

// PlaceCall dials the destination number from the source number. The service
// answers with a call connection id the moment the call is created; ringing
// and answer progress arrive on the callback endpoint and are not waited for.
func (c *Caller) PlaceCall(ctx context.Context, to, from string) (CallResult, error) {
	payload := createCallRequest{
		Targets: []callTarget{{
			Kind:        "phoneNumber",
			PhoneNumber: phoneNumber{Value: to},
		}},
		SourceCallerIDNumber: phoneNumber{Value: from},
		CallbackURI:          c.callbackURL,
	}

	var reply createCallResponse
	if err := c.post(ctx, "/calling/callConnections", payload, &reply); err != nil {
		return CallResult{}, err
	}

	return CallResult{
		Success: true,
		CallID:  reply.CallConnectionID,
	}, nil
}

// PlayAudio asks the service to play a hosted WAV announcement to all call
// participants. Best-effort: callers log the error and move on, a failed
// announcement must not demote a successfully placed call.
func (c *Caller) PlayAudio(ctx context.Context, callID, audioURL string) error {
	if callID == "" || audioURL == "" {
		return nil
	}

	payload := playRequest{
		PlaySources: []playSource{{
			Kind: "file",
			File: playSourceFile{URI: audioURL},
		}},
		PlayTo: []callTarget{},
	}

	path := fmt.Sprintf("/calling/callConnections/%s:play", callID)

	return c.post(ctx, path, payload, nil)
}

// post sends a signed JSON request with bounded-backoff retries on transient
// failures and decodes the reply into out when provided.
func (c *Caller) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	requestID := uuid.NewString()
	firstSent := c.now().UTC().Format(http.TimeFormat)

	operation := func() error {
		return c.attempt(ctx, path, body, requestID, firstSent, out)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = c.maxRetryElapsed

	if err = backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		return err
	}

	return nil
}

// attempt performs one signed request. Retryable failures return plain
// errors; rejections the service will repeat are marked permanent so the
// backoff stops immediately.
func (c *Caller) attempt(ctx context.Context, path string, body []byte, requestID, firstSent string, out any) error {
	u := *c.conn.endpoint
	u.Path = path
	u.RawQuery = "api-version=" + apiVersion

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("build request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")

	// The repeatability headers make the create-call idempotent across
	// retries: the service replays the original response instead of dialing
	// a second time.
	req.Header.Set("Repeatability-Request-ID", requestID)
	req.Header.Set("Repeatability-First-Sent", firstSent)

	signRequest(req, body, c.conn.accessKey, c.now())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call service: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	if retryableStatus(resp.StatusCode) {
		return fmt.Errorf("service returned %s", resp.Status)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		logger.WarnKV(ctx, "Notifier rejected request",
			"status", resp.Status, "path", path, "detail", string(detail))

		return backoff.Permanent(fmt.Errorf("%w: %s", ErrRejected, resp.Status))
	}

	if out == nil {
		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}

	return nil
}

// retryableStatus reports whether a status is worth another attempt.
func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
