package acs

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testKey is a base64 access key used across the tests.
var testKey = base64.StdEncoding.EncodeToString([]byte("super-secret-signing-key"))

// testCaller builds a caller pointed at the given test server.
func testCaller(t *testing.T, serverURL string) *Caller {
	t.Helper()

	caller, err := NewCaller(
		"endpoint="+serverURL+";accesskey="+testKey,
		"https://alarms.example.com/api/callbacks",
		WithTimeout(5*time.Second),
	)
	require.NoError(t, err)

	return caller
}

// TestParseConnectionString verifies the portal connection-string format.
func TestParseConnectionString(t *testing.T) {
	t.Parallel()

	conn, err := parseConnectionString("endpoint=https://alarms.communication.azure.com/;accesskey=" + testKey)
	require.NoError(t, err)
	require.Equal(t, "alarms.communication.azure.com", conn.endpoint.Host)
	require.Equal(t, []byte("super-secret-signing-key"), conn.accessKey)

	_, err = parseConnectionString("")
	require.ErrorIs(t, err, errConnectionStringEmpty)

	_, err = parseConnectionString("endpoint=https://alarms.communication.azure.com/")
	require.ErrorIs(t, err, errConnectionStringMalformed)

	_, err = parseConnectionString("accesskey=" + testKey)
	require.ErrorIs(t, err, errConnectionStringMalformed)

	_, err = parseConnectionString("endpoint=https://x.example.com;accesskey=%%%not-base64%%%")
	require.Error(t, err)
}

// TestPlaceCall verifies the request shape and signing headers end to end.
func TestPlaceCall(t *testing.T) {
	t.Parallel()

	var seen atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Add(1)

		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/calling/callConnections", r.URL.Path)
		require.Equal(t, apiVersion, r.URL.Query().Get("api-version"))

		// Signing headers are present and well-formed.
		require.NotEmpty(t, r.Header.Get("x-ms-date"))
		require.NotEmpty(t, r.Header.Get("x-ms-content-sha256"))
		auth := r.Header.Get("Authorization")
		require.True(t, strings.HasPrefix(auth, "HMAC-SHA256 SignedHeaders=x-ms-date;host;x-ms-content-sha256&Signature="))

		// Repeatability headers make retried dials idempotent.
		require.NotEmpty(t, r.Header.Get("Repeatability-Request-ID"))
		require.NotEmpty(t, r.Header.Get("Repeatability-First-Sent"))

		var body createCallRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Targets, 1)
		require.Equal(t, "+4512345678", body.Targets[0].PhoneNumber.Value)
		require.Equal(t, "+4587654321", body.SourceCallerIDNumber.Value)
		require.Equal(t, "https://alarms.example.com/api/callbacks", body.CallbackURI)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createCallResponse{CallConnectionID: "call-42"})
	}))
	t.Cleanup(server.Close)

	result, err := testCaller(t, server.URL).PlaceCall(context.Background(), "+4512345678", "+4587654321")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, "call-42", result.CallID)
	require.Equal(t, int32(1), seen.Load())
}

// TestPlaceCallRetriesTransientFailures verifies 5xx answers are retried and
// the same repeatability id is sent each time.
func TestPlaceCallRetriesTransientFailures(t *testing.T) {
	t.Parallel()

	var (
		attempts atomic.Int32
		firstID  atomic.Value
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := attempts.Add(1)

		id := r.Header.Get("Repeatability-Request-ID")
		if n == 1 {
			firstID.Store(id)
		} else {
			require.Equal(t, firstID.Load(), id)
		}

		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createCallResponse{CallConnectionID: "call-7"})
	}))
	t.Cleanup(server.Close)

	result, err := testCaller(t, server.URL).PlaceCall(context.Background(), "+4512345678", "+4587654321")
	require.NoError(t, err)
	require.True(t, result.Success)
	require.GreaterOrEqual(t, attempts.Load(), int32(3))
}

// TestPlaceCallRejectionIsPermanent verifies 4xx answers stop immediately.
func TestPlaceCallRejectionIsPermanent(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	t.Cleanup(server.Close)

	_, err := testCaller(t, server.URL).PlaceCall(context.Background(), "bad-number", "+4587654321")
	require.ErrorIs(t, err, ErrRejected)
	require.Equal(t, int32(1), attempts.Load())
}

// TestPlayAudio verifies the play request shape and the no-op guards.
func TestPlayAudio(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/calling/callConnections/call-42:play", r.URL.Path)

		var body playRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.PlaySources, 1)
		require.Equal(t, "file", body.PlaySources[0].Kind)
		require.Equal(t, "https://alarms.example.com/media/alarm.wav", body.PlaySources[0].File.URI)

		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(server.Close)

	caller := testCaller(t, server.URL)
	require.NoError(t, caller.PlayAudio(context.Background(),
		"call-42", "https://alarms.example.com/media/alarm.wav"))

	// Missing call id or audio URL silently no-ops.
	require.NoError(t, caller.PlayAudio(context.Background(), "", "https://x"))
	require.NoError(t, caller.PlayAudio(context.Background(), "call-42", ""))
}
