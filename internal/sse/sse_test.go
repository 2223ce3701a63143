package sse

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stream(events ...Event) <-chan Event {
	ch := make(chan Event, len(events))
	for _, ev := range events {
		ch <- ev
	}
	close(ch)
	return ch
}

func TestRelayFramesFragments(t *testing.T) {
	rec := httptest.NewRecorder()

	started, err := Relay(rec, stream(
		Event{Fragment: `{"a":`},
		Event{Fragment: `1}`},
	))
	require.NoError(t, err)
	assert.True(t, started)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Equal(t, "data: \"{\\\"a\\\":\"\n\ndata: \"1}\"\n\ndata: [DONE]\n\n", body)
}

func TestRelayAndCollectRoundTrip(t *testing.T) {
	rec := httptest.NewRecorder()

	// Fragments are arbitrary substrings of the final JSON text; only the
	// concatenated buffer parses.
	_, err := Relay(rec, stream(
		Event{Fragment: `{"a":`},
		Event{Fragment: `1}`},
	))
	require.NoError(t, err)

	full, err := Collect(strings.NewReader(rec.Body.String()))
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, full)

	var parsed map[string]int
	require.NoError(t, json.Unmarshal([]byte(full), &parsed))
	assert.Equal(t, 1, parsed["a"])

	// Fragment 1 alone must not parse as a complete object
	var partial map[string]int
	assert.Error(t, json.Unmarshal([]byte(`{"a":`), &partial))
}

func TestRelayMidStreamError(t *testing.T) {
	rec := httptest.NewRecorder()

	started, err := Relay(rec, stream(
		Event{Fragment: "partial "},
		Event{Err: errors.New("upstream connection dropped")},
	))
	assert.True(t, started)
	require.Error(t, err)

	body := rec.Body.String()
	assert.NotContains(t, body, DoneSentinel)

	// Exactly one error-shaped event follows the fragment
	assert.Equal(t, 1, strings.Count(body, `"error"`))
	assert.Contains(t, body, `data: {"error":"upstream connection dropped"}`)
}

func TestRelayErrorBeforeFirstFragment(t *testing.T) {
	rec := httptest.NewRecorder()

	started, err := Relay(rec, stream(
		Event{Err: errors.New("provider unreachable")},
	))
	assert.False(t, started)
	require.Error(t, err)

	// Nothing written: the caller is free to respond with an error status
	assert.Empty(t, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestRelayEmptyStream(t *testing.T) {
	rec := httptest.NewRecorder()

	started, err := Relay(rec, stream())
	require.NoError(t, err)

	// A clean close with no fragments is still a complete stream: headers
	// and the terminator go out so clients do not hang on an empty body.
	assert.True(t, started)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "data: [DONE]\n\n", rec.Body.String())
}

func TestCollectSkipsMalformedLines(t *testing.T) {
	raw := "data: \"{\\\"ok\\\":\"\n\n" +
		": keep-alive comment\n\n" +
		"garbage line\n" +
		"data: \"true}\"\n\n" +
		"data: [DONE]\n\n"

	full, err := Collect(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, full)
}

func TestCollectStopsAtErrorEvent(t *testing.T) {
	raw := "data: \"part\"\n\n" +
		"data: {\"error\":\"stream interrupted\"}\n\n"

	full, err := Collect(strings.NewReader(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stream interrupted")
	assert.Equal(t, "part", full)
}

func TestCollectIgnoresContentAfterDone(t *testing.T) {
	raw := "data: \"abc\"\n\n" +
		"data: [DONE]\n\n" +
		"data: \"ignored\"\n\n"

	full, err := Collect(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "abc", full)
}
