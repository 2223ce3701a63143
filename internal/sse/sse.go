// Package sse adapts a streaming model-completion sequence into a
// server-sent-events HTTP response, and provides the matching client-side
// reconstruction used by consumers of the diagnose endpoints.
package sse

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/querymind/backend/internal/logger"
)

// DoneSentinel terminates a successful stream.
const DoneSentinel = "[DONE]"

// Event is one element of the relay's input sequence: either a text fragment
// of the model's reply or a terminal error. Fragments are arbitrary
// substrings of the final payload and carry no meaning in isolation.
type Event struct {
	Fragment string
	Err      error
}

type errorPayload struct {
	Error string `json:"error"`
}

// Relay writes the event sequence to w as a text/event-stream response.
//
// Headers are only written once output is certain, so a failure before any
// output can still be reported with a proper HTTP status by the caller. It
// returns whether streaming began (headers sent) and the stream error, if
// any. Once streaming has begun the HTTP status can no longer change; a
// mid-stream failure is signalled with a single in-band error event and the
// [DONE] sentinel is withheld. A stream that closes cleanly always ends
// with [DONE], even when no fragment arrived.
func Relay(w http.ResponseWriter, events <-chan Event) (started bool, err error) {
	for ev := range events {
		if ev.Err != nil {
			if !started {
				return false, ev.Err
			}
			payload, _ := json.Marshal(errorPayload{Error: ev.Err.Error()})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flush(w)
			return true, ev.Err
		}
		if ev.Fragment == "" {
			continue
		}
		if !started {
			writeStreamHeaders(w)
			started = true
		}
		payload, merr := json.Marshal(ev.Fragment)
		if merr != nil {
			logger.Warn("Failed to encode stream fragment, skipping", map[string]interface{}{
				"error": merr.Error(),
			})
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flush(w)
	}

	if !started {
		writeStreamHeaders(w)
		started = true
	}
	fmt.Fprintf(w, "data: %s\n\n", DoneSentinel)
	flush(w)
	return started, nil
}

func writeStreamHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
}

func flush(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// Collect reads an SSE byte stream and reconstructs the full model reply by
// concatenating fragments in arrival order. Malformed lines are skipped with
// a warning rather than treated as fatal; an in-band error event aborts the
// collection. Parsing the concatenated buffer is the caller's concern, since
// individual fragments are rarely valid JSON on their own.
func Collect(r io.Reader) (string, error) {
	var buf strings.Builder

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		payload, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			logger.Warn("Skipping non-conforming SSE line", map[string]interface{}{
				"line": line,
			})
			continue
		}
		if payload == DoneSentinel {
			break
		}

		var fragment string
		if err := json.Unmarshal([]byte(payload), &fragment); err == nil {
			buf.WriteString(fragment)
			continue
		}

		var errEvent errorPayload
		if err := json.Unmarshal([]byte(payload), &errEvent); err == nil && errEvent.Error != "" {
			return buf.String(), fmt.Errorf("stream interrupted: %s", errEvent.Error)
		}

		logger.Warn("Skipping unparseable SSE payload", map[string]interface{}{
			"payload": payload,
		})
	}
	if err := scanner.Err(); err != nil {
		return buf.String(), fmt.Errorf("reading stream: %w", err)
	}

	return buf.String(), nil
}
