package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/querymind/backend/internal/config"
)

// fakeCompletionServer answers every chat-completion call with the given
// reply text.
func fakeCompletionServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]interface{}{
			"id":     "cmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4",
			"choices": []interface{}{
				map[string]interface{}{
					"index":         0,
					"message":       map[string]interface{}{"role": "assistant", "content": reply},
					"finish_reason": "stop",
				},
			},
		}
		data, _ := json.Marshal(resp)
		fmt.Fprint(w, string(data))
	}))
}

func serviceFor(srv *httptest.Server) *LLMService {
	return NewLLMService(config.OpenAIConfig{
		APIKey:  "test-key",
		Model:   "gpt-4",
		BaseURL: srv.URL,
	})
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{
			name:     "pure JSON",
			input:    `{"promql":"up"}`,
			expected: `{"promql":"up"}`,
		},
		{
			name:     "markdown fenced",
			input:    "```json\n{\"promql\":\"up\"}\n```",
			expected: `{"promql":"up"}`,
		},
		{
			name:     "fenced without language",
			input:    "```\n{\"a\":1}\n```",
			expected: `{"a":1}`,
		},
		{
			name:     "prose around the object",
			input:    `Here is the query: {"promql":"up"} hope that helps!`,
			expected: `{"promql":"up"}`,
		},
		{
			name:     "nested braces",
			input:    `{"labels":{"severity":"warning"},"expr":"up == 0"}`,
			expected: `{"labels":{"severity":"warning"},"expr":"up == 0"}`,
		},
		{
			name:     "braces inside string literals",
			input:    `{"explanation":"use {__name__=\"up\"} selectors"}`,
			expected: `{"explanation":"use {__name__=\"up\"} selectors"}`,
		},
		{
			name:    "no JSON at all",
			input:   "I cannot answer that.",
			wantErr: true,
		},
		{
			name:    "unbalanced object",
			input:   `{"promql":"up"`,
			wantErr: true,
		},
	}

	for _, test := range tests {
		got, err := extractJSONObject(test.input)
		if test.wantErr {
			if err == nil {
				t.Errorf("%s: expected error, got %q", test.name, got)
			} else if !errors.Is(err, ErrMalformedModelOutput) {
				t.Errorf("%s: expected ErrMalformedModelOutput, got %v", test.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
			continue
		}
		if got != test.expected {
			t.Errorf("%s: expected %q, got %q", test.name, test.expected, got)
		}
	}
}

func TestParseModelJSON(t *testing.T) {
	var result PromQLResult
	input := "```json\n{\"promql\":\"rate(http_requests_total[5m])\",\"explanation\":\"request rate\",\"suggestions\":[\"add sum()\"]}\n```"

	if err := parseModelJSON(input, &result); err != nil {
		t.Fatalf("Unexpected parse error: %v", err)
	}
	if result.PromQL != "rate(http_requests_total[5m])" {
		t.Errorf("Expected promql field to round-trip, got %q", result.PromQL)
	}
	if len(result.Suggestions) != 1 {
		t.Errorf("Expected 1 suggestion, got %d", len(result.Suggestions))
	}
}

func TestParseModelJSONMalformed(t *testing.T) {
	var result PromQLResult
	if err := parseModelJSON("the model refused to answer", &result); !errors.Is(err, ErrMalformedModelOutput) {
		t.Errorf("Expected ErrMalformedModelOutput, got %v", err)
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\nplain\n```", "plain"},
		{"  no fences  ", "no fences"},
		{"```kql\nmessage: error\n```", "message: error"},
		{"```kql\nmessage: error AND level: warn\n```", "message: error AND level: warn"},
	}

	for _, test := range tests {
		if got := stripCodeFences(test.input); got != test.expected {
			t.Errorf("stripCodeFences(%q): expected %q, got %q", test.input, test.expected, got)
		}
	}
}

func TestUnconfiguredServiceFailsClosed(t *testing.T) {
	s := NewLLMService(config.OpenAIConfig{Model: "gpt-4"})

	if s.Configured() {
		t.Fatal("Expected service without API key to report unconfigured")
	}

	_, err := s.GeneratePromQL(context.Background(), "cpu usage", nil)
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestPlaceholdersAreWellFormed(t *testing.T) {
	p1 := phase1Placeholder()
	if len(p1.PossibleCauses) == 0 || p1.RelatedQueries == nil || p1.ImmediateChecks == nil {
		t.Error("Phase 1 placeholder must be fully populated")
	}

	p2 := phase2Placeholder()
	if p2.RootCause.Summary == "" || p2.Timeline == nil || p2.RelatedAlerts == nil {
		t.Error("Phase 2 placeholder must be fully populated")
	}
	if p2.Remediation.Immediate == nil || p2.Remediation.ShortTerm == nil || p2.Remediation.LongTerm == nil {
		t.Error("Phase 2 placeholder remediation must be fully populated")
	}

	ld := logDiagnosisPlaceholder()
	if ld.ErrorType == "" || ld.PossibleCauses == nil || ld.RelatedQueries == nil {
		t.Error("Log diagnosis placeholder must be fully populated")
	}
}

func TestDiagnosisPhase1PlaceholderOnMalformedReply(t *testing.T) {
	srv := fakeCompletionServer(t, "I cannot analyze this metric without more context.")
	defer srv.Close()

	result, err := serviceFor(srv).DiagnosisPhase1(context.Background(), "cpu_usage", "spiking", "1h")
	if err != nil {
		t.Fatalf("Expected nil error on malformed model output, got %v", err)
	}
	if !reflect.DeepEqual(result, phase1Placeholder()) {
		t.Errorf("Expected phase 1 placeholder, got %+v", result)
	}
}

func TestDiagnosisPhase2PlaceholderOnMalformedReply(t *testing.T) {
	srv := fakeCompletionServer(t, "Here is my analysis: the root cause is unclear.")
	defer srv.Close()

	result, err := serviceFor(srv).DiagnosisPhase2(context.Background(), "cpu_usage", "spiking", "{}")
	if err != nil {
		t.Fatalf("Expected nil error on malformed model output, got %v", err)
	}
	if !reflect.DeepEqual(result, phase2Placeholder()) {
		t.Errorf("Expected phase 2 placeholder, got %+v", result)
	}
}

func TestDiagnoseLogPlaceholderOnMalformedReply(t *testing.T) {
	srv := fakeCompletionServer(t, "Sorry, that log line does not look like JSON to me.")
	defer srv.Close()

	result, err := serviceFor(srv).DiagnoseLog(context.Background(), "ERROR timeout", "")
	if err != nil {
		t.Fatalf("Expected nil error on malformed model output, got %v", err)
	}
	if !reflect.DeepEqual(result, logDiagnosisPlaceholder()) {
		t.Errorf("Expected log diagnosis placeholder, got %+v", result)
	}
}

func TestGenerateKQLStripsTaggedFence(t *testing.T) {
	srv := fakeCompletionServer(t, "```kql\nmessage: timeout AND level: error\n```")
	defer srv.Close()

	kql, err := serviceFor(srv).GenerateKQL(context.Background(), "timeout errors")
	if err != nil {
		t.Fatalf("GenerateKQL failed: %v", err)
	}
	if kql != "message: timeout AND level: error" {
		t.Errorf("Expected clean KQL, got %q", kql)
	}
}
