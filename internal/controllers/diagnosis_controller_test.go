package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/querymind/backend/internal/services"
)

type stubDiagnoser struct {
	quick  string
	phase1 *services.DiagnosisPhase1Result
	phase2 *services.DiagnosisPhase2Result
	err    error

	gotRelatedData string
}

func (s *stubDiagnoser) QuickDiagnosis(ctx context.Context, promql, metricType, currentValue string) (string, error) {
	return s.quick, s.err
}

func (s *stubDiagnoser) DiagnosisPhase1(ctx context.Context, metric, description, timeRange string) (*services.DiagnosisPhase1Result, error) {
	return s.phase1, s.err
}

func (s *stubDiagnoser) DiagnosisPhase2(ctx context.Context, metric, description, relatedData string) (*services.DiagnosisPhase2Result, error) {
	s.gotRelatedData = relatedData
	return s.phase2, s.err
}

type countingBackend struct {
	queries int
	result  *services.QueryResult
	err     error
}

func (s *countingBackend) Query(ctx context.Context, promql string) (*services.QueryResult, error) {
	s.queries++
	return s.result, s.err
}

func newDiagnosisRouter(llm Diagnoser, backend DiagnosisBackend) *gin.Engine {
	r := gin.New()
	dc := NewDiagnosisController(llm, backend)
	r.POST("/api/diagnosis/quick", dc.Quick)
	r.POST("/api/diagnosis/analyze", dc.Analyze)
	r.GET("/api/diagnosis/common-issues", dc.CommonIssues)
	return r
}

func TestQuickDiagnosisMissingPromQL(t *testing.T) {
	r := newDiagnosisRouter(&stubDiagnoser{}, &countingBackend{})

	req := httptest.NewRequest("POST", "/api/diagnosis/quick", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestQuickDiagnosisSurvivesQueryFailure(t *testing.T) {
	llm := &stubDiagnoser{quick: "looks fine"}
	backend := &countingBackend{err: services.ErrUpstreamUnavailable}
	r := newDiagnosisRouter(llm, backend)

	req := httptest.NewRequest("POST", "/api/diagnosis/quick", strings.NewReader(`{"promql":"up"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 even when the data query fails, got %d: %s", w.Code, w.Body.String())
	}

	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["diagnosis"] != "looks fine" {
		t.Errorf("expected diagnosis text, got %v", body["diagnosis"])
	}
}

func TestAnalyzeCapsRelatedQueries(t *testing.T) {
	var related []services.RelatedQuery
	for i := 0; i < 8; i++ {
		related = append(related, services.RelatedQuery{
			Purpose: fmt.Sprintf("check %d", i),
			PromQL:  "up",
		})
	}
	llm := &stubDiagnoser{
		phase1: &services.DiagnosisPhase1Result{RelatedQueries: related},
		phase2: &services.DiagnosisPhase2Result{},
	}
	backend := &countingBackend{result: &services.QueryResult{
		Status: "success",
		Data:   &services.QueryData{ResultType: "vector", Result: []interface{}{}},
	}}
	r := newDiagnosisRouter(llm, backend)

	req := httptest.NewRequest("POST", "/api/diagnosis/analyze", strings.NewReader(`{"metric":"up"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if backend.queries != maxRelatedQueriesAnalyze {
		t.Errorf("expected %d related queries executed, got %d", maxRelatedQueriesAnalyze, backend.queries)
	}
	if llm.gotRelatedData == "" {
		t.Error("expected collected data passed to phase 2")
	}
}

func TestAnalyzeRecordsFailedRelatedQueries(t *testing.T) {
	llm := &stubDiagnoser{
		phase1: &services.DiagnosisPhase1Result{RelatedQueries: []services.RelatedQuery{
			{Purpose: "liveness", PromQL: "up"},
		}},
		phase2: &services.DiagnosisPhase2Result{},
	}
	backend := &countingBackend{err: services.ErrUpstreamUnavailable}
	r := newDiagnosisRouter(llm, backend)

	req := httptest.NewRequest("POST", "/api/diagnosis/analyze", strings.NewReader(`{"metric":"up"}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(llm.gotRelatedData, "query failed") {
		t.Errorf("expected failed query recorded in collected data, got %s", llm.gotRelatedData)
	}
}

func TestCommonIssuesCatalog(t *testing.T) {
	r := newDiagnosisRouter(&stubDiagnoser{}, &countingBackend{})

	req := httptest.NewRequest("GET", "/api/diagnosis/common-issues", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Issues []struct {
			Pattern         string   `json:"pattern"`
			SuggestedChecks []string `json:"suggestedChecks"`
		} `json:"issues"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Issues) == 0 {
		t.Fatal("expected a non-empty issue catalog")
	}
	for _, issue := range body.Issues {
		if len(issue.SuggestedChecks) == 0 {
			t.Errorf("issue %q has no suggested checks", issue.Pattern)
		}
	}
}

func TestInferMetricType(t *testing.T) {
	cases := []struct {
		promql string
		want   string
	}{
		{"rate(http_requests_total[5m])", "Counter"},
		{"histogram_quantile(0.99, foo_bucket)", "Histogram"},
		{"node_memory_MemAvailable_bytes", "Gauge or other"},
		{"increase(errors_total[1h])", "Counter"},
	}
	for _, tc := range cases {
		if got := inferMetricType(tc.promql); got != tc.want {
			t.Errorf("inferMetricType(%q) = %q, want %q", tc.promql, got, tc.want)
		}
	}
}
