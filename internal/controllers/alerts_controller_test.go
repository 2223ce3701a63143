package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/querymind/backend/internal/services"
	"gopkg.in/yaml.v3"
)

type stubAlertGenerator struct {
	rule *services.AlertRule
	err  error
}

func (s *stubAlertGenerator) GenerateAlertRule(ctx context.Context, description, severity string) (*services.AlertRule, error) {
	return s.rule, s.err
}

func newAlertsRouter(llm AlertGenerator) *gin.Engine {
	r := gin.New()
	ac := NewAlertsController(llm)
	r.POST("/api/alerts/generate", ac.Generate)
	r.GET("/api/alerts/examples", ac.Examples)
	return r
}

func TestGenerateAlertRendersYAML(t *testing.T) {
	llm := &stubAlertGenerator{rule: &services.AlertRule{
		Alert:       "HighCPUUsage",
		Expr:        "cpu_usage > 80",
		For:         "5m",
		Labels:      map[string]string{"severity": "warning"},
		Annotations: map[string]string{"summary": "CPU above 80%"},
	}}
	r := newAlertsRouter(llm)

	payload := `{"description":"warn on high cpu","severity":"warning"}`
	req := httptest.NewRequest("POST", "/api/alerts/generate", strings.NewReader(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Rule services.AlertRule `json:"rule"`
		YAML string             `json:"yaml"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Rule.Alert != "HighCPUUsage" {
		t.Errorf("expected rule in response, got %+v", body.Rule)
	}

	var file struct {
		Groups []struct {
			Name  string `yaml:"name"`
			Rules []struct {
				Alert string `yaml:"alert"`
				Expr  string `yaml:"expr"`
			} `yaml:"rules"`
		} `yaml:"groups"`
	}
	if err := yaml.Unmarshal([]byte(body.YAML), &file); err != nil {
		t.Fatalf("rendered YAML does not parse: %v", err)
	}
	if len(file.Groups) != 1 || file.Groups[0].Name != "ai-generated-alerts" {
		t.Errorf("unexpected group layout: %+v", file.Groups)
	}
	if len(file.Groups[0].Rules) != 1 || file.Groups[0].Rules[0].Alert != "HighCPUUsage" {
		t.Errorf("unexpected rules: %+v", file.Groups[0].Rules)
	}
}

func TestGenerateAlertMissingDescription(t *testing.T) {
	r := newAlertsRouter(&stubAlertGenerator{})

	req := httptest.NewRequest("POST", "/api/alerts/generate", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAlertExamples(t *testing.T) {
	r := newAlertsRouter(&stubAlertGenerator{})

	req := httptest.NewRequest("GET", "/api/alerts/examples", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Examples []struct {
			Description string `json:"description"`
			Severity    string `json:"severity"`
		} `json:"examples"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Examples) == 0 {
		t.Fatal("expected a non-empty example list")
	}
	for _, ex := range body.Examples {
		if ex.Description == "" || ex.Severity == "" {
			t.Errorf("incomplete example: %+v", ex)
		}
	}
}
