package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/querymind/backend/internal/services"
)

func newTemplatesRouter() *gin.Engine {
	r := gin.New()
	tc := NewTemplatesController(services.NewTemplateService())
	r.GET("/api/templates", tc.List)
	r.GET("/api/templates/categories", tc.Categories)
	r.GET("/api/templates/:id", tc.Get)
	r.POST("/api/templates/:id/apply", tc.Apply)
	return r
}

func TestListTemplates(t *testing.T) {
	r := newTemplatesRouter()

	req := httptest.NewRequest("GET", "/api/templates", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Count     int                      `json:"count"`
		Templates []services.QueryTemplate `json:"templates"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Count == 0 || len(body.Templates) != body.Count {
		t.Errorf("inconsistent catalog response: count=%d templates=%d", body.Count, len(body.Templates))
	}
}

func TestGetUnknownTemplate(t *testing.T) {
	r := newTemplatesRouter()

	req := httptest.NewRequest("GET", "/api/templates/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	var body map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["code"] != CodeNotFound {
		t.Errorf("expected code %q, got %v", CodeNotFound, body["code"])
	}
}

func TestApplyTemplateWithVariables(t *testing.T) {
	r := newTemplatesRouter()

	payload := `{"variables":{"threshold":"95"}}`
	req := httptest.NewRequest("POST", "/api/templates/cpu-high-usage/apply", strings.NewReader(payload))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var body struct {
		Template services.QueryTemplate `json:"template"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !strings.HasSuffix(body.Template.PromQL, "> 95") {
		t.Errorf("expected substituted threshold, got %q", body.Template.PromQL)
	}
}

func TestApplyUnknownTemplate(t *testing.T) {
	r := newTemplatesRouter()

	req := httptest.NewRequest("POST", "/api/templates/nope/apply", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestTemplateCategoriesEndpoint(t *testing.T) {
	r := newTemplatesRouter()

	req := httptest.NewRequest("GET", "/api/templates/categories", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Categories []struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Count int    `json:"count"`
		} `json:"categories"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(body.Categories) == 0 {
		t.Fatal("expected categories")
	}
	for _, cat := range body.Categories {
		if cat.Count == 0 {
			t.Errorf("category %q reports zero templates", cat.ID)
		}
	}
}
