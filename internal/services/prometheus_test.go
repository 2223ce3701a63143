package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/querymind/backend/internal/config"
)

func TestPrometheusQuery(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("query")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"data": map[string]interface{}{
				"resultType": "vector",
				"result": []interface{}{
					map[string]interface{}{
						"metric": map[string]interface{}{"__name__": "up", "job": "api"},
						"value":  []interface{}{1700000000.0, "1"},
					},
				},
			},
		})
	}))
	defer srv.Close()

	svc := NewPrometheusService(config.PrometheusConfig{URL: srv.URL})
	result, err := svc.Query(context.Background(), `up{job="api"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/api/v1/query" {
		t.Errorf("expected /api/v1/query, got %s", gotPath)
	}
	if gotQuery != `up{job="api"}` {
		t.Errorf("expected query passed through, got %q", gotQuery)
	}
	if result.Status != "success" || result.Data == nil || len(result.Data.Result) != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestPrometheusQueryRange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/query_range" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		if q.Get("start") != "-1h" || q.Get("step") != "15s" {
			t.Errorf("unexpected range params: %v", q)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "success",
			"data":   map[string]interface{}{"resultType": "matrix", "result": []interface{}{}},
		})
	}))
	defer srv.Close()

	svc := NewPrometheusService(config.PrometheusConfig{URL: srv.URL})
	result, err := svc.QueryRange(context.Background(), "up", "-1h", "now", "15s")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Data.ResultType != "matrix" {
		t.Errorf("expected matrix result, got %q", result.Data.ResultType)
	}
}

func TestPrometheusAuthHeadersSent(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "success", "data": []interface{}{}})
	}))
	defer srv.Close()

	svc := NewPrometheusService(config.PrometheusConfig{
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer tok"},
	})
	if _, err := svc.Metrics(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("expected configured header sent, got %q", gotAuth)
	}
}

func TestPrometheusCheckHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/-/healthy" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	svc := NewPrometheusService(config.PrometheusConfig{URL: srv.URL})
	if !svc.CheckHealth(context.Background()) {
		t.Error("expected healthy")
	}

	srv.Close()
	if svc.CheckHealth(context.Background()) {
		t.Error("expected unhealthy after server shutdown")
	}
}

func TestPrometheusUnreachableIsUpstreamError(t *testing.T) {
	svc := NewPrometheusService(config.PrometheusConfig{URL: "http://127.0.0.1:1"})

	_, err := svc.Query(context.Background(), "up")
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}
