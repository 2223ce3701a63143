package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/querymind/backend/internal/config"
	"github.com/querymind/backend/internal/logger"
)

// PrometheusService issues HTTP calls against the Prometheus query API and
// translates the JSON responses into internal result shapes. Stateless per
// call; the http.Client is shared and read-mostly after construction.
type PrometheusService struct {
	baseURL string
	headers map[string]string
	client  *http.Client
}

// QueryData is the data section of a Prometheus query response.
type QueryData struct {
	ResultType string        `json:"resultType"`
	Result     []interface{} `json:"result"`
}

// QueryResult mirrors the Prometheus API response envelope.
type QueryResult struct {
	Status    string     `json:"status"`
	Data      *QueryData `json:"data,omitempty"`
	Error     string     `json:"error,omitempty"`
	ErrorType string     `json:"errorType,omitempty"`
}

func NewPrometheusService(cfg config.PrometheusConfig) *PrometheusService {
	return &PrometheusService{
		baseURL: cfg.URL,
		headers: cfg.AuthHeaders(),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Query performs an instant PromQL query.
func (p *PrometheusService) Query(ctx context.Context, promql string) (*QueryResult, error) {
	endpoint := fmt.Sprintf("%s/api/v1/query?query=%s&time=%s",
		p.baseURL, url.QueryEscape(promql), strconv.FormatInt(time.Now().Unix(), 10))

	var result QueryResult
	if err := p.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// QueryRange performs a PromQL range query.
func (p *PrometheusService) QueryRange(ctx context.Context, promql, start, end, step string) (*QueryResult, error) {
	q := url.Values{}
	q.Set("query", promql)
	q.Set("start", start)
	q.Set("end", end)
	q.Set("step", step)
	endpoint := fmt.Sprintf("%s/api/v1/query_range?%s", p.baseURL, q.Encode())

	var result QueryResult
	if err := p.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Metrics fetches all metric names.
func (p *PrometheusService) Metrics(ctx context.Context) ([]string, error) {
	endpoint := p.baseURL + "/api/v1/label/__name__/values"

	var result struct {
		Status string   `json:"status"`
		Data   []string `json:"data"`
	}
	if err := p.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	if result.Status != "success" {
		return nil, fmt.Errorf("prometheus API error: %s", result.Status)
	}
	return result.Data, nil
}

// LabelValues fetches all values for the given label name.
func (p *PrometheusService) LabelValues(ctx context.Context, label string) ([]string, error) {
	endpoint := fmt.Sprintf("%s/api/v1/label/%s/values", p.baseURL, url.PathEscape(label))

	var result struct {
		Status string   `json:"status"`
		Data   []string `json:"data"`
	}
	if err := p.getJSON(ctx, endpoint, &result); err != nil {
		return nil, err
	}
	if result.Status != "success" {
		return nil, fmt.Errorf("prometheus API error: %s", result.Status)
	}
	return result.Data, nil
}

// CheckHealth reports whether Prometheus is reachable. Failures degrade to
// false rather than an error, matching the health endpoint contract.
func (p *PrometheusService) CheckHealth(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/-/healthy", nil)
	if err != nil {
		return false
	}
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		logger.WithUpstream("prometheus").Debug("Health check failed: ", err)
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (p *PrometheusService) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating prometheus request: %w", err)
	}
	p.setHeaders(req)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding prometheus response: %w", err)
	}
	return nil
}

func (p *PrometheusService) setHeaders(req *http.Request) {
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
}
