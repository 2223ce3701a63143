package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/querymind/backend/internal/config"
	"github.com/querymind/backend/internal/logger"
)

// ElasticsearchService wraps the official client for the handful of calls
// the gateway needs: cluster health, index listing and log search.
type ElasticsearchService struct {
	client *elasticsearch.Client
}

// SearchHit is one document from a search response.
type SearchHit struct {
	ID     string                 `json:"id"`
	Index  string                 `json:"index"`
	Source map[string]interface{} `json:"source"`
	Score  *float64               `json:"score"`
}

// SearchResult is the translated shape of a search response.
type SearchResult struct {
	Total int         `json:"total"`
	Hits  []SearchHit `json:"hits"`
}

// SearchOptions tune a search call. Zero values fall back to defaults.
type SearchOptions struct {
	Size      int
	From      int
	TimeField string
	TimeRange string
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Size == 0 {
		o.Size = 100
	}
	if o.TimeField == "" {
		o.TimeField = "@timestamp"
	}
	return o
}

// NewElasticsearchService builds a client from config. Returns a disabled
// service (nil client) when no URL is configured; every call then reports
// ErrNotConfigured.
func NewElasticsearchService(cfg config.ElasticsearchConfig) (*ElasticsearchService, error) {
	if !cfg.Enabled() {
		return &ElasticsearchService{}, nil
	}

	esCfg := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		// Self-signed certificates are common on dev clusters
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	if cfg.APIKey != "" {
		esCfg.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}
	return &ElasticsearchService{client: client}, nil
}

// Enabled reports whether an Elasticsearch backend is configured.
func (e *ElasticsearchService) Enabled() bool {
	return e.client != nil
}

// CheckHealth reports whether the cluster is reachable and at least yellow.
// Failures degrade to false rather than an error.
func (e *ElasticsearchService) CheckHealth(ctx context.Context) bool {
	if !e.Enabled() {
		return false
	}

	res, err := e.client.Cluster.Health(e.client.Cluster.Health.WithContext(ctx))
	if err != nil {
		logger.WithUpstream("elasticsearch").Debug("Health check failed: ", err)
		return false
	}
	defer res.Body.Close()
	if res.IsError() {
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		return false
	}
	return health.Status == "green" || health.Status == "yellow"
}

// Indices returns the non-system index names, sorted.
func (e *ElasticsearchService) Indices(ctx context.Context) ([]string, error) {
	if !e.Enabled() {
		return nil, fmt.Errorf("elasticsearch %w", ErrNotConfigured)
	}

	res, err := e.client.Cat.Indices(
		e.client.Cat.Indices.WithContext(ctx),
		e.client.Cat.Indices.WithFormat("json"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("listing indices: %s", res.Status())
	}

	var rows []struct {
		Index string `json:"index"`
	}
	if err := json.NewDecoder(res.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decoding indices response: %w", err)
	}

	var names []string
	for _, row := range rows {
		// System indices start with a dot
		if !strings.HasPrefix(row.Index, ".") {
			names = append(names, row.Index)
		}
	}
	sort.Strings(names)
	return names, nil
}

// SearchDSL executes a Query DSL search against the given index.
func (e *ElasticsearchService) SearchDSL(ctx context.Context, index string, queryDSL map[string]interface{}, opts SearchOptions) (*SearchResult, error) {
	if !e.Enabled() {
		return nil, fmt.Errorf("elasticsearch %w", ErrNotConfigured)
	}
	opts = opts.withDefaults()

	body, err := json.Marshal(queryDSL)
	if err != nil {
		return nil, fmt.Errorf("marshaling query DSL: %w", err)
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(index),
		e.client.Search.WithBody(bytes.NewReader(body)),
		e.client.Search.WithSize(opts.Size),
		e.client.Search.WithFrom(opts.From),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	return decodeSearchResponse(res)
}

// ExecuteKQL translates a KQL string into a query_string search with a time
// range filter and executes it. Only basic KQL syntax is supported; the
// translation mirrors how Kibana's own query bar degrades.
func (e *ElasticsearchService) ExecuteKQL(ctx context.Context, index, kql string, opts SearchOptions) (*SearchResult, error) {
	opts = opts.withDefaults()
	if opts.TimeRange == "" {
		opts.TimeRange = "15m"
	}
	return e.SearchDSL(ctx, index, KQLToQueryDSL(kql, opts.TimeField, opts.TimeRange), opts)
}

// SearchLogs runs a full-text search over the common log fields within the
// given time range.
func (e *ElasticsearchService) SearchLogs(ctx context.Context, index, searchTerm string, opts SearchOptions) (*SearchResult, error) {
	opts = opts.withDefaults()
	if opts.TimeRange == "" {
		opts.TimeRange = "1h"
	}

	queryDSL := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  searchTerm,
							"fields": []string{"message", "log", "error", "*"},
							"type":   "best_fields",
						},
					},
				},
				"filter": []interface{}{timeRangeFilter(opts.TimeField, opts.TimeRange)},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{opts.TimeField: map[string]interface{}{"order": "desc"}},
		},
	}
	return e.SearchDSL(ctx, index, queryDSL, opts)
}

var timestampClauseRe = regexp.MustCompile(`(?i)@timestamp\s*(>=|<=|>|<)\s*now\(\)-?\w*`)
var danglingOpRe = regexp.MustCompile(`(?i)(^\s*(AND|OR)\s+|\s+(AND|OR)\s*$)`)

// KQLToQueryDSL builds a Query DSL body from a KQL expression. Timestamp
// comparisons inside the KQL are stripped, since the time window is applied
// as a proper range filter instead.
func KQLToQueryDSL(kql, timeField, timeRange string) map[string]interface{} {
	must := []interface{}{}

	cleaned := timestampClauseRe.ReplaceAllString(kql, "")
	cleaned = strings.TrimSpace(danglingOpRe.ReplaceAllString(strings.TrimSpace(cleaned), ""))
	if cleaned != "" {
		must = append(must, map[string]interface{}{
			"query_string": map[string]interface{}{
				"query": cleaned,
			},
		})
	}

	filter := []interface{}{}
	if timeRange != "" {
		filter = append(filter, timeRangeFilter(timeField, timeRange))
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
		"sort": []interface{}{
			map[string]interface{}{timeField: map[string]interface{}{"order": "desc"}},
		},
	}
}

func timeRangeFilter(timeField, timeRange string) map[string]interface{} {
	return map[string]interface{}{
		"range": map[string]interface{}{
			timeField: map[string]interface{}{
				"gte": "now-" + timeRange,
				"lte": "now",
			},
		},
	}
}

func decodeSearchResponse(res *esapi.Response) (*SearchResult, error) {
	if res.IsError() {
		return nil, fmt.Errorf("search failed: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string                 `json:"_id"`
				Index  string                 `json:"_index"`
				Source map[string]interface{} `json:"_source"`
				Score  *float64               `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	result := &SearchResult{Total: parsed.Hits.Total.Value}
	for _, hit := range parsed.Hits.Hits {
		result.Hits = append(result.Hits, SearchHit{
			ID:     hit.ID,
			Index:  hit.Index,
			Source: hit.Source,
			Score:  hit.Score,
		})
	}
	return result, nil
}
