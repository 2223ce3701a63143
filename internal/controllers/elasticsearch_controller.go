package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/querymind/backend/internal/logger"
	"github.com/querymind/backend/internal/services"
	"github.com/querymind/backend/internal/sse"
)

// QueryTranslator is the slice of the LLM gateway the search endpoints use.
type QueryTranslator interface {
	GenerateQueryDSL(ctx context.Context, input string, availableFields []string) (map[string]interface{}, error)
	GenerateKQL(ctx context.Context, input string) (string, error)
	DiagnoseLogStream(ctx context.Context, logContent, logContext string) (<-chan services.StreamEvent, error)
}

// SearchBackend is the slice of the Elasticsearch client the controllers use.
type SearchBackend interface {
	Enabled() bool
	CheckHealth(ctx context.Context) bool
	Indices(ctx context.Context) ([]string, error)
	SearchDSL(ctx context.Context, index string, queryDSL map[string]interface{}, opts services.SearchOptions) (*services.SearchResult, error)
	ExecuteKQL(ctx context.Context, index, kql string, opts services.SearchOptions) (*services.SearchResult, error)
	SearchLogs(ctx context.Context, index, searchTerm string, opts services.SearchOptions) (*services.SearchResult, error)
}

type ElasticsearchController struct {
	llm           QueryTranslator
	elasticsearch SearchBackend
}

func NewElasticsearchController(llm QueryTranslator, elasticsearch SearchBackend) *ElasticsearchController {
	return &ElasticsearchController{llm: llm, elasticsearch: elasticsearch}
}

// Indices lists the searchable (non-system) indices.
func (ec *ElasticsearchController) Indices(c *gin.Context) {
	indices, err := ec.elasticsearch.Indices(c.Request.Context())
	if err != nil {
		logger.WithUpstream("elasticsearch").Error("Listing indices failed", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"indices": indices,
	})
}

// Health reports Elasticsearch connectivity. It never errors; an unreachable
// cluster reports as disconnected.
func (ec *ElasticsearchController) Health(c *gin.Context) {
	healthy := ec.elasticsearch.CheckHealth(c.Request.Context())

	status := "disconnected"
	if healthy {
		status = "connected"
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"healthy": healthy,
		"status":  status,
	})
}

type NL2QueryRequest struct {
	Query   string `json:"query"`
	Format  string `json:"format"`
	Index   string `json:"index"`
	Execute bool   `json:"execute"`
}

// NL2Query translates natural language into a Query DSL body or a KQL
// expression, optionally executing it against the given index.
func (ec *ElasticsearchController) NL2Query(c *gin.Context) {
	var req NL2QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		respondInvalid(c, "Missing query parameter")
		return
	}
	ctx := c.Request.Context()

	resp := gin.H{"success": true}

	if strings.EqualFold(req.Format, "kql") {
		kql, err := ec.llm.GenerateKQL(ctx, req.Query)
		if err != nil {
			logger.WithError(err, "elasticsearch_controller").Error("KQL generation failed")
			respondError(c, err)
			return
		}
		resp["queryLanguage"] = "kql"
		resp["query"] = kql

		if req.Execute && req.Index != "" {
			result, err := ec.elasticsearch.ExecuteKQL(ctx, req.Index, kql, services.SearchOptions{})
			if err != nil {
				respondError(c, err)
				return
			}
			resp["executionResult"] = result
		}
	} else {
		queryDSL, err := ec.llm.GenerateQueryDSL(ctx, req.Query, nil)
		if err != nil {
			logger.WithError(err, "elasticsearch_controller").Error("Query DSL generation failed")
			respondError(c, err)
			return
		}
		resp["queryLanguage"] = "dsl"
		resp["query"] = queryDSL

		if req.Execute && req.Index != "" {
			result, err := ec.elasticsearch.SearchDSL(ctx, req.Index, queryDSL, services.SearchOptions{})
			if err != nil {
				respondError(c, err)
				return
			}
			resp["executionResult"] = result
		}
	}

	c.JSON(http.StatusOK, resp)
}

type ExecuteRequest struct {
	Index    string                 `json:"index"`
	QueryDSL map[string]interface{} `json:"queryDSL"`
	KQL      string                 `json:"kql"`
	Size     int                    `json:"size"`
}

// Execute runs a caller-supplied Query DSL body or KQL expression.
func (ec *ElasticsearchController) Execute(c *gin.Context) {
	var req ExecuteRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Index == "" {
		respondInvalid(c, "Missing index parameter")
		return
	}

	opts := services.SearchOptions{Size: req.Size}

	var result *services.SearchResult
	var err error
	switch {
	case req.KQL != "":
		result, err = ec.elasticsearch.ExecuteKQL(c.Request.Context(), req.Index, req.KQL, opts)
	case req.QueryDSL != nil:
		result, err = ec.elasticsearch.SearchDSL(c.Request.Context(), req.Index, req.QueryDSL, opts)
	default:
		respondInvalid(c, "Either queryDSL or kql must be provided")
		return
	}
	if err != nil {
		logger.WithUpstream("elasticsearch").Error("Query execution failed", map[string]interface{}{
			"index": req.Index,
			"error": err.Error(),
		})
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"total":   result.Total,
		"hits":    result.Hits,
	})
}

type SearchRequest struct {
	Index      string `json:"index"`
	SearchTerm string `json:"searchTerm"`
	TimeRange  string `json:"timeRange"`
	Size       int    `json:"size"`
}

// Search runs a full-text log search.
func (ec *ElasticsearchController) Search(c *gin.Context) {
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Index == "" || req.SearchTerm == "" {
		respondInvalid(c, "Missing index or searchTerm parameter")
		return
	}

	opts := services.SearchOptions{Size: req.Size, TimeRange: req.TimeRange}
	result, err := ec.elasticsearch.SearchLogs(c.Request.Context(), req.Index, req.SearchTerm, opts)
	if err != nil {
		logger.WithUpstream("elasticsearch").Error("Log search failed", map[string]interface{}{
			"index": req.Index,
			"error": err.Error(),
		})
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"total":   result.Total,
		"hits":    result.Hits,
	})
}

type DiagnoseRequest struct {
	LogContent interface{} `json:"logContent"`
	Context    string      `json:"context"`
	Index      string      `json:"index"`
	KQL        string      `json:"kql"`
}

// Diagnose analyzes log content and streams the model's reply as SSE. When
// index and kql are given without log content, the matching logs are fetched
// first and fed to the model.
func (ec *ElasticsearchController) Diagnose(c *gin.Context) {
	var req DiagnoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalid(c, "Invalid request body")
		return
	}
	ctx := c.Request.Context()

	logContent := stringifyLogContent(req.LogContent)
	logContext := req.Context

	if req.Index != "" && req.KQL != "" && logContent == "" {
		result, err := ec.elasticsearch.ExecuteKQL(ctx, req.Index, req.KQL, services.SearchOptions{Size: 10})
		if err != nil {
			respondError(c, fmt.Errorf("fetching logs for diagnosis: %w", err))
			return
		}
		if len(result.Hits) == 0 {
			respondNotFound(c, "No logs matched the query")
			return
		}

		var parts []string
		for _, hit := range result.Hits {
			encoded, err := json.MarshalIndent(hit.Source, "", "  ")
			if err != nil {
				continue
			}
			parts = append(parts, string(encoded))
		}
		logContent = strings.Join(parts, "\n---\n")
		logContext = fmt.Sprintf("Query matched %d logs, the first %d follow", result.Total, len(result.Hits))
	}

	if logContent == "" {
		respondInvalid(c, "Missing logContent parameter")
		return
	}

	stream, err := ec.llm.DiagnoseLogStream(ctx, logContent, logContext)
	if err != nil {
		logger.WithLLM("log_diagnosis").Error("Starting diagnosis stream failed: ", err)
		respondError(c, err)
		return
	}

	events := make(chan sse.Event)
	go func() {
		defer close(events)
		for ev := range stream {
			events <- sse.Event{Fragment: ev.Fragment, Err: ev.Err}
		}
	}()

	started, err := sse.Relay(c.Writer, events)
	if err != nil {
		logger.WithLLM("log_diagnosis").Warn("Diagnosis stream ended with error: ", err)
		if !started {
			respondError(c, err)
		}
	}
}

// stringifyLogContent accepts the log payload as either a string or an
// arbitrary JSON value and normalizes it to text.
func stringifyLogContent(v interface{}) string {
	switch content := v.(type) {
	case nil:
		return ""
	case string:
		return content
	default:
		encoded, err := json.MarshalIndent(content, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", content)
		}
		return string(encoded)
	}
}
