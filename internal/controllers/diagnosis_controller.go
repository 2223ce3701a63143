package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/querymind/backend/internal/logger"
	"github.com/querymind/backend/internal/services"
)

const (
	maxRelatedQueriesQuick   = 3
	maxRelatedQueriesAnalyze = 5
)

// Diagnoser is the slice of the LLM gateway the diagnosis endpoints use.
type Diagnoser interface {
	QuickDiagnosis(ctx context.Context, promql, metricType, currentValue string) (string, error)
	DiagnosisPhase1(ctx context.Context, metric, description, timeRange string) (*services.DiagnosisPhase1Result, error)
	DiagnosisPhase2(ctx context.Context, metric, description, relatedData string) (*services.DiagnosisPhase2Result, error)
}

// DiagnosisBackend runs PromQL queries collected during the analysis.
type DiagnosisBackend interface {
	Query(ctx context.Context, promql string) (*services.QueryResult, error)
}

type DiagnosisController struct {
	llm        Diagnoser
	prometheus DiagnosisBackend
}

func NewDiagnosisController(llm Diagnoser, prometheus DiagnosisBackend) *DiagnosisController {
	return &DiagnosisController{llm: llm, prometheus: prometheus}
}

type QuickDiagnosisRequest struct {
	PromQL         string `json:"promql"`
	IncludeRelated *bool  `json:"includeRelated"`
}

type AnalyzeRequest struct {
	Metric      string `json:"metric"`
	Description string `json:"description"`
	TimeRange   string `json:"timeRange"`
}

// relatedQueryData is one executed related query with its collected result.
type relatedQueryData struct {
	Purpose         string      `json:"purpose"`
	PromQL          string      `json:"promql"`
	Data            interface{} `json:"data"`
	ExpectedPattern string      `json:"expectedPattern,omitempty"`
	Error           string      `json:"error,omitempty"`
}

// Quick runs the query, infers the metric type, collects a few related
// metrics, and asks the model for a fast diagnosis.
func (dc *DiagnosisController) Quick(c *gin.Context) {
	var req QuickDiagnosisRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PromQL == "" {
		respondInvalid(c, "Please provide a PromQL query")
		return
	}
	includeRelated := req.IncludeRelated == nil || *req.IncludeRelated

	ctx := c.Request.Context()
	metricType := inferMetricType(req.PromQL)

	currentValue := "unavailable"
	var currentData []interface{}
	if result, err := dc.prometheus.Query(ctx, req.PromQL); err != nil {
		logger.WithUpstream("prometheus").Warn("Quick diagnosis query failed, diagnosing without data")
	} else if result.Data != nil {
		currentData = limitResults(result.Data.Result, 5)
		if encoded, err := json.MarshalIndent(currentData, "", "  "); err == nil {
			currentValue = string(encoded)
		}
	}

	var relatedMetrics []relatedQueryData
	if includeRelated {
		for _, rq := range relatedQueriesFor(req.PromQL) {
			if len(relatedMetrics) == maxRelatedQueriesQuick {
				break
			}
			result, err := dc.prometheus.Query(ctx, rq.PromQL)
			if err != nil || result.Data == nil || len(result.Data.Result) == 0 {
				continue
			}
			relatedMetrics = append(relatedMetrics, relatedQueryData{
				Purpose: rq.Purpose,
				PromQL:  rq.PromQL,
				Data:    limitResults(result.Data.Result, 3),
			})
		}
	}

	enhancedValue := currentValue
	if len(relatedMetrics) > 0 {
		related, _ := json.MarshalIndent(relatedMetrics, "", "  ")
		enhancedValue = "Primary metric data:\n" + currentValue + "\n\nRelated metric data:\n" + string(related)
	}

	diagnosis, err := dc.llm.QuickDiagnosis(ctx, req.PromQL, metricType, enhancedValue)
	if err != nil {
		logger.WithError(err, "diagnosis_controller").Error("Quick diagnosis failed")
		respondError(c, err)
		return
	}

	diagContext := gin.H{
		"promql":     req.PromQL,
		"metricType": metricType,
	}
	if currentData != nil {
		diagContext["currentValue"] = currentData
	}
	if len(relatedMetrics) > 0 {
		diagContext["relatedMetrics"] = relatedMetrics
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"diagnosis": diagnosis,
		"context":   diagContext,
	})
}

// Analyze performs the multi-phase root cause analysis: hypothesize causes,
// execute the model's suggested queries, then synthesize a root cause from
// the collected evidence.
func (dc *DiagnosisController) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Metric == "" {
		respondInvalid(c, "Please provide a metric name or PromQL query")
		return
	}
	if req.Description == "" {
		req.Description = "metric behaving abnormally"
	}
	if req.TimeRange == "" {
		req.TimeRange = "1h"
	}

	ctx := c.Request.Context()

	phase1, err := dc.llm.DiagnosisPhase1(ctx, req.Metric, req.Description, req.TimeRange)
	if err != nil {
		logger.WithError(err, "diagnosis_controller").Error("Diagnosis phase 1 failed")
		respondError(c, err)
		return
	}

	var relatedData []relatedQueryData
	for i, rq := range phase1.RelatedQueries {
		if i == maxRelatedQueriesAnalyze {
			break
		}
		entry := relatedQueryData{
			Purpose:         rq.Purpose,
			PromQL:          rq.PromQL,
			ExpectedPattern: rq.ExpectedPattern,
		}
		result, err := dc.prometheus.Query(ctx, rq.PromQL)
		if err != nil || result.Data == nil {
			entry.Error = "query failed"
		} else {
			entry.Data = limitResults(result.Data.Result, 10)
		}
		relatedData = append(relatedData, entry)
	}

	collected, _ := json.MarshalIndent(relatedData, "", "  ")

	phase2, err := dc.llm.DiagnosisPhase2(ctx, req.Metric, req.Description, string(collected))
	if err != nil {
		logger.WithError(err, "diagnosis_controller").Error("Diagnosis phase 2 failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"analysis": gin.H{
			"possibleCauses":  phase1.PossibleCauses,
			"immediateChecks": phase1.ImmediateChecks,
			"relatedQueries":  relatedData,
			"rootCause":       phase2.RootCause,
			"timeline":        phase2.Timeline,
			"remediation":     phase2.Remediation,
			"relatedAlerts":   phase2.RelatedAlerts,
		},
	})
}

// CommonIssues returns the static catalog of frequent anomaly patterns.
func (dc *DiagnosisController) CommonIssues(c *gin.Context) {
	issues := []gin.H{
		{
			"pattern":     "Metric suddenly drops to zero",
			"description": "The service may have crashed or lost network connectivity",
			"suggestedChecks": []string{
				`up{job="your-job"}`,
				`kube_pod_status_phase{phase!="Running"}`,
				"container_last_seen",
			},
		},
		{
			"pattern":     "Memory keeps climbing",
			"description": "There may be a memory leak",
			"suggestedChecks": []string{
				"container_memory_usage_bytes",
				"go_memstats_heap_alloc_bytes",
				"process_resident_memory_bytes",
			},
		},
		{
			"pattern":     "HTTP error rate spike",
			"description": "A backend service or one of its dependencies may be failing",
			"suggestedChecks": []string{
				`rate(http_requests_total{status=~"5.."}[5m])`,
				"histogram_quantile(0.99, rate(http_request_duration_seconds_bucket[5m]))",
				`up{job="backend"}`,
			},
		},
		{
			"pattern":     "Latency suddenly increases",
			"description": "Likely a resource bottleneck or a slow dependency",
			"suggestedChecks": []string{
				"histogram_quantile(0.95, rate(http_request_duration_seconds_bucket[5m]))",
				"rate(container_cpu_usage_seconds_total[5m])",
				"container_memory_usage_bytes / container_spec_memory_limit_bytes",
			},
		},
		{
			"pattern":     "Pods restarting frequently",
			"description": "Possible OOM kills or failing health checks",
			"suggestedChecks": []string{
				"kube_pod_container_status_restarts_total",
				"kube_pod_container_status_last_terminated_reason",
				"container_memory_usage_bytes",
			},
		},
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"issues":  issues,
	})
}

// inferMetricType guesses the Prometheus metric type from PromQL text.
func inferMetricType(promql string) string {
	switch {
	case strings.Contains(promql, "histogram_quantile") || strings.Contains(promql, "_bucket"):
		return "Histogram"
	case strings.Contains(promql, "rate(") || strings.Contains(promql, "increase(") || strings.Contains(promql, "_total"):
		return "Counter"
	default:
		return "Gauge or other"
	}
}

// relatedQueriesFor suggests companion queries from common metric patterns.
func relatedQueriesFor(promql string) []services.RelatedQuery {
	var queries []services.RelatedQuery

	if strings.Contains(promql, "up") || strings.Contains(promql, "health") {
		queries = append(queries,
			services.RelatedQuery{Purpose: "Process start time", PromQL: "process_start_time_seconds"},
			services.RelatedQuery{Purpose: "Scrape duration", PromQL: "scrape_duration_seconds"},
		)
	}
	if strings.Contains(promql, "http") || strings.Contains(promql, "request") {
		queries = append(queries,
			services.RelatedQuery{Purpose: "HTTP error rate", PromQL: `sum(rate(http_requests_total{status=~"5.."}[5m]))`},
			services.RelatedQuery{Purpose: "HTTP latency P99", PromQL: "histogram_quantile(0.99, sum(rate(http_request_duration_seconds_bucket[5m])) by (le))"},
		)
	}
	if strings.Contains(promql, "memory") || strings.Contains(promql, "mem") {
		queries = append(queries,
			services.RelatedQuery{Purpose: "Container memory usage", PromQL: "sum(container_memory_usage_bytes) by (container)"},
			services.RelatedQuery{Purpose: "Go heap allocation", PromQL: "go_memstats_heap_alloc_bytes"},
		)
	}
	if strings.Contains(promql, "cpu") {
		queries = append(queries,
			services.RelatedQuery{Purpose: "Container CPU usage", PromQL: "sum(rate(container_cpu_usage_seconds_total[5m])) by (container)"},
			services.RelatedQuery{Purpose: "Process CPU usage", PromQL: "rate(process_cpu_seconds_total[5m])"},
		)
	}

	if len(queries) == 0 {
		queries = append(queries,
			services.RelatedQuery{Purpose: "Service health", PromQL: "up"},
			services.RelatedQuery{Purpose: "Scraped sample count", PromQL: "scrape_samples_scraped"},
		)
	}
	return queries
}

func limitResults(result []interface{}, n int) []interface{} {
	if len(result) > n {
		return result[:n]
	}
	return result
}
