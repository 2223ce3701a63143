package controllers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/querymind/backend/internal/logger"
	"github.com/querymind/backend/internal/services"
)

// InsightsAnalyzer is the slice of the LLM gateway the insights endpoints use.
type InsightsAnalyzer interface {
	AnalyzeInsights(ctx context.Context, query string, data interface{}, timeRange string) (*services.InsightsResult, error)
}

// InsightsBackend runs the PromQL query whose result gets analyzed.
type InsightsBackend interface {
	Query(ctx context.Context, promql string) (*services.QueryResult, error)
}

type InsightsController struct {
	llm        InsightsAnalyzer
	prometheus InsightsBackend
}

func NewInsightsController(llm InsightsAnalyzer, prometheus InsightsBackend) *InsightsController {
	return &InsightsController{llm: llm, prometheus: prometheus}
}

type InsightsRequest struct {
	Query     string      `json:"query"`
	Data      interface{} `json:"data"`
	TimeRange string      `json:"timeRange"`
}

// Analyze explains a metric result. When the caller omits the data, the
// query runs against Prometheus first.
func (ic *InsightsController) Analyze(c *gin.Context) {
	var req InsightsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		respondInvalid(c, "Please provide a valid PromQL query")
		return
	}

	data := req.Data
	if data == nil {
		result, err := ic.runQuery(c, req.Query)
		if err != nil {
			return
		}
		data = result.Data
	}

	insights, err := ic.llm.AnalyzeInsights(c.Request.Context(), req.Query, data, req.TimeRange)
	if err != nil {
		logger.WithError(err, "insights_controller").Error("Insights analysis failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"summary":   insights.Summary,
		"insights":  insights.Insights,
		"nextSteps": insights.NextSteps,
	})
}

// AnalyzeQuery runs a PromQL query and analyzes the result in one call,
// returning both.
func (ic *InsightsController) AnalyzeQuery(c *gin.Context) {
	var req InsightsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		respondInvalid(c, "Please provide a valid PromQL query")
		return
	}

	result, err := ic.runQuery(c, req.Query)
	if err != nil {
		return
	}

	insights, err := ic.llm.AnalyzeInsights(c.Request.Context(), req.Query, result.Data, req.TimeRange)
	if err != nil {
		logger.WithError(err, "insights_controller").Error("Insights analysis failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"queryResult": result,
		"summary":     insights.Summary,
		"insights":    insights.Insights,
		"nextSteps":   insights.NextSteps,
	})
}

// runQuery executes the PromQL query and writes the failure envelope itself
// when the query cannot be served.
func (ic *InsightsController) runQuery(c *gin.Context, promql string) (*services.QueryResult, error) {
	result, err := ic.prometheus.Query(c.Request.Context(), promql)
	if err != nil {
		logger.WithUpstream("prometheus").Error("Query for insights failed", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(c, err)
		return nil, err
	}
	if result.Status == "error" {
		err := fmt.Errorf("prometheus query failed: %s", result.Error)
		respondInvalid(c, err.Error())
		return nil, err
	}
	return result, nil
}
