package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/querymind/backend/internal/logger"
	"github.com/querymind/backend/internal/services"
)

// MetricsBackend is the slice of the Prometheus client the passthrough
// endpoints use.
type MetricsBackend interface {
	Metrics(ctx context.Context) ([]string, error)
	Query(ctx context.Context, promql string) (*services.QueryResult, error)
}

// MetricsController serves the thin Prometheus passthrough endpoints.
type MetricsController struct {
	prometheus MetricsBackend
}

func NewMetricsController(prometheus MetricsBackend) *MetricsController {
	return &MetricsController{prometheus: prometheus}
}

// List returns every metric name known to Prometheus.
func (mc *MetricsController) List(c *gin.Context) {
	metrics, err := mc.prometheus.Metrics(c.Request.Context())
	if err != nil {
		logger.WithUpstream("prometheus").Error("Listing metrics failed", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(metrics),
		"metrics": metrics,
	})
}

type QueryRequest struct {
	PromQL string `json:"promql"`
}

// Query executes a raw PromQL query.
func (mc *MetricsController) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PromQL == "" {
		respondInvalid(c, "Missing promql parameter")
		return
	}

	result, err := mc.prometheus.Query(c.Request.Context(), req.PromQL)
	if err != nil {
		logger.WithUpstream("prometheus").Error("Query failed", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   result.Status == "success",
		"status":    result.Status,
		"data":      result.Data,
		"error":     result.Error,
		"errorType": result.ErrorType,
	})
}
