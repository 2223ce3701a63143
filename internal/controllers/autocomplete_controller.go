package controllers

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/querymind/backend/internal/logger"
	"github.com/querymind/backend/internal/services"
)

// LabelBackend supplies the series used to derive a metric's label names.
type LabelBackend interface {
	Query(ctx context.Context, promql string) (*services.QueryResult, error)
}

type AutocompleteController struct {
	cache      *services.MetricsCache
	prometheus LabelBackend
}

func NewAutocompleteController(cache *services.MetricsCache, prometheus LabelBackend) *AutocompleteController {
	return &AutocompleteController{cache: cache, prometheus: prometheus}
}

// Metrics returns metric names matching the prefix, served from the cache.
func (ac *AutocompleteController) Metrics(c *gin.Context) {
	prefix := c.Query("prefix")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	metrics, err := ac.cache.Filter(c.Request.Context(), prefix, limit)
	if err != nil {
		logger.WithUpstream("prometheus").Error("Metric autocomplete failed", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"prefix":  prefix,
		"count":   len(metrics),
		"metrics": metrics,
	})
}

// Labels returns the label names present on a metric's current series.
func (ac *AutocompleteController) Labels(c *gin.Context) {
	metric := c.Param("metric")

	result, err := ac.prometheus.Query(c.Request.Context(), metric)
	if err != nil {
		logger.WithUpstream("prometheus").Error("Label lookup failed", map[string]interface{}{
			"metric": metric,
			"error":  err.Error(),
		})
		respondError(c, err)
		return
	}

	labels := []string{}
	if result.Status == "success" && result.Data != nil {
		seen := make(map[string]bool)
		for _, item := range result.Data.Result {
			series, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			labelSet, ok := series["metric"].(map[string]interface{})
			if !ok {
				continue
			}
			for name := range labelSet {
				if name != "__name__" && !seen[name] {
					seen[name] = true
					labels = append(labels, name)
				}
			}
		}
		sort.Strings(labels)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"metric":  metric,
		"labels":  labels,
	})
}

// Refresh forces a metric cache reload.
func (ac *AutocompleteController) Refresh(c *gin.Context) {
	count, err := ac.cache.Refresh(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Metric cache refreshed",
		"count":   count,
	})
}
