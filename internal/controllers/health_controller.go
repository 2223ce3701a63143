package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker reports reachability of one upstream.
type HealthChecker interface {
	CheckHealth(ctx context.Context) bool
}

// Configurable reports whether a service has the settings it needs.
type Configurable interface {
	Configured() bool
}

type HealthController struct {
	prometheus    HealthChecker
	elasticsearch HealthChecker
	llm           Configurable
}

func NewHealthController(prometheus, elasticsearch HealthChecker, llm Configurable) *HealthController {
	return &HealthController{prometheus: prometheus, elasticsearch: elasticsearch, llm: llm}
}

// Check aggregates upstream connectivity. Unreachable upstreams report as
// disconnected; the endpoint itself always answers 200.
func (hc *HealthController) Check(c *gin.Context) {
	ctx := c.Request.Context()

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services": gin.H{
			"prometheus":    connState(hc.prometheus.CheckHealth(ctx)),
			"elasticsearch": connState(hc.elasticsearch.CheckHealth(ctx)),
			"openai":        configState(hc.llm.Configured()),
		},
	})
}

func connState(healthy bool) string {
	if healthy {
		return "connected"
	}
	return "disconnected"
}

func configState(configured bool) string {
	if configured {
		return "configured"
	}
	return "not configured"
}
