package controllers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/querymind/backend/internal/logger"
	"github.com/querymind/backend/internal/services"
	"github.com/querymind/backend/internal/session"
)

// PromQLGenerator is the slice of the LLM gateway the PromQL endpoints use.
type PromQLGenerator interface {
	GeneratePromQL(ctx context.Context, query string, availableMetrics []string) (*services.PromQLResult, error)
	GeneratePromQLWithHistory(ctx context.Context, query string, history []session.Turn, availableMetrics []string) (*services.PromQLResult, error)
}

// PromQLBackend is the slice of the Prometheus client the PromQL endpoints use.
type PromQLBackend interface {
	Metrics(ctx context.Context) ([]string, error)
	Query(ctx context.Context, promql string) (*services.QueryResult, error)
}

type PromQLController struct {
	llm        PromQLGenerator
	prometheus PromQLBackend
	sessions   *session.Store
}

func NewPromQLController(llm PromQLGenerator, prometheus PromQLBackend, sessions *session.Store) *PromQLController {
	return &PromQLController{llm: llm, prometheus: prometheus, sessions: sessions}
}

type PromQLRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
	Context   struct {
		AvailableMetrics []string `json:"availableMetrics"`
	} `json:"context"`
}

// Generate converts a natural-language query to PromQL without history.
func (pc *PromQLController) Generate(c *gin.Context) {
	var req PromQLRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		respondInvalid(c, "Please provide a valid query string")
		return
	}

	metrics := pc.availableMetrics(c, req)

	result, err := pc.llm.GeneratePromQL(c.Request.Context(), req.Query, metrics)
	if err != nil {
		logger.WithError(err, "promql_controller").Error("PromQL generation failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"promql":      result.PromQL,
		"explanation": result.Explanation,
		"suggestions": result.Suggestions,
	})
}

// Chat converts a natural-language query to PromQL with conversation history.
func (pc *PromQLController) Chat(c *gin.Context) {
	var req PromQLRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		respondInvalid(c, "Please provide a valid query string")
		return
	}

	sid := req.SessionID
	if sid == "" {
		sid = "session_" + uuid.NewString()
	}

	history := pc.sessions.History(sid)
	metrics := pc.availableMetrics(c, req)

	result, err := pc.llm.GeneratePromQLWithHistory(c.Request.Context(), req.Query, history, metrics)
	if err != nil {
		logger.WithSession(sid).Error("PromQL chat generation failed", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(c, err)
		return
	}

	pc.sessions.Append(sid, session.RoleUser, req.Query)
	reply, _ := json.Marshal(result)
	pc.sessions.Append(sid, session.RoleAssistant, string(reply))

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"sessionId":   sid,
		"promql":      result.PromQL,
		"explanation": result.Explanation,
		"suggestions": result.Suggestions,
		"history":     pc.sessions.History(sid),
	})
}

// History returns the conversation history of a session. An unknown session
// yields an empty history, not an error.
func (pc *PromQLController) History(c *gin.Context) {
	sid := c.Param("sessionId")
	history := pc.sessions.History(sid)
	if history == nil {
		history = []session.Turn{}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sessionId": sid,
		"history":   history,
	})
}

// ClearHistory empties a session's conversation history.
func (pc *PromQLController) ClearHistory(c *gin.Context) {
	pc.sessions.Clear(c.Param("sessionId"))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Conversation history cleared",
	})
}

// Execute generates PromQL from natural language and runs it immediately.
func (pc *PromQLController) Execute(c *gin.Context) {
	var req PromQLRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == "" {
		respondInvalid(c, "Please provide a valid query string")
		return
	}

	metrics := pc.availableMetrics(c, req)

	result, err := pc.llm.GeneratePromQL(c.Request.Context(), req.Query, metrics)
	if err != nil {
		logger.WithError(err, "promql_controller").Error("PromQL generation failed")
		respondError(c, err)
		return
	}

	queryResult, err := pc.prometheus.Query(c.Request.Context(), result.PromQL)
	if err != nil {
		logger.WithError(err, "promql_controller").Error("Generated PromQL execution failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"promql":      result.PromQL,
		"explanation": result.Explanation,
		"suggestions": result.Suggestions,
		"queryResult": queryResult,
	})
}

// availableMetrics uses the client-supplied metric list when present, else
// falls back to the live Prometheus metric names. A fetch failure is not
// fatal; generation proceeds without the list.
func (pc *PromQLController) availableMetrics(c *gin.Context, req PromQLRequest) []string {
	if len(req.Context.AvailableMetrics) > 0 {
		return req.Context.AvailableMetrics
	}
	metrics, err := pc.prometheus.Metrics(c.Request.Context())
	if err != nil {
		logger.WithUpstream("prometheus").Warn("Could not fetch metric names, generating without them")
		return nil
	}
	return metrics
}
