package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/querymind/backend/internal/logger"
	"github.com/querymind/backend/internal/services"
	"gopkg.in/yaml.v3"
)

// AlertGenerator is the slice of the LLM gateway the alert endpoints use.
type AlertGenerator interface {
	GenerateAlertRule(ctx context.Context, description, severity string) (*services.AlertRule, error)
}

type AlertsController struct {
	llm AlertGenerator
}

func NewAlertsController(llm AlertGenerator) *AlertsController {
	return &AlertsController{llm: llm}
}

type AlertGenerateRequest struct {
	Description string `json:"description"`
	Severity    string `json:"severity"`
}

// Prometheus rule file layout for the generated rule.
type alertRuleSpec struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroupSpec struct {
	Name  string          `yaml:"name"`
	Rules []alertRuleSpec `yaml:"rules"`
}

type alertFileSpec struct {
	Groups []alertGroupSpec `yaml:"groups"`
}

// Generate produces a Prometheus alerting rule from a natural-language
// description, returned both structured and as rule-file YAML.
func (ac *AlertsController) Generate(c *gin.Context) {
	var req AlertGenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Description == "" {
		respondInvalid(c, "Please provide an alert description")
		return
	}

	rule, err := ac.llm.GenerateAlertRule(c.Request.Context(), req.Description, req.Severity)
	if err != nil {
		logger.WithError(err, "alerts_controller").Error("Alert rule generation failed")
		respondError(c, err)
		return
	}

	yamlRule, err := renderAlertYAML(rule)
	if err != nil {
		logger.WithError(err, "alerts_controller").Error("Alert rule YAML rendering failed")
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"rule":    rule,
		"yaml":    yamlRule,
	})
}

func renderAlertYAML(rule *services.AlertRule) (string, error) {
	spec := alertFileSpec{
		Groups: []alertGroupSpec{{
			Name: "ai-generated-alerts",
			Rules: []alertRuleSpec{{
				Alert:       rule.Alert,
				Expr:        rule.Expr,
				For:         rule.For,
				Labels:      rule.Labels,
				Annotations: rule.Annotations,
			}},
		}},
	}

	out, err := yaml.Marshal(spec)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Examples returns sample alert descriptions for the UI.
func (ac *AlertsController) Examples(c *gin.Context) {
	examples := []gin.H{
		{"description": "Warn when CPU usage stays above 80% for 5 minutes", "severity": "warning"},
		{"description": "Critical alert when memory usage exceeds 90%", "severity": "critical"},
		{"description": "Critical alert when a pod restarts more than 3 times in 15 minutes", "severity": "critical"},
		{"description": "Warn when the HTTP 5xx error rate exceeds 5%", "severity": "warning"},
		{"description": "Warn when disk usage exceeds 85%", "severity": "warning"},
		{"description": "Critical alert when a scrape target is unreachable", "severity": "critical"},
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"examples": examples,
	})
}
