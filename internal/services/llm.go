package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/querymind/backend/internal/config"
	"github.com/querymind/backend/internal/logger"
	"github.com/querymind/backend/internal/session"
	openai "github.com/sashabaranov/go-openai"
)

// LLMService wraps the chat-completion provider. For each logical operation
// it assembles a system+user prompt pair, invokes the completion endpoint
// (streaming or non-streaming), and extracts a JSON or raw-text payload from
// the model's reply. Stateless per call.
type LLMService struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// StreamEvent is one element of a streaming completion: either a text
// fragment or a terminal error. The sequence is finite, single-pass and
// closed once the model turn completes.
type StreamEvent struct {
	Fragment string
	Err      error
}

// PromQLResult is the structured reply of the PromQL generation operations.
type PromQLResult struct {
	PromQL      string   `json:"promql"`
	Explanation string   `json:"explanation"`
	Suggestions []string `json:"suggestions"`
}

type InsightItem struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type NextStep struct {
	Description string `json:"description"`
	PromQL      string `json:"promql,omitempty"`
}

type InsightsResult struct {
	Summary   string        `json:"summary"`
	Insights  []InsightItem `json:"insights"`
	NextSteps []NextStep    `json:"nextSteps"`
}

// AlertRule is a generated Prometheus alerting rule.
type AlertRule struct {
	Alert       string            `json:"alert"`
	Expr        string            `json:"expr"`
	For         string            `json:"for"`
	Labels      map[string]string `json:"labels"`
	Annotations map[string]string `json:"annotations"`
	Explanation string            `json:"explanation"`
}

type DiagnosisCause struct {
	Cause       string `json:"cause"`
	Probability string `json:"probability"`
	Explanation string `json:"explanation"`
}

type RelatedQuery struct {
	Purpose         string `json:"purpose"`
	PromQL          string `json:"promql"`
	ExpectedPattern string `json:"expectedPattern,omitempty"`
}

type DiagnosisPhase1Result struct {
	PossibleCauses  []DiagnosisCause `json:"possibleCauses"`
	RelatedQueries  []RelatedQuery   `json:"relatedQueries"`
	ImmediateChecks []string         `json:"immediateChecks"`
}

type RootCause struct {
	Summary    string   `json:"summary"`
	Details    string   `json:"details"`
	Confidence string   `json:"confidence"`
	Evidence   []string `json:"evidence"`
}

type TimelineEvent struct {
	Time  string `json:"time"`
	Event string `json:"event"`
}

type RemediationAction struct {
	Action  string `json:"action"`
	Command string `json:"command,omitempty"`
	Risk    string `json:"risk,omitempty"`
}

type Remediation struct {
	Immediate []RemediationAction `json:"immediate"`
	ShortTerm []string            `json:"shortTerm"`
	LongTerm  []string            `json:"longTerm"`
}

type RelatedAlert struct {
	Name        string `json:"name"`
	Expr        string `json:"expr"`
	Description string `json:"description"`
}

type DiagnosisPhase2Result struct {
	RootCause     RootCause       `json:"rootCause"`
	Timeline      []TimelineEvent `json:"timeline"`
	Remediation   Remediation     `json:"remediation"`
	RelatedAlerts []RelatedAlert  `json:"relatedAlerts"`
}

type LogRelatedQuery struct {
	Purpose string `json:"purpose"`
	KQL     string `json:"kql"`
}

type LogDiagnosisResult struct {
	ErrorType      string            `json:"errorType"`
	Severity       string            `json:"severity"`
	Summary        string            `json:"summary"`
	PossibleCauses []DiagnosisCause  `json:"possibleCauses"`
	Remediation    Remediation       `json:"remediation"`
	RelatedQueries []LogRelatedQuery `json:"relatedQueries"`
}

func NewLLMService(cfg config.OpenAIConfig) *LLMService {
	s := &LLMService{
		model:   cfg.Model,
		timeout: 120 * time.Second,
	}
	if cfg.APIKey == "" {
		return s
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	s.client = openai.NewClientWithConfig(clientCfg)
	return s
}

// Configured reports whether a provider API key was supplied.
func (s *LLMService) Configured() bool {
	return s.client != nil
}

// GeneratePromQL converts a natural-language query to PromQL, stateless.
func (s *LLMService) GeneratePromQL(ctx context.Context, query string, availableMetrics []string) (*PromQLResult, error) {
	content, err := s.chat(ctx, PROMQL_GENERATOR_SYSTEM_PROMPT, nil,
		promqlGeneratorUserPrompt(query, availableMetrics), 0.3)
	if err != nil {
		return nil, err
	}

	var result PromQLResult
	if err := parseModelJSON(content, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GeneratePromQLWithHistory converts a natural-language query to PromQL
// using the recent conversation turns as context. Only the most recent 12
// turns (6 exchanges) are forwarded to the model.
func (s *LLMService) GeneratePromQLWithHistory(ctx context.Context, query string, history []session.Turn, availableMetrics []string) (*PromQLResult, error) {
	recent := history
	if len(recent) > 12 {
		recent = recent[len(recent)-12:]
	}

	var turns []openai.ChatCompletionMessage
	for _, turn := range recent {
		role := openai.ChatMessageRoleUser
		if turn.Role == session.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		turns = append(turns, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	content, err := s.chat(ctx, PROMQL_GENERATOR_SYSTEM_PROMPT+PROMQL_CHAT_CONTEXT_PROMPT, turns,
		promqlGeneratorUserPrompt(query, availableMetrics), 0.3)
	if err != nil {
		return nil, err
	}

	var result PromQLResult
	if err := parseModelJSON(content, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AnalyzeInsights asks the model for trends, anomalies and next steps over a
// Prometheus query result.
func (s *LLMService) AnalyzeInsights(ctx context.Context, query string, data interface{}, timeRange string) (*InsightsResult, error) {
	content, err := s.chat(ctx, INSIGHTS_ANALYZER_SYSTEM_PROMPT, nil,
		insightsUserPrompt(query, data, timeRange), 0.5)
	if err != nil {
		return nil, err
	}

	var result InsightsResult
	if err := parseModelJSON(content, &result); err != nil {
		return nil, err
	}
	if result.Insights == nil {
		result.Insights = []InsightItem{}
	}
	if result.NextSteps == nil {
		result.NextSteps = []NextStep{}
	}
	return &result, nil
}

// GenerateAlertRule produces a Prometheus alerting rule from a description.
func (s *LLMService) GenerateAlertRule(ctx context.Context, description, severity string) (*AlertRule, error) {
	content, err := s.chat(ctx, ALERT_GENERATOR_SYSTEM_PROMPT, nil,
		alertGeneratorUserPrompt(description, severity), 0.3)
	if err != nil {
		return nil, err
	}

	var rule AlertRule
	if err := parseModelJSON(content, &rule); err != nil {
		return nil, err
	}
	return &rule, nil
}

// QuickDiagnosis returns a free-text assessment of a metric's current state.
func (s *LLMService) QuickDiagnosis(ctx context.Context, promql, metricType, currentValue string) (string, error) {
	return s.chat(ctx, DIAGNOSIS_SYSTEM_PROMPT, nil,
		fmt.Sprintf(QUICK_DIAGNOSIS_PROMPT, promql, metricType, currentValue), 0.5)
}

// DiagnosisPhase1 proposes likely causes and confirmation queries for an
// abnormal metric. Unparseable model output yields a fixed placeholder, not
// an error, so the multi-phase pipeline stays alive.
func (s *LLMService) DiagnosisPhase1(ctx context.Context, metric, description, timeRange string) (*DiagnosisPhase1Result, error) {
	content, err := s.chat(ctx, DIAGNOSIS_SYSTEM_PROMPT, nil,
		fmt.Sprintf(DIAGNOSIS_PHASE1_PROMPT, metric, description, timeRange), 0.4)
	if err != nil {
		return nil, err
	}

	var result DiagnosisPhase1Result
	if err := parseModelJSON(content, &result); err != nil {
		logger.WithLLM("diagnosis_phase1").Warn("Falling back to placeholder: ", err)
		return phase1Placeholder(), nil
	}
	return &result, nil
}

// DiagnosisPhase2 turns gathered evidence into a final root-cause analysis.
// Same placeholder policy as phase 1.
func (s *LLMService) DiagnosisPhase2(ctx context.Context, metric, description, relatedData string) (*DiagnosisPhase2Result, error) {
	content, err := s.chat(ctx, DIAGNOSIS_SYSTEM_PROMPT, nil,
		fmt.Sprintf(DIAGNOSIS_PHASE2_PROMPT, metric, description, relatedData), 0.4)
	if err != nil {
		return nil, err
	}

	var result DiagnosisPhase2Result
	if err := parseModelJSON(content, &result); err != nil {
		logger.WithLLM("diagnosis_phase2").Warn("Falling back to placeholder: ", err)
		return phase2Placeholder(), nil
	}
	return &result, nil
}

// GenerateQueryDSL converts natural language to an Elasticsearch Query DSL body.
func (s *LLMService) GenerateQueryDSL(ctx context.Context, input string, availableFields []string) (map[string]interface{}, error) {
	content, err := s.chat(ctx, NL2QUERYDSL_SYSTEM_PROMPT, nil,
		nl2queryDSLUserPrompt(input, availableFields), 0.3)
	if err != nil {
		return nil, err
	}

	var queryDSL map[string]interface{}
	if err := parseModelJSON(content, &queryDSL); err != nil {
		return nil, err
	}
	return queryDSL, nil
}

// GenerateKQL converts natural language to a KQL expression. KQL is a plain
// string, so only code fences are stripped, no JSON parsing.
func (s *LLMService) GenerateKQL(ctx context.Context, input string) (string, error) {
	content, err := s.chat(ctx, NL2KQL_SYSTEM_PROMPT, nil, nl2kqlUserPrompt(input), 0.3)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(stripCodeFences(content)), nil
}

// DiagnoseLog analyzes log content in one shot. Unparseable model output
// yields a placeholder result.
func (s *LLMService) DiagnoseLog(ctx context.Context, logContent, logContext string) (*LogDiagnosisResult, error) {
	content, err := s.chat(ctx, LOG_DIAGNOSIS_SYSTEM_PROMPT, nil,
		logDiagnosisUserPrompt(logContent, logContext), 0.4)
	if err != nil {
		return nil, err
	}

	var result LogDiagnosisResult
	if err := parseModelJSON(content, &result); err != nil {
		logger.WithLLM("log_diagnosis").Warn("Falling back to placeholder: ", err)
		return logDiagnosisPlaceholder(), nil
	}
	return &result, nil
}

// DiagnoseLogStream analyzes log content in streaming mode. The returned
// channel delivers fragments in arrival order and is closed when the model
// turn completes; a provider failure mid-stream delivers one Err event and
// then closes. Consumption is single-pass; cancelling ctx tears down the
// upstream connection.
func (s *LLMService) DiagnoseLogStream(ctx context.Context, logContent, logContext string) (<-chan StreamEvent, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("llm provider %w", ErrNotConfigured)
	}

	stream, err := s.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: LOG_DIAGNOSIS_SYSTEM_PROMPT},
			{Role: openai.ChatMessageRoleUser, Content: logDiagnosisUserPrompt(logContent, logContext)},
		},
		Temperature: 0.4,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	events := make(chan StreamEvent)
	go func() {
		defer close(events)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				events <- StreamEvent{Err: fmt.Errorf("%w: %v", ErrStreamInterrupted, err)}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				select {
				case events <- StreamEvent{Fragment: delta}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}

// chat performs one completion call with a bounded timeout and returns the
// raw reply text.
func (s *LLMService) chat(ctx context.Context, systemPrompt string, historyTurns []openai.ChatCompletionMessage, userPrompt string, temperature float32) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("llm provider %w", ErrNotConfigured)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	messages := make([]openai.ChatCompletionMessage, 0, len(historyTurns)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	messages = append(messages, historyTurns...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userPrompt,
	})

	start := time.Now()
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.model,
		Messages:    messages,
		Temperature: temperature,
	})
	if err != nil {
		logger.WithLLM("chat").Error("Completion request failed: ", err)
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("%w: empty completion reply", ErrMalformedModelOutput)
	}

	logger.WithLLM("chat").Debug("Completion request finished", map[string]interface{}{
		"duration": time.Since(start).String(),
	})
	return resp.Choices[0].Message.Content, nil
}

// parseModelJSON extracts the JSON payload from a model reply and
// unmarshals it. Replies are often wrapped in markdown fences or prose, so
// the first balanced top-level object is extracted before parsing.
func parseModelJSON(content string, out interface{}) error {
	extracted, err := extractJSONObject(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(extracted), out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedModelOutput, err)
	}
	return nil
}

// extractJSONObject returns the first balanced top-level {...} span in the
// reply, brace-matching with awareness of string literals and escapes.
func extractJSONObject(content string) (string, error) {
	cleaned := stripCodeFences(content)

	start := strings.IndexByte(cleaned, '{')
	if start < 0 {
		return "", fmt.Errorf("%w: no JSON object in reply %q", ErrMalformedModelOutput, truncate(cleaned, 200))
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		c := cleaned[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return cleaned[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unbalanced JSON object in reply %q", ErrMalformedModelOutput, truncate(cleaned, 200))
}

func stripCodeFences(content string) string {
	cleaned := strings.TrimSpace(content)
	if strings.HasPrefix(cleaned, "```") {
		// Drop the whole opening fence line, language tag included
		if idx := strings.IndexByte(cleaned, '\n'); idx >= 0 {
			cleaned = cleaned[idx+1:]
		} else {
			cleaned = strings.TrimPrefix(cleaned, "```")
		}
	}
	cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	return strings.TrimSpace(cleaned)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func toJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func phase1Placeholder() *DiagnosisPhase1Result {
	return &DiagnosisPhase1Result{
		PossibleCauses: []DiagnosisCause{
			{Cause: "Analysis failed", Probability: "unknown", Explanation: "Please retry later"},
		},
		RelatedQueries:  []RelatedQuery{},
		ImmediateChecks: []string{"Check the related metrics manually"},
	}
}

func phase2Placeholder() *DiagnosisPhase2Result {
	return &DiagnosisPhase2Result{
		RootCause: RootCause{
			Summary:    "Analysis failed",
			Details:    "Please retry later",
			Confidence: "low",
			Evidence:   []string{},
		},
		Timeline:      []TimelineEvent{},
		Remediation:   Remediation{Immediate: []RemediationAction{}, ShortTerm: []string{}, LongTerm: []string{}},
		RelatedAlerts: []RelatedAlert{},
	}
}

func logDiagnosisPlaceholder() *LogDiagnosisResult {
	return &LogDiagnosisResult{
		ErrorType:      "Analysis failed",
		Severity:       "medium",
		Summary:        "Could not analyze the log content, please retry later",
		PossibleCauses: []DiagnosisCause{},
		Remediation:    Remediation{Immediate: []RemediationAction{}, ShortTerm: []string{}, LongTerm: []string{}},
		RelatedQueries: []LogRelatedQuery{},
	}
}
