package services

import (
	"fmt"
	"strings"
)

// LLM Prompt Constants for consistent and optimized AI interactions

const (
	// PROMQL_GENERATOR_SYSTEM_PROMPT turns natural language into PromQL
	PROMQL_GENERATOR_SYSTEM_PROMPT = `You are a Prometheus and PromQL expert. Your task is to convert the user's natural-language query into a precise PromQL query.

PromQL reference:
- Instant vector selectors: metric_name{label="value"}
- Range vector selectors: metric_name{label="value"}[5m]
- Common functions: rate(), irate(), increase(), sum(), avg(), max(), min(), histogram_quantile(), topk(k, ...), bottomk(k, ...)
- Metric types: Counter (only increases, e.g. http_requests_total), Gauge, Histogram (_bucket series), Summary
- Label matchers: =, !=, =~, !~

Best practices:
1. Use rate() or increase() on counters
2. Group with by() or without()
3. Error rate: rate(errors[5m]) / rate(total[5m])
4. P95 latency: histogram_quantile(0.95, rate(..._bucket[5m]))

Respond in JSON with exactly these fields:
{
  "promql": "the generated PromQL query",
  "explanation": "what the query does",
  "suggestions": ["possible refinements or related queries"]
}

Output only JSON, no other text.`

	// PROMQL_CHAT_CONTEXT_PROMPT is appended to the system prompt in
	// conversational mode so the model resolves follow-up queries against
	// earlier turns.
	PROMQL_CHAT_CONTEXT_PROMPT = `

## Conversation context
You are in an ongoing conversation. Interpret the current query against the earlier turns.
For example, if the user previously asked about "CPU usage" and now asks "what about memory?",
they want a memory-usage query. If they say "change it to the last hour" or "add the node label",
modify the previously generated query accordingly.`

	// INSIGHTS_ANALYZER_SYSTEM_PROMPT analyzes query results for trends and anomalies
	INSIGHTS_ANALYZER_SYSTEM_PROMPT = `You are a senior SRE and observability expert. Analyze the given Prometheus query result and provide actionable insights.

Analysis framework:
1. Trends: rising/falling patterns, periodicity, inflection points
2. Anomalies: outliers, sudden spikes or drops, divergence between instances
3. Performance: error rates, latency, throughput
4. Resources: CPU/memory patterns, capacity planning, saturation

Respond in JSON:
{
  "summary": "one-sentence summary of findings",
  "insights": [
    {
      "type": "trend|anomaly|performance|resource",
      "severity": "info|warning|critical",
      "title": "insight title",
      "description": "detailed explanation"
    }
  ],
  "nextSteps": [
    {
      "description": "suggested follow-up action",
      "promql": "related PromQL query, if applicable"
    }
  ]
}

Output only JSON, no other text.`

	// ALERT_GENERATOR_SYSTEM_PROMPT generates Prometheus alerting rules
	ALERT_GENERATOR_SYSTEM_PROMPT = `You are a Prometheus alerting-rule expert. Generate a standard Prometheus alert rule from the user's description.

Respond in JSON:
{
  "alert": "AlertName (PascalCase, e.g. HighCpuUsage)",
  "expr": "PromQL expression",
  "for": "duration such as 5m or 10m",
  "labels": { "severity": "info | warning | critical" },
  "annotations": {
    "summary": "short summary, may reference {{ $labels.xxx }}",
    "description": "detailed description including triage hints"
  },
  "explanation": "what the rule does and when it fires"
}

Best practices:
1. PascalCase names that describe the condition (HighCpuUsage, PodCrashLooping)
2. "for" of at least 5m to avoid flapping
3. severity: info (informational), warning (needs attention), critical (act now)
4. Use rate() for counters and histogram_quantile() for percentiles

Output only JSON, no other text.`

	// DIAGNOSIS_SYSTEM_PROMPT drives the multi-phase root cause analysis flow
	DIAGNOSIS_SYSTEM_PROMPT = `You are a Prometheus monitoring expert specializing in metric analysis and root cause diagnosis. Follow the requested output format exactly and output only JSON.`

	// QUICK_DIAGNOSIS_PROMPT: args are promql, metric type, current value
	QUICK_DIAGNOSIS_PROMPT = `Quickly diagnose the state of the following metric.

PromQL: %s
Metric type: %s
Current data:
%s

Cover: whether the values look healthy, likely causes if not, and the two or three most useful checks to run next. Answer concisely in plain text.`

	// DIAGNOSIS_PHASE1_PROMPT: args are metric, description, time range
	DIAGNOSIS_PHASE1_PROMPT = `A metric is behaving abnormally and needs diagnosis.

Metric or PromQL: %s
Observed problem: %s
Time range: %s

List the likely causes and the related queries that would confirm or rule them out.

Respond in JSON:
{
  "possibleCauses": [
    { "cause": "...", "probability": "high|medium|low", "explanation": "..." }
  ],
  "relatedQueries": [
    { "purpose": "...", "promql": "...", "expectedPattern": "what the data should look like if this cause is real" }
  ],
  "immediateChecks": ["check 1", "check 2"]
}

Output only JSON, no other text.`

	// DIAGNOSIS_PHASE2_PROMPT: args are metric, description, gathered data
	DIAGNOSIS_PHASE2_PROMPT = `Based on the gathered evidence, produce the final root cause analysis.

Metric or PromQL: %s
Observed problem: %s
Collected related data:
%s

Respond in JSON:
{
  "rootCause": { "summary": "...", "details": "...", "confidence": "high|medium|low", "evidence": ["..."] },
  "timeline": [ { "time": "...", "event": "..." } ],
  "remediation": {
    "immediate": [ { "action": "...", "command": "optional shell command", "risk": "low|medium|high" } ],
    "shortTerm": ["..."],
    "longTerm": ["..."]
  },
  "relatedAlerts": [ { "name": "...", "expr": "...", "description": "..." } ]
}

Output only JSON, no other text.`

	// NL2QUERYDSL_SYSTEM_PROMPT converts natural language to Elasticsearch Query DSL
	NL2QUERYDSL_SYSTEM_PROMPT = `You are an Elasticsearch expert. Convert the user's natural-language request into an Elasticsearch Query DSL body.

Rules:
1. Output a single JSON object that is a valid search body ({"query": ...}, optionally "sort", "aggs", "size")
2. Prefer bool queries combining must/filter clauses
3. Use range filters on @timestamp for time windows (e.g. "gte": "now-1h")
4. Use match/multi_match for free text and term for exact keyword fields

Output only the JSON body, no other text.`

	// NL2KQL_SYSTEM_PROMPT converts natural language to Kibana Query Language
	NL2KQL_SYSTEM_PROMPT = `You are a Kibana expert. Convert the user's natural-language request into a single KQL (Kibana Query Language) expression.

Rules:
1. field: value syntax, AND/OR/NOT combinators, wildcards allowed
2. Do not include time-range clauses; the time window is applied separately
3. Output only the KQL expression, with no surrounding quotes, code fences or commentary`

	// LOG_DIAGNOSIS_SYSTEM_PROMPT analyzes log content for errors and fixes
	LOG_DIAGNOSIS_SYSTEM_PROMPT = `You are a senior SRE performing log diagnosis. Analyze the given log content and provide root cause candidates and remediation.

Respond in JSON:
{
  "errorType": "category of the failure",
  "severity": "critical|high|medium|low",
  "summary": "2-3 sentence summary",
  "possibleCauses": [
    { "cause": "...", "probability": "high|medium|low", "explanation": "..." }
  ],
  "remediation": {
    "immediate": [ { "action": "...", "command": "optional shell command" } ],
    "shortTerm": ["..."],
    "longTerm": ["..."]
  },
  "relatedQueries": [
    { "purpose": "...", "kql": "KQL query to find related logs" }
  ]
}

Output only JSON, no other text.`
)

func promqlGeneratorUserPrompt(query string, availableMetrics []string) string {
	prompt := fmt.Sprintf("Convert the following natural-language query to PromQL:\n\n%q", query)

	if len(availableMetrics) > 0 {
		shown := availableMetrics
		if len(shown) > 50 {
			shown = shown[:50]
		}
		prompt += fmt.Sprintf("\n\nAvailable metrics (for reference):\n%s", strings.Join(shown, "\n"))
		if len(availableMetrics) > 50 {
			prompt += fmt.Sprintf("\n... and %d more metrics", len(availableMetrics)-50)
		}
	}
	return prompt
}

func insightsUserPrompt(query string, data interface{}, timeRange string) string {
	prompt := fmt.Sprintf("Analyze the following Prometheus query result:\n\nQuery: `%s`\n", query)
	if timeRange != "" {
		prompt += fmt.Sprintf("Time range: %s\n", timeRange)
	}
	prompt += fmt.Sprintf("\nResult:\n```json\n%s\n```\n\nProvide insight analysis and suggested next steps.", toJSON(data))
	return prompt
}

func alertGeneratorUserPrompt(description, severity string) string {
	prompt := fmt.Sprintf("Generate a Prometheus alert rule for the following description:\n\n%s", description)
	if severity != "" {
		prompt += fmt.Sprintf("\n\nRequested severity level: %s", severity)
	}
	return prompt + "\n\nRespond in JSON."
}

func nl2queryDSLUserPrompt(input string, availableFields []string) string {
	prompt := fmt.Sprintf("Convert the following request to an Elasticsearch Query DSL body:\n\n%q", input)
	if len(availableFields) > 0 {
		prompt += fmt.Sprintf("\n\nAvailable fields:\n%s", strings.Join(availableFields, ", "))
	}
	return prompt
}

func nl2kqlUserPrompt(input string) string {
	return fmt.Sprintf("Convert the following request to a KQL expression:\n\n%q", input)
}

func logDiagnosisUserPrompt(logContent, context string) string {
	prompt := fmt.Sprintf("Diagnose the following log content:\n\n```\n%s\n```", logContent)
	if context != "" {
		prompt += fmt.Sprintf("\n\nAdditional context: %s", context)
	}
	return prompt
}
