package services

import (
	"fmt"
	"strings"
)

// TemplateVariable is a substitutable parameter of a query template.
type TemplateVariable struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Default     string   `json:"default"`
	Options     []string `json:"options,omitempty"`
}

// QueryTemplate is a predefined PromQL query with optional variables.
type QueryTemplate struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
	Category    string             `json:"category"`
	PromQL      string             `json:"promql"`
	Variables   []TemplateVariable `json:"variables,omitempty"`
}

// TemplateService serves the static query-template catalog.
type TemplateService struct {
	templates []QueryTemplate
}

func NewTemplateService() *TemplateService {
	return &TemplateService{templates: defaultTemplates}
}

// All returns every template, optionally filtered by category.
func (t *TemplateService) All(category string) []QueryTemplate {
	if category == "" {
		return t.templates
	}
	var filtered []QueryTemplate
	for _, tpl := range t.templates {
		if tpl.Category == category {
			filtered = append(filtered, tpl)
		}
	}
	return filtered
}

// ByID returns the template with the given id, or false if absent.
func (t *TemplateService) ByID(id string) (QueryTemplate, bool) {
	for _, tpl := range t.templates {
		if tpl.ID == id {
			return tpl, true
		}
	}
	return QueryTemplate{}, false
}

// Categories returns the distinct category ids in catalog order.
func (t *TemplateService) Categories() []string {
	seen := make(map[string]bool)
	var categories []string
	for _, tpl := range t.templates {
		if !seen[tpl.Category] {
			seen[tpl.Category] = true
			categories = append(categories, tpl.Category)
		}
	}
	return categories
}

// Apply substitutes {{var}} placeholders in the template's PromQL with the
// given values, falling back to each variable's default.
func (t *TemplateService) Apply(id string, values map[string]string) (QueryTemplate, bool) {
	tpl, ok := t.ByID(id)
	if !ok {
		return QueryTemplate{}, false
	}

	promql := tpl.PromQL
	for _, v := range tpl.Variables {
		value := values[v.Name]
		if value == "" {
			value = v.Default
		}
		promql = strings.ReplaceAll(promql, fmt.Sprintf("{{%s}}", v.Name), value)
	}
	tpl.PromQL = promql
	return tpl, true
}

var defaultTemplates = []QueryTemplate{
	{
		ID:          "cpu-usage-by-node",
		Name:        "CPU usage by node",
		Description: "CPU utilization percentage per node",
		Category:    "cpu",
		PromQL:      `100 - (avg by (instance) (rate(node_cpu_seconds_total{mode="idle"}[5m])) * 100)`,
	},
	{
		ID:          "cpu-usage-by-pod",
		Name:        "CPU usage by pod",
		Description: "CPU usage per pod",
		Category:    "cpu",
		PromQL:      `sum by (pod) (rate(container_cpu_usage_seconds_total{container!=""}[5m]))`,
	},
	{
		ID:          "cpu-high-usage",
		Name:        "Nodes above CPU threshold",
		Description: "Nodes whose CPU usage exceeds a threshold",
		Category:    "cpu",
		PromQL:      `100 - (avg by (instance) (rate(node_cpu_seconds_total{mode="idle"}[5m])) * 100) > {{threshold}}`,
		Variables: []TemplateVariable{
			{Name: "threshold", Description: "CPU usage threshold (%)", Default: "80"},
		},
	},
	{
		ID:          "memory-usage-by-node",
		Name:        "Memory usage by node",
		Description: "Memory utilization percentage per node",
		Category:    "memory",
		PromQL:      `(1 - (node_memory_MemAvailable_bytes / node_memory_MemTotal_bytes)) * 100`,
	},
	{
		ID:          "memory-usage-by-pod",
		Name:        "Memory usage by pod",
		Description: "Memory usage per pod in MB",
		Category:    "memory",
		PromQL:      `sum by (pod) (container_memory_usage_bytes{container!=""}) / 1024 / 1024`,
	},
	{
		ID:          "http-request-rate",
		Name:        "HTTP request rate",
		Description: "Requests per second over the selected window",
		Category:    "http",
		PromQL:      `sum(rate(http_requests_total[{{window}}]))`,
		Variables: []TemplateVariable{
			{Name: "window", Description: "Rate window", Default: "5m", Options: []string{"1m", "5m", "15m", "1h"}},
		},
	},
	{
		ID:          "http-error-rate",
		Name:        "HTTP 5xx error rate",
		Description: "Share of requests answered with a 5xx status",
		Category:    "http",
		PromQL:      `sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m]))`,
	},
	{
		ID:          "http-latency-p99",
		Name:        "HTTP latency P99",
		Description: "99th percentile of request duration",
		Category:    "http",
		PromQL:      `histogram_quantile(0.99, sum(rate(http_request_duration_seconds_bucket[5m])) by (le))`,
	},
	{
		ID:          "network-receive-by-node",
		Name:        "Network receive by node",
		Description: "Inbound network throughput per node",
		Category:    "network",
		PromQL:      `sum by (instance) (rate(node_network_receive_bytes_total[5m]))`,
	},
	{
		ID:          "disk-usage-by-node",
		Name:        "Disk usage by node",
		Description: "Filesystem utilization percentage per node",
		Category:    "disk",
		PromQL:      `(1 - (node_filesystem_avail_bytes{fstype!~"tmpfs|overlay"} / node_filesystem_size_bytes{fstype!~"tmpfs|overlay"})) * 100`,
	},
	{
		ID:          "pod-restarts",
		Name:        "Pod restarts",
		Description: "Container restarts over the last hour",
		Category:    "kubernetes",
		PromQL:      `increase(kube_pod_container_status_restarts_total[1h]) > 0`,
	},
	{
		ID:          "pods-not-running",
		Name:        "Pods not running",
		Description: "Pods in a phase other than Running",
		Category:    "kubernetes",
		PromQL:      `kube_pod_status_phase{phase!="Running"} > 0`,
	},
	{
		ID:          "targets-down",
		Name:        "Targets down",
		Description: "Scrape targets currently unreachable",
		Category:    "general",
		PromQL:      `up == 0`,
	},
}

// CategoryName maps a category id to its display name.
func CategoryName(category string) string {
	names := map[string]string{
		"cpu":        "CPU",
		"memory":     "Memory",
		"network":    "Network",
		"http":       "HTTP",
		"kubernetes": "Kubernetes",
		"disk":       "Disk",
		"general":    "General",
	}
	if name, ok := names[category]; ok {
		return name
	}
	return category
}
