package config

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"

	"github.com/querymind/backend/internal/logger"
)

// Config holds all environment-driven settings. It is read once at process
// start; there is no hot reload.
type Config struct {
	Port string

	OpenAI        OpenAIConfig
	Prometheus    PrometheusConfig
	Elasticsearch ElasticsearchConfig
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type PrometheusConfig struct {
	URL string
	// Headers is the raw PROMETHEUS_HEADERS JSON, if set. It takes
	// precedence over basic auth.
	Headers  map[string]string
	Username string
	Password string
}

type ElasticsearchConfig struct {
	URL      string
	Username string
	Password string
	APIKey   string
}

// Load reads configuration from the environment, applying defaults.
func Load() Config {
	return Config{
		Port: envStr("PORT", "3001"),
		OpenAI: OpenAIConfig{
			APIKey:  envStr("OPENAI_API_KEY", ""),
			Model:   envStr("OPENAI_MODEL", "gpt-4"),
			BaseURL: envStr("OPENAI_BASE_URL", ""),
		},
		Prometheus: PrometheusConfig{
			URL:      envStr("PROMETHEUS_URL", "http://localhost:9090"),
			Headers:  parseHeaders(os.Getenv("PROMETHEUS_HEADERS")),
			Username: envStr("PROMETHEUS_USERNAME", ""),
			Password: envStr("PROMETHEUS_PASSWORD", ""),
		},
		Elasticsearch: ElasticsearchConfig{
			URL:      envStr("ELASTICSEARCH_URL", ""),
			Username: envStr("ELASTICSEARCH_USERNAME", ""),
			Password: envStr("ELASTICSEARCH_PASSWORD", ""),
			APIKey:   envStr("ELASTICSEARCH_API_KEY", ""),
		},
	}
}

// Validate logs warnings for missing optional settings. Nothing here is
// fatal: the server can start without an LLM key or Elasticsearch, the
// affected features just report themselves as unconfigured.
func (c Config) Validate() {
	if c.OpenAI.APIKey == "" {
		logger.Warn("OPENAI_API_KEY not set, AI features will be unavailable", nil)
	}
	if c.Elasticsearch.URL != "" {
		logger.Info("Elasticsearch configured", map[string]interface{}{
			"url": c.Elasticsearch.URL,
		})
	}
}

// AuthHeaders resolves the outbound headers for Prometheus requests.
// Precedence: explicit PROMETHEUS_HEADERS, then basic auth, then none.
func (p PrometheusConfig) AuthHeaders() map[string]string {
	if len(p.Headers) > 0 {
		return p.Headers
	}
	if p.Username != "" && p.Password != "" {
		token := base64.StdEncoding.EncodeToString([]byte(p.Username + ":" + p.Password))
		return map[string]string{"Authorization": fmt.Sprintf("Basic %s", token)}
	}
	return nil
}

// Enabled reports whether Elasticsearch support is configured at all.
func (e ElasticsearchConfig) Enabled() bool {
	return e.URL != ""
}

func parseHeaders(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		logger.Warn("PROMETHEUS_HEADERS is not valid JSON, ignoring", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return headers
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
