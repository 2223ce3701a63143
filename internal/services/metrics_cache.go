package services

import (
	"context"
	"strings"
	"sync"
	"time"
)

// commonMetricPrefixes are offered when an autocomplete request carries no
// prefix at all.
var commonMetricPrefixes = []string{
	"node_", "container_", "kube_", "http_", "go_",
	"process_", "prometheus_", "up",
}

// MetricsCache is a short-lived cache over the Prometheus metric-name list,
// used by the autocomplete endpoints to avoid hammering the upstream on
// every keystroke.
type MetricsCache struct {
	prometheus *PrometheusService
	ttl        time.Duration
	now        func() time.Time

	mu        sync.Mutex
	metrics   []string
	fetchedAt time.Time
}

func NewMetricsCache(prometheus *PrometheusService, ttl time.Duration) *MetricsCache {
	if ttl == 0 {
		ttl = time.Minute
	}
	return &MetricsCache{
		prometheus: prometheus,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Metrics returns the cached metric names, refreshing from Prometheus when
// the cache is empty or stale.
func (c *MetricsCache) Metrics(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.metrics) == 0 || c.now().Sub(c.fetchedAt) > c.ttl {
		metrics, err := c.prometheus.Metrics(ctx)
		if err != nil {
			return nil, err
		}
		c.metrics = metrics
		c.fetchedAt = c.now()
	}
	return c.metrics, nil
}

// Refresh forces a reload and returns the new metric count.
func (c *MetricsCache) Refresh(ctx context.Context) (int, error) {
	metrics, err := c.prometheus.Metrics(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = metrics
	c.fetchedAt = c.now()
	return len(metrics), nil
}

// Filter returns up to limit metric names matching the prefix
// (case-insensitive substring). Without a prefix it falls back to metrics
// with well-known prefixes.
func (c *MetricsCache) Filter(ctx context.Context, prefix string, limit int) ([]string, error) {
	all, err := c.Metrics(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	var filtered []string
	if prefix != "" {
		needle := strings.ToLower(prefix)
		for _, m := range all {
			if strings.Contains(strings.ToLower(m), needle) {
				filtered = append(filtered, m)
				if len(filtered) == limit {
					break
				}
			}
		}
	} else {
		for _, m := range all {
			for _, p := range commonMetricPrefixes {
				if strings.HasPrefix(m, p) {
					filtered = append(filtered, m)
					break
				}
			}
			if len(filtered) == limit {
				break
			}
		}
	}
	return filtered, nil
}
