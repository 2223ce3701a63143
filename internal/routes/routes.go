package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/querymind/backend/internal/config"
	"github.com/querymind/backend/internal/controllers"
	"github.com/querymind/backend/internal/logger"
	"github.com/querymind/backend/internal/services"
	"github.com/querymind/backend/internal/session"
)

// SetupRoutes configures all application routes
func SetupRoutes(r *gin.Engine, cfg config.Config, sessions *session.Store) {
	// Initialize services
	llmService := services.NewLLMService(cfg.OpenAI)
	prometheusService := services.NewPrometheusService(cfg.Prometheus)
	elasticsearchService, err := services.NewElasticsearchService(cfg.Elasticsearch)
	if err != nil {
		logger.WithError(err, "routes").Error("Elasticsearch client setup failed, search features disabled")
		elasticsearchService, _ = services.NewElasticsearchService(config.ElasticsearchConfig{})
	}
	templateService := services.NewTemplateService()
	metricsCache := services.NewMetricsCache(prometheusService, time.Minute)

	// Initialize controllers
	promqlController := controllers.NewPromQLController(llmService, prometheusService, sessions)
	insightsController := controllers.NewInsightsController(llmService, prometheusService)
	alertsController := controllers.NewAlertsController(llmService)
	diagnosisController := controllers.NewDiagnosisController(llmService, prometheusService)
	elasticsearchController := controllers.NewElasticsearchController(llmService, elasticsearchService)
	templatesController := controllers.NewTemplatesController(templateService)
	autocompleteController := controllers.NewAutocompleteController(metricsCache, prometheusService)
	metricsController := controllers.NewMetricsController(prometheusService)
	healthController := controllers.NewHealthController(prometheusService, elasticsearchService, llmService)

	r.GET("/health", healthController.Check)

	// API routes
	api := r.Group("/api")
	{
		promql := api.Group("/promql")
		{
			promql.POST("", promqlController.Generate)
			promql.POST("/chat", promqlController.Chat)
			promql.GET("/history/:sessionId", promqlController.History)
			promql.DELETE("/history/:sessionId", promqlController.ClearHistory)
			promql.POST("/execute", promqlController.Execute)
		}

		insights := api.Group("/insights")
		{
			insights.POST("", insightsController.Analyze)
			insights.POST("/query", insightsController.AnalyzeQuery)
		}

		alerts := api.Group("/alerts")
		{
			alerts.POST("/generate", alertsController.Generate)
			alerts.GET("/examples", alertsController.Examples)
		}

		diagnosis := api.Group("/diagnosis")
		{
			diagnosis.POST("/quick", diagnosisController.Quick)
			diagnosis.POST("/analyze", diagnosisController.Analyze)
			diagnosis.GET("/common-issues", diagnosisController.CommonIssues)
		}

		elasticsearch := api.Group("/elasticsearch")
		{
			elasticsearch.GET("/indices", elasticsearchController.Indices)
			elasticsearch.GET("/health", elasticsearchController.Health)
			elasticsearch.POST("/nl2query", elasticsearchController.NL2Query)
			elasticsearch.POST("/execute", elasticsearchController.Execute)
			elasticsearch.POST("/search", elasticsearchController.Search)
			elasticsearch.POST("/diagnose", elasticsearchController.Diagnose)
		}

		templates := api.Group("/templates")
		{
			templates.GET("", templatesController.List)
			templates.GET("/categories", templatesController.Categories)
			templates.GET("/:id", templatesController.Get)
			templates.POST("/:id/apply", templatesController.Apply)
		}

		autocomplete := api.Group("/autocomplete")
		{
			autocomplete.GET("/metrics", autocompleteController.Metrics)
			autocomplete.GET("/labels/:metric", autocompleteController.Labels)
			autocomplete.POST("/refresh", autocompleteController.Refresh)
		}

		api.GET("/metrics", metricsController.List)
		api.POST("/query", metricsController.Query)
	}
}
