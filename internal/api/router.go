// Package api assembles the HTTP surface of the sales service.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/marcelogudines/sales/internal/api/handlers"
	"github.com/marcelogudines/sales/internal/application"
	"github.com/marcelogudines/sales/pkg/contracts/openapi"
	"github.com/marcelogudines/sales/pkg/idempotency"
	"github.com/marcelogudines/sales/pkg/logging"
	"github.com/marcelogudines/sales/pkg/metrics"
	"github.com/marcelogudines/sales/pkg/middleware"
)

// RouterConfig holds what the router needs
type RouterConfig struct {
	ServiceName string
	Service     *application.SaleService
	Logger      *logging.Logger
	// Metrics may be nil; /metrics is then not served
	Metrics *metrics.Metrics
	// OpenAPI may be nil to skip contract validation
	OpenAPI *openapi.Validator
	// Idempotency may be nil to ignore Idempotency-Key headers
	Idempotency *idempotency.Config
	// Ready reports readiness; nil means always ready
	Ready func() error
}

// NewRouter builds the gin engine with middleware, probes and sale routes
func NewRouter(config RouterConfig) *gin.Engine {
	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(config.ServiceName, config.Logger))
	router.Use(middleware.TracingMiddleware(middleware.DefaultTracingConfig(config.ServiceName)))
	router.Use(middleware.MetricsMiddleware(config.Metrics))

	ready := config.Ready
	if ready == nil {
		ready = func() error { return nil }
	}
	router.GET("/health", middleware.HealthCheck(config.ServiceName))
	router.GET("/ready", middleware.ReadinessCheck(config.ServiceName, ready))
	if config.Metrics != nil {
		router.GET("/metrics", middleware.MetricsEndpoint(config.Metrics))
	}

	v1 := router.Group("/api/v1")
	if config.OpenAPI != nil {
		v1.Use(middleware.OpenAPIValidation(config.OpenAPI))
	}
	if config.Idempotency != nil {
		v1.Use(idempotency.Middleware(config.Idempotency))
	}
	handlers.NewSaleHandler(config.Service, config.Logger).RegisterRoutes(v1)

	return router
}
