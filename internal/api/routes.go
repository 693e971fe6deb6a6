package api

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/virellia/driftline/internal/api/handlers"
	"github.com/virellia/driftline/internal/middleware"
)

// Dependencies carries the wired handlers into route setup.
type Dependencies struct {
	Health   *handlers.HealthHandler
	Strategy *handlers.StrategyHandler
	Oracle   *handlers.OracleHandler
	Auth     *handlers.AuthHandler
	AuthMW   *middleware.AuthMiddleware
}

// SetupRoutes registers all HTTP routes on the router.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.Use(otelgin.Middleware("driftline"))

	router.GET("/health", deps.Health.Health)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/auth/token", deps.Auth.Token)

		strategyGroup := v1.Group("/strategy")
		{
			strategyGroup.GET("/status", deps.Strategy.Status)
			strategyGroup.POST("/advice/:pair", deps.Strategy.Advice)
		}

		oracleGroup := v1.Group("/oracle")
		{
			oracleGroup.GET("/status", deps.Oracle.Status)
		}

		admin := v1.Group("/admin")
		admin.Use(deps.AuthMW.RequireAuth())
		{
			admin.POST("/oracle/refresh", deps.Oracle.Refresh)
			admin.POST("/oracle/breaker/reset", deps.Oracle.ResetBreaker)
		}
	}
}
