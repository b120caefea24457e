package query

import (
	"github.com/Wuchinator/learning-analytics/internal/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter wires the middleware chain, the API routes and /metrics.
func NewRouter(h *Handler, m *metrics.Metrics, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(
		RequestIDMiddleware(),
		RecoveryMiddleware(log),
		LoggingMiddleware(log),
		m.Middleware(),
	)

	router.GET("/metrics", gin.WrapH(m.Handler()))
	h.RegisterRoutes(router)

	return router
}
