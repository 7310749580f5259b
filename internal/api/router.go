// Package api exposes the chat operations over HTTP.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PbVrCt/serverless-chat-demo/internal/identity"
	"github.com/PbVrCt/serverless-chat-demo/internal/logger"
	"github.com/PbVrCt/serverless-chat-demo/internal/metrics"
)

// NewRouter builds the HTTP handler. Every /api request runs under
// requestTimeout and requires a bearer token accepted by resolver. Request
// metrics are recorded in m and served on /metrics.
func NewRouter(
	chat ChatService,
	resolver identity.Resolver,
	health Pinger,
	m *metrics.Metrics,
	requestTimeout time.Duration,
	log *slog.Logger,
) *gin.Engine {
	router := gin.New()
	// Metrics first so panics recovered below are still counted as 500s.
	router.Use(recordMetrics(m), gin.Recovery(), logger.Middleware(log.With("component", "http")))

	h := &handlers{chat: chat, health: health}
	router.GET("/healthz", h.healthz)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	group := router.Group("/api", withTimeout(requestTimeout), RequireIdentity(resolver))
	{
		group.GET("/messages", h.listMessages)
		group.POST("/messages", h.sendMessage)
		group.DELETE("/messages", h.clearAll)
		group.POST("/messages/ai", h.requestAIReply)
	}

	return router
}

func withTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
