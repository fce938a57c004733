package router

import (
	"net/http"

	"projectlink/backend/internal/api"
	"projectlink/backend/internal/auth"
	"projectlink/backend/internal/ws"
	"projectlink/backend/pkg/config"
	"projectlink/backend/pkg/errors"
	"projectlink/backend/pkg/logger"
	"projectlink/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// New builds the gin engine with the full middleware chain and routes
func New(handler *api.Handler, hub *ws.Hub, authenticator *auth.Authenticator, log *logger.Logger) *gin.Engine {
	cfg := config.Get()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	r.Use(middleware.RequestIDMiddleware())
	r.Use(logger.Middleware(log))
	r.Use(errors.RecoveryWithLogger())
	r.Use(errors.ErrorHandler())

	limiterOpts := middleware.DefaultRateLimiterOptions()
	limiterOpts.Limit = rate.Limit(cfg.Security.RateLimit)
	limiterOpts.Burst = cfg.Security.RateLimitBurst
	limiter := middleware.NewRateLimiter(log, limiterOpts)

	// Operational endpoints
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Live connection endpoint; credential comes from the query string
	// because browsers cannot set websocket headers.
	r.GET("/ws/chats/:id", func(c *gin.Context) {
		ws.ServeWs(hub, authenticator, c)
	})

	// Query surface for the CRUD layer
	apiGroup := r.Group("/api")
	apiGroup.Use(limiter.Middleware())
	apiGroup.Use(api.AuthMiddleware(authenticator))
	{
		apiGroup.GET("/unread", handler.GetUnread)
		apiGroup.GET("/unread/count", handler.GetUnreadCount)

		apiGroup.POST("/chats", handler.CreateChat)
		apiGroup.GET("/chats", handler.ListChats)
		apiGroup.POST("/chats/:id/participants", handler.AddParticipant)
		apiGroup.GET("/chats/:id/messages", handler.ListMessages)
		apiGroup.POST("/chats/:id/read", handler.MarkRead)

		// Scheduling trigger and administrative cleanup
		apiGroup.POST("/internal/drain", handler.TriggerDrain)
		apiGroup.DELETE("/internal/chats/:id/staged", handler.EvictChat)
	}

	return r
}
