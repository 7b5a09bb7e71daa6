package router

import (
	"github.com/labstack/echo/v4"

	"pasarlive/internal/adapter/api/handler"
	"pasarlive/internal/adapter/api/middleware"
	"pasarlive/internal/infrastructure/ratelimit"
)

type Handlers struct {
	Sync         *handler.SyncHandler
	Message      *handler.MessageHandler
	Notification *handler.NotificationHandler
	WebSocket    *handler.WebSocketHandler
	Health       *handler.HealthHandler
}

func Setup(e *echo.Echo, h Handlers, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	v1 := e.Group("/v1")
	v1.Use(authMiddleware.Authenticate)
	v1.Use(middleware.RateLimit(limiter))

	SetupSyncRouter(v1, h.Sync)
	SetupMessageRouter(v1, h.Message)
	SetupNotificationRouter(v1, h.Notification)
	SetupWebSocketRouter(e, h.WebSocket)
	SetupHealthRouter(e, h.Health)
}
