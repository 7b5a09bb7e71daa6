package router

import (
	"github.com/labstack/echo/v4"

	"pasarlive/internal/adapter/api/handler"
)

func SetupNotificationRouter(v1 *echo.Group, notificationHandler *handler.NotificationHandler) {
	notificationGroup := v1.Group("/notifications")
	notificationGroup.GET("", notificationHandler.List)
	notificationGroup.PUT("/:id/read", notificationHandler.MarkAsRead)
	notificationGroup.DELETE("/:id", notificationHandler.Delete)
}
