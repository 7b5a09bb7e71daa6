package router

import (
	"github.com/labstack/echo/v4"

	"pasarlive/internal/adapter/api/handler"
)

func SetupMessageRouter(v1 *echo.Group, messageHandler *handler.MessageHandler) {
	messageGroup := v1.Group("/messages")
	messageGroup.GET("/conversations/:userId", messageHandler.GetConversation)
	messageGroup.GET("/:id", messageHandler.GetMessage)
}
