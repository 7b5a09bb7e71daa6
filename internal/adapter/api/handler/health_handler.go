package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"pasarlive/internal/infrastructure/realtime"
	ws "pasarlive/internal/infrastructure/websocket"
)

type HealthHandler struct {
	presence  *realtime.PresenceRegistry
	buffer    *realtime.NotificationBuffer
	wsManager *ws.Manager
}

func NewHealthHandler(presence *realtime.PresenceRegistry, buffer *realtime.NotificationBuffer, wsManager *ws.Manager) *HealthHandler {
	return &HealthHandler{
		presence:  presence,
		buffer:    buffer,
		wsManager: wsManager,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":          "Server is running",
		"time":            time.Now().Format(time.RFC3339),
		"online_users":    h.presence.OnlineUsers(),
		"connections":     h.wsManager.ConnectionCount(),
		"buffered_events": h.buffer.Size(),
	})
}
