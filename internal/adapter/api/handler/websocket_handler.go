package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"pasarlive/internal/adapter/api/middleware"
	ws "pasarlive/internal/infrastructure/websocket"
	"pasarlive/pkg/response"
)

type WebSocketHandler struct {
	wsManager      *ws.Manager
	authMiddleware *middleware.AuthMiddleware
	upgrader       gorillaws.Upgrader
	logger         *zap.Logger
}

func NewWebSocketHandler(wsManager *ws.Manager, authMiddleware *middleware.AuthMiddleware, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		wsManager:      wsManager,
		authMiddleware: authMiddleware,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is not checked; the token authenticates the socket.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.Named("ws"),
	}
}

// HandleWebSocket authenticates before upgrading. The token comes from
// ?token= because browsers cannot set headers on a socket handshake; a
// bearer header is accepted too.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")
	if token == "" {
		var err error
		if token, err = middleware.BearerToken(c); err != nil {
			return response.Error(c, err)
		}
	}

	userID, err := h.authMiddleware.VerifyToken(c, token)
	if err != nil {
		return response.Error(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		h.logger.Debug("upgrade failed", zap.String("user_id", userID), zap.Error(err))
		return nil
	}

	client := h.wsManager.NewClient(conn, userID)
	h.wsManager.Register(client)

	go h.wsManager.WritePump(client)
	// Blocks until the socket closes; the request context lives as long.
	h.wsManager.ReadPump(c.Request().Context(), client)
	return nil
}
