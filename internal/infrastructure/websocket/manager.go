package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pasarlive/internal/domain/entity"
	"pasarlive/internal/infrastructure/ratelimit"
	"pasarlive/internal/infrastructure/realtime"
	"pasarlive/internal/usecase"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	DefaultSendBuffer = 256
)

// MessageService is the message store as seen by the gateway.
type MessageService interface {
	Create(ctx context.Context, senderID string, input usecase.CreateMessageInput) (*entity.Message, error)
	MarkRead(ctx context.Context, messageID, userID string) (*entity.Message, error)
	Archive(ctx context.Context, messageID, userID string) (*entity.Message, error)
	Unarchive(ctx context.Context, messageID, userID string) (*entity.Message, error)
}

// Client is one live socket. A user may hold several at once.
type Client struct {
	ID     string
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Manager owns the live sockets and implements realtime.Emitter over them.
type Manager struct {
	clients    map[string]*Client
	mutex      sync.RWMutex
	presence   *realtime.PresenceRegistry
	router     *realtime.DeliveryRouter
	messages   MessageService
	limiter    *ratelimit.RateLimiter
	sendBuffer int
	logger     *zap.Logger
}

func NewManager(
	presence *realtime.PresenceRegistry,
	router *realtime.DeliveryRouter,
	messages MessageService,
	limiter *ratelimit.RateLimiter,
	sendBuffer int,
	logger *zap.Logger,
) *Manager {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	m := &Manager{
		clients:    make(map[string]*Client),
		presence:   presence,
		router:     router,
		messages:   messages,
		limiter:    limiter,
		sendBuffer: sendBuffer,
		logger:     logger.Named("gateway"),
	}
	router.SetEmitter(m)
	return m
}

func (m *Manager) NewClient(conn *websocket.Conn, userID string) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, m.sendBuffer),
	}
}

// Register marks the user online and flushes their buffered events into the
// new client's send channel, oldest first. Live emits for the same client wait
// on the manager lock, so they are queued after the backlog.
func (m *Manager) Register(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.clients[client.ID] = client

	var backlog int
	drained := m.router.Attach(client.UserID, client.ID, func(pending []entity.NotificationPayload) int {
		backlog = len(pending)
		for i, payload := range pending {
			if err := m.enqueueLocked(client, payload); err != nil {
				return i
			}
		}
		return len(pending)
	})
	if drained < backlog {
		// Whatever did not fit stays buffered for the next connection.
		m.logger.Warn("backlog did not fit send buffer",
			zap.String("user_id", client.UserID),
			zap.Int("requeued", backlog-drained),
		)
	}

	m.logger.Info("client connected",
		zap.String("user_id", client.UserID),
		zap.String("conn_id", client.ID),
		zap.Int("drained", drained),
	)
}

// Unregister is idempotent; the send channel is closed exactly once.
func (m *Manager) Unregister(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	delete(m.clients, client.ID)
	close(client.Send)

	offline := m.presence.Unregister(client.UserID, client.ID)
	m.logger.Info("client disconnected",
		zap.String("user_id", client.UserID),
		zap.String("conn_id", client.ID),
		zap.Bool("offline", offline),
	)
}

// Emit queues payload on one connection without blocking.
func (m *Manager) Emit(connID string, payload entity.NotificationPayload) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	client, ok := m.clients[connID]
	if !ok {
		return fmt.Errorf("connection %s is closed", connID)
	}
	return m.enqueueLocked(client, payload)
}

func (m *Manager) enqueueLocked(client *Client, payload entity.NotificationPayload) error {
	frame, err := encode(string(payload.Type), payload.Data)
	if err != nil {
		return err
	}
	select {
	case client.Send <- frame:
		return nil
	default:
		return fmt.Errorf("send buffer full for connection %s", client.ID)
	}
}

// reply writes directly to the requesting connection, bypassing the router.
func (m *Manager) reply(client *Client, eventType string, data interface{}) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	if _, ok := m.clients[client.ID]; !ok {
		return
	}
	frame, err := encode(eventType, data)
	if err != nil {
		m.logger.Error("encode reply failed", zap.String("type", eventType), zap.Error(err))
		return
	}
	select {
	case client.Send <- frame:
	default:
		m.logger.Warn("reply dropped, send buffer full", zap.String("conn_id", client.ID), zap.String("type", eventType))
	}
}

func (m *Manager) ConnectionCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

func encode(eventType string, data interface{}) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// ReadPump dispatches inbound frames until the socket fails or closes.
func (m *Manager) ReadPump(ctx context.Context, client *Client) {
	defer func() {
		m.Unregister(client)
		_ = client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Warn("socket read failed", zap.String("conn_id", client.ID), zap.Error(err))
			}
			return
		}
		m.HandleClientMessage(ctx, client, frame)
	}
}

// WritePump drains the send channel and keeps the socket alive with pings.
func (m *Manager) WritePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = client.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				m.logger.Debug("socket write failed", zap.String("conn_id", client.ID), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
