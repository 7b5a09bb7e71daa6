package websocket

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"pasarlive/internal/domain/entity"
	"pasarlive/internal/infrastructure/ratelimit"
	"pasarlive/internal/usecase"
	"pasarlive/pkg/errors"
)

// Inbound event names.
const (
	MessageTypePing      = "ping"
	MessageTypeMessage   = "message"
	MessageTypeTyping    = "typing"
	MessageTypeRead      = "read"
	MessageTypeArchive   = "archiveMessage"
	MessageTypeUnarchive = "unarchiveMessage"
)

// Replies sent only to the requesting connection.
const (
	MessageTypePong        = "pong"
	MessageTypeMessageSent = "messageSent"
	MessageTypeError       = "error"
)

type WSMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type SendMessageData struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
	ProductID   string `json:"productId,omitempty"`
	TempID      string `json:"tempId,omitempty"`
}

type TypingData struct {
	RecipientID string `json:"recipientId"`
	Typing      bool   `json:"typing"`
}

type MessageRefData struct {
	MessageID string `json:"messageId"`
}

type MessageSentData struct {
	TempID  string          `json:"tempId,omitempty"`
	Message *entity.Message `json:"message"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HandleClientMessage dispatches one inbound frame.
func (m *Manager) HandleClientMessage(ctx context.Context, client *Client, frame []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		m.sendError(client, errors.BadRequest("Invalid message format", err))
		return
	}

	switch msg.Type {
	case MessageTypePing:
		m.reply(client, MessageTypePong, map[string]string{"status": "alive"})

	case MessageTypeMessage:
		m.handleSendMessage(ctx, client, msg.Data)

	case MessageTypeTyping:
		m.handleTyping(client, msg.Data)

	case MessageTypeRead:
		m.handleMessageState(ctx, client, msg.Data, entity.EventRead, m.messages.MarkRead)

	case MessageTypeArchive:
		m.handleMessageState(ctx, client, msg.Data, entity.EventArchive, m.messages.Archive)

	case MessageTypeUnarchive:
		m.handleMessageState(ctx, client, msg.Data, entity.EventUnarchive, m.messages.Unarchive)

	default:
		m.logger.Debug("unknown event", zap.String("type", msg.Type), zap.String("conn_id", client.ID))
		m.sendError(client, errors.BadRequest("Unknown message type", nil))
	}
}

func (m *Manager) handleSendMessage(ctx context.Context, client *Client, raw json.RawMessage) {
	if !m.allow(client, ratelimit.ActionMessage) {
		return
	}

	var data SendMessageData
	if err := json.Unmarshal(raw, &data); err != nil {
		m.sendError(client, errors.BadRequest("Invalid message data", err))
		return
	}

	message, err := m.messages.Create(ctx, client.UserID, usecase.CreateMessageInput{
		RecipientID: data.RecipientID,
		Content:     data.Content,
		ProductID:   data.ProductID,
	})
	if err != nil {
		m.sendError(client, err)
		return
	}

	m.router.Deliver(message.RecipientID, entity.NotificationPayload{Type: entity.EventMessage, Data: message})
	m.reply(client, MessageTypeMessageSent, MessageSentData{TempID: data.TempID, Message: message})
}

func (m *Manager) handleTyping(client *Client, raw json.RawMessage) {
	if !m.allow(client, ratelimit.ActionTyping) {
		return
	}

	var data TypingData
	if err := json.Unmarshal(raw, &data); err != nil || data.RecipientID == "" {
		m.sendError(client, errors.BadRequest("Invalid typing data", err))
		return
	}

	m.router.DeliverIfOnline(data.RecipientID, entity.NotificationPayload{
		Type: entity.EventTyping,
		Data: entity.TypingEvent{UserID: client.UserID, Typing: data.Typing},
	})
}

type messageTransition func(ctx context.Context, messageID, userID string) (*entity.Message, error)

// handleMessageState applies a read or archive change, then tells the other side.
func (m *Manager) handleMessageState(ctx context.Context, client *Client, raw json.RawMessage, event entity.EventType, apply messageTransition) {
	var data MessageRefData
	if err := json.Unmarshal(raw, &data); err != nil || data.MessageID == "" {
		m.sendError(client, errors.BadRequest("messageId is required", err))
		return
	}

	message, err := apply(ctx, data.MessageID, client.UserID)
	if err != nil {
		m.sendError(client, err)
		return
	}

	m.router.Deliver(message.Counterpart(client.UserID), entity.NotificationPayload{Type: event, Data: message})
}

func (m *Manager) allow(client *Client, action string) bool {
	if m.limiter == nil {
		return true
	}
	ok, wait := m.limiter.Allow(client.UserID, action)
	if !ok {
		m.sendError(client, errors.TooManyRequests("Rate limit exceeded, retry in "+wait.Round(time.Second).String()))
	}
	return ok
}

func (m *Manager) sendError(client *Client, err error) {
	code := errors.Code(err)
	message := "Internal server error"
	if appErr, ok := err.(*errors.AppError); ok {
		message = appErr.Message
	}
	if code == errors.CodeInternal {
		m.logger.Error("event failed", zap.String("conn_id", client.ID), zap.Error(err))
	}
	m.reply(client, MessageTypeError, ErrorData{Code: code, Message: message})
}
