package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pasarlive/internal/adapter/api"
	"pasarlive/internal/adapter/api/handler"
	"pasarlive/internal/adapter/api/middleware"
	"pasarlive/internal/adapter/repository"
	"pasarlive/internal/domain/entity"
	"pasarlive/internal/infrastructure/ratelimit"
	"pasarlive/internal/infrastructure/realtime"
	ws "pasarlive/internal/infrastructure/websocket"
	"pasarlive/internal/usecase"
	"pasarlive/pkg/errors"
	"pasarlive/pkg/response"
)

// tokenVerifier accepts "token-<uid>".
type tokenVerifier struct{}

func (tokenVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	uid, ok := strings.CutPrefix(token, "token-")
	if !ok {
		return "", errors.Unauthorized("bad token", nil)
	}
	return uid, nil
}

type staticUsers map[string]bool

func (u staticUsers) GetByID(_ context.Context, id string) (*entity.User, error) {
	if !u[id] {
		return nil, errors.NotFound("User", nil)
	}
	return &entity.User{ID: id, Username: id}, nil
}

type noProducts struct{}

func (noProducts) GetByID(context.Context, string) (*entity.Product, error) {
	return nil, errors.NotFound("Product", nil)
}

type stack struct {
	server   *httptest.Server
	presence *realtime.PresenceRegistry
	buffer   *realtime.NotificationBuffer
}

func newStack(t *testing.T) *stack {
	t.Helper()

	db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Migrate()
	require.NoError(t, err)

	logger := zap.NewNop()
	users := staticUsers{"alice": true, "bob": true}

	presence := realtime.NewPresenceRegistry()
	buffer := realtime.NewNotificationBuffer()
	deliveryRouter := realtime.NewDeliveryRouter(presence, buffer, logger)
	limiter := ratelimit.NewRateLimiter(nil)

	messages := usecase.NewMessageUseCase(repository.NewSQLiteMessageRepository(db), users, noProducts{}, logger)
	notifications := usecase.NewNotificationUseCase(repository.NewSQLiteNotificationRepository(db), logger)
	syncUseCase := usecase.NewSyncUseCase(repository.NewSQLiteSyncQueueRepository(db), messages, notifications, deliveryRouter, 3, logger)
	manager := ws.NewManager(presence, deliveryRouter, messages, limiter, 0, logger)
	authMiddleware := middleware.NewAuthMiddleware(tokenVerifier{})

	e := echo.New()
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = func(err error, c echo.Context) { _ = response.Error(c, err) }

	Setup(e, Handlers{
		Sync:         handler.NewSyncHandler(syncUseCase),
		Message:      handler.NewMessageHandler(messages),
		Notification: handler.NewNotificationHandler(notifications),
		WebSocket:    handler.NewWebSocketHandler(manager, authMiddleware, logger),
		Health:       handler.NewHealthHandler(presence, buffer, manager),
	}, authMiddleware, limiter)

	server := httptest.NewServer(e)
	t.Cleanup(server.Close)

	return &stack{server: server, presence: presence, buffer: buffer}
}

func (s *stack) do(t *testing.T, method, path, uid, body string) (int, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if uid != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer token-"+uid)
	}

	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&decoded))
	return res.StatusCode, decoded
}

func (s *stack) dial(t *testing.T, uid string) *gorillaws.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=token-" + uid
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(t, func() bool { return s.presence.IsOnline(uid) }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *gorillaws.Conn) ws.WSMessage {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame ws.WSMessage
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func send(t *testing.T, conn *gorillaws.Conn, eventType string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": eventType, "data": data}))
}

func errorCode(body map[string]interface{}) string {
	info, _ := body["error"].(map[string]interface{})
	code, _ := info["code"].(string)
	return code
}

func TestAPIRequiresBearerToken(t *testing.T) {
	s := newStack(t)

	status, body := s.do(t, http.MethodGet, "/v1/sync/status", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, errors.CodeUnauthorized, errorCode(body))

	status, _ = s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestEnqueueOperationValidation(t *testing.T) {
	s := newStack(t)

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"unknown entity type", `{"entityType":"order","entityId":"m1","operation":"create","data":{"content":"hi","recipientId":"bob"}}`, errors.CodeValidation},
		{"unknown operation", `{"entityType":"message","entityId":"m1","operation":"upsert","data":{}}`, errors.CodeValidation},
		{"missing data", `{"entityType":"message","entityId":"m1","operation":"create"}`, errors.CodeValidation},
		{"malformed body", `{"entityType":`, errors.CodeBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := s.do(t, http.MethodPost, "/v1/sync/operations", "alice", tt.body)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, tt.wantCode, errorCode(body))
		})
	}
}

func TestSecondCreateReturnsConflict(t *testing.T) {
	s := newStack(t)
	body := `{"entityType":"message","entityId":"local-1","operation":"create","data":{"content":"hi","recipientId":"bob"}}`

	status, _ := s.do(t, http.MethodPost, "/v1/sync/operations", "alice", body)
	require.Equal(t, http.StatusCreated, status)

	status, resp := s.do(t, http.MethodPost, "/v1/sync/operations", "alice", body)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, errors.CodeConflict, errorCode(resp))
}

func TestOfflineRecipientReceivesBufferedMessageOnConnect(t *testing.T) {
	s := newStack(t)

	status, _ := s.do(t, http.MethodPost, "/v1/sync/operations", "alice",
		`{"entityType":"message","entityId":"local-1","operation":"create","data":{"content":"still there?","recipientId":"bob"}}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := s.do(t, http.MethodPost, "/v1/sync/process", "alice", "")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["result"].(map[string]interface{})["completed"])
	assert.Equal(t, float64(1), data["status"].(map[string]interface{})["completed"])

	require.Equal(t, 1, s.buffer.Len("bob"))

	bob := s.dial(t, "bob")
	frame := readFrame(t, bob)
	assert.Equal(t, string(entity.EventMessage), frame.Type)
	assert.Equal(t, "still there?", frame.Data.(map[string]interface{})["content"])
	assert.Zero(t, s.buffer.Len("bob"))

	status, body = s.do(t, http.MethodGet, "/v1/messages/conversations/alice", "bob", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["data"].(map[string]interface{})["total"])
}

func TestLiveMessagingOverWebSocket(t *testing.T) {
	s := newStack(t)
	bob := s.dial(t, "bob")

	// Typing to an offline user is dropped, not buffered.
	send(t, bob, ws.MessageTypeTyping, ws.TypingData{RecipientID: "alice", Typing: true})
	send(t, bob, ws.MessageTypePing, nil)
	assert.Equal(t, ws.MessageTypePong, readFrame(t, bob).Type)
	assert.Zero(t, s.buffer.Len("alice"))

	alice := s.dial(t, "alice")

	send(t, bob, ws.MessageTypeMessage, ws.SendMessageData{RecipientID: "alice", Content: "  hello  ", TempID: "tmp-1"})

	ack := readFrame(t, bob)
	require.Equal(t, ws.MessageTypeMessageSent, ack.Type)
	ackData := ack.Data.(map[string]interface{})
	assert.Equal(t, "tmp-1", ackData["tempId"])
	messageID := ackData["message"].(map[string]interface{})["id"].(string)
	require.NotEmpty(t, messageID)

	live := readFrame(t, alice)
	assert.Equal(t, string(entity.EventMessage), live.Type)
	assert.Equal(t, "hello", live.Data.(map[string]interface{})["content"])

	send(t, alice, ws.MessageTypeRead, ws.MessageRefData{MessageID: messageID})
	read := readFrame(t, bob)
	assert.Equal(t, string(entity.EventRead), read.Type)
	assert.Equal(t, true, read.Data.(map[string]interface{})["read"])

	send(t, bob, ws.MessageTypeTyping, ws.TypingData{RecipientID: "alice", Typing: true})
	typing := readFrame(t, alice)
	assert.Equal(t, string(entity.EventTyping), typing.Type)
	assert.Equal(t, map[string]interface{}{"user_id": "bob", "typing": true}, typing.Data)

	// alice is the recipient, so only her side is archived.
	send(t, alice, ws.MessageTypeArchive, ws.MessageRefData{MessageID: messageID})
	archived := readFrame(t, bob)
	assert.Equal(t, string(entity.EventArchive), archived.Type)
	archivedData := archived.Data.(map[string]interface{})
	assert.Equal(t, true, archivedData["archived_by_recipient"])
	assert.Equal(t, false, archivedData["archived_by_sender"])

	send(t, alice, ws.MessageTypeUnarchive, ws.MessageRefData{MessageID: messageID})
	unarchived := readFrame(t, bob)
	assert.Equal(t, string(entity.EventUnarchive), unarchived.Type)
	unarchivedData := unarchived.Data.(map[string]interface{})
	assert.Equal(t, false, unarchivedData["archived_by_recipient"])
	assert.Equal(t, false, unarchivedData["archived_by_sender"])

	send(t, bob, ws.MessageTypeArchive, ws.MessageRefData{MessageID: messageID})
	senderArchived := readFrame(t, alice)
	assert.Equal(t, string(entity.EventArchive), senderArchived.Type)
	senderData := senderArchived.Data.(map[string]interface{})
	assert.Equal(t, true, senderData["archived_by_sender"])
	assert.Equal(t, false, senderData["archived_by_recipient"])

	status, body := s.do(t, http.MethodGet, "/v1/messages/"+messageID, "alice", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "hello", body["data"].(map[string]interface{})["content"])

	status, body = s.do(t, http.MethodGet, "/v1/messages/"+messageID, "carol", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, errors.CodeNotFound, errorCode(body))
}

func TestNotificationListCarriesUnreadCount(t *testing.T) {
	s := newStack(t)

	status, _ := s.do(t, http.MethodPost, "/v1/sync/operations", "alice",
		`{"entityType":"notification","entityId":"local-n1","operation":"create","data":{"title":"Order shipped","message":"On its way"}}`)
	require.Equal(t, http.StatusCreated, status)
	status, _ = s.do(t, http.MethodPost, "/v1/sync/process", "alice", "")
	require.Equal(t, http.StatusOK, status)

	status, body := s.do(t, http.MethodGet, "/v1/notifications", "alice", "")
	require.Equal(t, http.StatusOK, status)
	data := body["data"].(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(1), data["unread"])
	items := data["items"].([]interface{})
	require.Len(t, items, 1)
	id := items[0].(map[string]interface{})["id"].(string)

	status, _ = s.do(t, http.MethodPut, "/v1/notifications/"+id+"/read", "alice", "")
	require.Equal(t, http.StatusOK, status)

	_, body = s.do(t, http.MethodGet, "/v1/notifications", "alice", "")
	assert.Equal(t, float64(0), body["data"].(map[string]interface{})["unread"])
}

func TestWebSocketRejectsInvalidToken(t *testing.T) {
	s := newStack(t)

	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=nope"
	_, res, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

func TestWebSocketRejectsSelfMessage(t *testing.T) {
	s := newStack(t)
	alice := s.dial(t, "alice")

	send(t, alice, ws.MessageTypeMessage, ws.SendMessageData{RecipientID: "alice", Content: "me"})
	frame := readFrame(t, alice)
	assert.Equal(t, ws.MessageTypeError, frame.Type)
	assert.Equal(t, errors.CodeValidation, frame.Data.(map[string]interface{})["code"])
}
