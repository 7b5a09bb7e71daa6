package firebase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"pasarlive/internal/domain/entity"
)

func TestBuildMulticastForMessage(t *testing.T) {
	msg := BuildMulticast([]string{"tok-1", "tok-2"}, entity.NotificationPayload{
		Type: entity.EventMessage,
		Data: &entity.Message{ID: "m-1", SenderID: "alice", ProductID: "p-1", Content: "still available?"},
	})

	assert.Equal(t, []string{"tok-1", "tok-2"}, msg.Tokens)
	assert.Equal(t, "message", msg.Data["type"])
	assert.Equal(t, "m-1", msg.Data["messageId"])
	assert.Equal(t, "alice", msg.Data["senderId"])
	assert.Equal(t, "p-1", msg.Data["productId"])
	assert.Equal(t, "still available?", msg.Notification.Body)
}

func TestBuildMulticastTruncatesPreview(t *testing.T) {
	long := strings.Repeat("a", pushPreviewLength+10)

	msg := BuildMulticast([]string{"tok"}, entity.NotificationPayload{
		Type: entity.EventMessage,
		Data: &entity.Message{ID: "m-1", Content: long},
	})

	assert.Equal(t, pushPreviewLength+1, len([]rune(msg.Notification.Body)))
	assert.NotContains(t, msg.Data, "productId")
}
