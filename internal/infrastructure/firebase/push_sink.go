package firebase

import (
	"context"
	"fmt"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"

	"pasarlive/internal/domain/entity"
	"pasarlive/internal/domain/repository"
)

const pushPreviewLength = 120

// MessagingPushSink sends FCM notifications to a user's registered devices
// when a message reaches them while offline.
type MessagingPushSink struct {
	client   *messaging.Client
	userRepo repository.UserRepository
	logger   *zap.Logger
}

func NewMessagingPushSink(client *messaging.Client, userRepo repository.UserRepository, logger *zap.Logger) *MessagingPushSink {
	return &MessagingPushSink{
		client:   client,
		userRepo: userRepo,
		logger:   logger.Named("push"),
	}
}

func (s *MessagingPushSink) Notify(ctx context.Context, userID string, payload entity.NotificationPayload) error {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if len(user.PushTokens) == 0 {
		return nil
	}

	msg := BuildMulticast(user.PushTokens, payload)
	resp, err := s.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}

	if resp.FailureCount > 0 {
		s.logger.Warn("push partially failed",
			zap.String("user_id", userID),
			zap.Int("success", resp.SuccessCount),
			zap.Int("failure", resp.FailureCount),
		)
	}
	return nil
}

// BuildMulticast maps a live event to an FCM multicast message.
func BuildMulticast(tokens []string, payload entity.NotificationPayload) *messaging.MulticastMessage {
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Data: map[string]string{
			"type": string(payload.Type),
		},
		Notification: &messaging.Notification{
			Title: "New message",
		},
	}

	if message, ok := payload.Data.(*entity.Message); ok {
		msg.Data["messageId"] = message.ID
		msg.Data["senderId"] = message.SenderID
		if message.ProductID != "" {
			msg.Data["productId"] = message.ProductID
		}
		msg.Notification.Body = preview(message.Content)
	}
	return msg
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= pushPreviewLength {
		return content
	}
	return string(runes[:pushPreviewLength]) + "…"
}
