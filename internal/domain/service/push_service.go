package service

import (
	"context"

	"pasarlive/internal/domain/entity"
)

// PushSink hands an event for an offline user to the mobile push transport.
type PushSink interface {
	Notify(ctx context.Context, userID string, payload entity.NotificationPayload) error
}
