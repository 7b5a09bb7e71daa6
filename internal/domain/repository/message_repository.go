package repository

import (
	"context"

	"pasarlive/internal/domain/entity"
)

type MessageRepository interface {
	Create(ctx context.Context, message *entity.Message) error
	GetByID(ctx context.Context, id string) (*entity.Message, error)
	Update(ctx context.Context, message *entity.Message) error

	// ListConversation returns the messages exchanged between userID and
	// otherUserID, oldest first, hiding the ones userID has archived.
	ListConversation(ctx context.Context, userID, otherUserID string, limit, offset int) ([]*entity.Message, int64, error)
}
