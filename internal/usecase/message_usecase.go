package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"pasarlive/internal/domain/entity"
	"pasarlive/internal/domain/repository"
	"pasarlive/pkg/errors"
	"pasarlive/pkg/utils"
)

// MessageUseCase owns the message lifecycle: created, read, archived per side.
type MessageUseCase struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	productRepo repository.ProductRepository
	logger      *zap.Logger
}

func NewMessageUseCase(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	productRepo repository.ProductRepository,
	logger *zap.Logger,
) *MessageUseCase {
	return &MessageUseCase{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		productRepo: productRepo,
		logger:      logger.Named("messages"),
	}
}

type CreateMessageInput struct {
	RecipientID string
	Content     string
	ProductID   string
}

func (uc *MessageUseCase) Create(ctx context.Context, senderID string, input CreateMessageInput) (*entity.Message, error) {
	content := strings.TrimSpace(input.Content)
	if content == "" {
		return nil, errors.Validation("content is required", nil)
	}
	if input.RecipientID == "" {
		return nil, errors.Validation("recipientId is required", nil)
	}
	if senderID == input.RecipientID {
		return nil, errors.Validation("You cannot send a message to yourself", nil)
	}

	if _, err := uc.userRepo.GetByID(ctx, input.RecipientID); err != nil {
		if errors.Is(err, errors.CodeNotFound) {
			return nil, errors.NotFound("Recipient", err)
		}
		return nil, err
	}

	if input.ProductID != "" {
		product, err := uc.productRepo.GetByID(ctx, input.ProductID)
		if err != nil {
			if errors.Is(err, errors.CodeNotFound) {
				return nil, errors.NotFound("Product", err)
			}
			return nil, err
		}
		if product.DeletedAt != nil {
			return nil, errors.NotFound("Product", nil)
		}
	}

	message := &entity.Message{
		SenderID:    senderID,
		RecipientID: input.RecipientID,
		ProductID:   input.ProductID,
		Content:     content,
	}

	if err := uc.messageRepo.Create(ctx, message); err != nil {
		uc.logger.Error("create message failed",
			zap.String("sender_id", senderID),
			zap.String("recipient_id", input.RecipientID),
			zap.Error(err),
		)
		return nil, err
	}

	uc.logger.Debug("message created",
		zap.String("message_id", message.ID),
		zap.String("sender_id", senderID),
	)
	return message, nil
}

// GetByID returns the message only to one of its two participants.
func (uc *MessageUseCase) GetByID(ctx context.Context, messageID, userID string) (*entity.Message, error) {
	return uc.loadForParticipant(ctx, messageID, userID)
}

// MarkRead is a one-way, idempotent transition.
func (uc *MessageUseCase) MarkRead(ctx context.Context, messageID, userID string) (*entity.Message, error) {
	message, err := uc.loadForParticipant(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	if message.Read {
		return message, nil
	}

	message.Read = true
	message.UpdatedAt = time.Now()
	if err := uc.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

func (uc *MessageUseCase) Archive(ctx context.Context, messageID, userID string) (*entity.Message, error) {
	return uc.setArchived(ctx, messageID, userID, true)
}

func (uc *MessageUseCase) Unarchive(ctx context.Context, messageID, userID string) (*entity.Message, error) {
	return uc.setArchived(ctx, messageID, userID, false)
}

func (uc *MessageUseCase) setArchived(ctx context.Context, messageID, userID string, archived bool) (*entity.Message, error) {
	message, err := uc.loadForParticipant(ctx, messageID, userID)
	if err != nil {
		return nil, err
	}
	if message.ArchivedFor(userID) == archived {
		return message, nil
	}

	message.SetArchived(userID, archived)
	message.UpdatedAt = time.Now()
	if err := uc.messageRepo.Update(ctx, message); err != nil {
		return nil, err
	}
	return message, nil
}

// ConversationWith pages through the exchange between two users in reading order.
func (uc *MessageUseCase) ConversationWith(ctx context.Context, userID, otherUserID string, page utils.PaginationParams) ([]*entity.Message, int64, error) {
	if otherUserID == "" {
		return nil, 0, errors.Validation("userId is required", nil)
	}
	return uc.messageRepo.ListConversation(ctx, userID, otherUserID, page.PageSize, page.Offset)
}

func (uc *MessageUseCase) loadForParticipant(ctx context.Context, messageID, userID string) (*entity.Message, error) {
	if messageID == "" {
		return nil, errors.Validation("messageId is required", nil)
	}

	message, err := uc.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	// Non-participants get the same answer as a missing message.
	if !message.IsParticipant(userID) {
		return nil, errors.NotFound("Message", nil)
	}
	return message, nil
}
