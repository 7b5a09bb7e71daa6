package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"pasarlive/internal/domain/entity"
	"pasarlive/internal/domain/repository"
	"pasarlive/pkg/errors"
)

type NotificationUseCase struct {
	notificationRepo repository.NotificationRepository
	logger           *zap.Logger
}

func NewNotificationUseCase(notificationRepo repository.NotificationRepository, logger *zap.Logger) *NotificationUseCase {
	return &NotificationUseCase{
		notificationRepo: notificationRepo,
		logger:           logger.Named("notifications"),
	}
}

type CreateNotificationInput struct {
	Title   string
	Message string
	Type    string
	Data    map[string]interface{}
}

func (uc *NotificationUseCase) Create(ctx context.Context, userID string, input CreateNotificationInput) (*entity.Notification, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, errors.Validation("title is required", nil)
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, errors.Validation("message is required", nil)
	}

	notificationType := input.Type
	if notificationType == "" {
		notificationType = "general"
	}

	notification := &entity.Notification{
		UserID:  userID,
		Title:   input.Title,
		Message: input.Message,
		Type:    notificationType,
		Data:    input.Data,
	}
	if err := uc.notificationRepo.Create(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

func (uc *NotificationUseCase) MarkAsRead(ctx context.Context, notificationID, userID string) (*entity.Notification, error) {
	notification, err := uc.loadOwned(ctx, notificationID, userID)
	if err != nil {
		return nil, err
	}
	if notification.Read {
		return notification, nil
	}

	notification.Read = true
	notification.UpdatedAt = time.Now()
	if err := uc.notificationRepo.Update(ctx, notification); err != nil {
		return nil, err
	}
	return notification, nil
}

func (uc *NotificationUseCase) Delete(ctx context.Context, notificationID, userID string) error {
	if _, err := uc.loadOwned(ctx, notificationID, userID); err != nil {
		return err
	}
	if err := uc.notificationRepo.Delete(ctx, notificationID); err != nil {
		return err
	}
	uc.logger.Debug("notification deleted", zap.String("notification_id", notificationID))
	return nil
}

func (uc *NotificationUseCase) List(ctx context.Context, userID string, limit, offset int) ([]*entity.Notification, int64, error) {
	return uc.notificationRepo.ListByUserID(ctx, userID, limit, offset)
}

func (uc *NotificationUseCase) CountUnread(ctx context.Context, userID string) (int64, error) {
	return uc.notificationRepo.CountUnread(ctx, userID)
}

func (uc *NotificationUseCase) loadOwned(ctx context.Context, notificationID, userID string) (*entity.Notification, error) {
	notification, err := uc.notificationRepo.GetByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if notification.UserID != userID {
		return nil, errors.NotFound("Notification", nil)
	}
	return notification, nil
}
