package usecase

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"pasarlive/internal/domain/entity"
	"pasarlive/internal/domain/repository"
	"pasarlive/pkg/errors"
)

const DefaultMaxSyncAttempts = 3

// Deliverer routes a live event to a user, buffering it when they are offline.
type Deliverer interface {
	Deliver(userID string, payload entity.NotificationPayload)
}

// SyncUseCase is the durable offline operation queue. Items move from
// pending to completed or failed; failed items stay put until retried.
type SyncUseCase struct {
	queueRepo     repository.SyncQueueRepository
	messages      *MessageUseCase
	notifications *NotificationUseCase
	deliverer     Deliverer
	maxAttempts   int
	locks         *keyedMutex
	logger        *zap.Logger
}

func NewSyncUseCase(
	queueRepo repository.SyncQueueRepository,
	messages *MessageUseCase,
	notifications *NotificationUseCase,
	deliverer Deliverer,
	maxAttempts int,
	logger *zap.Logger,
) *SyncUseCase {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxSyncAttempts
	}
	return &SyncUseCase{
		queueRepo:     queueRepo,
		messages:      messages,
		notifications: notifications,
		deliverer:     deliverer,
		maxAttempts:   maxAttempts,
		locks:         newKeyedMutex(),
		logger:        logger.Named("sync"),
	}
}

type EnqueueInput struct {
	EntityType entity.SyncEntityType
	EntityID   string
	Operation  entity.SyncOperation
	Data       json.RawMessage
}

type ProcessResult struct {
	Processed int `json:"processed"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Enqueue records a client-originated operation. A second update on the same
// entity is coalesced into the pending one instead of adding a row.
func (uc *SyncUseCase) Enqueue(ctx context.Context, userID string, input EnqueueInput) (*entity.SyncQueueItem, error) {
	if isEmptyData(input.Data) {
		return nil, errors.Validation("data is required", nil)
	}
	if !input.EntityType.Valid() {
		return nil, errors.Validation("entityType must be one of: message notification", nil)
	}
	if !input.Operation.Valid() {
		return nil, errors.Validation("operation must be one of: create update delete", nil)
	}
	if input.EntityID == "" {
		return nil, errors.Validation("entityId is required", nil)
	}

	unlock := uc.locks.Lock(userID)
	defer unlock()

	pending, err := uc.queueRepo.FindPendingByEntity(ctx, userID, input.EntityID, input.EntityType)
	if err != nil {
		return nil, err
	}

	if len(pending) > 0 {
		latest := pending[len(pending)-1]
		transition := DecideTransition(latest.Operation, input.Operation)

		uc.logger.Debug("pending operation found",
			zap.String("user_id", userID),
			zap.String("entity_id", input.EntityID),
			zap.String("existing_op", string(latest.Operation)),
			zap.String("incoming_op", string(input.Operation)),
			zap.Stringer("action", transition.Action),
		)

		switch transition.Action {
		case TransitionReject:
			return nil, errors.Conflict(transition.Reason)
		case TransitionMerge:
			return uc.coalesce(ctx, latest, input.Data)
		}
	}

	if _, err := DecodePayload(input.EntityType, input.Operation, input.Data); err != nil {
		return nil, err
	}

	item := &entity.SyncQueueItem{
		UserID:     userID,
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Operation:  input.Operation,
		Data:       input.Data,
		Status:     entity.SyncStatusPending,
		Attempts:   0,
	}
	if err := uc.queueRepo.Create(ctx, item); err != nil {
		return nil, err
	}

	uc.logger.Info("operation queued",
		zap.String("item_id", item.ID),
		zap.String("user_id", userID),
		zap.String("entity_type", string(item.EntityType)),
		zap.String("operation", string(item.Operation)),
	)
	return item, nil
}

func (uc *SyncUseCase) coalesce(ctx context.Context, existing *entity.SyncQueueItem, incoming json.RawMessage) (*entity.SyncQueueItem, error) {
	merged, err := mergeData(existing.Data, incoming)
	if err != nil {
		return nil, err
	}
	if _, err := DecodePayload(existing.EntityType, existing.Operation, merged); err != nil {
		return nil, err
	}

	existing.Data = merged
	existing.UpdatedAt = time.Now()
	if err := uc.queueRepo.Update(ctx, existing); err != nil {
		return nil, err
	}

	uc.logger.Debug("update coalesced",
		zap.String("item_id", existing.ID),
		zap.String("entity_id", existing.EntityID),
	)
	return existing, nil
}

// ProcessQueue replays the user's pending items oldest first. A failing item
// does not stop the ones behind it.
func (uc *SyncUseCase) ProcessQueue(ctx context.Context, userID string) (*ProcessResult, error) {
	unlock := uc.locks.Lock(userID)
	defer unlock()

	return uc.processQueue(ctx, userID)
}

func (uc *SyncUseCase) processQueue(ctx context.Context, userID string) (*ProcessResult, error) {
	items, err := uc.queueRepo.ListByStatus(ctx, userID, entity.SyncStatusPending)
	if err != nil {
		return nil, err
	}

	result := &ProcessResult{}
	for _, listed := range items {
		// Reload: an earlier create in this pass may have remapped the entity id.
		item, err := uc.queueRepo.GetByID(ctx, listed.ID)
		if err != nil {
			uc.logger.Warn("reload queued item failed", zap.String("item_id", listed.ID), zap.Error(err))
			item = listed
		}
		if item.Status != entity.SyncStatusPending {
			continue
		}

		result.Processed++
		if err := uc.processItem(ctx, item); err != nil {
			result.Failed++
			continue
		}
		result.Completed++
	}

	if result.Processed > 0 {
		uc.logger.Info("queue processed",
			zap.String("user_id", userID),
			zap.Int("processed", result.Processed),
			zap.Int("completed", result.Completed),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}

// ProcessItem replays a single item under its owner's lock. The stored copy
// is replayed, and only while it is still pending.
func (uc *SyncUseCase) ProcessItem(ctx context.Context, item *entity.SyncQueueItem) error {
	unlock := uc.locks.Lock(item.UserID)
	defer unlock()

	current, err := uc.queueRepo.GetByID(ctx, item.ID)
	if err != nil {
		return err
	}
	if current.Status != entity.SyncStatusPending {
		uc.logger.Debug("item no longer pending, skipped",
			zap.String("item_id", current.ID),
			zap.String("status", string(current.Status)),
		)
		*item = *current
		return nil
	}

	err = uc.processItem(ctx, current)
	*item = *current
	return err
}

func (uc *SyncUseCase) processItem(ctx context.Context, item *entity.SyncQueueItem) error {
	if !item.EntityType.Valid() || !item.Operation.Valid() {
		return uc.markFailed(ctx, item, errors.Validation("unsupported entity type or operation", nil))
	}

	// The attempt is recorded before replay so a crash mid-replay still counts.
	item.Attempts++
	item.UpdatedAt = time.Now()
	if err := uc.queueRepo.Update(ctx, item); err != nil {
		uc.logger.Error("persist attempt failed", zap.String("item_id", item.ID), zap.Error(err))
		return err
	}

	payload, err := DecodePayload(item.EntityType, item.Operation, item.Data)
	if err != nil {
		return uc.markFailed(ctx, item, err)
	}

	if err := uc.replay(ctx, item, payload); err != nil {
		return uc.markFailed(ctx, item, err)
	}

	now := time.Now()
	item.Status = entity.SyncStatusCompleted
	item.LastError = ""
	item.SyncedAt = &now
	item.UpdatedAt = now
	if err := uc.queueRepo.Update(ctx, item); err != nil {
		uc.logger.Error("persist completion failed", zap.String("item_id", item.ID), zap.Error(err))
		return err
	}

	uc.logger.Info("operation synced",
		zap.String("item_id", item.ID),
		zap.String("entity_id", item.EntityID),
		zap.String("operation", string(item.Operation)),
		zap.Int("attempts", item.Attempts),
	)
	return nil
}

func (uc *SyncUseCase) replay(ctx context.Context, item *entity.SyncQueueItem, payload SyncPayload) error {
	switch p := payload.(type) {
	case *MessageCreatePayload:
		return uc.replayMessageCreate(ctx, item, p)

	case *MessageUpdatePayload:
		if len(p.Unreplayed) > 0 {
			uc.logger.Debug("message fields not replayed",
				zap.String("item_id", item.ID),
				zap.Strings("fields", p.Unreplayed),
			)
		}
		if p.Read == nil || !*p.Read {
			return nil
		}
		message, err := uc.messages.MarkRead(ctx, item.EntityID, item.UserID)
		if err != nil {
			return err
		}
		uc.deliver(message.Counterpart(item.UserID), entity.EventRead, message)
		return nil

	case *MessageDeletePayload:
		message, err := uc.messages.Archive(ctx, item.EntityID, item.UserID)
		if err != nil {
			return err
		}
		uc.deliver(message.Counterpart(item.UserID), entity.EventArchive, message)
		return nil

	case *NotificationCreatePayload:
		_, err := uc.notifications.Create(ctx, item.UserID, CreateNotificationInput{
			Title:   p.Title,
			Message: p.Message,
			Type:    p.Type,
			Data:    p.Data,
		})
		return err

	case *NotificationUpdatePayload:
		if p.Read == nil || !*p.Read {
			return nil
		}
		_, err := uc.notifications.MarkAsRead(ctx, item.EntityID, item.UserID)
		return err

	case *NotificationDeletePayload:
		return uc.notifications.Delete(ctx, item.EntityID, item.UserID)
	}

	return errors.Validation("unsupported entity type or operation", nil)
}

// replayMessageCreate swaps the client placeholder id for the stored id, on
// this item and on any pending item of the same user still using it.
func (uc *SyncUseCase) replayMessageCreate(ctx context.Context, item *entity.SyncQueueItem, p *MessageCreatePayload) error {
	message, err := uc.messages.Create(ctx, item.UserID, CreateMessageInput{
		RecipientID: p.RecipientID,
		Content:     p.Content,
		ProductID:   p.ProductID,
	})
	if err != nil {
		return err
	}

	// From here the message exists, so nothing below may fail the item and
	// cause a second create on retry. Completion persists the new id too.
	placeholder := item.EntityID
	item.EntityID = message.ID
	item.UpdatedAt = time.Now()
	if err := uc.queueRepo.Update(ctx, item); err != nil {
		uc.logger.Warn("persist server id failed",
			zap.String("item_id", item.ID),
			zap.String("message_id", message.ID),
			zap.Error(err),
		)
	}

	if placeholder != "" && placeholder != message.ID {
		remapped, err := uc.queueRepo.RemapPendingEntityID(ctx, item.UserID, entity.SyncEntityMessage, placeholder, message.ID)
		if err != nil {
			uc.logger.Warn("remap placeholder failed",
				zap.String("placeholder", placeholder),
				zap.String("message_id", message.ID),
				zap.Error(err),
			)
		} else if remapped > 0 {
			uc.logger.Debug("placeholder remapped",
				zap.String("placeholder", placeholder),
				zap.String("message_id", message.ID),
				zap.Int64("items", remapped),
			)
		}
	}

	uc.deliver(message.RecipientID, entity.EventMessage, message)
	return nil
}

func (uc *SyncUseCase) markFailed(ctx context.Context, item *entity.SyncQueueItem, cause error) error {
	item.Status = entity.SyncStatusFailed
	item.LastError = cause.Error()
	item.UpdatedAt = time.Now()

	if err := uc.queueRepo.Update(ctx, item); err != nil {
		uc.logger.Error("persist failure state failed", zap.String("item_id", item.ID), zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("item_id", item.ID),
		zap.String("user_id", item.UserID),
		zap.String("operation", string(item.Operation)),
		zap.Int("attempts", item.Attempts),
		zap.Error(cause),
	}
	if item.Attempts >= uc.maxAttempts {
		uc.logger.Error("operation failed permanently", fields...)
	} else {
		uc.logger.Warn("operation failed", fields...)
	}

	return errors.Processing("Failed to sync operation", cause)
}

func (uc *SyncUseCase) deliver(userID string, eventType entity.EventType, data interface{}) {
	if uc.deliverer == nil || userID == "" {
		return
	}
	uc.deliverer.Deliver(userID, entity.NotificationPayload{Type: eventType, Data: data})
}

// RetryFailedOperations puts failed items back to pending without resetting
// their attempt counters, then processes the queue.
func (uc *SyncUseCase) RetryFailedOperations(ctx context.Context, userID string) (*ProcessResult, error) {
	unlock := uc.locks.Lock(userID)
	defer unlock()

	reset, err := uc.queueRepo.ResetFailed(ctx, userID)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("failed operations reset", zap.String("user_id", userID), zap.Int64("items", reset))

	return uc.processQueue(ctx, userID)
}

func (uc *SyncUseCase) ClearCompletedOperations(ctx context.Context, userID string, olderThan *time.Time) (int64, error) {
	unlock := uc.locks.Lock(userID)
	defer unlock()

	return uc.queueRepo.DeleteCompleted(ctx, userID, olderThan)
}

func (uc *SyncUseCase) GetPendingOperationsCount(ctx context.Context, userID string) (int64, error) {
	return uc.queueRepo.CountByStatus(ctx, userID, entity.SyncStatusPending)
}

func (uc *SyncUseCase) GetFailedOperationsCount(ctx context.Context, userID string) (int64, error) {
	return uc.queueRepo.CountByStatus(ctx, userID, entity.SyncStatusFailed)
}

func (uc *SyncUseCase) GetCompletedOperationsCount(ctx context.Context, userID string) (int64, error) {
	return uc.queueRepo.CountByStatus(ctx, userID, entity.SyncStatusCompleted)
}

func (uc *SyncUseCase) GetStatus(ctx context.Context, userID string) (*entity.SyncStatusCounts, error) {
	pending, err := uc.GetPendingOperationsCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	failed, err := uc.GetFailedOperationsCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	completed, err := uc.GetCompletedOperationsCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &entity.SyncStatusCounts{Pending: pending, Failed: failed, Completed: completed}, nil
}

func (uc *SyncUseCase) ListOperations(ctx context.Context, userID string, status entity.SyncStatus) ([]*entity.SyncQueueItem, error) {
	if !status.Valid() {
		return nil, errors.Validation("status must be one of: pending failed completed", nil)
	}
	return uc.queueRepo.ListByStatus(ctx, userID, status)
}

// StartHousekeeping deletes completed items older than retention on every
// tick until ctx is cancelled.
func (uc *SyncUseCase) StartHousekeeping(ctx context.Context, interval, retention time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)
				deleted, err := uc.queueRepo.DeleteCompletedBefore(ctx, cutoff)
				if err != nil {
					uc.logger.Warn("housekeeping failed", zap.Error(err))
					continue
				}
				if deleted > 0 {
					uc.logger.Info("completed operations purged", zap.Int64("items", deleted), zap.Time("cutoff", cutoff))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
