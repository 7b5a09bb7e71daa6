package repository

import (
	"context"
	"time"

	"pasarlive/internal/domain/entity"
)

// SyncQueueRepository persists offline operations. Every list is ordered by
// creation time ascending.
type SyncQueueRepository interface {
	Create(ctx context.Context, item *entity.SyncQueueItem) error
	Update(ctx context.Context, item *entity.SyncQueueItem) error
	GetByID(ctx context.Context, id string) (*entity.SyncQueueItem, error)

	FindPendingByEntity(ctx context.Context, userID, entityID string, entityType entity.SyncEntityType) ([]*entity.SyncQueueItem, error)
	ListByStatus(ctx context.Context, userID string, status entity.SyncStatus) ([]*entity.SyncQueueItem, error)
	CountByStatus(ctx context.Context, userID string, status entity.SyncStatus) (int64, error)

	// ResetFailed moves the user's failed items back to pending, keeping attempts.
	ResetFailed(ctx context.Context, userID string) (int64, error)
	// RemapPendingEntityID rewrites the entity id of the user's pending items.
	RemapPendingEntityID(ctx context.Context, userID string, entityType entity.SyncEntityType, oldID, newID string) (int64, error)

	// DeleteCompleted removes completed items; a nil olderThan removes all of them.
	DeleteCompleted(ctx context.Context, userID string, olderThan *time.Time) (int64, error)
	// DeleteCompletedBefore removes completed items of every user synced before cutoff.
	DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
