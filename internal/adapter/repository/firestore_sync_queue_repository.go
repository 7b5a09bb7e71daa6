package repository

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"pasarlive/internal/domain/entity"
	"pasarlive/internal/domain/repository"
	"pasarlive/pkg/errors"
)

// syncQueueDoc is the stored shape of a queue item; the raw JSON payload is
// kept as a string field.
type syncQueueDoc struct {
	ID         string                `firestore:"id"`
	Seq        int64                 `firestore:"seq"`
	UserID     string                `firestore:"userId"`
	EntityType entity.SyncEntityType `firestore:"entityType"`
	EntityID   string                `firestore:"entityId"`
	Operation  entity.SyncOperation  `firestore:"operation"`
	Data       string                `firestore:"data"`
	Status     entity.SyncStatus     `firestore:"status"`
	Attempts   int                   `firestore:"attempts"`
	LastError  string                `firestore:"lastError"`
	CreatedAt  time.Time             `firestore:"createdAt"`
	UpdatedAt  time.Time             `firestore:"updatedAt"`
	SyncedAt   *time.Time            `firestore:"syncedAt"`
}

func (d *syncQueueDoc) toEntity() *entity.SyncQueueItem {
	return &entity.SyncQueueItem{
		ID:         d.ID,
		UserID:     d.UserID,
		EntityType: d.EntityType,
		EntityID:   d.EntityID,
		Operation:  d.Operation,
		Data:       json.RawMessage(d.Data),
		Status:     d.Status,
		Attempts:   d.Attempts,
		LastError:  d.LastError,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
		SyncedAt:   d.SyncedAt,
	}
}

type firestoreSyncQueueRepository struct {
	client *firestore.Client
}

func NewFirestoreSyncQueueRepository(client *firestore.Client) repository.SyncQueueRepository {
	return &firestoreSyncQueueRepository{
		client: client,
	}
}

func (r *firestoreSyncQueueRepository) collection() *firestore.CollectionRef {
	return r.client.Collection("sync_queue")
}

func (r *firestoreSyncQueueRepository) Create(ctx context.Context, item *entity.SyncQueueItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	doc := syncQueueDoc{
		ID:         item.ID,
		Seq:        now.UnixNano(),
		UserID:     item.UserID,
		EntityType: item.EntityType,
		EntityID:   item.EntityID,
		Operation:  item.Operation,
		Data:       string(item.Data),
		Status:     item.Status,
		Attempts:   item.Attempts,
		LastError:  item.LastError,
		CreatedAt:  item.CreatedAt,
		UpdatedAt:  item.UpdatedAt,
		SyncedAt:   item.SyncedAt,
	}
	if _, err := r.collection().Doc(item.ID).Set(ctx, doc); err != nil {
		return errors.Internal("Failed to queue operation", err)
	}
	return nil
}

func (r *firestoreSyncQueueRepository) Update(ctx context.Context, item *entity.SyncQueueItem) error {
	_, err := r.collection().Doc(item.ID).Update(ctx, []firestore.Update{
		{Path: "entityId", Value: item.EntityID},
		{Path: "data", Value: string(item.Data)},
		{Path: "status", Value: item.Status},
		{Path: "attempts", Value: item.Attempts},
		{Path: "lastError", Value: item.LastError},
		{Path: "updatedAt", Value: item.UpdatedAt},
		{Path: "syncedAt", Value: item.SyncedAt},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Sync operation", err)
		}
		return errors.Internal("Failed to update queued operation", err)
	}
	return nil
}

func (r *firestoreSyncQueueRepository) GetByID(ctx context.Context, id string) (*entity.SyncQueueItem, error) {
	snap, err := r.collection().Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Sync operation", err)
		}
		return nil, errors.Internal("Failed to get queued operation", err)
	}

	var doc syncQueueDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, errors.Internal("Failed to parse queued operation", err)
	}
	return doc.toEntity(), nil
}

func (r *firestoreSyncQueueRepository) FindPendingByEntity(ctx context.Context, userID, entityID string, entityType entity.SyncEntityType) ([]*entity.SyncQueueItem, error) {
	return r.list(ctx, r.collection().
		Where("userId", "==", userID).
		Where("entityId", "==", entityID).
		Where("entityType", "==", entityType).
		Where("status", "==", entity.SyncStatusPending).
		OrderBy("seq", firestore.Asc))
}

func (r *firestoreSyncQueueRepository) ListByStatus(ctx context.Context, userID string, status entity.SyncStatus) ([]*entity.SyncQueueItem, error) {
	return r.list(ctx, r.collection().
		Where("userId", "==", userID).
		Where("status", "==", status).
		OrderBy("seq", firestore.Asc))
}

func (r *firestoreSyncQueueRepository) CountByStatus(ctx context.Context, userID string, status entity.SyncStatus) (int64, error) {
	total, err := count(ctx, r.collection().
		Where("userId", "==", userID).
		Where("status", "==", status))
	if err != nil {
		return 0, errors.Internal("Failed to count queued operations", err)
	}
	return total, nil
}

func (r *firestoreSyncQueueRepository) ResetFailed(ctx context.Context, userID string) (int64, error) {
	query := r.collection().
		Where("userId", "==", userID).
		Where("status", "==", entity.SyncStatusFailed)

	return r.bulkUpdate(ctx, query, []firestore.Update{
		{Path: "status", Value: entity.SyncStatusPending},
		{Path: "updatedAt", Value: time.Now()},
	})
}

func (r *firestoreSyncQueueRepository) RemapPendingEntityID(ctx context.Context, userID string, entityType entity.SyncEntityType, oldID, newID string) (int64, error) {
	query := r.collection().
		Where("userId", "==", userID).
		Where("entityType", "==", entityType).
		Where("entityId", "==", oldID).
		Where("status", "==", entity.SyncStatusPending)

	return r.bulkUpdate(ctx, query, []firestore.Update{
		{Path: "entityId", Value: newID},
		{Path: "updatedAt", Value: time.Now()},
	})
}

func (r *firestoreSyncQueueRepository) DeleteCompleted(ctx context.Context, userID string, olderThan *time.Time) (int64, error) {
	query := r.collection().
		Where("userId", "==", userID).
		Where("status", "==", entity.SyncStatusCompleted)
	if olderThan != nil {
		query = query.Where("syncedAt", "<", *olderThan)
	}
	return r.bulkDelete(ctx, query)
}

func (r *firestoreSyncQueueRepository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.bulkDelete(ctx, r.collection().
		Where("status", "==", entity.SyncStatusCompleted).
		Where("syncedAt", "<", cutoff))
}

func (r *firestoreSyncQueueRepository) list(ctx context.Context, query firestore.Query) ([]*entity.SyncQueueItem, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	var items []*entity.SyncQueueItem
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate queued operations", err)
		}

		var doc syncQueueDoc
		if err := snap.DataTo(&doc); err != nil {
			return nil, errors.Internal("Failed to parse queued operation", err)
		}
		items = append(items, doc.toEntity())
	}
	return items, nil
}

func (r *firestoreSyncQueueRepository) refs(ctx context.Context, query firestore.Query) ([]*firestore.DocumentRef, error) {
	snaps, err := query.Documents(ctx).GetAll()
	if err != nil {
		return nil, err
	}
	refs := make([]*firestore.DocumentRef, 0, len(snaps))
	for _, snap := range snaps {
		refs = append(refs, snap.Ref)
	}
	return refs, nil
}

func (r *firestoreSyncQueueRepository) bulkUpdate(ctx context.Context, query firestore.Query, updates []firestore.Update) (int64, error) {
	refs, err := r.refs(ctx, query)
	if err != nil {
		return 0, errors.Internal("Failed to load queued operations", err)
	}
	if len(refs) == 0 {
		return 0, nil
	}

	writer := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := writer.Update(ref, updates)
		if err != nil {
			writer.End()
			return 0, errors.Internal("Failed to update queued operations", err)
		}
		jobs = append(jobs, job)
	}
	writer.End()

	return countWritten(jobs, "Failed to update queued operations")
}

func (r *firestoreSyncQueueRepository) bulkDelete(ctx context.Context, query firestore.Query) (int64, error) {
	refs, err := r.refs(ctx, query)
	if err != nil {
		return 0, errors.Internal("Failed to load queued operations", err)
	}
	if len(refs) == 0 {
		return 0, nil
	}

	writer := r.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(refs))
	for _, ref := range refs {
		job, err := writer.Delete(ref)
		if err != nil {
			writer.End()
			return 0, errors.Internal("Failed to delete queued operations", err)
		}
		jobs = append(jobs, job)
	}
	writer.End()

	return countWritten(jobs, "Failed to delete queued operations")
}

func countWritten(jobs []*firestore.BulkWriterJob, failure string) (int64, error) {
	var written int64
	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return written, errors.Internal(failure, err)
		}
		written++
	}
	return written, nil
}
