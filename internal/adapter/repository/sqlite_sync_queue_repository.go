package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"pasarlive/internal/domain/entity"
	"pasarlive/internal/domain/repository"
	"pasarlive/pkg/errors"
)

type sqliteSyncQueueRepository struct {
	db *SQLiteDB
}

func NewSQLiteSyncQueueRepository(db *SQLiteDB) repository.SyncQueueRepository {
	return &sqliteSyncQueueRepository{db: db}
}

const syncQueueColumns = `id, user_id, entity_type, entity_id, operation, data, status,
	attempts, last_error, created_at, updated_at, synced_at`

func (r *sqliteSyncQueueRepository) Create(ctx context.Context, item *entity.SyncQueueItem) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	now := time.Now()
	item.CreatedAt = now
	item.UpdatedAt = now

	// seq keeps FIFO order stable when two items share a millisecond.
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_queue (seq, `+syncQueueColumns+`)
		VALUES ((SELECT COALESCE(MAX(seq), 0) + 1 FROM sync_queue), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.UserID, item.EntityType, item.EntityID, item.Operation, string(item.Data), item.Status,
		item.Attempts, item.LastError, toMillis(item.CreatedAt), toMillis(item.UpdatedAt), nullableMillis(item.SyncedAt))
	if err != nil {
		return errors.Internal("Failed to queue operation", err)
	}
	return nil
}

func (r *sqliteSyncQueueRepository) Update(ctx context.Context, item *entity.SyncQueueItem) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET entity_id = ?, data = ?, status = ?, attempts = ?, last_error = ?, updated_at = ?, synced_at = ?
		WHERE id = ?`,
		item.EntityID, string(item.Data), item.Status, item.Attempts, item.LastError,
		toMillis(item.UpdatedAt), nullableMillis(item.SyncedAt), item.ID)
	if err != nil {
		return errors.Internal("Failed to update queued operation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Sync operation", nil)
	}
	return nil
}

func (r *sqliteSyncQueueRepository) GetByID(ctx context.Context, id string) (*entity.SyncQueueItem, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+syncQueueColumns+` FROM sync_queue WHERE id = ?`, id)
	item, err := scanSyncQueueItem(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("Sync operation", err)
		}
		return nil, errors.Internal("Failed to get queued operation", err)
	}
	return item, nil
}

func (r *sqliteSyncQueueRepository) FindPendingByEntity(ctx context.Context, userID, entityID string, entityType entity.SyncEntityType) ([]*entity.SyncQueueItem, error) {
	return r.query(ctx, `
		SELECT `+syncQueueColumns+` FROM sync_queue
		WHERE user_id = ? AND entity_id = ? AND entity_type = ? AND status = 'pending'
		ORDER BY seq ASC`,
		userID, entityID, entityType)
}

func (r *sqliteSyncQueueRepository) ListByStatus(ctx context.Context, userID string, status entity.SyncStatus) ([]*entity.SyncQueueItem, error) {
	return r.query(ctx, `
		SELECT `+syncQueueColumns+` FROM sync_queue
		WHERE user_id = ? AND status = ?
		ORDER BY seq ASC`,
		userID, status)
}

func (r *sqliteSyncQueueRepository) CountByStatus(ctx context.Context, userID string, status entity.SyncStatus) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue WHERE user_id = ? AND status = ?`, userID, status).Scan(&count)
	if err != nil {
		return 0, errors.Internal("Failed to count queued operations", err)
	}
	return count, nil
}

func (r *sqliteSyncQueueRepository) ResetFailed(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, "Failed to reset failed operations", `
		UPDATE sync_queue SET status = 'pending', updated_at = ?
		WHERE user_id = ? AND status = 'failed'`,
		toMillis(time.Now()), userID)
}

func (r *sqliteSyncQueueRepository) RemapPendingEntityID(ctx context.Context, userID string, entityType entity.SyncEntityType, oldID, newID string) (int64, error) {
	return r.exec(ctx, "Failed to remap queued operations", `
		UPDATE sync_queue SET entity_id = ?, updated_at = ?
		WHERE user_id = ? AND entity_type = ? AND entity_id = ? AND status = 'pending'`,
		newID, toMillis(time.Now()), userID, entityType, oldID)
}

func (r *sqliteSyncQueueRepository) DeleteCompleted(ctx context.Context, userID string, olderThan *time.Time) (int64, error) {
	if olderThan == nil {
		return r.exec(ctx, "Failed to clear completed operations",
			`DELETE FROM sync_queue WHERE user_id = ? AND status = 'completed'`, userID)
	}
	return r.exec(ctx, "Failed to clear completed operations",
		`DELETE FROM sync_queue WHERE user_id = ? AND status = 'completed' AND synced_at < ?`,
		userID, toMillis(*olderThan))
}

func (r *sqliteSyncQueueRepository) DeleteCompletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.exec(ctx, "Failed to purge completed operations",
		`DELETE FROM sync_queue WHERE status = 'completed' AND synced_at < ?`, toMillis(cutoff))
}

func (r *sqliteSyncQueueRepository) query(ctx context.Context, query string, args ...any) ([]*entity.SyncQueueItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Internal("Failed to list queued operations", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*entity.SyncQueueItem
	for rows.Next() {
		item, err := scanSyncQueueItem(rows)
		if err != nil {
			return nil, errors.Internal("Failed to parse queued operation", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("Failed to iterate queued operations", err)
	}
	return items, nil
}

func (r *sqliteSyncQueueRepository) exec(ctx context.Context, failure, query string, args ...any) (int64, error) {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, errors.Internal(failure, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Internal(failure, err)
	}
	return n, nil
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func scanSyncQueueItem(row rowScanner) (*entity.SyncQueueItem, error) {
	var (
		item               entity.SyncQueueItem
		data               string
		createdAt, updated int64
		syncedAt           sql.NullInt64
	)
	err := row.Scan(&item.ID, &item.UserID, &item.EntityType, &item.EntityID, &item.Operation, &data,
		&item.Status, &item.Attempts, &item.LastError, &createdAt, &updated, &syncedAt)
	if err != nil {
		return nil, err
	}
	item.Data = json.RawMessage(data)
	item.CreatedAt = fromMillis(createdAt)
	item.UpdatedAt = fromMillis(updated)
	if syncedAt.Valid {
		t := fromMillis(syncedAt.Int64)
		item.SyncedAt = &t
	}
	return &item, nil
}
