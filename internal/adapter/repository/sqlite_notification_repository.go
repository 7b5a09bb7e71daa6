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

type sqliteNotificationRepository struct {
	db *SQLiteDB
}

func NewSQLiteNotificationRepository(db *SQLiteDB) repository.NotificationRepository {
	return &sqliteNotificationRepository{db: db}
}

const notificationColumns = `id, user_id, title, message, type, data, read, created_at, updated_at`

func (r *sqliteNotificationRepository) Create(ctx context.Context, notification *entity.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.New().String()
	}

	now := time.Now()
	notification.CreatedAt = now
	notification.UpdatedAt = now

	data, err := encodeNotificationData(notification.Data)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		notification.ID, notification.UserID, notification.Title, notification.Message, notification.Type,
		data, notification.Read, toMillis(notification.CreatedAt), toMillis(notification.UpdatedAt))
	if err != nil {
		return errors.Internal("Failed to create notification", err)
	}
	return nil
}

func (r *sqliteNotificationRepository) GetByID(ctx context.Context, id string) (*entity.Notification, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	notification, err := scanNotification(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("Notification", err)
		}
		return nil, errors.Internal("Failed to get notification", err)
	}
	return notification, nil
}

func (r *sqliteNotificationRepository) Update(ctx context.Context, notification *entity.Notification) error {
	data, err := encodeNotificationData(notification.Data)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE notifications SET title = ?, message = ?, type = ?, data = ?, read = ?, updated_at = ?
		WHERE id = ?`,
		notification.Title, notification.Message, notification.Type, data, notification.Read,
		toMillis(notification.UpdatedAt), notification.ID)
	if err != nil {
		return errors.Internal("Failed to update notification", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Notification", nil)
	}
	return nil
}

func (r *sqliteNotificationRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM notifications WHERE id = ?`, id); err != nil {
		return errors.Internal("Failed to delete notification", err)
	}
	return nil
}

func (r *sqliteNotificationRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Notification, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ?`, userID).Scan(&total); err != nil {
		return nil, 0, errors.Internal("Failed to count notifications", err)
	}

	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, 0, errors.Internal("Failed to list notifications", err)
	}
	defer func() { _ = rows.Close() }()

	var notifications []*entity.Notification
	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, 0, errors.Internal("Failed to parse notification data", err)
		}
		notifications = append(notifications, notification)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Internal("Failed to iterate notifications", err)
	}
	return notifications, total, nil
}

func (r *sqliteNotificationRepository) CountUnread(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id = ? AND read = 0`, userID).Scan(&count)
	if err != nil {
		return 0, errors.Internal("Failed to count unread notifications", err)
	}
	return count, nil
}

func encodeNotificationData(data map[string]interface{}) (string, error) {
	if data == nil {
		return "{}", nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return "", errors.BadRequest("Notification data is not serializable", err)
	}
	return string(encoded), nil
}

func scanNotification(row rowScanner) (*entity.Notification, error) {
	var (
		n                  entity.Notification
		data               string
		createdAt, updated int64
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &data, &n.Read, &createdAt, &updated); err != nil {
		return nil, err
	}
	if data != "" && data != "{}" {
		if err := json.Unmarshal([]byte(data), &n.Data); err != nil {
			return nil, err
		}
	}
	n.CreatedAt = fromMillis(createdAt)
	n.UpdatedAt = fromMillis(updated)
	return &n, nil
}
