package repository

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"pasarlive/internal/domain/entity"
	"pasarlive/internal/domain/repository"
	"pasarlive/pkg/errors"
)

type sqliteMessageRepository struct {
	db *SQLiteDB
}

func NewSQLiteMessageRepository(db *SQLiteDB) repository.MessageRepository {
	return &sqliteMessageRepository{db: db}
}

const messageColumns = `id, sender_id, recipient_id, product_id, content, read,
	archived_by_sender, archived_by_recipient, created_at, updated_at`

func (r *sqliteMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	now := time.Now()
	message.CreatedAt = now
	message.UpdatedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO messages (`+messageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		message.ID, message.SenderID, message.RecipientID, message.ProductID, message.Content,
		message.Read, message.ArchivedBySender, message.ArchivedByRecipient,
		toMillis(message.CreatedAt), toMillis(message.UpdatedAt))
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}
	return nil
}

func (r *sqliteMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, id)
	message, err := scanMessage(row)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}
	return message, nil
}

func (r *sqliteMessageRepository) Update(ctx context.Context, message *entity.Message) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE messages
		SET content = ?, read = ?, archived_by_sender = ?, archived_by_recipient = ?, updated_at = ?
		WHERE id = ?`,
		message.Content, message.Read, message.ArchivedBySender, message.ArchivedByRecipient,
		toMillis(message.UpdatedAt), message.ID)
	if err != nil {
		return errors.Internal("Failed to update message", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NotFound("Message", nil)
	}
	return nil
}

func (r *sqliteMessageRepository) ListConversation(ctx context.Context, userID, otherUserID string, limit, offset int) ([]*entity.Message, int64, error) {
	// A message is hidden from whichever side archived it.
	const where = `
		WHERE ((sender_id = ?1 AND recipient_id = ?2 AND archived_by_sender = 0)
		    OR (sender_id = ?2 AND recipient_id = ?1 AND archived_by_recipient = 0))`

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages`+where, userID, otherUserID).Scan(&total); err != nil {
		return nil, 0, errors.Internal("Failed to count messages", err)
	}

	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+messageColumns+` FROM messages`+where+` ORDER BY created_at ASC, rowid ASC LIMIT ?3 OFFSET ?4`,
		userID, otherUserID, limit, offset)
	if err != nil {
		return nil, 0, errors.Internal("Failed to list messages", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*entity.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, 0, errors.Internal("Failed to parse message data", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Internal("Failed to iterate messages", err)
	}
	return messages, total, nil
}

func scanMessage(row rowScanner) (*entity.Message, error) {
	var (
		m                  entity.Message
		createdAt, updated int64
	)
	err := row.Scan(&m.ID, &m.SenderID, &m.RecipientID, &m.ProductID, &m.Content, &m.Read,
		&m.ArchivedBySender, &m.ArchivedByRecipient, &createdAt, &updated)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = fromMillis(createdAt)
	m.UpdatedAt = fromMillis(updated)
	return &m, nil
}
