package repository

import (
	"context"
	"sort"
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

type firestoreMessageRepository struct {
	client *firestore.Client
}

func NewFirestoreMessageRepository(client *firestore.Client) repository.MessageRepository {
	return &firestoreMessageRepository{
		client: client,
	}
}

func (r *firestoreMessageRepository) Create(ctx context.Context, message *entity.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}

	now := time.Now()
	message.CreatedAt = now
	message.UpdatedAt = now

	_, err := r.client.Collection("messages").Doc(message.ID).Set(ctx, message)
	if err != nil {
		return errors.Internal("Failed to create message", err)
	}

	return nil
}

func (r *firestoreMessageRepository) GetByID(ctx context.Context, id string) (*entity.Message, error) {
	doc, err := r.client.Collection("messages").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Message", err)
		}
		return nil, errors.Internal("Failed to get message", err)
	}

	var message entity.Message
	if err := doc.DataTo(&message); err != nil {
		return nil, errors.Internal("Failed to parse message data", err)
	}
	return &message, nil
}

func (r *firestoreMessageRepository) Update(ctx context.Context, message *entity.Message) error {
	_, err := r.client.Collection("messages").Doc(message.ID).Update(ctx, []firestore.Update{
		{Path: "read", Value: message.Read},
		{Path: "archivedBySender", Value: message.ArchivedBySender},
		{Path: "archivedByRecipient", Value: message.ArchivedByRecipient},
		{Path: "updatedAt", Value: message.UpdatedAt},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Message", err)
		}
		return errors.Internal("Failed to update message", err)
	}
	return nil
}

// ListConversation runs one query per direction and merges the results, which
// avoids a composite OR index.
func (r *firestoreMessageRepository) ListConversation(ctx context.Context, userID, otherUserID string, limit, offset int) ([]*entity.Message, int64, error) {
	sent, err := r.listDirection(ctx, userID, otherUserID, "archivedBySender")
	if err != nil {
		return nil, 0, err
	}
	received, err := r.listDirection(ctx, otherUserID, userID, "archivedByRecipient")
	if err != nil {
		return nil, 0, err
	}

	messages := append(sent, received...)
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	total := int64(len(messages))
	if offset >= len(messages) {
		return []*entity.Message{}, total, nil
	}
	end := len(messages)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return messages[offset:end], total, nil
}

func (r *firestoreMessageRepository) listDirection(ctx context.Context, senderID, recipientID, archivedField string) ([]*entity.Message, error) {
	iter := r.client.Collection("messages").
		Where("senderId", "==", senderID).
		Where("recipientId", "==", recipientID).
		Where(archivedField, "==", false).
		Documents(ctx)
	defer iter.Stop()

	var messages []*entity.Message
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Internal("Failed to iterate messages", err)
		}

		var message entity.Message
		if err := doc.DataTo(&message); err != nil {
			return nil, errors.Internal("Failed to parse message data", err)
		}
		messages = append(messages, &message)
	}
	return messages, nil
}
