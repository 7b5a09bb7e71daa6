package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"pasarlive/internal/domain/entity"
	"pasarlive/pkg/errors"
	"pasarlive/pkg/utils"
)

func newMessageUseCase() (*MessageUseCase, *fakeMessageRepo, *fakeProductRepo) {
	messages := newFakeMessageRepo()
	products := newFakeProductRepo("p-1")
	return NewMessageUseCase(messages, newFakeUserRepo("alice", "bob"), products, zap.NewNop()), messages, products
}

func TestMessageCreateValidation(t *testing.T) {
	uc, _, products := newMessageUseCase()
	ctx := context.Background()
	deleted := time.Now()
	products.products["p-gone"] = &entity.Product{ID: "p-gone", DeletedAt: &deleted}

	tests := []struct {
		name   string
		sender string
		input  CreateMessageInput
		code   string
	}{
		{"blank content", "alice", CreateMessageInput{RecipientID: "bob", Content: "   "}, errors.CodeValidation},
		{"no recipient", "alice", CreateMessageInput{Content: "hi"}, errors.CodeValidation},
		{"self message", "alice", CreateMessageInput{RecipientID: "alice", Content: "hi"}, errors.CodeValidation},
		{"unknown recipient", "alice", CreateMessageInput{RecipientID: "ghost", Content: "hi"}, errors.CodeNotFound},
		{"unknown product", "alice", CreateMessageInput{RecipientID: "bob", Content: "hi", ProductID: "p-x"}, errors.CodeNotFound},
		{"deleted product", "alice", CreateMessageInput{RecipientID: "bob", Content: "hi", ProductID: "p-gone"}, errors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.Create(ctx, tt.sender, tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.code), "got %v", err)
		})
	}
}

func TestMessageCreateTrimsContent(t *testing.T) {
	uc, _, _ := newMessageUseCase()

	message, err := uc.Create(context.Background(), "alice", CreateMessageInput{RecipientID: "bob", Content: "  is this available?  ", ProductID: "p-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, message.ID)
	assert.Equal(t, "is this available?", message.Content)
	assert.False(t, message.Read)
	assert.False(t, message.ArchivedBySender)
	assert.False(t, message.ArchivedByRecipient)
}

func TestMessageMarkReadIsIdempotent(t *testing.T) {
	uc, repo, _ := newMessageUseCase()
	ctx := context.Background()

	message, err := uc.Create(ctx, "alice", CreateMessageInput{RecipientID: "bob", Content: "hi"})
	require.NoError(t, err)

	first, err := uc.MarkRead(ctx, message.ID, "bob")
	require.NoError(t, err)
	assert.True(t, first.Read)

	second, err := uc.MarkRead(ctx, message.ID, "bob")
	require.NoError(t, err)
	assert.True(t, second.Read)
	assert.Equal(t, 1, repo.updates)
}

func TestMessageHiddenFromOutsiders(t *testing.T) {
	uc, _, _ := newMessageUseCase()
	ctx := context.Background()

	message, err := uc.Create(ctx, "alice", CreateMessageInput{RecipientID: "bob", Content: "hi"})
	require.NoError(t, err)

	_, err = uc.GetByID(ctx, message.ID, "mallory")
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	_, err = uc.Archive(ctx, message.ID, "mallory")
	assert.True(t, errors.Is(err, errors.CodeNotFound))
}

func TestMessageArchiveIsPerSide(t *testing.T) {
	uc, _, _ := newMessageUseCase()
	ctx := context.Background()

	message, err := uc.Create(ctx, "alice", CreateMessageInput{RecipientID: "bob", Content: "hi"})
	require.NoError(t, err)

	archived, err := uc.Archive(ctx, message.ID, "alice")
	require.NoError(t, err)
	assert.True(t, archived.ArchivedBySender)
	assert.False(t, archived.ArchivedByRecipient)

	page := utils.NewPaginationParams(1, 20)
	forAlice, total, err := uc.ConversationWith(ctx, "alice", "bob", page)
	require.NoError(t, err)
	assert.Empty(t, forAlice)
	assert.Zero(t, total)

	forBob, total, err := uc.ConversationWith(ctx, "bob", "alice", page)
	require.NoError(t, err)
	require.Len(t, forBob, 1)
	assert.Equal(t, int64(1), total)

	restored, err := uc.Unarchive(ctx, message.ID, "alice")
	require.NoError(t, err)
	assert.False(t, restored.ArchivedBySender)
}

func TestConversationWithRequiresCounterpart(t *testing.T) {
	uc, _, _ := newMessageUseCase()

	_, _, err := uc.ConversationWith(context.Background(), "alice", "", utils.NewPaginationParams(1, 20))

	assert.True(t, errors.Is(err, errors.CodeValidation))
}
