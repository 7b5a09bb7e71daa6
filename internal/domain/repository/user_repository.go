package repository

import (
	"context"

	"pasarlive/internal/domain/entity"
)

// UserRepository is the identity lookup collaborator.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}
