package repository

import (
	"context"

	"pasarlive/internal/domain/entity"
)

// ProductRepository is used for existence checks only.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
}
