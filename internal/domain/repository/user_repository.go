package repository

import (
	"context"

	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
)

// UserRepository define a porta de persistência para User (DIP).
type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*entity.User, error)
}
