package repository

import (
	"context"

	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
)

// IssuerRepository define a porta de persistência para Issuer (DIP).
// A implementação vive em infrastructure.
type IssuerRepository interface {
	Create(ctx context.Context, issuer *entity.Issuer) error
	GetByID(ctx context.Context, id string) (*entity.Issuer, error)
	GetByCNPJ(ctx context.Context, cnpj string) (*entity.Issuer, error)
	Update(ctx context.Context, issuer *entity.Issuer) error
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*entity.Issuer, error)
}
