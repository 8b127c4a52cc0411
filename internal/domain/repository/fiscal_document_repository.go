package repository

import (
	"context"
	"time"

	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
)

// DocumentFilter filtros de listagem de documentos.
type DocumentFilter struct {
	IssuerID string
	Dialect  string
	Status   string
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// FiscalDocumentRepository define a porta de persistência para FiscalDocument.
type FiscalDocumentRepository interface {
	Create(ctx context.Context, doc *entity.FiscalDocument) error
	GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error)
	// Update grava status, número de sequência e identificadores de protocolo.
	Update(ctx context.Context, doc *entity.FiscalDocument) error
	List(ctx context.Context, filter DocumentFilter) ([]*entity.FiscalDocument, error)
	// DeletePending remove o documento apenas se ainda estiver pendente.
	DeletePending(ctx context.Context, id string) error
	// MaxSequence maior número de sequência já atribuído ao emissor no dialeto (0 se nenhum).
	MaxSequence(ctx context.Context, issuerID, dialect string) (int64, error)
}

// SequenceAllocator entrega o próximo número de sequência do emissor de forma atômica.
type SequenceAllocator interface {
	Next(ctx context.Context, issuerID, dialect string) (int64, error)
}
