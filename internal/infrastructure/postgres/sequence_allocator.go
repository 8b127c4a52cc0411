package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/emissor-nfse/internal/domain/repository"
)

var _ repository.SequenceAllocator = (*SequenceAllocator)(nil)

// SequenceAllocator contador atômico por emissor e dialeto em document_sequences.
// A primeira alocação parte do maior número já gravado em fiscal_documents.
type SequenceAllocator struct {
	q Querier
}

// NewSequenceAllocator constrói o alocador.
func NewSequenceAllocator(q Querier) *SequenceAllocator {
	return &SequenceAllocator{q: q}
}

// Next reserva o próximo número. Duas chamadas concorrentes nunca recebem o mesmo valor.
func (a *SequenceAllocator) Next(ctx context.Context, issuerID, dialect string) (int64, error) {
	query := `
		INSERT INTO document_sequences (issuer_id, dialect, last_value, updated_at)
		VALUES ($1, $2,
		        (SELECT COALESCE(MAX(sequence_number), 0) + 1 FROM fiscal_documents
		          WHERE issuer_id = $1 AND dialect = $2),
		        NOW())
		ON CONFLICT (issuer_id, dialect)
		DO UPDATE SET last_value = document_sequences.last_value + 1, updated_at = NOW()
		RETURNING last_value`
	var next int64
	if err := a.q.QueryRow(ctx, query, issuerID, dialect).Scan(&next); err != nil {
		return 0, fmt.Errorf("alocar sequência: %w", err)
	}
	return next, nil
}
