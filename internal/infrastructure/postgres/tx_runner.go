package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/emissor-nfse/internal/application/emission"
	"github.com/jhoicas/emissor-nfse/internal/domain/repository"
)

var _ emission.SequenceTxRunner = (*TxRunner)(nil)

// TxRunner executa callbacks dentro de uma transação PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner constrói o runner com o pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunSequence abre a transação, entrega o repositório de documentos e o alocador atados a ela
// e faz Commit ou Rollback. O número reservado só fica visível junto com o documento gravado.
func (r *TxRunner) RunSequence(ctx context.Context, fn func(
	docs repository.FiscalDocumentRepository,
	seq repository.SequenceAllocator,
) error) error {
	return r.run(ctx, func(tx pgx.Tx) error {
		return fn(NewFiscalDocumentRepository(tx), NewSequenceAllocator(tx))
	})
}

func (r *TxRunner) run(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
