package emission

import (
	"context"
	"fmt"
	"time"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	domnfse "github.com/jhoicas/emissor-nfse/internal/domain/nfse"
	"github.com/jhoicas/emissor-nfse/internal/domain/repository"
)

// PDFUseCase gera o comprovante de um documento e o relatório de lote.
// Só há comprovante para documentos que já passaram pela prefeitura (issued ou canceled).
type PDFUseCase struct {
	docs      repository.FiscalDocumentRepository
	issuers   repository.IssuerRepository
	generator ReceiptPDFGenerator
	now       func() time.Time
}

// NewPDFUseCase injeta as dependências.
func NewPDFUseCase(
	docs repository.FiscalDocumentRepository,
	issuers repository.IssuerRepository,
	generator ReceiptPDFGenerator,
) *PDFUseCase {
	return &PDFUseCase{docs: docs, issuers: issuers, generator: generator, now: time.Now}
}

// DownloadReceipt devolve o PDF e o nome do arquivo.
//
// Retorna:
//   - domain.ErrNotFound      documento ou emissor inexistente.
//   - domain.ErrForbidden     emissor de outra conta.
//   - domain.ErrInvalidInput  documento ainda não emitido.
func (uc *PDFUseCase) DownloadReceipt(ctx context.Context, accountID, documentID string) ([]byte, string, error) {
	doc, err := uc.docs.GetByID(ctx, documentID)
	if err != nil {
		return nil, "", fmt.Errorf("pdf: obter documento: %w", err)
	}
	if doc == nil {
		return nil, "", domain.ErrNotFound
	}
	issuer, err := uc.ownedIssuer(ctx, accountID, doc.IssuerID)
	if err != nil {
		return nil, "", err
	}
	if doc.Status != entity.DocumentStatusIssued && doc.Status != entity.DocumentStatusCanceled {
		return nil, "", fmt.Errorf("%w: documento em estado %s, envie antes de gerar o comprovante",
			domain.ErrInvalidInput, doc.Status)
	}

	out, err := uc.generator.GenerateReceipt(ctx, doc, issuer, domnfse.ComputeTaxes(doc))
	if err != nil {
		return nil, "", fmt.Errorf("pdf: geração falhou: %w", err)
	}
	return out, fmt.Sprintf("%s_%s.pdf", doc.Dialect, nonEmpty(doc.ProtocolNumber, doc.ID)), nil
}

// BatchReport gera o PDF do resultado de um lote já processado.
func (uc *PDFUseCase) BatchReport(ctx context.Context, accountID, issuerID string, report *BatchReport) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("%w: relatório vazio", domain.ErrInvalidInput)
	}
	issuer, err := uc.ownedIssuer(ctx, accountID, issuerID)
	if err != nil {
		return nil, err
	}
	out, err := uc.generator.GenerateBatchReport(ctx, issuer, report, uc.now())
	if err != nil {
		return nil, fmt.Errorf("pdf: relatório de lote: %w", err)
	}
	return out, nil
}

func (uc *PDFUseCase) ownedIssuer(ctx context.Context, accountID, issuerID string) (*entity.Issuer, error) {
	issuer, err := uc.issuers.GetByID(ctx, issuerID)
	if err != nil {
		return nil, fmt.Errorf("pdf: obter emissor: %w", err)
	}
	if issuer == nil {
		return nil, domain.ErrNotFound
	}
	if issuer.AccountID != accountID {
		return nil, domain.ErrForbidden
	}
	return issuer, nil
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
