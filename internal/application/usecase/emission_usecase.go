package usecase

import (
	"context"

	"github.com/jhoicas/emissor-nfse/internal/application/dto"
	"github.com/jhoicas/emissor-nfse/internal/application/emission"
	"github.com/jhoicas/emissor-nfse/internal/domain"
	domnfse "github.com/jhoicas/emissor-nfse/internal/domain/nfse"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse"
)

// Lifecycle operações do pipeline de emissão. Implementado por *emission.LifecycleManager.
type Lifecycle interface {
	Submit(ctx context.Context, documentID string) (domnfse.Outcome, error)
	Cancel(ctx context.Context, documentID string) (domnfse.Outcome, error)
	Batch(ctx context.Context, issuerID string, ids []string, action emission.Action) (*emission.BatchReport, error)
	QueryPeriod(ctx context.Context, issuerID string, q nfse.PeriodQuery) ([]domnfse.IssuedInvoice, error)
}

// EmissionUseCase expõe o pipeline para a API, conferindo a conta dona de cada documento.
type EmissionUseCase struct {
	docs      *DocumentUseCase
	lifecycle Lifecycle
}

// NewEmissionUseCase constrói o caso de uso.
func NewEmissionUseCase(docs *DocumentUseCase, lifecycle Lifecycle) *EmissionUseCase {
	return &EmissionUseCase{docs: docs, lifecycle: lifecycle}
}

// Submit envia um documento.
func (uc *EmissionUseCase) Submit(ctx context.Context, accountID, documentID string) (*dto.OutcomeResponse, error) {
	if _, err := uc.docs.Owned(ctx, accountID, documentID); err != nil {
		return nil, err
	}
	out, err := uc.lifecycle.Submit(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return toOutcomeResponse(documentID, out), nil
}

// Cancel cancela um documento emitido.
func (uc *EmissionUseCase) Cancel(ctx context.Context, accountID, documentID string) (*dto.OutcomeResponse, error) {
	if _, err := uc.docs.Owned(ctx, accountID, documentID); err != nil {
		return nil, err
	}
	out, err := uc.lifecycle.Cancel(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return toOutcomeResponse(documentID, out), nil
}

// Batch processa o lote e devolve o DTO e o relatório original (para o PDF).
func (uc *EmissionUseCase) Batch(ctx context.Context, accountID string, in dto.BatchRequest, action emission.Action) (*dto.BatchResponse, *emission.BatchReport, error) {
	if _, err := uc.docs.ownedIssuer(ctx, accountID, in.IssuerID); err != nil {
		return nil, nil, err
	}
	report, err := uc.lifecycle.Batch(ctx, in.IssuerID, in.DocumentIDs, action)
	if err != nil {
		return nil, nil, err
	}
	return ToBatchResponse(report), report, nil
}

// QueryPeriod consulta NFS-e emitidas ou recebidas no intervalo.
func (uc *EmissionUseCase) QueryPeriod(ctx context.Context, accountID string, in dto.PeriodQueryRequest) (*dto.PeriodQueryResponse, error) {
	if in.IssuerID == "" {
		return nil, domain.NewValidationError("issuer_id", "obrigatório")
	}
	if _, err := uc.docs.ownedIssuer(ctx, accountID, in.IssuerID); err != nil {
		return nil, err
	}
	from, err := parseDate("from", in.From)
	if err != nil {
		return nil, err
	}
	to, err := parseDate("to", in.To)
	if err != nil {
		return nil, err
	}
	kind := nonEmpty(in.Kind, nfse.QueryIssued)

	list, err := uc.lifecycle.QueryPeriod(ctx, in.IssuerID, nfse.PeriodQuery{Kind: kind, From: from, To: to, Page: in.Page})
	if err != nil {
		return nil, err
	}
	items := make([]dto.IssuedInvoiceDTO, 0, len(list))
	for _, inv := range list {
		items = append(items, dto.IssuedInvoiceDTO{
			Number:                inv.Number,
			VerificationCode:      inv.VerificationCode,
			MunicipalRegistration: inv.MunicipalRegistration,
			IssuedAt:              inv.IssuedAt,
			Status:                inv.Status,
			ProviderTaxID:         inv.ProviderTaxID,
			ProviderName:          inv.ProviderName,
			TakerTaxID:            inv.TakerTaxID,
			TakerName:             inv.TakerName,
			ServiceValue:          inv.ServiceValue,
			ISSValue:              inv.ISSValue,
			ISSWithheld:           inv.ISSWithheld,
			Description:           inv.Description,
		})
	}
	return &dto.PeriodQueryResponse{Kind: kind, Items: items}, nil
}

func toOutcomeResponse(documentID string, out domnfse.Outcome) *dto.OutcomeResponse {
	resp := &dto.OutcomeResponse{DocumentID: documentID, Succeeded: out.Succeeded()}
	switch o := out.(type) {
	case *domnfse.SuccessOutcome:
		resp.Number = o.Number
		resp.VerificationCode = o.VerificationCode
		resp.AccessKey = o.AccessKey
		resp.Warnings = toMessages(o.Warnings)
	case *domnfse.FailureOutcome:
		resp.Errors = toMessages(o.Errors)
	}
	return resp
}

func toMessages(in []domnfse.Message) []dto.MessageDTO {
	if len(in) == 0 {
		return nil
	}
	out := make([]dto.MessageDTO, 0, len(in))
	for _, m := range in {
		out = append(out, dto.MessageDTO{Code: m.Code, Description: m.Description})
	}
	return out
}

// ToBatchResponse converte o relatório preservando a ordem.
func ToBatchResponse(r *emission.BatchReport) *dto.BatchResponse {
	out := &dto.BatchResponse{
		Action:    string(r.Action),
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Items:     make([]dto.BatchItemResponse, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		switch it := item.(type) {
		case emission.ItemSucceeded:
			row := dto.BatchItemResponse{DocumentID: it.ID, Succeeded: true}
			if it.Outcome != nil {
				row.Number = it.Outcome.Number
			}
			out.Items = append(out.Items, row)
		case emission.ItemFailed:
			out.Items = append(out.Items, dto.BatchItemResponse{DocumentID: it.ID, Message: it.Message})
		}
	}
	return out
}

