package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/emissor-nfse/internal/application/dto"
	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	domnfse "github.com/jhoicas/emissor-nfse/internal/domain/nfse"
	"github.com/jhoicas/emissor-nfse/internal/domain/repository"
	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

const dateLayout = "2006-01-02"

// DocumentUseCase registro e consulta de documentos fiscais pendentes.
// A validação fiscal completa acontece no envio.
type DocumentUseCase struct {
	docs    repository.FiscalDocumentRepository
	issuers repository.IssuerRepository
	now     func() time.Time
}

// NewDocumentUseCase constrói o caso de uso.
func NewDocumentUseCase(docs repository.FiscalDocumentRepository, issuers repository.IssuerRepository) *DocumentUseCase {
	return &DocumentUseCase{docs: docs, issuers: issuers, now: time.Now}
}

// Create registra o documento como pending.
func (uc *DocumentUseCase) Create(ctx context.Context, accountID string, in dto.CreateDocumentRequest) (*dto.DocumentResponse, error) {
	if _, err := uc.ownedIssuer(ctx, accountID, in.IssuerID); err != nil {
		return nil, err
	}
	dialect := strings.ToLower(strings.TrimSpace(in.Dialect))
	switch dialect {
	case entity.DialectRPS, entity.DialectNFTS, entity.DialectDPS:
	default:
		return nil, domain.NewValidationError("dialect", "use rps, nfts ou dps")
	}
	issueDate, err := parseDate("issue_date", in.IssueDate)
	if err != nil {
		return nil, err
	}
	var competence time.Time
	if in.CompetenceDate != "" {
		if competence, err = parseDate("competence_date", in.CompetenceDate); err != nil {
			return nil, err
		}
	}
	if in.GrossValue.IsNegative() {
		return nil, domain.NewValidationError("gross_value", "não pode ser negativo")
	}

	now := uc.now()
	doc := &entity.FiscalDocument{
		ID:                    uuid.New().String(),
		IssuerID:              in.IssuerID,
		Dialect:               dialect,
		Status:                entity.DocumentStatusPending,
		Series:                nonEmpty(in.Series, "1"),
		IssueDate:             issueDate,
		CompetenceDate:        competence,
		Taxation:              strings.ToUpper(nonEmpty(in.Taxation, entity.TaxationInMunicipality)),
		Taker:                 toParty(in.Taker),
		Provider:              toParty(in.Provider),
		ServiceCode:           in.ServiceCode,
		NationalTaxCode:       in.NationalTaxCode,
		ServiceDescription:    in.ServiceDescription,
		GrossValue:            in.GrossValue,
		Deductions:            in.Deductions,
		UnconditionalDiscount: in.UnconditionalDiscount,
		ISSRate:               in.ISSRate,
		ISSWithheld:           in.ISSWithheld,
		Withholdings: entity.Withholdings{
			PIS: in.Withholdings.PIS, COFINS: in.Withholdings.COFINS, INSS: in.Withholdings.INSS,
			IR: in.Withholdings.IR, CSLL: in.Withholdings.CSLL,
		},
		TaxReform: entity.TaxReform{
			IBSRate: in.TaxReform.IBSRate, IBSValue: in.TaxReform.IBSValue, IBSWithheld: in.TaxReform.IBSWithheld,
			CBSRate: in.TaxReform.CBSRate, CBSValue: in.TaxReform.CBSValue, CBSWithheld: in.TaxReform.CBSWithheld,
		},
		DocumentKind:   in.DocumentKind,
		ProviderRegime: in.ProviderRegime,
		ExternalNumber: strings.TrimSpace(in.ExternalNumber),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := uc.docs.Create(ctx, doc); err != nil {
		return nil, err
	}
	return ToDocumentResponse(doc), nil
}

// GetByID documento de um emissor da conta.
func (uc *DocumentUseCase) GetByID(ctx context.Context, accountID, id string) (*dto.DocumentResponse, error) {
	doc, err := uc.Owned(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	return ToDocumentResponse(doc), nil
}

// List documentos do emissor com filtros opcionais.
func (uc *DocumentUseCase) List(ctx context.Context, accountID string, filter repository.DocumentFilter) (*dto.DocumentListResponse, error) {
	if filter.IssuerID == "" {
		return nil, domain.NewValidationError("issuer_id", "obrigatório")
	}
	if _, err := uc.ownedIssuer(ctx, accountID, filter.IssuerID); err != nil {
		return nil, err
	}
	list, err := uc.docs.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.DocumentResponse, 0, len(list))
	for _, d := range list {
		items = append(items, *ToDocumentResponse(d))
	}
	return &dto.DocumentListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: filter.Limit, Offset: filter.Offset},
	}, nil
}

// DeletePending remove um documento que nunca foi enviado. ErrConflict fora de pending.
func (uc *DocumentUseCase) DeletePending(ctx context.Context, accountID, id string) error {
	if _, err := uc.Owned(ctx, accountID, id); err != nil {
		return err
	}
	return uc.docs.DeletePending(ctx, id)
}

// Owned carrega o documento e confere se o emissor pertence à conta.
func (uc *DocumentUseCase) Owned(ctx context.Context, accountID, id string) (*entity.FiscalDocument, error) {
	doc, err := uc.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrNotFound
	}
	if _, err := uc.ownedIssuer(ctx, accountID, doc.IssuerID); err != nil {
		return nil, err
	}
	return doc, nil
}

func (uc *DocumentUseCase) ownedIssuer(ctx context.Context, accountID, issuerID string) (*entity.Issuer, error) {
	issuer, err := uc.issuers.GetByID(ctx, issuerID)
	if err != nil {
		return nil, err
	}
	if issuer == nil {
		return nil, domain.ErrNotFound
	}
	if issuer.AccountID != accountID {
		return nil, domain.ErrForbidden
	}
	return issuer, nil
}

// ToDocumentResponse converte a entidade, com o resumo de tributos calculado.
func ToDocumentResponse(d *entity.FiscalDocument) *dto.DocumentResponse {
	if d == nil {
		return nil
	}
	taxes := domnfse.ComputeTaxes(d)
	out := &dto.DocumentResponse{
		ID:                 d.ID,
		IssuerID:           d.IssuerID,
		Dialect:            d.Dialect,
		Status:             d.Status,
		Series:             d.Series,
		SequenceNumber:     d.SequenceNumber,
		IssueDate:          d.IssueDate.Format(dateLayout),
		Taxation:           d.Taxation,
		Taker:              fromParty(d.Taker),
		ServiceCode:        d.ServiceCode,
		NationalTaxCode:    d.NationalTaxCode,
		ServiceDescription: d.ServiceDescription,
		GrossValue:         d.GrossValue,
		ISSRate:            d.ISSRate,
		ISSWithheld:        d.ISSWithheld,
		Taxes: dto.TaxSummaryDTO{
			Base: taxes.Base, ISS: taxes.ISS, Retentions: taxes.Retentions, Net: taxes.Net,
		},
		ExternalNumber:   d.ExternalNumber,
		ProtocolNumber:   d.ProtocolNumber,
		VerificationCode: d.VerificationCode,
		AccessKey:        d.AccessKey,
		ViewURL:          d.ViewURL,
		LastError:        d.LastError,
		IssuedAt:         d.IssuedAt,
		CanceledAt:       d.CanceledAt,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}
	if d.Provider.TaxID != "" {
		p := fromParty(d.Provider)
		out.Provider = &p
	}
	return out
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), fiscal.BrasiliaTime)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "data inválida, use AAAA-MM-DD")
	}
	return t, nil
}

func toParty(p dto.PartyDTO) entity.Party {
	return entity.Party{
		TaxID:                 fiscal.OnlyDigits(p.TaxID),
		Name:                  strings.TrimSpace(p.Name),
		MunicipalRegistration: fiscal.OnlyDigits(p.MunicipalRegistration),
		Street:                p.Street,
		Number:                p.Number,
		District:              p.District,
		City:                  p.City,
		State:                 strings.ToUpper(p.State),
		ZipCode:               fiscal.OnlyDigits(p.ZipCode),
		MunicipalityCode:      fiscal.OnlyDigits(p.MunicipalityCode),
		Email:                 p.Email,
	}
}

func fromParty(p entity.Party) dto.PartyDTO {
	return dto.PartyDTO{
		TaxID:                 p.TaxID,
		Name:                  p.Name,
		MunicipalRegistration: p.MunicipalRegistration,
		Street:                p.Street,
		Number:                p.Number,
		District:              p.District,
		City:                  p.City,
		State:                 p.State,
		ZipCode:               p.ZipCode,
		MunicipalityCode:      p.MunicipalityCode,
		Email:                 p.Email,
	}
}
