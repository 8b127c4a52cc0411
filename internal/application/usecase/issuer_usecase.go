package usecase

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/emissor-nfse/internal/application/dto"
	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	"github.com/jhoicas/emissor-nfse/internal/domain/repository"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse/certstore"
	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

// CertificateVault guarda os bundles dos emissores e deriva o material.
// Implementado por *certstore.Store.
type CertificateVault interface {
	Dir() string
	SaveBundle(cnpj string, bundle []byte) (string, error)
	Materialize(ctx context.Context, cred certstore.Credentials) (*certstore.Material, error)
	Expiry(cnpj string) (time.Time, error)
}

// IssuerUseCase cadastro de emissores e provisionamento do certificado A1.
type IssuerUseCase struct {
	repo          repository.IssuerRepository
	vault         CertificateVault
	expiryWarning time.Duration
	now           func() time.Time
}

// NewIssuerUseCase constrói o caso de uso. expiryWarning é a janela de "vence em breve".
func NewIssuerUseCase(repo repository.IssuerRepository, vault CertificateVault, expiryWarning time.Duration) *IssuerUseCase {
	return &IssuerUseCase{repo: repo, vault: vault, expiryWarning: expiryWarning, now: time.Now}
}

// Create cadastra um emissor da conta. ErrDuplicate se o CNPJ já existe.
func (uc *IssuerUseCase) Create(ctx context.Context, accountID string, in dto.CreateIssuerRequest) (*dto.IssuerResponse, error) {
	cnpj := fiscal.OnlyDigits(in.CNPJ)
	if err := fiscal.ValidateCNPJ(cnpj); err != nil {
		return nil, domain.NewValidationError("cnpj", err.Error())
	}
	if strings.TrimSpace(in.LegalName) == "" {
		return nil, domain.NewValidationError("legal_name", "obrigatória")
	}
	if code := fiscal.OnlyDigits(in.MunicipalityCode); code != "" && len(code) != 7 {
		return nil, domain.NewValidationError("municipality_code", "código IBGE deve ter 7 dígitos")
	}
	existing, err := uc.repo.GetByCNPJ(ctx, cnpj)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicate
	}

	now := uc.now()
	issuer := &entity.Issuer{
		ID:                    uuid.New().String(),
		AccountID:             accountID,
		CNPJ:                  cnpj,
		LegalName:             strings.TrimSpace(in.LegalName),
		TradeName:             in.TradeName,
		MunicipalRegistration: fiscal.OnlyDigits(in.MunicipalRegistration),
		MunicipalityCode:      fiscal.OnlyDigits(in.MunicipalityCode),
		SimplesNacional:       nonEmpty(in.SimplesNacional, "1"),
		SpecialRegime:         nonEmpty(in.SpecialRegime, "0"),
		Active:                true,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := uc.repo.Create(ctx, issuer); err != nil {
		return nil, err
	}
	return toIssuerResponse(issuer), nil
}

// GetByID emissor da conta.
func (uc *IssuerUseCase) GetByID(ctx context.Context, accountID, id string) (*dto.IssuerResponse, error) {
	issuer, err := uc.owned(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	return toIssuerResponse(issuer), nil
}

// List emissores da conta com paginação.
func (uc *IssuerUseCase) List(ctx context.Context, accountID string, limit, offset int) (*dto.IssuerListResponse, error) {
	list, err := uc.repo.ListByAccount(ctx, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.IssuerResponse, 0, len(list))
	for _, i := range list {
		items = append(items, *toIssuerResponse(i))
	}
	return &dto.IssuerListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: limit, Offset: offset},
	}, nil
}

// Update altera os dados cadastrais informados.
func (uc *IssuerUseCase) Update(ctx context.Context, accountID, id string, in dto.UpdateIssuerRequest) (*dto.IssuerResponse, error) {
	issuer, err := uc.owned(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if in.LegalName != nil {
		if strings.TrimSpace(*in.LegalName) == "" {
			return nil, domain.NewValidationError("legal_name", "não pode ficar vazia")
		}
		issuer.LegalName = strings.TrimSpace(*in.LegalName)
	}
	if in.TradeName != nil {
		issuer.TradeName = *in.TradeName
	}
	if in.MunicipalRegistration != nil {
		issuer.MunicipalRegistration = fiscal.OnlyDigits(*in.MunicipalRegistration)
	}
	if in.MunicipalityCode != nil {
		code := fiscal.OnlyDigits(*in.MunicipalityCode)
		if code != "" && len(code) != 7 {
			return nil, domain.NewValidationError("municipality_code", "código IBGE deve ter 7 dígitos")
		}
		issuer.MunicipalityCode = code
	}
	if in.SimplesNacional != nil {
		issuer.SimplesNacional = *in.SimplesNacional
	}
	if in.SpecialRegime != nil {
		issuer.SpecialRegime = *in.SpecialRegime
	}
	if in.Active != nil {
		issuer.Active = *in.Active
	}
	issuer.UpdatedAt = uc.now()
	if err := uc.repo.Update(ctx, issuer); err != nil {
		return nil, err
	}
	return toIssuerResponse(issuer), nil
}

// UploadCertificate valida o PKCS#12 com a senha, grava o bundle, deriva o PEM e registra a validade.
// Bundle ilegível ou senha errada devolvem *domain.CertificateError sem tocar no bundle anterior.
func (uc *IssuerUseCase) UploadCertificate(ctx context.Context, accountID, id string, bundle []byte, password string) (*dto.CertificateStatusResponse, error) {
	issuer, err := uc.owned(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	decoded, err := certstore.Decode(issuer.CNPJ, bundle, password)
	if err != nil {
		return nil, err
	}
	if holder := fiscal.OnlyDigits(decoded.Certificate.Subject.CommonName); len(holder) >= 14 && !strings.Contains(holder, issuer.CNPJ) {
		log.Warn().Str("component", "[NFSE]").Str("issuer_id", issuer.ID).
			Msg("CNPJ do certificado difere do emissor")
	}

	name, err := uc.vault.SaveBundle(issuer.CNPJ, bundle)
	if err != nil {
		return nil, err
	}
	if _, err := uc.vault.Materialize(ctx, certstore.Credentials{
		IssuerCNPJ: issuer.CNPJ,
		BundlePath: filepath.Join(uc.vault.Dir(), name),
		Password:   password,
	}); err != nil {
		return nil, err
	}
	notAfter, err := uc.vault.Expiry(issuer.CNPJ)
	if err != nil {
		return nil, err
	}

	issuer.CertificateFile = name
	issuer.CertificatePassword = password
	issuer.CertificateExpiry = &notAfter
	issuer.UpdatedAt = uc.now()
	if err := uc.repo.Update(ctx, issuer); err != nil {
		return nil, fmt.Errorf("registrar certificado: %w", err)
	}
	log.Info().Str("component", "[NFSE]").Str("issuer_id", issuer.ID).
		Time("not_after", notAfter).Msg("certificado do emissor atualizado")
	return uc.status(issuer), nil
}

// CertificateStatus situação do certificado; Expired/ExpiresSoon nulos sem upload.
func (uc *IssuerUseCase) CertificateStatus(ctx context.Context, accountID, id string) (*dto.CertificateStatusResponse, error) {
	issuer, err := uc.owned(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	return uc.status(issuer), nil
}

func (uc *IssuerUseCase) status(issuer *entity.Issuer) *dto.CertificateStatusResponse {
	now := uc.now()
	return &dto.CertificateStatusResponse{
		IssuerID:       issuer.ID,
		HasCertificate: issuer.HasCertificate(),
		NotAfter:       issuer.CertificateExpiry,
		Expired:        issuer.CertificateExpired(now),
		ExpiresSoon:    issuer.CertificateExpiresSoon(now, uc.expiryWarning),
	}
}

func (uc *IssuerUseCase) owned(ctx context.Context, accountID, id string) (*entity.Issuer, error) {
	issuer, err := uc.repo.GetByID(ctx, id)
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

func toIssuerResponse(i *entity.Issuer) *dto.IssuerResponse {
	if i == nil {
		return nil
	}
	return &dto.IssuerResponse{
		ID:                    i.ID,
		CNPJ:                  i.CNPJ,
		LegalName:             i.LegalName,
		TradeName:             i.TradeName,
		MunicipalRegistration: i.MunicipalRegistration,
		MunicipalityCode:      i.MunicipalityCode,
		SimplesNacional:       i.SimplesNacional,
		SpecialRegime:         i.SpecialRegime,
		HasCertificate:        i.HasCertificate(),
		CertificateExpiry:     i.CertificateExpiry,
		Active:                i.Active,
		CreatedAt:             i.CreatedAt,
		UpdatedAt:             i.UpdatedAt,
	}
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
