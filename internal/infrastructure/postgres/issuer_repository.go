package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	"github.com/jhoicas/emissor-nfse/internal/domain/repository"
)

var _ repository.IssuerRepository = (*IssuerRepo)(nil)

const issuerColumns = `id, account_id, cnpj, legal_name, trade_name, municipal_registration, municipality_code,
	simples_nacional, special_regime, certificate_file, certificate_password, certificate_expiry,
	active, created_at, updated_at`

// IssuerRepo implementação de IssuerRepository (pool ou tx).
type IssuerRepo struct {
	q Querier
}

// NewIssuerRepository constrói o adaptador.
func NewIssuerRepository(q Querier) *IssuerRepo {
	return &IssuerRepo{q: q}
}

// Create persiste um novo emissor. CNPJ repetido vira domain.ErrDuplicate.
func (r *IssuerRepo) Create(ctx context.Context, iss *entity.Issuer) error {
	if iss.ID == "" {
		iss.ID = uuid.New().String()
	}
	query := `
		INSERT INTO issuers (` + issuerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.q.Exec(ctx, query,
		iss.ID, iss.AccountID, iss.CNPJ, iss.LegalName, iss.TradeName, iss.MunicipalRegistration,
		iss.MunicipalityCode, iss.SimplesNacional, iss.SpecialRegime, iss.CertificateFile,
		iss.CertificatePassword, iss.CertificateExpiry, iss.Active, iss.CreatedAt, iss.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert issuer: %w", err)
	}
	return nil
}

// GetByID emissor pelo ID; nil, nil quando não existe.
func (r *IssuerRepo) GetByID(ctx context.Context, id string) (*entity.Issuer, error) {
	return r.getOne(ctx, `SELECT `+issuerColumns+` FROM issuers WHERE id = $1`, id)
}

// GetByCNPJ emissor pelo CNPJ (somente dígitos).
func (r *IssuerRepo) GetByCNPJ(ctx context.Context, cnpj string) (*entity.Issuer, error) {
	return r.getOne(ctx, `SELECT `+issuerColumns+` FROM issuers WHERE cnpj = $1`, cnpj)
}

// Update grava dados cadastrais e do certificado.
func (r *IssuerRepo) Update(ctx context.Context, iss *entity.Issuer) error {
	query := `
		UPDATE issuers
		SET legal_name = $2, trade_name = $3, municipal_registration = $4, municipality_code = $5,
		    simples_nacional = $6, special_regime = $7, certificate_file = $8, certificate_password = $9,
		    certificate_expiry = $10, active = $11, updated_at = $12
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		iss.ID, iss.LegalName, iss.TradeName, iss.MunicipalRegistration, iss.MunicipalityCode,
		iss.SimplesNacional, iss.SpecialRegime, iss.CertificateFile, iss.CertificatePassword,
		iss.CertificateExpiry, iss.Active, iss.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update issuer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByAccount emissores da conta, mais recentes primeiro.
func (r *IssuerRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]*entity.Issuer, error) {
	query := `SELECT ` + issuerColumns + ` FROM issuers WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	defer rows.Close()
	var list []*entity.Issuer
	for rows.Next() {
		iss, err := scanIssuer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan issuer: %w", err)
		}
		list = append(list, iss)
	}
	return list, rows.Err()
}

func (r *IssuerRepo) getOne(ctx context.Context, query string, arg string) (*entity.Issuer, error) {
	iss, err := scanIssuer(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get issuer: %w", err)
	}
	return iss, nil
}

func scanIssuer(row pgx.Row) (*entity.Issuer, error) {
	var iss entity.Issuer
	err := row.Scan(
		&iss.ID, &iss.AccountID, &iss.CNPJ, &iss.LegalName, &iss.TradeName, &iss.MunicipalRegistration,
		&iss.MunicipalityCode, &iss.SimplesNacional, &iss.SpecialRegime, &iss.CertificateFile,
		&iss.CertificatePassword, &iss.CertificateExpiry, &iss.Active, &iss.CreatedAt, &iss.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &iss, nil
}
