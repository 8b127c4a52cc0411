package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	"github.com/jhoicas/emissor-nfse/internal/domain/repository"
)

var _ repository.FiscalDocumentRepository = (*FiscalDocumentRepo)(nil)

// Partes, retenções e campos da reforma ficam em JSONB (codec JSON do pgx).
const documentColumns = `id, issuer_id, dialect, status, series, sequence_number, issue_date, competence_date,
	taxation, taker, provider, service_code, national_tax_code, service_description,
	gross_value, deductions, unconditional_discount, iss_rate, iss_withheld, withholdings, tax_reform,
	document_kind, provider_regime, external_number,
	protocol_number, verification_code, access_key, view_url, signed_xml, last_error,
	issued_at, canceled_at, created_at, updated_at`

// FiscalDocumentRepo implementação de FiscalDocumentRepository (pool ou tx).
type FiscalDocumentRepo struct {
	q Querier
}

// NewFiscalDocumentRepository constrói o adaptador.
func NewFiscalDocumentRepository(q Querier) *FiscalDocumentRepo {
	return &FiscalDocumentRepo{q: q}
}

// Create persiste o documento.
func (r *FiscalDocumentRepo) Create(ctx context.Context, d *entity.FiscalDocument) error {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	query := `
		INSERT INTO fiscal_documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17,
		        $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34)`
	_, err := r.q.Exec(ctx, query,
		d.ID, d.IssuerID, d.Dialect, d.Status, d.Series, d.SequenceNumber, d.IssueDate, nullTime(d.CompetenceDate),
		d.Taxation, d.Taker, d.Provider, d.ServiceCode, d.NationalTaxCode, d.ServiceDescription,
		d.GrossValue, d.Deductions, d.UnconditionalDiscount, d.ISSRate, d.ISSWithheld, d.Withholdings, d.TaxReform,
		d.DocumentKind, d.ProviderRegime, d.ExternalNumber,
		nullIfEmpty(d.ProtocolNumber), nullIfEmpty(d.VerificationCode), nullIfEmpty(d.AccessKey),
		nullIfEmpty(d.ViewURL), nullIfEmpty(d.SignedXML), nullIfEmpty(d.LastError),
		d.IssuedAt, d.CanceledAt, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert fiscal document: %w", err)
	}
	return nil
}

// GetByID documento pelo ID; nil, nil quando não existe.
func (r *FiscalDocumentRepo) GetByID(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	d, err := scanDocument(r.q.QueryRow(ctx, `SELECT `+documentColumns+` FROM fiscal_documents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fiscal document: %w", err)
	}
	return d, nil
}

// Update grava estado, sequência e identificadores de protocolo.
func (r *FiscalDocumentRepo) Update(ctx context.Context, d *entity.FiscalDocument) error {
	query := `
		UPDATE fiscal_documents
		SET status            = $2,
		    sequence_number   = $3,
		    protocol_number   = $4,
		    verification_code = $5,
		    access_key        = $6,
		    view_url          = $7,
		    signed_xml        = COALESCE($8, signed_xml),
		    last_error        = $9,
		    issued_at         = $10,
		    canceled_at       = $11,
		    updated_at        = $12
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		d.ID, d.Status, d.SequenceNumber,
		nullIfEmpty(d.ProtocolNumber), nullIfEmpty(d.VerificationCode), nullIfEmpty(d.AccessKey),
		nullIfEmpty(d.ViewURL), nullIfEmpty(d.SignedXML), nullIfEmpty(d.LastError),
		d.IssuedAt, d.CanceledAt, d.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("update fiscal document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List aplica os filtros informados; sem limite, devolve até 100.
func (r *FiscalDocumentRepo) List(ctx context.Context, f repository.DocumentFilter) ([]*entity.FiscalDocument, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.IssuerID != "" {
		add("issuer_id = $%d", f.IssuerID)
	}
	if f.Dialect != "" {
		add("dialect = $%d", f.Dialect)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.From != nil {
		add("issue_date >= $%d", *f.From)
	}
	if f.To != nil {
		add("issue_date <= $%d", *f.To)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `SELECT ` + documentColumns + ` FROM fiscal_documents`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit, f.Offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list fiscal documents: %w", err)
	}
	defer rows.Close()
	var list []*entity.FiscalDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fiscal document: %w", err)
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// DeletePending remove apenas documentos pendentes; o resto é ErrConflict.
func (r *FiscalDocumentRepo) DeletePending(ctx context.Context, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM fiscal_documents WHERE id = $1 AND status = $2`, id, entity.DocumentStatusPending)
	if err != nil {
		return fmt.Errorf("delete fiscal document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		d, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if d == nil {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

// MaxSequence maior sequência já gravada para o emissor e dialeto.
func (r *FiscalDocumentRepo) MaxSequence(ctx context.Context, issuerID, dialect string) (int64, error) {
	var seq int64
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0) FROM fiscal_documents WHERE issuer_id = $1 AND dialect = $2`,
		issuerID, dialect,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("max sequence: %w", err)
	}
	return seq, nil
}

func scanDocument(row pgx.Row) (*entity.FiscalDocument, error) {
	var (
		d                                                     entity.FiscalDocument
		competence                                            *time.Time
		protocol, verification, accessKey, viewURL, xml, errs *string
	)
	err := row.Scan(
		&d.ID, &d.IssuerID, &d.Dialect, &d.Status, &d.Series, &d.SequenceNumber, &d.IssueDate, &competence,
		&d.Taxation, &d.Taker, &d.Provider, &d.ServiceCode, &d.NationalTaxCode, &d.ServiceDescription,
		&d.GrossValue, &d.Deductions, &d.UnconditionalDiscount, &d.ISSRate, &d.ISSWithheld, &d.Withholdings, &d.TaxReform,
		&d.DocumentKind, &d.ProviderRegime, &d.ExternalNumber,
		&protocol, &verification, &accessKey, &viewURL, &xml, &errs,
		&d.IssuedAt, &d.CanceledAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if competence != nil {
		d.CompetenceDate = *competence
	}
	d.ProtocolNumber = derefStr(protocol)
	d.VerificationCode = derefStr(verification)
	d.AccessKey = derefStr(accessKey)
	d.ViewURL = derefStr(viewURL)
	d.SignedXML = derefStr(xml)
	d.LastError = derefStr(errs)
	return &d, nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
