package emission

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	domnfse "github.com/jhoicas/emissor-nfse/internal/domain/nfse"
	"github.com/jhoicas/emissor-nfse/internal/domain/repository"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse/certstore"
	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

const defaultDocumentTimeout = 60 * time.Second

// Config parâmetros do ciclo de vida.
type Config struct {
	CertDir         string        // diretório dos bundles .pfx
	DocumentTimeout time.Duration // orçamento por documento (montagem + envio + persistência)
	ExpiryWarning   time.Duration // janela para avisar vencimento do certificado
}

// Builders montadores por dialeto.
type Builders struct {
	RPS  *nfse.XMLBuilderService
	NFTS *nfse.NFTSBuilderService
	DPS  *nfse.DPSBuilderService
}

// LifecycleManager conduz o documento fiscal pelo pipeline:
//
//	validar → sequência → certificado → montar/assinar → transmitir → interpretar → persistir
//
// Estados: pending → issued | error; issued → canceled | error. Documentos com número de NFS-e
// não aceitam novo Submit; em error com número voltam a aceitar Cancel.
type LifecycleManager struct {
	docs        repository.FiscalDocumentRepository
	issuers     repository.IssuerRepository
	tx          SequenceTxRunner
	certs       CertificateProvider
	transport   nfse.Transport
	interpreter ResponseInterpreter
	builders    Builders
	newSigner   SignerFactory
	cfg         Config
	now         func() time.Time
}

// NewLifecycleManager injeta as dependências. newSigner nil usa DefaultSignerFactory.
func NewLifecycleManager(
	docs repository.FiscalDocumentRepository,
	issuers repository.IssuerRepository,
	tx SequenceTxRunner,
	certs CertificateProvider,
	transport nfse.Transport,
	interpreter ResponseInterpreter,
	builders Builders,
	newSigner SignerFactory,
	cfg Config,
) *LifecycleManager {
	if newSigner == nil {
		newSigner = DefaultSignerFactory
	}
	if cfg.DocumentTimeout <= 0 {
		cfg.DocumentTimeout = defaultDocumentTimeout
	}
	return &LifecycleManager{
		docs:        docs,
		issuers:     issuers,
		tx:          tx,
		certs:       certs,
		transport:   transport,
		interpreter: interpreter,
		builders:    builders,
		newSigner:   newSigner,
		cfg:         cfg,
		now:         time.Now,
	}
}

// WithClock substitui o relógio (testes).
func (m *LifecycleManager) WithClock(now func() time.Time) *LifecycleManager {
	m.now = now
	return m
}

// Submit emite o documento. Recusas locais (estado final, validação) voltam como FailureOutcome
// sem chamada de rede; falhas de certificado, assinatura, transporte e protocolo voltam como erro
// depois de o documento ser marcado como error.
func (m *LifecycleManager) Submit(ctx context.Context, documentID string) (domnfse.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.DocumentTimeout)
	defer cancel()

	doc, err := m.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.IsTerminal() {
		log.Info().Str("component", "[NFSE]").Str("document_id", doc.ID).Str("status", doc.Status).
			Msg("documento em estado final, envio ignorado")
		desc := fmt.Sprintf("documento já está em estado final (%s)", doc.Status)
		if doc.ProtocolNumber != "" {
			desc = fmt.Sprintf("documento já emitido como NFS-e %s (status %s)", doc.ProtocolNumber, doc.Status)
		}
		return &domnfse.FailureOutcome{Errors: []domnfse.Message{{Code: "terminal_state", Description: desc}}}, nil
	}

	issuer, err := m.loadIssuer(ctx, doc.IssuerID)
	if err != nil {
		return nil, err
	}

	if err := domnfse.ValidateDocument(doc, issuer); err != nil {
		out := validationOutcome(err)
		m.persist(ctx, doc, func(d *entity.FiscalDocument) {
			d.Status = entity.DocumentStatusError
			d.LastError = out.Summary()
		})
		log.Warn().Str("component", "[NFSE]").Str("document_id", doc.ID).Str("dialect", doc.Dialect).
			Str("errors", out.Summary()).Msg("documento inválido")
		return out, nil
	}

	if needsSequence(doc) {
		if err := m.allocateSequence(ctx, doc); err != nil {
			return nil, m.fail(ctx, doc, "sequence", err)
		}
	}

	env, material, sealed, err := m.prepare(ctx, issuer, doc, false)
	if err != nil {
		return nil, m.fail(ctx, doc, "build", err)
	}

	outcome, err := m.transmit(ctx, env.Operation, material, sealed)
	if err != nil {
		return nil, m.fail(ctx, doc, "transmit", err)
	}

	switch o := outcome.(type) {
	case *domnfse.SuccessOutcome:
		m.persist(ctx, doc, func(d *entity.FiscalDocument) {
			now := m.now()
			d.Status = entity.DocumentStatusIssued
			d.ProtocolNumber = o.Number
			d.VerificationCode = o.VerificationCode
			d.AccessKey = o.AccessKey
			d.ViewURL = viewURL(issuer, d)
			d.SignedXML = string(sealed)
			d.LastError = ""
			d.IssuedAt = &now
		})
		log.Info().Str("component", "[NFSE]").Str("document_id", doc.ID).Str("dialect", doc.Dialect).
			Str("number", o.Number).Int("warnings", len(o.Warnings)).Msg("documento emitido")
	case *domnfse.FailureOutcome:
		m.persist(ctx, doc, func(d *entity.FiscalDocument) {
			d.Status = entity.DocumentStatusError
			d.SignedXML = string(sealed)
			d.LastError = o.Summary()
		})
		log.Warn().Str("component", "[NFSE]").Str("document_id", doc.ID).Str("dialect", doc.Dialect).
			Str("errors", o.Summary()).Msg("documento rejeitado")
	}
	return outcome, nil
}

// Cancel cancela um documento emitido. Um documento em error que já tem número de NFS-e
// (cancelamento anterior que falhou) pode ser cancelado de novo. DPS não tem cancelamento
// neste serviço; os demais casos devolvem ErrConflict sem alterar nada.
func (m *LifecycleManager) Cancel(ctx context.Context, documentID string) (domnfse.Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.DocumentTimeout)
	defer cancel()

	doc, err := m.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.Dialect == entity.DialectDPS {
		return nil, &domain.ValidationError{Field: "dialect", Message: "cancelamento de DPS não suportado"}
	}
	if !doc.Cancelable() {
		return nil, fmt.Errorf("%w: apenas documentos emitidos podem ser cancelados (status %s)", domain.ErrConflict, doc.Status)
	}

	issuer, err := m.loadIssuer(ctx, doc.IssuerID)
	if err != nil {
		return nil, err
	}

	env, material, sealed, err := m.prepare(ctx, issuer, doc, true)
	if err != nil {
		return nil, m.fail(ctx, doc, "build-cancel", err)
	}
	outcome, err := m.transmit(ctx, env.Operation, material, sealed)
	if err != nil {
		return nil, m.fail(ctx, doc, "transmit-cancel", err)
	}

	switch o := outcome.(type) {
	case *domnfse.SuccessOutcome:
		m.persist(ctx, doc, func(d *entity.FiscalDocument) {
			now := m.now()
			d.Status = entity.DocumentStatusCanceled
			d.CanceledAt = &now
			d.LastError = ""
		})
		log.Info().Str("component", "[NFSE]").Str("document_id", doc.ID).Str("dialect", doc.Dialect).
			Msg("documento cancelado")
	case *domnfse.FailureOutcome:
		m.persist(ctx, doc, func(d *entity.FiscalDocument) {
			d.Status = entity.DocumentStatusError
			d.LastError = o.Summary()
		})
		log.Warn().Str("component", "[NFSE]").Str("document_id", doc.ID).
			Str("errors", o.Summary()).Msg("cancelamento rejeitado")
	}
	return outcome, nil
}

// Batch processa os documentos em sequência. Só aborta quando o lote não pode começar
// (lista vazia ou emissor inexistente); falhas de um documento viram ItemFailed.
func (m *LifecycleManager) Batch(ctx context.Context, issuerID string, ids []string, action Action) (*BatchReport, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: lote sem documentos", domain.ErrInvalidInput)
	}
	if action != ActionSubmit && action != ActionCancel {
		return nil, fmt.Errorf("%w: ação %q", domain.ErrInvalidInput, action)
	}
	if _, err := m.loadIssuer(ctx, issuerID); err != nil {
		return nil, err
	}

	report := &BatchReport{Action: action}
	for _, id := range ids {
		report.add(m.batchItem(ctx, issuerID, id, action))
	}
	log.Info().Str("component", "[NFSE]").Str("issuer_id", issuerID).Str("action", string(action)).
		Int("succeeded", report.Succeeded).Int("failed", report.Failed).Msg("lote concluído")
	return report, nil
}

func (m *LifecycleManager) batchItem(ctx context.Context, issuerID, id string, action Action) BatchItem {
	if err := ctx.Err(); err != nil {
		return ItemFailed{ID: id, Message: err.Error(), Err: err}
	}
	doc, err := m.loadDocument(ctx, id)
	if err != nil {
		return ItemFailed{ID: id, Message: err.Error(), Err: err}
	}
	if doc.IssuerID != issuerID {
		return ItemFailed{ID: id, Message: "documento pertence a outro emissor", Err: domain.ErrForbidden}
	}

	var outcome domnfse.Outcome
	if action == ActionCancel {
		outcome, err = m.Cancel(ctx, id)
	} else {
		outcome, err = m.Submit(ctx, id)
	}
	if err != nil {
		return ItemFailed{ID: id, Message: err.Error(), Err: err}
	}
	switch o := outcome.(type) {
	case *domnfse.SuccessOutcome:
		return ItemSucceeded{ID: id, Outcome: o}
	case *domnfse.FailureOutcome:
		return ItemFailed{ID: id, Message: o.Summary()}
	}
	return ItemFailed{ID: id, Message: "resultado desconhecido"}
}

// QueryPeriod consulta NFS-e emitidas ou recebidas pelo emissor no intervalo.
func (m *LifecycleManager) QueryPeriod(ctx context.Context, issuerID string, q nfse.PeriodQuery) ([]domnfse.IssuedInvoice, error) {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.DocumentTimeout)
	defer cancel()

	issuer, err := m.loadIssuer(ctx, issuerID)
	if err != nil {
		return nil, err
	}
	env, err := m.builders.RPS.BuildPeriodQuery(issuer, q)
	if err != nil {
		return nil, err
	}
	material, eng, err := m.signerFor(ctx, issuer)
	if err != nil {
		return nil, err
	}
	sealed, err := env.Seal(eng)
	if err != nil {
		return nil, err
	}
	raw, err := m.transport.Call(ctx, env.Operation, material.TLSCertificate(), sealed)
	if err != nil {
		return nil, err
	}
	return m.interpreter.InterpretPeriodQuery(raw)
}

// ── pipeline ──────────────────────────────────────────────────────────────────

// prepare materializa o certificado, monta o envelope do dialeto e assina.
func (m *LifecycleManager) prepare(ctx context.Context, issuer *entity.Issuer, doc *entity.FiscalDocument, cancel bool) (*nfse.Envelope, *certstore.Material, []byte, error) {
	material, eng, err := m.signerFor(ctx, issuer)
	if err != nil {
		return nil, nil, nil, err
	}

	bctx := &nfse.BuildContext{Issuer: issuer, Document: doc}
	var env *nfse.Envelope
	switch {
	case doc.Dialect == entity.DialectRPS && cancel:
		env, err = m.builders.RPS.BuildCancelRPS(bctx, eng)
	case doc.Dialect == entity.DialectRPS:
		env, err = m.builders.RPS.BuildRPS(bctx, eng)
	case doc.Dialect == entity.DialectNFTS && cancel:
		env, err = m.builders.NFTS.BuildCancelNFTS(bctx, eng)
	case doc.Dialect == entity.DialectNFTS:
		env, err = m.builders.NFTS.BuildNFTS(bctx, eng)
	case doc.Dialect == entity.DialectDPS && !cancel:
		env, err = m.builders.DPS.BuildDPS(bctx)
	default:
		err = fmt.Errorf("%w: %s", domain.ErrUnsupported, doc.Dialect)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	sealed, err := env.Seal(eng)
	if err != nil {
		return nil, nil, nil, err
	}
	return env, material, sealed, nil
}

func (m *LifecycleManager) signerFor(ctx context.Context, issuer *entity.Issuer) (*certstore.Material, nfse.EnvelopeSigner, error) {
	cred := certstore.Credentials{IssuerCNPJ: issuer.CNPJ, Password: issuer.CertificatePassword}
	if issuer.HasCertificate() {
		cred.BundlePath = filepath.Join(m.cfg.CertDir, filepath.Base(issuer.CertificateFile))
	}
	material, err := m.certs.Materialize(ctx, cred)
	if err != nil {
		return nil, nil, err
	}
	if m.cfg.ExpiryWarning > 0 && material.NotAfter.Before(m.now().Add(m.cfg.ExpiryWarning)) {
		log.Warn().Str("component", "[NFSE]").Str("issuer_id", issuer.ID).
			Time("not_after", material.NotAfter).Msg("certificado do emissor perto do vencimento")
	}
	eng, err := m.newSigner(material.PrivateKey, material.Certificate)
	if err != nil {
		return nil, nil, err
	}
	return material, eng, nil
}

func (m *LifecycleManager) transmit(ctx context.Context, op nfse.Operation, material *certstore.Material, sealed []byte) (domnfse.Outcome, error) {
	raw, err := m.transport.Call(ctx, op, material.TLSCertificate(), sealed)
	if err != nil {
		return nil, err
	}
	if op.IsNational() {
		return m.interpreter.InterpretNational(raw)
	}
	return m.interpreter.Interpret(raw)
}

// allocateSequence grava o número numa cópia dentro da transação; o documento só recebe
// o número depois do commit, para um rollback não deixar número órfão.
func (m *LifecycleManager) allocateSequence(ctx context.Context, doc *entity.FiscalDocument) error {
	var allocated int64
	err := m.tx.RunSequence(ctx, func(docs repository.FiscalDocumentRepository, seq repository.SequenceAllocator) error {
		n, err := seq.Next(ctx, doc.IssuerID, doc.Dialect)
		if err != nil {
			return err
		}
		staged := *doc
		staged.SequenceNumber = &n
		staged.UpdatedAt = m.now()
		if err := docs.Update(ctx, &staged); err != nil {
			return err
		}
		allocated = n
		return nil
	})
	if err != nil {
		return err
	}
	doc.SequenceNumber = &allocated
	doc.UpdatedAt = m.now()
	return nil
}

// fail marca o documento como error preservando sequência e protocolo, e devolve err.
func (m *LifecycleManager) fail(ctx context.Context, doc *entity.FiscalDocument, step string, err error) error {
	m.persist(ctx, doc, func(d *entity.FiscalDocument) {
		d.Status = entity.DocumentStatusError
		d.LastError = err.Error()
	})
	log.Error().Err(err).Str("component", "[NFSE]").Str("document_id", doc.ID).
		Str("dialect", doc.Dialect).Str("step", step).Msg("falha no pipeline")
	return err
}

// persist aplica a mudança e grava; sobrevive ao timeout do documento.
func (m *LifecycleManager) persist(ctx context.Context, doc *entity.FiscalDocument, apply func(*entity.FiscalDocument)) {
	apply(doc)
	doc.UpdatedAt = m.now()
	if err := m.docs.Update(context.WithoutCancel(ctx), doc); err != nil {
		log.Error().Err(err).Str("component", "[NFSE]").Str("document_id", doc.ID).
			Str("status", doc.Status).Msg("não foi possível gravar o estado do documento")
	}
}

func (m *LifecycleManager) loadDocument(ctx context.Context, id string) (*entity.FiscalDocument, error) {
	doc, err := m.docs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("documento %s: %w", id, domain.ErrNotFound)
	}
	return doc, nil
}

func (m *LifecycleManager) loadIssuer(ctx context.Context, id string) (*entity.Issuer, error) {
	issuer, err := m.issuers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if issuer == nil {
		return nil, fmt.Errorf("emissor %s: %w", id, domain.ErrNotFound)
	}
	if !issuer.Active {
		return nil, fmt.Errorf("emissor %s inativo: %w", id, domain.ErrForbidden)
	}
	return issuer, nil
}

// needsSequence RPS e DPS sempre numeram; NFTS só quando não há número do documento recebido.
func needsSequence(doc *entity.FiscalDocument) bool {
	if doc.SequenceNumber != nil {
		return false
	}
	if doc.Dialect == entity.DialectNFTS {
		return strings.TrimSpace(doc.ExternalNumber) == ""
	}
	return true
}

// validationOutcome converte o erro de validação em FailureOutcome com um item por campo.
func validationOutcome(err error) *domnfse.FailureOutcome {
	out := &domnfse.FailureOutcome{}
	var walk func(error)
	walk = func(e error) {
		var vErr *domain.ValidationError
		if errors.As(e, &vErr) && !isJoined(e) {
			out.Errors = append(out.Errors, domnfse.Message{Code: vErr.Field, Description: vErr.Message})
			return
		}
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
		}
	}
	walk(err)
	if len(out.Errors) == 0 {
		out.Errors = []domnfse.Message{{Code: "invalid", Description: err.Error()}}
	}
	return out
}

func isJoined(e error) bool {
	_, ok := e.(interface{ Unwrap() []error })
	return ok
}

func viewURL(issuer *entity.Issuer, doc *entity.FiscalDocument) string {
	if doc.Dialect != entity.DialectRPS || doc.ProtocolNumber == "" {
		return ""
	}
	return fmt.Sprintf(fiscal.SPViewURLTemplate,
		fiscal.OnlyDigits(issuer.MunicipalRegistration), doc.ProtocolNumber, doc.VerificationCode)
}
