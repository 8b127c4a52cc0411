package emission

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"time"

	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	domnfse "github.com/jhoicas/emissor-nfse/internal/domain/nfse"
	"github.com/jhoicas/emissor-nfse/internal/domain/repository"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse/certstore"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse/signer"
)

// SequenceTxRunner executa fn numa transação com o alocador e o repositório de documentos.
// A alocação do número e a gravação no documento são atômicas.
type SequenceTxRunner interface {
	RunSequence(ctx context.Context, fn func(
		docs repository.FiscalDocumentRepository,
		seq repository.SequenceAllocator,
	) error) error
}

// CertificateProvider entrega a chave e o certificado do emissor.
type CertificateProvider interface {
	Materialize(ctx context.Context, cred certstore.Credentials) (*certstore.Material, error)
}

// ResponseInterpreter normaliza as respostas dos webservices.
type ResponseInterpreter interface {
	Interpret(raw []byte) (domnfse.Outcome, error)
	InterpretNational(body []byte) (domnfse.Outcome, error)
	InterpretPeriodQuery(raw []byte) ([]domnfse.IssuedInvoice, error)
}

// SignerFactory cria o assinador a partir do material do certificado.
type SignerFactory func(key *rsa.PrivateKey, cert *x509.Certificate) (nfse.EnvelopeSigner, error)

// DefaultSignerFactory usa o Engine do pacote signer.
func DefaultSignerFactory(key *rsa.PrivateKey, cert *x509.Certificate) (nfse.EnvelopeSigner, error) {
	return signer.NewEngine(key, cert)
}

// ReceiptPDFGenerator gera o comprovante de um documento emitido e o relatório de lote.
type ReceiptPDFGenerator interface {
	GenerateReceipt(ctx context.Context, doc *entity.FiscalDocument, issuer *entity.Issuer, taxes domnfse.TaxSummary) ([]byte, error)
	GenerateBatchReport(ctx context.Context, issuer *entity.Issuer, report *BatchReport, generatedAt time.Time) ([]byte, error)
}
