// Package nfse monta, assina e transmite os envelopes da NFS-e: RPS, NFTS e consultas
// do webservice da prefeitura de São Paulo e a DPS do padrão nacional.
package nfse

import (
	"github.com/beevik/etree"

	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse/signer"
)

// Operation operação remota de um envelope.
type Operation string

const (
	OpEnvioRPS             Operation = "EnvioRPS"
	OpCancelamentoNFe      Operation = "CancelamentoNFe"
	OpConsultaNFeEmitidas  Operation = "ConsultaNFeEmitidas"
	OpConsultaNFeRecebidas Operation = "ConsultaNFeRecebidas"
	OpEnvioNFTS            Operation = "EnvioNFTS"
	OpCancelamentoNFTS     Operation = "CancelamentoNFTS"
	OpEnvioDPS             Operation = "EnvioDPS"
)

// IsNational indica operação da API SEFIN (JSON) em vez do SOAP municipal.
func (o Operation) IsNational() bool { return o == OpEnvioDPS }

// BuildContext dados de entrada dos builders.
type BuildContext struct {
	Issuer   *entity.Issuer
	Document *entity.FiscalDocument
}

// LegacySigner assina as cadeias dos campos Assinatura / AssinaturaCancelamento.
type LegacySigner interface {
	SignLegacy(payload []byte) (signer.LegacySignedString, error)
}

// EnvelopeSigner aplica a assinatura XMLDSig envelopada.
type EnvelopeSigner interface {
	LegacySigner
	SignEnveloped(doc *etree.Document, opts signer.SignOptions) (*signer.EnvelopedXmlSignature, error)
}

// Envelope documento pronto para a assinatura envelopada.
type Envelope struct {
	Operation Operation
	Doc       *etree.Document
	Sign      signer.SignOptions
}

// Seal assina o envelope e serializa sem indentação.
func (e *Envelope) Seal(s EnvelopeSigner) ([]byte, error) {
	if _, err := s.SignEnveloped(e.Doc, e.Sign); err != nil {
		return nil, err
	}
	return e.Doc.WriteToBytes()
}

var _ EnvelopeSigner = (*signer.Engine)(nil)
