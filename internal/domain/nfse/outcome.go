package nfse

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Message par código/descrição usado em alertas e erros devolvidos pelo webservice.
type Message struct {
	Code        string
	Description string
}

// Outcome resultado normalizado de uma chamada ao webservice.
// Implementado apenas por SuccessOutcome e FailureOutcome.
type Outcome interface {
	Succeeded() bool
	Raw() string
}

// SuccessOutcome documento aceito (emitido, cancelado ou consultado).
type SuccessOutcome struct {
	Number           string // número da NFS-e / NFTS atribuído
	VerificationCode string
	AccessKey        string // chaveAcesso (padrão nacional)
	Warnings         []Message
	RawResponse      string
}

func (o *SuccessOutcome) Succeeded() bool { return true }
func (o *SuccessOutcome) Raw() string     { return o.RawResponse }

// FailureOutcome rejeição de negócio ou recusa local (estado final).
type FailureOutcome struct {
	Errors      []Message
	RawResponse string
}

func (o *FailureOutcome) Succeeded() bool { return false }
func (o *FailureOutcome) Raw() string     { return o.RawResponse }

// Summary texto legível com os erros, usado como mensagem de erro do documento.
func (o *FailureOutcome) Summary() string {
	if len(o.Errors) == 0 {
		return "rejeitado sem mensagem de erro"
	}
	parts := make([]string, 0, len(o.Errors))
	for _, e := range o.Errors {
		if e.Code != "" {
			parts = append(parts, e.Code+" - "+e.Description)
		} else {
			parts = append(parts, e.Description)
		}
	}
	return strings.Join(parts, "; ")
}

var (
	_ Outcome = (*SuccessOutcome)(nil)
	_ Outcome = (*FailureOutcome)(nil)
)

// IssuedInvoice NFS-e devolvida pela consulta por período.
type IssuedInvoice struct {
	MunicipalRegistration string
	Number                string
	VerificationCode      string
	IssuedAt              time.Time
	ProviderTaxID         string
	ProviderName          string
	Status                string // N normal, C cancelada
	ServiceValue          decimal.Decimal
	ISSValue              decimal.Decimal
	ISSWithheld           bool
	Description           string
	TakerTaxID            string
	TakerName             string
}
