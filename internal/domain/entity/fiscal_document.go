package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Dialetos de documento fiscal suportados.
const (
	DialectRPS  = "rps"  // RPS municipal de São Paulo (gera NFS-e)
	DialectNFTS = "nfts" // NFTS municipal de São Paulo (declaração do tomador)
	DialectDPS  = "dps"  // DPS do padrão nacional (SEFIN)
)

// Estados do ciclo de vida.
const (
	DocumentStatusPending  = "pending"
	DocumentStatusIssued   = "issued"
	DocumentStatusCanceled = "canceled"
	DocumentStatusError    = "error"
)

// Tipos de tributação do serviço (TributacaoRPS / TributacaoNFTS).
const (
	TaxationInMunicipality  = "T"
	TaxationOutMunicipality = "F"
	TaxationExempt          = "I"
	TaxationNotTaxed        = "N"
)

// Party identifica tomador ou prestador.
type Party struct {
	TaxID                 string // CPF (11) ou CNPJ (14), somente dígitos
	Name                  string
	MunicipalRegistration string
	Street                string
	Number                string
	District              string
	City                  string
	State                 string
	ZipCode               string
	MunicipalityCode      string // IBGE
	Email                 string
}

// Withholdings retenções federais destacadas na nota.
type Withholdings struct {
	PIS    decimal.Decimal
	COFINS decimal.Decimal
	INSS   decimal.Decimal
	IR     decimal.Decimal
	CSLL   decimal.Decimal
}

// Total soma das retenções federais.
func (w Withholdings) Total() decimal.Decimal {
	return w.PIS.Add(w.COFINS).Add(w.INSS).Add(w.IR).Add(w.CSLL)
}

// TaxReform campos IBS/CBS da reforma tributária (apenas expostos, sem cálculo completo).
type TaxReform struct {
	IBSRate     decimal.Decimal
	IBSValue    decimal.Decimal
	IBSWithheld bool
	CBSRate     decimal.Decimal
	CBSValue    decimal.Decimal
	CBSWithheld bool
}

// FiscalDocument entidade genérica para RPS, NFTS e DPS.
type FiscalDocument struct {
	ID             string
	IssuerID       string
	Dialect        string // ver Dialect*
	Status         string // ver DocumentStatus*
	Series         string
	SequenceNumber *int64 // nil até a primeira tentativa de envio
	IssueDate      time.Time
	CompetenceDate time.Time // dCompet da DPS; zero = IssueDate
	Taxation       string    // T, F, I, N

	Taker    Party // tomador do serviço
	Provider Party // prestador (NFTS: quem prestou o serviço declarado)

	ServiceCode        string // código do serviço municipal
	NationalTaxCode    string // cTribNac (DPS)
	ServiceDescription string

	GrossValue            decimal.Decimal
	Deductions            decimal.Decimal
	UnconditionalDiscount decimal.Decimal
	ISSRate               decimal.Decimal // em percentual (ex.: 2.00 = 2%)
	ISSWithheld           bool
	Withholdings          Withholdings
	TaxReform             TaxReform

	// Somente NFTS.
	DocumentKind   string // nfe, nfse, cupom, recibo
	ProviderRegime string // simples, presumido, real, mei
	ExternalNumber string // número do documento recebido

	// Preenchidos pelo protocolo.
	ProtocolNumber   string
	VerificationCode string
	AccessKey        string // chaveAcesso da NFS-e nacional
	ViewURL          string
	SignedXML        string
	LastError        string
	IssuedAt         *time.Time
	CanceledAt       *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsTerminal indica se o documento não aceita novo envio. Um documento com número de NFS-e
// ou chave de acesso atribuídos continua terminal mesmo em error (cancelamento que falhou).
func (d *FiscalDocument) IsTerminal() bool {
	return d.Status == DocumentStatusIssued || d.Status == DocumentStatusCanceled ||
		strings.TrimSpace(d.ProtocolNumber) != "" || d.AccessKey != ""
}

// Cancelable emitido, ou em error após cancelamento rejeitado, e ainda não cancelado.
func (d *FiscalDocument) Cancelable() bool {
	if d.CanceledAt != nil || d.Status == DocumentStatusCanceled {
		return false
	}
	if d.Status == DocumentStatusIssued {
		return true
	}
	return d.Status == DocumentStatusError && strings.TrimSpace(d.ProtocolNumber) != ""
}
