package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// PartyDTO tomador ou prestador.
type PartyDTO struct {
	TaxID                 string `json:"tax_id"`
	Name                  string `json:"name"`
	MunicipalRegistration string `json:"municipal_registration,omitempty"`
	Street                string `json:"street,omitempty"`
	Number                string `json:"number,omitempty"`
	District              string `json:"district,omitempty"`
	City                  string `json:"city,omitempty"`
	State                 string `json:"state,omitempty"`
	ZipCode               string `json:"zip_code,omitempty"`
	MunicipalityCode      string `json:"municipality_code,omitempty"`
	Email                 string `json:"email,omitempty"`
}

// WithholdingsDTO retenções federais.
type WithholdingsDTO struct {
	PIS    decimal.Decimal `json:"pis"`
	COFINS decimal.Decimal `json:"cofins"`
	INSS   decimal.Decimal `json:"inss"`
	IR     decimal.Decimal `json:"ir"`
	CSLL   decimal.Decimal `json:"csll"`
}

// TaxReformDTO IBS/CBS.
type TaxReformDTO struct {
	IBSRate     decimal.Decimal `json:"ibs_rate"`
	IBSValue    decimal.Decimal `json:"ibs_value"`
	IBSWithheld bool            `json:"ibs_withheld"`
	CBSRate     decimal.Decimal `json:"cbs_rate"`
	CBSValue    decimal.Decimal `json:"cbs_value"`
	CBSWithheld bool            `json:"cbs_withheld"`
}

// CreateDocumentRequest entrada para registrar um documento pendente.
// Datas no formato AAAA-MM-DD.
type CreateDocumentRequest struct {
	IssuerID              string          `json:"issuer_id" validate:"required,uuid"`
	Dialect               string          `json:"dialect" validate:"required,oneof=rps nfts dps"`
	Series                string          `json:"series"`
	IssueDate             string          `json:"issue_date" validate:"required"`
	CompetenceDate        string          `json:"competence_date"`
	Taxation              string          `json:"taxation"`
	Taker                 PartyDTO        `json:"taker"`
	Provider              PartyDTO        `json:"provider"`
	ServiceCode           string          `json:"service_code"`
	NationalTaxCode       string          `json:"national_tax_code"`
	ServiceDescription    string          `json:"service_description"`
	GrossValue            decimal.Decimal `json:"gross_value"`
	Deductions            decimal.Decimal `json:"deductions"`
	UnconditionalDiscount decimal.Decimal `json:"unconditional_discount"`
	ISSRate               decimal.Decimal `json:"iss_rate"`
	ISSWithheld           bool            `json:"iss_withheld"`
	Withholdings          WithholdingsDTO `json:"withholdings"`
	TaxReform             TaxReformDTO    `json:"tax_reform"`
	DocumentKind          string          `json:"document_kind"`
	ProviderRegime        string          `json:"provider_regime"`
	ExternalNumber        string          `json:"external_number"`
}

// TaxSummaryDTO base, ISS, retenções e líquido.
type TaxSummaryDTO struct {
	Base       decimal.Decimal `json:"base"`
	ISS        decimal.Decimal `json:"iss"`
	Retentions decimal.Decimal `json:"retentions"`
	Net        decimal.Decimal `json:"net"`
}

// DocumentResponse saída de um documento fiscal.
type DocumentResponse struct {
	ID                 string          `json:"id"`
	IssuerID           string          `json:"issuer_id"`
	Dialect            string          `json:"dialect"`
	Status             string          `json:"status"`
	Series             string          `json:"series,omitempty"`
	SequenceNumber     *int64          `json:"sequence_number,omitempty"`
	IssueDate          string          `json:"issue_date"`
	Taxation           string          `json:"taxation,omitempty"`
	Taker              PartyDTO        `json:"taker"`
	Provider           *PartyDTO       `json:"provider,omitempty"`
	ServiceCode        string          `json:"service_code,omitempty"`
	NationalTaxCode    string          `json:"national_tax_code,omitempty"`
	ServiceDescription string          `json:"service_description"`
	GrossValue         decimal.Decimal `json:"gross_value"`
	ISSRate            decimal.Decimal `json:"iss_rate"`
	ISSWithheld        bool            `json:"iss_withheld"`
	Taxes              TaxSummaryDTO   `json:"taxes"`
	ExternalNumber     string          `json:"external_number,omitempty"`
	ProtocolNumber     string          `json:"protocol_number,omitempty"`
	VerificationCode   string          `json:"verification_code,omitempty"`
	AccessKey          string          `json:"access_key,omitempty"`
	ViewURL            string          `json:"view_url,omitempty"`
	LastError          string          `json:"last_error,omitempty"`
	IssuedAt           *time.Time      `json:"issued_at,omitempty"`
	CanceledAt         *time.Time      `json:"canceled_at,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// DocumentListResponse lista paginada de documentos.
type DocumentListResponse struct {
	Items []DocumentResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}
