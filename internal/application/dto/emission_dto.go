package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// MessageDTO alerta ou erro devolvido pela prefeitura.
type MessageDTO struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// OutcomeResponse resultado de envio ou cancelamento.
type OutcomeResponse struct {
	DocumentID       string       `json:"document_id"`
	Succeeded        bool         `json:"succeeded"`
	Number           string       `json:"number,omitempty"`
	VerificationCode string       `json:"verification_code,omitempty"`
	AccessKey        string       `json:"access_key,omitempty"`
	Warnings         []MessageDTO `json:"warnings,omitempty"`
	Errors           []MessageDTO `json:"errors,omitempty"`
}

// BatchRequest lote de documentos de um emissor.
type BatchRequest struct {
	IssuerID    string   `json:"issuer_id" validate:"required,uuid"`
	DocumentIDs []string `json:"document_ids" validate:"required,min=1"`
}

// BatchItemResponse resultado de um documento do lote.
type BatchItemResponse struct {
	DocumentID string `json:"document_id"`
	Succeeded  bool   `json:"succeeded"`
	Number     string `json:"number,omitempty"`
	Message    string `json:"message,omitempty"`
}

// BatchResponse relatório do lote, na ordem de entrada.
type BatchResponse struct {
	Action    string              `json:"action"`
	Succeeded int                 `json:"succeeded"`
	Failed    int                 `json:"failed"`
	Items     []BatchItemResponse `json:"items"`
}

// PeriodQueryRequest consulta de NFS-e emitidas ou recebidas. Datas AAAA-MM-DD.
type PeriodQueryRequest struct {
	IssuerID string `query:"issuer_id"`
	Kind     string `query:"kind"` // emitidas | recebidas
	From     string `query:"from"`
	To       string `query:"to"`
	Page     int    `query:"page"`
}

// IssuedInvoiceDTO NFS-e devolvida pela consulta.
type IssuedInvoiceDTO struct {
	Number                string          `json:"number"`
	VerificationCode      string          `json:"verification_code"`
	MunicipalRegistration string          `json:"municipal_registration"`
	IssuedAt              time.Time       `json:"issued_at"`
	Status                string          `json:"status"`
	ProviderTaxID         string          `json:"provider_tax_id"`
	ProviderName          string          `json:"provider_name"`
	TakerTaxID            string          `json:"taker_tax_id,omitempty"`
	TakerName             string          `json:"taker_name,omitempty"`
	ServiceValue          decimal.Decimal `json:"service_value"`
	ISSValue              decimal.Decimal `json:"iss_value"`
	ISSWithheld           bool            `json:"iss_withheld"`
	Description           string          `json:"description,omitempty"`
}

// PeriodQueryResponse lista devolvida pela prefeitura.
type PeriodQueryResponse struct {
	Kind  string             `json:"kind"`
	Items []IssuedInvoiceDTO `json:"items"`
}
