package dto

import "time"

// CreateIssuerRequest entrada para cadastrar um emissor.
type CreateIssuerRequest struct {
	CNPJ                  string `json:"cnpj" validate:"required"`
	LegalName             string `json:"legal_name" validate:"required,max=150"`
	TradeName             string `json:"trade_name"`
	MunicipalRegistration string `json:"municipal_registration"`
	MunicipalityCode      string `json:"municipality_code"` // IBGE, 7 dígitos
	SimplesNacional       string `json:"simples_nacional" validate:"omitempty,oneof=1 2 3"`
	SpecialRegime         string `json:"special_regime"`
}

// UpdateIssuerRequest campos opcionais.
type UpdateIssuerRequest struct {
	LegalName             *string `json:"legal_name"`
	TradeName             *string `json:"trade_name"`
	MunicipalRegistration *string `json:"municipal_registration"`
	MunicipalityCode      *string `json:"municipality_code"`
	SimplesNacional       *string `json:"simples_nacional"`
	SpecialRegime         *string `json:"special_regime"`
	Active                *bool   `json:"active"`
}

// IssuerResponse saída de um emissor; a senha do certificado nunca sai.
type IssuerResponse struct {
	ID                    string     `json:"id"`
	CNPJ                  string     `json:"cnpj"`
	LegalName             string     `json:"legal_name"`
	TradeName             string     `json:"trade_name,omitempty"`
	MunicipalRegistration string     `json:"municipal_registration,omitempty"`
	MunicipalityCode      string     `json:"municipality_code,omitempty"`
	SimplesNacional       string     `json:"simples_nacional"`
	SpecialRegime         string     `json:"special_regime"`
	HasCertificate        bool       `json:"has_certificate"`
	CertificateExpiry     *time.Time `json:"certificate_expiry,omitempty"`
	Active                bool       `json:"active"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// IssuerListResponse lista paginada de emissores.
type IssuerListResponse struct {
	Items []IssuerResponse `json:"items"`
	Page  PageResponse     `json:"page"`
}

// CertificateStatusResponse situação do certificado A1 do emissor.
// Expired e ExpiresSoon ficam nulos enquanto a validade é desconhecida.
type CertificateStatusResponse struct {
	IssuerID       string     `json:"issuer_id"`
	HasCertificate bool       `json:"has_certificate"`
	NotAfter       *time.Time `json:"not_after,omitempty"`
	Expired        *bool      `json:"expired"`
	ExpiresSoon    *bool      `json:"expires_soon"`
}
