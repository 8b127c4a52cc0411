package entity

import "time"

// Issuer representa a empresa emissora (prestadora ou tomadora) que assina com seu próprio certificado.
type Issuer struct {
	ID                    string
	AccountID             string // conta contratante dona do emissor
	CNPJ                  string // somente dígitos
	LegalName             string // razão social
	TradeName             string
	MunicipalRegistration string // inscrição municipal (CCM em São Paulo)
	MunicipalityCode      string // código IBGE de 7 dígitos
	SimplesNacional       string // opSimpNac da DPS: 1 não optante, 2 MEI, 3 ME/EPP
	SpecialRegime         string // regEspTrib da DPS, "0" = nenhum
	CertificateFile       string // nome do arquivo .pfx dentro do diretório de certificados
	CertificatePassword   string
	CertificateExpiry     *time.Time // nil até o primeiro upload
	Active                bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// HasCertificate indica se há bundle provisionado.
func (i *Issuer) HasCertificate() bool {
	return i.CertificateFile != ""
}

// CertificateExpired retorna nil quando a validade é desconhecida.
func (i *Issuer) CertificateExpired(now time.Time) *bool {
	if i.CertificateExpiry == nil {
		return nil
	}
	v := i.CertificateExpiry.Before(now)
	return &v
}

// CertificateExpiresSoon verifica se o certificado vence dentro da janela informada.
func (i *Issuer) CertificateExpiresSoon(now time.Time, window time.Duration) *bool {
	if i.CertificateExpiry == nil {
		return nil
	}
	v := i.CertificateExpiry.Before(now.Add(window))
	return &v
}
