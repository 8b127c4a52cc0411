// Package nfse: cadeia de assinatura do RPS (leiaute NFS-e São Paulo v1).
// A prefeitura valida byte a byte; qualquer desvio de largura ou ordem gera
// rejeição silenciosa de assinatura do lado do webservice.

package nfse

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

// Larguras dos campos da cadeia de assinatura do RPS.
const (
	widthRegistration = 8
	widthSeries       = 5
	widthRPSNumber    = 12
	widthDate         = 8
	widthAmount       = 15
	widthServiceCode  = 5
	widthTaxID        = 14

	// LegacyPayloadLength tamanho total da cadeia do RPS.
	LegacyPayloadLength = widthRegistration + widthSeries + widthRPSNumber + widthDate +
		1 + 1 + 1 + widthAmount + widthAmount + widthServiceCode + 1 + widthTaxID

	// LegacyCancelPayloadLength tamanho da cadeia de cancelamento (inscrição + número da NFS-e).
	LegacyCancelPayloadLength = widthRegistration + widthRPSNumber
)

// LegacyPayloadParams dados do RPS na ordem exigida pela prefeitura.
type LegacyPayloadParams struct {
	MunicipalRegistration string          // inscrição do prestador (CCM)
	Series                string          // série do RPS, até 5 caracteres
	Number                string          // número do RPS, somente dígitos
	IssueDate             time.Time       // data de emissão
	Taxation              string          // T, F, I ou N
	Status                string          // N, C ou E
	ISSWithheld           bool            // S/N na cadeia
	ServiceValue          decimal.Decimal // valor dos serviços
	Deductions            decimal.Decimal // valor das deduções
	ServiceCode           string          // código do serviço
	TakerTaxID            string          // CPF ou CNPJ do tomador
}

// LegacyPayloadBuilder monta a cadeia de largura fixa assinada no campo Assinatura do RPS.
type LegacyPayloadBuilder struct{}

// NewLegacyPayloadBuilder cria o builder.
func NewLegacyPayloadBuilder() *LegacyPayloadBuilder {
	return &LegacyPayloadBuilder{}
}

// Build gera a cadeia (86 bytes ASCII).
// Ordem: IM(8) + Série(5) + Número(12) + AAAAMMDD(8) + Tributação(1) + Status(1) + ISSRetido(1) +
// Valor em centavos(15) + Dedução em centavos(15) + CódigoServiço(5) + TipoDoc(1) + CPF/CNPJ(14).
func (b *LegacyPayloadBuilder) Build(p *LegacyPayloadParams) (string, error) {
	if p == nil {
		return "", fmt.Errorf("nfse: LegacyPayloadParams é obrigatório")
	}

	im := fiscal.OnlyDigits(p.MunicipalRegistration)
	if im == "" {
		return "", domain.NewValidationError("municipal_registration", "obrigatória para a assinatura do RPS")
	}
	series := strings.TrimSpace(p.Series)
	if series == "" || len(series) > widthSeries {
		return "", domain.NewValidationError("series", "deve ter de 1 a 5 caracteres")
	}
	number := fiscal.OnlyDigits(p.Number)
	if number == "" || len(number) > widthRPSNumber {
		return "", domain.NewValidationError("sequence_number", "deve ter de 1 a 12 dígitos")
	}
	if p.IssueDate.IsZero() {
		return "", domain.NewValidationError("issue_date", "obrigatória")
	}
	if !fiscal.ValidTaxations[p.Taxation] {
		return "", domain.NewValidationError("taxation", "deve ser T, F, I ou N")
	}
	status := p.Status
	if status == "" {
		status = fiscal.RPSStatusNormal
	}
	code := fiscal.OnlyDigits(p.ServiceCode)
	if code == "" || len(code) > widthServiceCode {
		return "", domain.NewValidationError("service_code", "deve ter de 1 a 5 dígitos")
	}
	taxID := fiscal.OnlyDigits(p.TakerTaxID)
	if taxID == "" || len(taxID) > widthTaxID {
		return "", domain.NewValidationError("taker.tax_id", "CPF/CNPJ do tomador é obrigatório")
	}

	if p.ServiceValue.IsNegative() || p.Deductions.IsNegative() {
		return "", domain.NewValidationError("gross_value", "valores não podem ser negativos")
	}

	withheld := "N"
	if p.ISSWithheld {
		withheld = "S"
	}
	kind := "2"
	if len(taxID) <= 11 {
		kind = "1"
	}

	var sb strings.Builder
	sb.Grow(LegacyPayloadLength)
	sb.WriteString(zeroPad(truncate(im, widthRegistration), widthRegistration))
	sb.WriteString(padRight(series, widthSeries))
	sb.WriteString(zeroPad(number, widthRPSNumber))
	sb.WriteString(p.IssueDate.Format("20060102"))
	sb.WriteString(p.Taxation)
	sb.WriteString(status)
	sb.WriteString(withheld)
	sb.WriteString(zeroPad(serviceCents(p.ServiceValue), widthAmount))
	sb.WriteString(zeroPad(deductionCents(p.Deductions), widthAmount))
	sb.WriteString(zeroPad(code, widthServiceCode))
	sb.WriteString(kind)
	sb.WriteString(zeroPad(taxID, widthTaxID))

	out := sb.String()
	if len(out) != LegacyPayloadLength {
		return "", fmt.Errorf("nfse: cadeia do RPS com %d bytes, esperado %d", len(out), LegacyPayloadLength)
	}
	return out, nil
}

// BuildCancel gera a cadeia de cancelamento: IM(8) + número da NFS-e(12).
func (b *LegacyPayloadBuilder) BuildCancel(municipalRegistration, invoiceNumber string) (string, error) {
	im := fiscal.OnlyDigits(municipalRegistration)
	if im == "" {
		return "", domain.NewValidationError("municipal_registration", "obrigatória para o cancelamento")
	}
	number := fiscal.OnlyDigits(invoiceNumber)
	if number == "" || len(number) > widthRPSNumber {
		return "", domain.NewValidationError("protocol_number", "número da NFS-e ausente ou maior que 12 dígitos")
	}
	return zeroPad(truncate(im, widthRegistration), widthRegistration) + zeroPad(number, widthRPSNumber), nil
}

// serviceCents arredonda para 2 casas (meio para cima) antes de converter em centavos.
func serviceCents(d decimal.Decimal) string {
	return d.Round(2).Shift(2).StringFixed(0)
}

// deductionCents trunca a fração abaixo do centavo.
func deductionCents(d decimal.Decimal) string {
	return d.Truncate(2).Shift(2).StringFixed(0)
}

func zeroPad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

func truncate(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return s
}
