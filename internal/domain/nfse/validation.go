package nfse

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

// ValidateDocument valida os campos de negócio exigidos antes de montar o envelope.
// Todos os problemas são acumulados; o erro retornado casa com domain.ErrInvalidDocument
// e cada item com *domain.ValidationError (via errors.As).
func ValidateDocument(doc *entity.FiscalDocument, issuer *entity.Issuer) error {
	if doc == nil {
		return fmt.Errorf("%w: documento nulo", domain.ErrInvalidDocument)
	}
	if issuer == nil {
		return fmt.Errorf("%w: emissor nulo", domain.ErrInvalidDocument)
	}
	var errs []error
	add := func(field, msg string) {
		errs = append(errs, domain.NewValidationError(field, msg))
	}

	if err := fiscal.ValidateCNPJ(issuer.CNPJ); err != nil {
		add("issuer.cnpj", err.Error())
	}
	if strings.TrimSpace(doc.ServiceCode) == "" && doc.Dialect != entity.DialectDPS {
		add("service_code", "obrigatório")
	}
	if strings.TrimSpace(doc.ServiceDescription) == "" {
		add("service_description", "obrigatória")
	}
	if !doc.GrossValue.IsPositive() {
		add("gross_value", "deve ser maior que zero")
	}
	if doc.Deductions.IsNegative() {
		add("deductions", "não pode ser negativa")
	}
	if doc.ISSRate.IsNegative() || doc.ISSRate.GreaterThan(decimal.NewFromInt(100)) {
		add("iss_rate", "deve estar entre 0 e 100")
	}

	switch doc.Dialect {
	case entity.DialectRPS:
		if strings.TrimSpace(issuer.MunicipalRegistration) == "" {
			add("issuer.municipal_registration", "obrigatória para RPS")
		}
		if series := strings.TrimSpace(doc.Series); series == "" || len(series) > 5 {
			add("series", "deve ter de 1 a 5 caracteres")
		}
		if doc.IssueDate.IsZero() {
			add("issue_date", "data de emissão é obrigatória")
		}
		if len(fiscal.OnlyDigits(doc.ServiceCode)) > 5 {
			add("service_code", "máximo de 5 dígitos")
		}
		if !fiscal.ValidTaxations[doc.Taxation] {
			add("taxation", "deve ser T, F, I ou N")
		}
		validateParty(doc.Taker, "taker", false, add)
	case entity.DialectNFTS:
		if strings.TrimSpace(issuer.MunicipalRegistration) == "" {
			add("issuer.municipal_registration", "obrigatória para NFTS")
		}
		if strings.TrimSpace(doc.ExternalNumber) == "" {
			add("external_number", "número do documento recebido é obrigatório")
		}
		if !fiscal.ValidTaxations[doc.Taxation] {
			add("taxation", "deve ser T, F, I ou N")
		}
		if doc.IssueDate.IsZero() {
			add("issue_date", "data da prestação é obrigatória")
		}
		validateParty(doc.Provider, "provider", false, add)
	case entity.DialectDPS:
		if len(fiscal.OnlyDigits(issuer.MunicipalityCode)) != 7 {
			add("issuer.municipality_code", "código IBGE de 7 dígitos é obrigatório")
		}
		if strings.TrimSpace(doc.NationalTaxCode) == "" {
			add("national_tax_code", "cTribNac é obrigatório")
		}
		if !doc.ISSRate.IsPositive() {
			add("iss_rate", "alíquota do ISS deve ser maior que zero")
		}
		validateParty(doc.Taker, "taker", true, add)
	default:
		add("dialect", fmt.Sprintf("dialeto desconhecido %q", doc.Dialect))
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{domain.ErrInvalidDocument}, errs...)...)
	}
	return nil
}

func validateParty(p entity.Party, prefix string, requireName bool, add func(field, msg string)) {
	if strings.TrimSpace(p.TaxID) == "" {
		add(prefix+".tax_id", "CPF/CNPJ é obrigatório")
	} else if err := fiscal.ValidateTaxID(p.TaxID); err != nil {
		add(prefix+".tax_id", err.Error())
	}
	if requireName && strings.TrimSpace(p.Name) == "" {
		add(prefix+".name", "nome/razão social é obrigatório")
	}
}
