package nfse_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	"github.com/jhoicas/emissor-nfse/internal/domain/nfse"
)

func TestValidateDocument_RPSValido(t *testing.T) {
	require.NoError(t, nfse.ValidateDocument(testRPS(), testIssuer()))
}

func TestValidateDocument_AcumulaErros(t *testing.T) {
	doc := testRPS()
	doc.ServiceDescription = ""
	doc.Taker.TaxID = "12345678900"
	doc.GrossValue = decimal.Zero

	err := nfse.ValidateDocument(doc, testIssuer())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidDocument))
	assert.Contains(t, err.Error(), "service_description")
	assert.Contains(t, err.Error(), "taker.tax_id")
	assert.Contains(t, err.Error(), "gross_value")

	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestValidateDocument_RPSCamposDaCadeia(t *testing.T) {
	doc := testRPS()
	doc.Series = "  "
	doc.IssueDate = time.Time{}

	err := nfse.ValidateDocument(doc, testIssuer())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidDocument))
	assert.Contains(t, err.Error(), "series")
	assert.Contains(t, err.Error(), "issue_date")

	doc = testRPS()
	doc.Series = "ABCDEF"
	err = nfse.ValidateDocument(doc, testIssuer())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "series")
}

func TestValidateDocument_NFTSExigePrestador(t *testing.T) {
	doc := testRPS()
	doc.Dialect = entity.DialectNFTS
	doc.ExternalNumber = "123"
	doc.Provider = entity.Party{}

	err := nfse.ValidateDocument(doc, testIssuer())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider.tax_id")
}

func TestValidateDocument_DPSExigeCodigoNacionalEMunicipio(t *testing.T) {
	doc := testRPS()
	doc.Dialect = entity.DialectDPS
	issuer := testIssuer()
	issuer.MunicipalityCode = ""

	err := nfse.ValidateDocument(doc, issuer)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "national_tax_code")
	assert.Contains(t, err.Error(), "issuer.municipality_code")
}

func TestComputeTaxes(t *testing.T) {
	doc := testRPS()
	doc.GrossValue = decimal.RequireFromString("1000.00")
	doc.Deductions = decimal.RequireFromString("100.00")
	doc.UnconditionalDiscount = decimal.RequireFromString("50.00")
	doc.ISSRate = decimal.RequireFromString("2.00")
	doc.ISSWithheld = true
	doc.Withholdings.PIS = decimal.RequireFromString("6.50")
	doc.Withholdings.COFINS = decimal.RequireFromString("30.00")
	doc.TaxReform.CBSValue = decimal.RequireFromString("9.00")
	doc.TaxReform.CBSWithheld = true

	s := nfse.ComputeTaxes(doc)
	assert.True(t, s.Base.Equal(decimal.RequireFromString("850.00")), s.Base.String())
	assert.True(t, s.ISS.Equal(decimal.RequireFromString("17.00")), s.ISS.String())
	assert.True(t, s.Retentions.Equal(decimal.RequireFromString("62.50")), s.Retentions.String())
	assert.True(t, s.Net.Equal(decimal.RequireFromString("937.50")), s.Net.String())
}

func TestFailureOutcomeSummary(t *testing.T) {
	f := &nfse.FailureOutcome{Errors: []nfse.Message{{Code: "1057", Description: "Assinatura inválida"}, {Description: "sem código"}}}
	assert.Equal(t, "1057 - Assinatura inválida; sem código", f.Summary())
	assert.False(t, f.Succeeded())
	assert.Equal(t, "rejeitado sem mensagem de erro", (&nfse.FailureOutcome{}).Summary())
}

// ── helpers ────────────────────────────────────────────────────────────────────

func testIssuer() *entity.Issuer {
	return &entity.Issuer{
		ID:                    "issuer-1",
		CNPJ:                  "29797601000159",
		LegalName:             "Emissora Teste Ltda",
		MunicipalRegistration: "59073470",
		MunicipalityCode:      "3550308",
	}
}

func testRPS() *entity.FiscalDocument {
	return &entity.FiscalDocument{
		ID:                 "doc-1",
		IssuerID:           "issuer-1",
		Dialect:            entity.DialectRPS,
		Status:             entity.DocumentStatusPending,
		Series:             "001",
		IssueDate:          time.Date(2024, 7, 24, 0, 0, 0, 0, time.UTC),
		Taxation:           "T",
		Taker:              entity.Party{TaxID: "03752826703", Name: "Fulano de Tal"},
		Provider:           entity.Party{TaxID: "47960950000121", Name: "Prestadora"},
		ServiceCode:        "6297",
		ServiceDescription: "Consultoria em TI",
		GrossValue:         decimal.RequireFromString("40.20"),
		ISSRate:            decimal.RequireFromString("2.00"),
	}
}
