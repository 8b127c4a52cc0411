package pdf_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/emissor-nfse/internal/application/emission"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	domnfse "github.com/jhoicas/emissor-nfse/internal/domain/nfse"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/pdf"
)

func issuer() *entity.Issuer {
	return &entity.Issuer{
		ID:                    "iss-1",
		CNPJ:                  "11222333000181",
		LegalName:             "EMPRESA TESTE LTDA",
		MunicipalRegistration: "59073470",
		MunicipalityCode:      "3550308",
	}
}

func TestGenerateReceipt(t *testing.T) {
	issued := time.Date(2024, 7, 24, 11, 58, 0, 0, time.UTC)
	doc := &entity.FiscalDocument{
		ID:                 "doc-1",
		Dialect:            entity.DialectRPS,
		Status:             entity.DocumentStatusIssued,
		Taxation:           entity.TaxationInMunicipality,
		Taker:              entity.Party{TaxID: "37528267031", Name: "José da Conceição", City: "São Paulo", State: "sp"},
		ServiceCode:        "02919",
		ServiceDescription: "Serviço de manutenção",
		GrossValue:         decimal.RequireFromString("1500.00"),
		ISSRate:            decimal.RequireFromString("2.00"),
		ProtocolNumber:     "1044",
		VerificationCode:   "ABCD1234",
		ViewURL:            "https://nfe.prefeitura.sp.gov.br/contribuinte/notaprint.aspx?inscricao=59073470&nf=1044&verificacao=ABCD1234",
		IssuedAt:           &issued,
	}

	out, err := pdf.NewMarotoPDFGenerator().GenerateReceipt(context.Background(), doc, issuer(), domnfse.ComputeTaxes(doc))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestGenerateReceipt_CanceledNationalAndNFTS(t *testing.T) {
	for _, doc := range []*entity.FiscalDocument{
		{
			Dialect:   entity.DialectDPS,
			Status:    entity.DocumentStatusCanceled,
			Taker:     entity.Party{TaxID: "11222333000181", Name: "Tomador SA"},
			AccessKey: "35503082211222333000181000000000000124070000000001",
		},
		{
			Dialect:  entity.DialectNFTS,
			Status:   entity.DocumentStatusIssued,
			Provider: entity.Party{TaxID: "11222333000181"},
		},
	} {
		out, err := pdf.NewMarotoPDFGenerator().GenerateReceipt(context.Background(), doc, issuer(), domnfse.ComputeTaxes(doc))
		require.NoError(t, err)
		assert.NotEmpty(t, out)
	}
}

func TestGenerateBatchReport(t *testing.T) {
	report := &emission.BatchReport{
		Action: emission.ActionSubmit,
		Items: []emission.BatchItem{
			emission.ItemSucceeded{ID: "doc-1", Outcome: &domnfse.SuccessOutcome{Number: "1044", VerificationCode: "ABCD1234"}},
			emission.ItemFailed{ID: "doc-2", Message: "service_description - obrigatória"},
			emission.ItemFailed{ID: "doc-3", Message: "transporte", Err: errors.New("timeout")},
		},
		Succeeded: 1,
		Failed:    2,
	}

	out, err := pdf.NewMarotoPDFGenerator().GenerateBatchReport(context.Background(), issuer(), report, time.Now())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
