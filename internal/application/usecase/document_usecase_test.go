package usecase_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/emissor-nfse/internal/application/dto"
	"github.com/jhoicas/emissor-nfse/internal/application/usecase"
	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	"github.com/jhoicas/emissor-nfse/internal/domain/repository"
)

func createRequest() dto.CreateDocumentRequest {
	return dto.CreateDocumentRequest{
		IssuerID:           "iss-1",
		Dialect:            "RPS",
		IssueDate:          "2024-07-24",
		Taker:              dto.PartyDTO{TaxID: "375.282.670-31", Name: "José da Conceição", ZipCode: "01305-000"},
		ServiceCode:        "02919",
		ServiceDescription: "Serviço de manutenção",
		GrossValue:         decimal.RequireFromString("40.20"),
		ISSRate:            decimal.RequireFromString("2"),
	}
}

func TestDocumentCreate(t *testing.T) {
	docs := newMemDocs()
	uc := usecase.NewDocumentUseCase(docs, newMemIssuers(ownedIssuer()))

	out, err := uc.Create(context.Background(), "acc-1", createRequest())
	require.NoError(t, err)
	assert.Equal(t, entity.DialectRPS, out.Dialect)
	assert.Equal(t, entity.DocumentStatusPending, out.Status)
	assert.Equal(t, "1", out.Series)
	assert.Equal(t, "T", out.Taxation)
	assert.Equal(t, "37528267031", out.Taker.TaxID)
	assert.Equal(t, "01305000", out.Taker.ZipCode)
	assert.Equal(t, "2024-07-24", out.IssueDate)
	assert.Equal(t, "0.80", out.Taxes.ISS.StringFixed(2))
	assert.Nil(t, out.SequenceNumber)
	assert.Nil(t, out.Provider)
}

func TestDocumentCreate_Invalid(t *testing.T) {
	uc := usecase.NewDocumentUseCase(newMemDocs(), newMemIssuers(ownedIssuer()))
	ctx := context.Background()

	for field, mutate := range map[string]func(*dto.CreateDocumentRequest){
		"dialect":     func(r *dto.CreateDocumentRequest) { r.Dialect = "nfe" },
		"issue_date":  func(r *dto.CreateDocumentRequest) { r.IssueDate = "24/07/2024" },
		"gross_value": func(r *dto.CreateDocumentRequest) { r.GrossValue = decimal.NewFromInt(-1) },
	} {
		req := createRequest()
		mutate(&req)
		_, err := uc.Create(ctx, "acc-1", req)
		var vErr *domain.ValidationError
		require.ErrorAs(t, err, &vErr, field)
		assert.Equal(t, field, vErr.Field)
	}

	_, err := uc.Create(ctx, "acc-2", createRequest())
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestDocumentListAndDelete(t *testing.T) {
	issued := &entity.FiscalDocument{ID: "doc-2", IssuerID: "iss-1", Dialect: entity.DialectRPS, Status: entity.DocumentStatusIssued}
	pending := &entity.FiscalDocument{ID: "doc-1", IssuerID: "iss-1", Dialect: entity.DialectRPS, Status: entity.DocumentStatusPending}
	uc := usecase.NewDocumentUseCase(newMemDocs(pending, issued), newMemIssuers(ownedIssuer()))
	ctx := context.Background()

	_, err := uc.List(ctx, "acc-1", repository.DocumentFilter{})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)

	list, err := uc.List(ctx, "acc-1", repository.DocumentFilter{IssuerID: "iss-1", Status: entity.DocumentStatusPending})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "doc-1", list.Items[0].ID)

	assert.ErrorIs(t, uc.DeletePending(ctx, "acc-1", "doc-2"), domain.ErrConflict)
	assert.ErrorIs(t, uc.DeletePending(ctx, "acc-2", "doc-1"), domain.ErrForbidden)
	require.NoError(t, uc.DeletePending(ctx, "acc-1", "doc-1"))
	_, err = uc.GetByID(ctx, "acc-1", "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
