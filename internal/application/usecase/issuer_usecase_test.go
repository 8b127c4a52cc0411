package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/emissor-nfse/internal/application/dto"
	"github.com/jhoicas/emissor-nfse/internal/application/usecase"
	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse/certstore"
	"github.com/jhoicas/emissor-nfse/internal/testutil/certtest"
)

func TestIssuerCreate(t *testing.T) {
	repo := newMemIssuers()
	uc := usecase.NewIssuerUseCase(repo, certstore.NewStore(t.TempDir()), 30*24*time.Hour)
	ctx := context.Background()

	out, err := uc.Create(ctx, "acc-1", dto.CreateIssuerRequest{
		CNPJ: "11.222.333/0001-81", LegalName: " EMPRESA TESTE LTDA ", MunicipalityCode: "3550308",
	})
	require.NoError(t, err)
	assert.Equal(t, "11222333000181", out.CNPJ)
	assert.Equal(t, "EMPRESA TESTE LTDA", out.LegalName)
	assert.Equal(t, "1", out.SimplesNacional)
	assert.Equal(t, "0", out.SpecialRegime)
	assert.False(t, out.HasCertificate)
	assert.True(t, out.Active)

	_, err = uc.Create(ctx, "acc-1", dto.CreateIssuerRequest{CNPJ: "11222333000181", LegalName: "Outra"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = uc.Create(ctx, "acc-1", dto.CreateIssuerRequest{CNPJ: "11222333000182", LegalName: "Outra"})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "cnpj", vErr.Field)

	_, err = uc.Create(ctx, "acc-1", dto.CreateIssuerRequest{CNPJ: "11444777000161", LegalName: "Outra", MunicipalityCode: "355"})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "municipality_code", vErr.Field)
}

func TestIssuerOwnership(t *testing.T) {
	uc := usecase.NewIssuerUseCase(newMemIssuers(ownedIssuer()), certstore.NewStore(t.TempDir()), 0)
	ctx := context.Background()

	_, err := uc.GetByID(ctx, "acc-2", "iss-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = uc.GetByID(ctx, "acc-1", "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := uc.List(ctx, "acc-1", 20, 0)
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)

	inactive := false
	out, err := uc.Update(ctx, "acc-1", "iss-1", dto.UpdateIssuerRequest{Active: &inactive})
	require.NoError(t, err)
	assert.False(t, out.Active)
}

func TestUploadCertificate(t *testing.T) {
	dir := t.TempDir()
	repo := newMemIssuers(ownedIssuer())
	uc := usecase.NewIssuerUseCase(repo, certstore.NewStore(dir), 30*24*time.Hour)
	ctx := context.Background()

	status, err := uc.CertificateStatus(ctx, "acc-1", "iss-1")
	require.NoError(t, err)
	assert.False(t, status.HasCertificate)
	assert.Nil(t, status.Expired)
	assert.Nil(t, status.ExpiresSoon)

	notAfter := time.Now().Add(10 * 24 * time.Hour).Truncate(time.Second).UTC()
	id := certtest.NewWithExpiry(t, "EMPRESA TESTE LTDA:11222333000181", notAfter)

	_, err = uc.UploadCertificate(ctx, "acc-1", "iss-1", id.Bundle(t, "certo"), "errado")
	var cErr *domain.CertificateError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, domain.CertReasonWrongPassword, cErr.Reason)

	status, err = uc.UploadCertificate(ctx, "acc-1", "iss-1", id.Bundle(t, "certo"), "certo")
	require.NoError(t, err)
	assert.True(t, status.HasCertificate)
	require.NotNil(t, status.NotAfter)
	assert.True(t, status.NotAfter.Equal(notAfter))
	require.NotNil(t, status.Expired)
	assert.False(t, *status.Expired)
	require.NotNil(t, status.ExpiresSoon)
	assert.True(t, *status.ExpiresSoon)

	saved, _ := repo.GetByID(ctx, "iss-1")
	assert.Equal(t, "11222333000181.pfx", saved.CertificateFile)
	assert.Equal(t, "certo", saved.CertificatePassword)
	assert.FileExists(t, dir+"/11222333000181.pem")

	_, err = uc.UploadCertificate(ctx, "acc-2", "iss-1", id.Bundle(t, "certo"), "certo")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
