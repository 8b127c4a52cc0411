package jwt_test

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/emissor-nfse/pkg/jwt"
)

func TestGenerateAndParse(t *testing.T) {
	token, err := jwt.Generate("segredo", "u1", "acc1", "operator", "emissor-nfse", 5)
	require.NoError(t, err)

	userID, accountID, role, err := jwt.Parse("segredo", token)
	require.NoError(t, err)
	assert.Equal(t, "u1", userID)
	assert.Equal(t, "acc1", accountID)
	assert.Equal(t, "operator", role)
}

func TestParse_Rejects(t *testing.T) {
	token, err := jwt.Generate("segredo", "u1", "acc1", "viewer", "emissor-nfse", 5)
	require.NoError(t, err)

	_, _, _, err = jwt.Parse("outro", token)
	assert.Error(t, err)

	expired, err := jwt.Generate("segredo", "u1", "acc1", "viewer", "emissor-nfse", -1)
	require.NoError(t, err)
	_, _, _, err = jwt.Parse("segredo", expired)
	assert.Error(t, err)

	_, err = jwt.Generate("", "u1", "acc1", "viewer", "x", 5)
	assert.Error(t, err)
}

func TestGenerate_RequiresUserAndAccount(t *testing.T) {
	_, err := jwt.Generate("segredo", "", "acc1", "viewer", "emissor-nfse", 5)
	assert.Error(t, err)
	_, err = jwt.Generate("segredo", "u1", "", "viewer", "emissor-nfse", 5)
	assert.Error(t, err)
}

func TestParse_RejectsForgedClaims(t *testing.T) {
	sign := func(method gojwt.SigningMethod, claims gojwt.Claims) string {
		t.Helper()
		tok, err := gojwt.NewWithClaims(method, claims).SignedString([]byte("segredo"))
		require.NoError(t, err)
		return tok
	}
	exp := gojwt.NewNumericDate(time.Now().Add(time.Hour))

	cases := map[string]string{
		"sem conta": sign(gojwt.SigningMethodHS256, jwt.Claims{
			RegisteredClaims: gojwt.RegisteredClaims{Subject: "u1", ExpiresAt: exp},
			UserID:           "u1",
		}),
		"subject divergente": sign(gojwt.SigningMethodHS256, jwt.Claims{
			RegisteredClaims: gojwt.RegisteredClaims{Subject: "u2", ExpiresAt: exp},
			UserID:           "u1",
			AccountID:        "acc1",
		}),
		"sem expiração": sign(gojwt.SigningMethodHS256, jwt.Claims{
			RegisteredClaims: gojwt.RegisteredClaims{Subject: "u1"},
			UserID:           "u1",
			AccountID:        "acc1",
		}),
		"HS512": sign(gojwt.SigningMethodHS512, jwt.Claims{
			RegisteredClaims: gojwt.RegisteredClaims{Subject: "u1", ExpiresAt: exp},
			UserID:           "u1",
			AccountID:        "acc1",
		}),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, _, err := jwt.Parse("segredo", tok)
			assert.Error(t, err)
		})
	}
}
