package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/emissor-nfse/internal/application/auth"
	"github.com/jhoicas/emissor-nfse/internal/application/dto"
	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	pkgjwt "github.com/jhoicas/emissor-nfse/pkg/jwt"
)

type memUsers struct{ byEmail map[string]*entity.User }

func (m *memUsers) Create(_ context.Context, u *entity.User) error {
	m.byEmail[u.Email] = u
	return nil
}
func (m *memUsers) GetByID(context.Context, string) (*entity.User, error) { return nil, nil }
func (m *memUsers) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	return m.byEmail[email], nil
}
func (m *memUsers) ListByAccount(context.Context, string, int, int) ([]*entity.User, error) {
	return nil, nil
}

const secret = "test-secret"

func newUseCase() *auth.AuthUseCase {
	return auth.NewAuthUseCase(&memUsers{byEmail: map[string]*entity.User{}}, auth.JWTConfig{Secret: secret, ExpMinutes: 5, Issuer: "emissor-test"})
}

func TestRegisterAndLogin(t *testing.T) {
	uc := newUseCase()
	ctx := context.Background()

	user, err := uc.RegisterUser(ctx, dto.RegisterRequest{
		Email: " Fiscal@Empresa.com.br ", Password: "s3nha-forte", AccountID: "acc-1", Role: entity.RoleOperator,
	})
	require.NoError(t, err)
	assert.Equal(t, "fiscal@empresa.com.br", user.Email)
	assert.Equal(t, entity.RoleOperator, user.Role)

	out, err := uc.Login(ctx, dto.LoginRequest{Email: "fiscal@empresa.com.br", Password: "s3nha-forte"})
	require.NoError(t, err)

	userID, accountID, role, err := pkgjwt.Parse(secret, out.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, "acc-1", accountID)
	assert.Equal(t, entity.RoleOperator, role)
}

func TestRegister_DefaultsAndErrors(t *testing.T) {
	uc := newUseCase()
	ctx := context.Background()

	user, err := uc.RegisterUser(ctx, dto.RegisterRequest{Email: "a@b.com", Password: "12345678", AccountID: "acc-1"})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleViewer, user.Role)
	assert.Equal(t, "a@b.com", user.Name)

	_, err = uc.RegisterUser(ctx, dto.RegisterRequest{Email: "a@b.com", Password: "12345678", AccountID: "acc-1"})
	assert.ErrorIs(t, err, domain.ErrEmailAlreadyExists)

	_, err = uc.RegisterUser(ctx, dto.RegisterRequest{Email: "c@b.com", Password: "12345678", AccountID: "acc-1", Role: "root"})
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestLogin_Failures(t *testing.T) {
	uc := newUseCase()
	ctx := context.Background()
	_, err := uc.RegisterUser(ctx, dto.RegisterRequest{Email: "a@b.com", Password: "12345678", AccountID: "acc-1"})
	require.NoError(t, err)

	_, err = uc.Login(ctx, dto.LoginRequest{Email: "a@b.com", Password: "errada123"})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = uc.Login(ctx, dto.LoginRequest{Email: "x@b.com", Password: "12345678"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
