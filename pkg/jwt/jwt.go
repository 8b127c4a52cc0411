package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// leeway tolerância de relógio entre a API e quem emitiu o token.
const leeway = 30 * time.Second

// Claims identificam o operador do emissor: usuário, conta dona dos emissores e papel.
// O papel vai no token para o RequireRole decidir sem consultar o banco.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"user_id"`
	AccountID string `json:"account_id"`
	Role      string `json:"role"` // "admin" | "operator" | "viewer"
}

// Generate gera um token HS256 com jti aleatório. Usuário e conta são obrigatórios:
// todas as consultas de emissores e documentos são filtradas pela conta.
func Generate(secret, userID, accountID, role, issuer string, expMinutes int) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("jwt: secret vazio")
	}
	if userID == "" || accountID == "" {
		return "", fmt.Errorf("jwt: usuário e conta são obrigatórios")
	}
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(expMinutes) * time.Minute)),
		},
		UserID:    userID,
		AccountID: accountID,
		Role:      role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Parse valida assinatura HS256, expiração (obrigatória) e a presença de usuário e conta.
func Parse(secret, tokenString string) (userID, accountID, role string, err error) {
	if secret == "" {
		return "", "", "", fmt.Errorf("jwt: secret vazio")
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	)
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", "", "", err
	}
	if !token.Valid {
		return "", "", "", errors.New("jwt: token inválido")
	}
	if claims.UserID == "" || claims.AccountID == "" || claims.Subject != claims.UserID {
		return "", "", "", errors.New("jwt: claims de usuário/conta ausentes ou inconsistentes")
	}
	return claims.UserID, claims.AccountID, claims.Role, nil
}
