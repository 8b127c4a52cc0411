package entity

import "time"

// Roles válidos para User.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator" // emite, cancela e consulta
	RoleViewer   = "viewer"   // somente leitura
)

// User representa um usuário do painel (vinculado a uma conta contratante).
type User struct {
	ID           string
	AccountID    string
	Email        string
	PasswordHash string // hash bcrypt, nunca texto puro depois de persistido
	Name         string
	Role         string // admin, operator, viewer
	Status       string // active, inactive
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
