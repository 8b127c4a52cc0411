package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/emissor-nfse/internal/application/dto"
)

type userService interface {
	GetByID(ctx context.Context, accountID, id string) (*dto.UserResponse, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]dto.UserResponse, error)
}

// UserHandler consulta de usuários da conta.
type UserHandler struct {
	uc userService
}

// NewUserHandler constrói o handler.
func NewUserHandler(uc userService) *UserHandler {
	return &UserHandler{uc: uc}
}

// Me devolve o usuário do token.
// GET /api/users/me
func (h *UserHandler) Me(c *fiber.Ctx) error {
	user, err := h.uc.GetByID(c.UserContext(), GetAccountID(c), GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(user)
}

// List usuários da conta (admin).
// GET /api/users
func (h *UserHandler) List(c *fiber.Ctx) error {
	page := pageFromQuery(c)
	users, err := h.uc.ListByAccount(c.UserContext(), GetAccountID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"items": users, "page": dto.PageResponse{Limit: page.Limit, Offset: page.Offset}})
}

func pageFromQuery(c *fiber.Ctx) dto.PageRequest {
	page := dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)}
	page.DefaultPage()
	return page
}
