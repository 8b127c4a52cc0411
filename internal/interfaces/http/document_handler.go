package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/emissor-nfse/internal/application/dto"
	"github.com/jhoicas/emissor-nfse/internal/domain/repository"
)

type documentService interface {
	Create(ctx context.Context, accountID string, in dto.CreateDocumentRequest) (*dto.DocumentResponse, error)
	GetByID(ctx context.Context, accountID, id string) (*dto.DocumentResponse, error)
	List(ctx context.Context, accountID string, filter repository.DocumentFilter) (*dto.DocumentListResponse, error)
	DeletePending(ctx context.Context, accountID, id string) error
}

type receiptService interface {
	DownloadReceipt(ctx context.Context, accountID, documentID string) ([]byte, string, error)
}

// DocumentHandler documentos fiscais pendentes e comprovantes.
type DocumentHandler struct {
	uc  documentService
	pdf receiptService
}

// NewDocumentHandler constrói o handler.
func NewDocumentHandler(uc documentService, pdf receiptService) *DocumentHandler {
	return &DocumentHandler{uc: uc, pdf: pdf}
}

// Create godoc
// @Summary      Registrar documento pendente
// @Tags         documents
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateDocumentRequest  true  "RPS, NFTS ou DPS"
// @Success      201   {object}  dto.DocumentResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/documents [post]
func (h *DocumentHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateDocumentRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Create(c.UserContext(), GetAccountID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar documentos do emissor
// @Tags         documents
// @Produce      json
// @Param        issuer_id  query  string  true   "ID do emissor"
// @Param        dialect    query  string  false  "rps, nfts ou dps"
// @Param        status     query  string  false  "pending, issued, canceled, error"
// @Param        from       query  string  false  "AAAA-MM-DD"
// @Param        to         query  string  false  "AAAA-MM-DD"
// @Success      200  {object}  dto.DocumentListResponse
// @Security     BearerAuth
// @Router       /api/documents [get]
func (h *DocumentHandler) List(c *fiber.Ctx) error {
	page := pageFromQuery(c)
	filter := repository.DocumentFilter{
		IssuerID: c.Query("issuer_id"),
		Dialect:  c.Query("dialect"),
		Status:   c.Query("status"),
		Limit:    page.Limit,
		Offset:   page.Offset,
	}
	var ok bool
	if filter.From, ok = queryDate(c, "from"); !ok {
		return invalidDate(c, "from")
	}
	if filter.To, ok = queryDate(c, "to"); !ok {
		return invalidDate(c, "to")
	}
	out, err := h.uc.List(c.UserContext(), GetAccountID(c), filter)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obter documento
// @Tags         documents
// @Produce      json
// @Param        id   path  string  true  "ID do documento"
// @Success      200  {object}  dto.DocumentResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/documents/{id} [get]
func (h *DocumentHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.UserContext(), GetAccountID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Delete godoc
// @Summary      Remover documento pendente
// @Tags         documents
// @Param        id   path  string  true  "ID do documento"
// @Success      204
// @Failure      409  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/documents/{id} [delete]
func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.DeletePending(c.UserContext(), GetAccountID(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Receipt godoc
// @Summary      Comprovante em PDF
// @Tags         documents
// @Produce      application/pdf
// @Param        id   path  string  true  "ID do documento"
// @Success      200  {file}  binary
// @Failure      400  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/documents/{id}/pdf [get]
func (h *DocumentHandler) Receipt(c *fiber.Ctx) error {
	data, filename, err := h.pdf.DownloadReceipt(c.UserContext(), GetAccountID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return sendPDF(c, data, filename)
}

// queryDate lê um parâmetro AAAA-MM-DD opcional.
func queryDate(c *fiber.Ctx, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func invalidDate(c *fiber.Ctx, key string) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: key + ": use AAAA-MM-DD"})
}

func sendPDF(c *fiber.Ctx, data []byte, filename string) error {
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(data)
}
