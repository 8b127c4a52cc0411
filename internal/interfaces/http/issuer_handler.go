package http

import (
	"context"
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/emissor-nfse/internal/application/dto"
)

// maxBundleSize limite do upload do .pfx.
const maxBundleSize = 1 << 20

type issuerService interface {
	Create(ctx context.Context, accountID string, in dto.CreateIssuerRequest) (*dto.IssuerResponse, error)
	GetByID(ctx context.Context, accountID, id string) (*dto.IssuerResponse, error)
	List(ctx context.Context, accountID string, limit, offset int) (*dto.IssuerListResponse, error)
	Update(ctx context.Context, accountID, id string, in dto.UpdateIssuerRequest) (*dto.IssuerResponse, error)
	UploadCertificate(ctx context.Context, accountID, id string, bundle []byte, password string) (*dto.CertificateStatusResponse, error)
	CertificateStatus(ctx context.Context, accountID, id string) (*dto.CertificateStatusResponse, error)
}

// IssuerHandler cadastro de emissores e certificados A1.
type IssuerHandler struct {
	uc issuerService
}

// NewIssuerHandler constrói o handler. Recebe *usecase.IssuerUseCase.
func NewIssuerHandler(uc issuerService) *IssuerHandler {
	return &IssuerHandler{uc: uc}
}

// Create godoc
// @Summary      Cadastrar emissor
// @Tags         issuers
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateIssuerRequest  true  "dados do emissor"
// @Success      201   {object}  dto.IssuerResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/issuers [post]
func (h *IssuerHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateIssuerRequest
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
// @Summary      Listar emissores da conta
// @Tags         issuers
// @Produce      json
// @Param        limit   query  int  false  "máximo 100"
// @Param        offset  query  int  false  "deslocamento"
// @Success      200  {object}  dto.IssuerListResponse
// @Security     BearerAuth
// @Router       /api/issuers [get]
func (h *IssuerHandler) List(c *fiber.Ctx) error {
	page := pageFromQuery(c)
	out, err := h.uc.List(c.UserContext(), GetAccountID(c), page.Limit, page.Offset)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obter emissor
// @Tags         issuers
// @Produce      json
// @Param        id   path  string  true  "ID do emissor"
// @Success      200  {object}  dto.IssuerResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/issuers/{id} [get]
func (h *IssuerHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetByID(c.UserContext(), GetAccountID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Atualizar emissor
// @Tags         issuers
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true  "ID do emissor"
// @Param        body  body  dto.UpdateIssuerRequest  true  "campos a alterar"
// @Success      200   {object}  dto.IssuerResponse
// @Security     BearerAuth
// @Router       /api/issuers/{id} [put]
func (h *IssuerHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateIssuerRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.uc.Update(c.UserContext(), GetAccountID(c), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// UploadCertificate godoc
// @Summary      Enviar certificado A1 (.pfx)
// @Description  multipart com o arquivo em "certificate" e a senha em "password".
// @Tags         issuers
// @Accept       mpfd
// @Produce      json
// @Param        id           path      string  true  "ID do emissor"
// @Param        certificate  formData  file    true  "bundle PKCS#12"
// @Param        password     formData  string  true  "senha do bundle"
// @Success      200  {object}  dto.CertificateStatusResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/issuers/{id}/certificate [post]
func (h *IssuerHandler) UploadCertificate(c *fiber.Ctx) error {
	header, err := c.FormFile("certificate")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "arquivo certificate obrigatório"})
	}
	if header.Size > maxBundleSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(dto.ErrorResponse{Code: "TOO_LARGE", Message: "certificado maior que 1 MiB"})
	}
	password := c.FormValue("password")
	if password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "password obrigatório"})
	}
	f, err := header.Open()
	if err != nil {
		return respondError(c, err)
	}
	defer f.Close()
	bundle, err := io.ReadAll(io.LimitReader(f, maxBundleSize))
	if err != nil {
		return respondError(c, err)
	}

	out, err := h.uc.UploadCertificate(c.UserContext(), GetAccountID(c), c.Params("id"), bundle, password)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// CertificateStatus godoc
// @Summary      Situação do certificado
// @Tags         issuers
// @Produce      json
// @Param        id   path  string  true  "ID do emissor"
// @Success      200  {object}  dto.CertificateStatusResponse
// @Security     BearerAuth
// @Router       /api/issuers/{id}/certificate [get]
func (h *IssuerHandler) CertificateStatus(c *fiber.Ctx) error {
	out, err := h.uc.CertificateStatus(c.UserContext(), GetAccountID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}
