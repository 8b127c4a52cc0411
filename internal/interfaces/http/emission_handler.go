package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/emissor-nfse/internal/application/dto"
	"github.com/jhoicas/emissor-nfse/internal/application/emission"
)

type emissionService interface {
	Submit(ctx context.Context, accountID, documentID string) (*dto.OutcomeResponse, error)
	Cancel(ctx context.Context, accountID, documentID string) (*dto.OutcomeResponse, error)
	Batch(ctx context.Context, accountID string, in dto.BatchRequest, action emission.Action) (*dto.BatchResponse, *emission.BatchReport, error)
	QueryPeriod(ctx context.Context, accountID string, in dto.PeriodQueryRequest) (*dto.PeriodQueryResponse, error)
}

type batchReportService interface {
	BatchReport(ctx context.Context, accountID, issuerID string, report *emission.BatchReport) ([]byte, error)
}

// EmissionHandler envio, cancelamento, lotes e consulta à prefeitura.
type EmissionHandler struct {
	uc  emissionService
	pdf batchReportService
}

// NewEmissionHandler constrói o handler.
func NewEmissionHandler(uc emissionService, pdf batchReportService) *EmissionHandler {
	return &EmissionHandler{uc: uc, pdf: pdf}
}

// Submit godoc
// @Summary      Enviar documento à prefeitura
// @Description  Rejeição de negócio volta 200 com succeeded=false e a lista de erros.
// @Tags         emission
// @Produce      json
// @Param        id   path  string  true  "ID do documento"
// @Success      200  {object}  dto.OutcomeResponse
// @Failure      422  {object}  dto.ErrorResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/documents/{id}/submit [post]
func (h *EmissionHandler) Submit(c *fiber.Ctx) error {
	out, err := h.uc.Submit(c.UserContext(), GetAccountID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Cancel godoc
// @Summary      Cancelar NFS-e ou NFTS emitida
// @Tags         emission
// @Produce      json
// @Param        id   path  string  true  "ID do documento"
// @Success      200  {object}  dto.OutcomeResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/documents/{id}/cancel [post]
func (h *EmissionHandler) Cancel(c *fiber.Ctx) error {
	out, err := h.uc.Cancel(c.UserContext(), GetAccountID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// BatchSubmit godoc
// @Summary      Enviar lote de documentos
// @Description  Com ?format=pdf devolve o relatório do lote em PDF.
// @Tags         emission
// @Accept       json
// @Produce      json
// @Param        body    body   dto.BatchRequest  true   "emissor e documentos"
// @Param        format  query  string            false  "json (padrão) ou pdf"
// @Success      200  {object}  dto.BatchResponse
// @Security     BearerAuth
// @Router       /api/batches/submit [post]
func (h *EmissionHandler) BatchSubmit(c *fiber.Ctx) error {
	return h.batch(c, emission.ActionSubmit)
}

// BatchCancel godoc
// @Summary      Cancelar lote de documentos
// @Tags         emission
// @Accept       json
// @Produce      json
// @Param        body    body   dto.BatchRequest  true   "emissor e documentos"
// @Param        format  query  string            false  "json (padrão) ou pdf"
// @Success      200  {object}  dto.BatchResponse
// @Security     BearerAuth
// @Router       /api/batches/cancel [post]
func (h *EmissionHandler) BatchCancel(c *fiber.Ctx) error {
	return h.batch(c, emission.ActionCancel)
}

func (h *EmissionHandler) batch(c *fiber.Ctx, action emission.Action) error {
	var in dto.BatchRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	if in.IssuerID == "" || len(in.DocumentIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "issuer_id e document_ids são obrigatórios"})
	}
	accountID := GetAccountID(c)
	out, report, err := h.uc.Batch(c.UserContext(), accountID, in, action)
	if err != nil {
		return respondError(c, err)
	}
	if c.Query("format") != "pdf" {
		return c.JSON(out)
	}
	data, err := h.pdf.BatchReport(c.UserContext(), accountID, in.IssuerID, report)
	if err != nil {
		return respondError(c, err)
	}
	return sendPDF(c, data, "lote_"+string(action)+".pdf")
}

// QueryPeriod godoc
// @Summary      Consultar NFS-e emitidas ou recebidas
// @Tags         emission
// @Produce      json
// @Param        issuer_id  query  string  true   "ID do emissor"
// @Param        kind       query  string  false  "emitidas (padrão) ou recebidas"
// @Param        from       query  string  true   "AAAA-MM-DD"
// @Param        to         query  string  true   "AAAA-MM-DD"
// @Param        page       query  int     false  "página, a partir de 1"
// @Success      200  {object}  dto.PeriodQueryResponse
// @Failure      502  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/nfse [get]
func (h *EmissionHandler) QueryPeriod(c *fiber.Ctx) error {
	var in dto.PeriodQueryRequest
	if err := c.QueryParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "parâmetros de consulta inválidos"})
	}
	out, err := h.uc.QueryPeriod(c.UserContext(), GetAccountID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}
