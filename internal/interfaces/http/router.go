package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/emissor-nfse/internal/application/auth"
	"github.com/jhoicas/emissor-nfse/internal/application/emission"
	"github.com/jhoicas/emissor-nfse/internal/application/usecase"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
)

// RouterDeps dependências do router.
type RouterDeps struct {
	AuthUC     *auth.AuthUseCase
	UserUC     *usecase.UserUseCase
	IssuerUC   *usecase.IssuerUseCase
	DocumentUC *usecase.DocumentUseCase
	EmissionUC *usecase.EmissionUseCase
	PDFUC      *emission.PDFUseCase
	JWTSecret  string
}

// Router registra as rotas da API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Auth (público)
	authGroup := api.Group("/auth")
	authHandler := NewAuthHandler(deps.AuthUC)
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)

	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))
	anyRole := RequireRole(entity.RoleAdmin, entity.RoleOperator, entity.RoleViewer)
	writers := RequireRole(entity.RoleAdmin, entity.RoleOperator)
	admins := RequireRole(entity.RoleAdmin)

	users := protected.Group("/users")
	userHandler := NewUserHandler(deps.UserUC)
	users.Get("/me", anyRole, userHandler.Me)
	users.Get("/", admins, userHandler.List)

	// Emissores: cadastro e certificado só para admin
	issuers := protected.Group("/issuers")
	issuerHandler := NewIssuerHandler(deps.IssuerUC)
	issuers.Post("/", admins, issuerHandler.Create)
	issuers.Get("/", anyRole, issuerHandler.List)
	issuers.Get("/:id", anyRole, issuerHandler.GetByID)
	issuers.Put("/:id", admins, issuerHandler.Update)
	issuers.Post("/:id/certificate", admins, issuerHandler.UploadCertificate)
	issuers.Get("/:id/certificate", anyRole, issuerHandler.CertificateStatus)

	documents := protected.Group("/documents")
	documentHandler := NewDocumentHandler(deps.DocumentUC, deps.PDFUC)
	emissionHandler := NewEmissionHandler(deps.EmissionUC, deps.PDFUC)
	documents.Post("/", writers, documentHandler.Create)
	documents.Get("/", anyRole, documentHandler.List)
	documents.Get("/:id", anyRole, documentHandler.GetByID)
	documents.Delete("/:id", writers, documentHandler.Delete)
	documents.Get("/:id/pdf", anyRole, documentHandler.Receipt)
	documents.Post("/:id/submit", writers, emissionHandler.Submit)
	documents.Post("/:id/cancel", writers, emissionHandler.Cancel)

	batches := protected.Group("/batches", writers)
	batches.Post("/submit", emissionHandler.BatchSubmit)
	batches.Post("/cancel", emissionHandler.BatchCancel)

	protected.Get("/nfse", anyRole, emissionHandler.QueryPeriod)
}
