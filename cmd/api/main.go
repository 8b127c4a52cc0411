package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	_ "github.com/jhoicas/emissor-nfse/docs"
	"github.com/jhoicas/emissor-nfse/internal/application/auth"
	"github.com/jhoicas/emissor-nfse/internal/application/emission"
	"github.com/jhoicas/emissor-nfse/internal/application/usecase"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse/certstore"
	infrapdf "github.com/jhoicas/emissor-nfse/internal/infrastructure/pdf"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/emissor-nfse/internal/interfaces/http"
	"github.com/jhoicas/emissor-nfse/pkg/config"
	"github.com/jhoicas/emissor-nfse/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("carregar configuração: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicação")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexão com o PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool, log); err != nil {
		log.Fatal().Err(err).Msg("migrações")
	}

	userRepo := postgres.NewUserRepository(pool)
	issuerRepo := postgres.NewIssuerRepository(pool)
	documentRepo := postgres.NewFiscalDocumentRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	// Pipeline: validar → sequência → certificado → assinar → SOAP/REST → interpretar
	certs := certstore.NewStore(cfg.NFSe.CertDir)
	transport := nfse.NewTransportClient(nfse.TransportConfig{
		NFeURL:      cfg.NFSe.SPNFeURL,
		NFTSURL:     cfg.NFSe.SPNFTSURL,
		NationalURL: cfg.NFSe.NationalURL,
		Timeout:     cfg.NFSe.Timeout(),
	})
	lifecycle := emission.NewLifecycleManager(
		documentRepo, issuerRepo, txRunner, certs, transport,
		nfse.NewResponseInterpreter(),
		emission.Builders{
			RPS:  nfse.NewXMLBuilderService(),
			NFTS: nfse.NewNFTSBuilderService(),
			DPS:  nfse.NewDPSBuilderService(cfg.NFSe.Environment, cfg.NFSe.AppVersion),
		},
		nil,
		emission.Config{
			CertDir:         cfg.NFSe.CertDir,
			DocumentTimeout: cfg.NFSe.DocumentTimeout(),
			ExpiryWarning:   cfg.NFSe.ExpiryWarning(),
		},
	)

	pdfUC := emission.NewPDFUseCase(documentRepo, issuerRepo, infrapdf.NewMarotoPDFGenerator())
	documentUC := usecase.NewDocumentUseCase(documentRepo, issuerRepo)
	authUC := auth.NewAuthUseCase(userRepo, auth.JWTConfig{
		Secret:     cfg.JWT.Secret,
		ExpMinutes: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: cfg.NFSe.DocumentTimeout() + 10*time.Second,
		IdleTimeout:  time.Second * 60,
		BodyLimit:    2 << 20,
	})
	app.Use(recover.New())

	// Swagger UI local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Emissor NFS-e API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		AuthUC:     authUC,
		UserUC:     usecase.NewUserUseCase(userRepo),
		IssuerUC:   usecase.NewIssuerUseCase(issuerRepo, certs, cfg.NFSe.ExpiryWarning()),
		DocumentUC: documentUC,
		EmissionUC: usecase.NewEmissionUseCase(documentUC, lifecycle),
		PDFUC:      pdfUC,
		JWTSecret:  cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP encerrado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("sinal de desligamento recebido, encerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("desligamento do servidor")
	}

	log.Info().Msg("aplicação encerrada")
}
