package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/emissor-nfse/internal/application/dto"
	"github.com/jhoicas/emissor-nfse/internal/application/emission"
	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/domain/repository"
	apphttp "github.com/jhoicas/emissor-nfse/internal/interfaces/http"
)

// withAccount simula o AuthMiddleware.
func withAccount(app *fiber.App) {
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(apphttp.LocalAccountID, testAccountID)
		c.Locals(apphttp.LocalRole, "admin")
		return c.Next()
	})
}

func send(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func jsonRequest(method, target string, v interface{}) *http.Request {
	raw, _ := json.Marshal(v)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

type stubIssuers struct {
	bundle   []byte
	password string
	err      error
}

func (s *stubIssuers) Create(_ context.Context, _ string, in dto.CreateIssuerRequest) (*dto.IssuerResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.IssuerResponse{ID: "iss-1", CNPJ: in.CNPJ, LegalName: in.LegalName}, nil
}

func (s *stubIssuers) GetByID(context.Context, string, string) (*dto.IssuerResponse, error) {
	return nil, s.err
}

func (s *stubIssuers) List(context.Context, string, int, int) (*dto.IssuerListResponse, error) {
	return &dto.IssuerListResponse{}, s.err
}

func (s *stubIssuers) Update(context.Context, string, string, dto.UpdateIssuerRequest) (*dto.IssuerResponse, error) {
	return nil, s.err
}

func (s *stubIssuers) UploadCertificate(_ context.Context, _, id string, bundle []byte, password string) (*dto.CertificateStatusResponse, error) {
	s.bundle, s.password = bundle, password
	if s.err != nil {
		return nil, s.err
	}
	return &dto.CertificateStatusResponse{IssuerID: id, HasCertificate: true}, nil
}

func (s *stubIssuers) CertificateStatus(context.Context, string, string) (*dto.CertificateStatusResponse, error) {
	return nil, s.err
}

func issuerApp(svc *stubIssuers) *fiber.App {
	app := fiber.New()
	withAccount(app)
	h := apphttp.NewIssuerHandler(svc)
	app.Post("/issuers", h.Create)
	app.Get("/issuers/:id", h.GetByID)
	app.Post("/issuers/:id/certificate", h.UploadCertificate)
	return app
}

func multipartUpload(t *testing.T, bundle []byte, password string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if bundle != nil {
		part, err := w.CreateFormFile("certificate", "empresa.pfx")
		require.NoError(t, err)
		_, err = part.Write(bundle)
		require.NoError(t, err)
	}
	require.NoError(t, w.WriteField("password", password))
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/issuers/iss-1/certificate", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestIssuerHandler_UploadCertificate(t *testing.T) {
	svc := &stubIssuers{}
	resp, body := send(t, issuerApp(svc), multipartUpload(t, []byte("pfx-bytes"), "segredo"))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte("pfx-bytes"), svc.bundle)
	assert.Equal(t, "segredo", svc.password)
	var out dto.CertificateStatusResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.HasCertificate)
}

func TestIssuerHandler_UploadCertificate_Errors(t *testing.T) {
	resp, _ := send(t, issuerApp(&stubIssuers{}), multipartUpload(t, nil, "segredo"))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	svc := &stubIssuers{err: &domain.CertificateError{Issuer: "11222333000181", Reason: domain.CertReasonWrongPassword}}
	resp, body := send(t, issuerApp(svc), multipartUpload(t, []byte("pfx"), "errada"))
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(body), "CERTIFICATE_WRONG_PASSWORD")
}

func TestIssuerHandler_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{domain.NewValidationError("cnpj", "inválido"), http.StatusBadRequest, "VALIDATION"},
		{domain.ErrDuplicate, http.StatusConflict, "DUPLICATE"},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		resp, body := send(t, issuerApp(&stubIssuers{err: tc.err}), httptest.NewRequest(http.MethodGet, "/issuers/iss-1", nil))
		assert.Equal(t, tc.status, resp.StatusCode, tc.err.Error())
		assert.Contains(t, string(body), tc.code)
	}
}

type stubDocuments struct {
	filter repository.DocumentFilter
}

func (s *stubDocuments) Create(context.Context, string, dto.CreateDocumentRequest) (*dto.DocumentResponse, error) {
	return &dto.DocumentResponse{ID: "doc-1", Status: "pending"}, nil
}

func (s *stubDocuments) GetByID(context.Context, string, string) (*dto.DocumentResponse, error) {
	return nil, domain.ErrNotFound
}

func (s *stubDocuments) List(_ context.Context, _ string, f repository.DocumentFilter) (*dto.DocumentListResponse, error) {
	s.filter = f
	return &dto.DocumentListResponse{}, nil
}

func (s *stubDocuments) DeletePending(context.Context, string, string) error { return domain.ErrConflict }

type stubPDF struct{}

func (stubPDF) DownloadReceipt(_ context.Context, _, id string) ([]byte, string, error) {
	return []byte("%PDF-1.3"), "rps_" + id + ".pdf", nil
}

func (stubPDF) BatchReport(context.Context, string, string, *emission.BatchReport) ([]byte, error) {
	return []byte("%PDF-1.3"), nil
}

func TestDocumentHandler(t *testing.T) {
	svc := &stubDocuments{}
	app := fiber.New()
	withAccount(app)
	h := apphttp.NewDocumentHandler(svc, stubPDF{})
	app.Get("/documents", h.List)
	app.Delete("/documents/:id", h.Delete)
	app.Get("/documents/:id/pdf", h.Receipt)

	resp, _ := send(t, app, httptest.NewRequest(http.MethodGet, "/documents?issuer_id=iss-1&status=issued&from=2024-07-01&limit=500", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "iss-1", svc.filter.IssuerID)
	assert.Equal(t, "issued", svc.filter.Status)
	assert.Equal(t, 100, svc.filter.Limit)
	require.NotNil(t, svc.filter.From)
	assert.Nil(t, svc.filter.To)

	resp, _ = send(t, app, httptest.NewRequest(http.MethodGet, "/documents?issuer_id=iss-1&to=31/07/2024", nil))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = send(t, app, httptest.NewRequest(http.MethodDelete, "/documents/doc-1", nil))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body := send(t, app, httptest.NewRequest(http.MethodGet, "/documents/doc-1/pdf", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "rps_doc-1.pdf")
	assert.True(t, strings.HasPrefix(string(body), "%PDF"))
}

type stubEmission struct {
	err error
}

func (s *stubEmission) Submit(_ context.Context, _, id string) (*dto.OutcomeResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.OutcomeResponse{DocumentID: id, Succeeded: false, Errors: []dto.MessageDTO{{Code: "1057", Description: "Assinatura difere"}}}, nil
}

func (s *stubEmission) Cancel(context.Context, string, string) (*dto.OutcomeResponse, error) {
	return nil, s.err
}

func (s *stubEmission) Batch(_ context.Context, _ string, in dto.BatchRequest, action emission.Action) (*dto.BatchResponse, *emission.BatchReport, error) {
	return &dto.BatchResponse{Action: string(action), Succeeded: len(in.DocumentIDs)}, &emission.BatchReport{Action: action}, s.err
}

func (s *stubEmission) QueryPeriod(_ context.Context, _ string, in dto.PeriodQueryRequest) (*dto.PeriodQueryResponse, error) {
	return &dto.PeriodQueryResponse{Kind: in.Kind}, s.err
}

func emissionApp(svc *stubEmission) *fiber.App {
	app := fiber.New()
	withAccount(app)
	h := apphttp.NewEmissionHandler(svc, stubPDF{})
	app.Post("/documents/:id/submit", h.Submit)
	app.Post("/documents/:id/cancel", h.Cancel)
	app.Post("/batches/submit", h.BatchSubmit)
	app.Get("/nfse", h.QueryPeriod)
	return app
}

func TestEmissionHandler_Submit(t *testing.T) {
	resp, body := send(t, emissionApp(&stubEmission{}), httptest.NewRequest(http.MethodPost, "/documents/doc-1/submit", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out dto.OutcomeResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.False(t, out.Succeeded)
	assert.Equal(t, "1057", out.Errors[0].Code)

	svc := &stubEmission{err: &domain.TransportError{Operation: "EnvioRPS", StatusCode: 503, Err: io.EOF}}
	resp, body = send(t, emissionApp(svc), httptest.NewRequest(http.MethodPost, "/documents/doc-1/submit", nil))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, string(body), "TRANSPORT")

	svc = &stubEmission{err: domain.ErrConflict}
	resp, _ = send(t, emissionApp(svc), httptest.NewRequest(http.MethodPost, "/documents/doc-1/cancel", nil))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestEmissionHandler_Batch(t *testing.T) {
	app := emissionApp(&stubEmission{})
	in := dto.BatchRequest{IssuerID: "iss-1", DocumentIDs: []string{"a", "b"}}

	resp, body := send(t, app, jsonRequest(http.MethodPost, "/batches/submit", in))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var out dto.BatchResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "submit", out.Action)
	assert.Equal(t, 2, out.Succeeded)

	resp, _ = send(t, app, jsonRequest(http.MethodPost, "/batches/submit?format=pdf", in))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))

	resp, _ = send(t, app, jsonRequest(http.MethodPost, "/batches/submit", dto.BatchRequest{IssuerID: "iss-1"}))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEmissionHandler_QueryPeriod(t *testing.T) {
	resp, body := send(t, emissionApp(&stubEmission{}), httptest.NewRequest(http.MethodGet, "/nfse?issuer_id=iss-1&kind=recebidas&from=2024-07-01&to=2024-07-31", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "recebidas")

	svc := &stubEmission{err: &domain.ProtocolError{Detail: "sem Sucesso"}}
	resp, _ = send(t, emissionApp(svc), httptest.NewRequest(http.MethodGet, "/nfse?issuer_id=iss-1&from=2024-07-01&to=2024-07-31", nil))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}
