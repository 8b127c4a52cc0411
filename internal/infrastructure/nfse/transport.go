package nfse

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jhoicas/emissor-nfse/internal/domain"
)

// Endpoints de produção.
const (
	DefaultNFeURL      = "https://nfe.prefeitura.sp.gov.br/ws/lotenfe.asmx"
	DefaultNFTSURL     = "https://nfe.prefeitura.sp.gov.br/ws/loteNFTS.asmx"
	DefaultNationalURL = "https://sefin.nfse.gov.br/sefinnacional"

	defaultTimeout          = 60 * time.Second
	defaultMaxResponseBytes = 4 << 20
)

// TransportConfig endpoints e limites do cliente.
type TransportConfig struct {
	NFeURL           string
	NFTSURL          string
	NationalURL      string
	Timeout          time.Duration
	MaxResponseBytes int64
	// RootCAs substitui as raízes do sistema (homologação local e testes).
	RootCAs *x509.CertPool
}

func (c TransportConfig) withDefaults() TransportConfig {
	if c.NFeURL == "" {
		c.NFeURL = DefaultNFeURL
	}
	if c.NFTSURL == "" {
		c.NFTSURL = DefaultNFTSURL
	}
	if c.NationalURL == "" {
		c.NationalURL = DefaultNationalURL
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = defaultMaxResponseBytes
	}
	return c
}

// Transport porta de saída: uma chamada remota por operação, sem novas tentativas.
type Transport interface {
	Call(ctx context.Context, op Operation, cert tls.Certificate, body []byte) ([]byte, error)
}

// TransportClient despacha para o SOAP municipal ou para a API nacional conforme a operação.
type TransportClient struct {
	cfg      TransportConfig
	soap     *SOAPClient
	national *NationalClient
}

// NewTransportClient cria o cliente com os endpoints configurados.
func NewTransportClient(cfg TransportConfig) *TransportClient {
	cfg = cfg.withDefaults()
	return &TransportClient{
		cfg:      cfg,
		soap:     &SOAPClient{cfg: cfg},
		national: &NationalClient{cfg: cfg},
	}
}

// Call envia o XML assinado com TLS mútuo usando o certificado do emissor.
func (c *TransportClient) Call(ctx context.Context, op Operation, cert tls.Certificate, body []byte) ([]byte, error) {
	if len(cert.Certificate) == 0 || cert.PrivateKey == nil {
		return nil, &domain.TransportError{Operation: string(op), Err: errors.New("certificado do emissor ausente para TLS mútuo")}
	}
	start := time.Now()
	var (
		resp []byte
		err  error
	)
	if op.IsNational() {
		resp, err = c.national.Submit(ctx, cert, body)
	} else {
		resp, err = c.soap.Call(ctx, op, cert, body)
	}
	ev := log.Debug()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("component", "[NFSE]").Str("operation", string(op)).
		Dur("elapsed", time.Since(start)).Int("response_bytes", len(resp)).Msg("chamada ao webservice")
	return resp, err
}

var _ Transport = (*TransportClient)(nil)

// httpClientFor cliente HTTP com o certificado do emissor como credencial TLS.
func httpClientFor(cfg TransportConfig, cert tls.Certificate) *http.Client {
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				MinVersion:   tls.VersionTLS12,
				Certificates: []tls.Certificate{cert},
				RootCAs:      cfg.RootCAs,
			},
			Proxy:               http.ProxyFromEnvironment,
			TLSHandshakeTimeout: 15 * time.Second,
		},
	}
}

// do executa a requisição e lê o corpo com limite de tamanho.
func do(ctx context.Context, client *http.Client, req *http.Request, op Operation, limit int64) (int, []byte, error) {
	defer client.CloseIdleConnections()
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, &domain.TransportError{Operation: string(op), Err: fmt.Errorf("timeout ou cancelamento: %w", ctx.Err())}
		}
		return 0, nil, &domain.TransportError{Operation: string(op), Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return resp.StatusCode, nil, &domain.TransportError{Operation: string(op), StatusCode: resp.StatusCode, Err: fmt.Errorf("ler resposta: %w", err)}
	}
	if int64(len(raw)) > limit {
		return resp.StatusCode, nil, &domain.TransportError{Operation: string(op), StatusCode: resp.StatusCode, Err: fmt.Errorf("resposta maior que %d bytes", limit)}
	}
	return resp.StatusCode, raw, nil
}
