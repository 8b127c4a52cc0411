package nfse

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/jhoicas/emissor-nfse/internal/domain"
)

// nationalRequest corpo do POST /nfse da SEFIN.
type nationalRequest struct {
	DPSXMLGZipB64 string `json:"dpsXmlGZipB64"`
}

// NationalClient cliente da API da NFS-e nacional (SEFIN).
type NationalClient struct {
	cfg TransportConfig
}

// Submit envia a DPS assinada (gzip + base64 em JSON). Respostas 200/201 e rejeições
// com lista "erros" voltam como corpo para o interpretador; o resto é TransportError.
func (c *NationalClient) Submit(ctx context.Context, cert tls.Certificate, signedXML []byte) ([]byte, error) {
	packed, err := GzipBase64(signedXML)
	if err != nil {
		return nil, &domain.TransportError{Operation: string(OpEnvioDPS), Err: err}
	}
	payload, err := json.Marshal(nationalRequest{DPSXMLGZipB64: packed})
	if err != nil {
		return nil, &domain.TransportError{Operation: string(OpEnvioDPS), Err: err}
	}

	url := strings.TrimRight(c.cfg.NationalURL, "/") + "/nfse"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.TransportError{Operation: string(OpEnvioDPS), Err: fmt.Errorf("criar request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	status, raw, err := do(ctx, httpClientFor(c.cfg, cert), req, OpEnvioDPS, c.cfg.MaxResponseBytes)
	if err != nil {
		return nil, err
	}
	if status == http.StatusOK || status == http.StatusCreated {
		return raw, nil
	}
	if hasBusinessErrors(raw) {
		return raw, nil
	}
	return nil, &domain.TransportError{
		Operation:  string(OpEnvioDPS),
		StatusCode: status,
		Err:        fmt.Errorf("resposta inesperada: %s", truncateRunes(strings.TrimSpace(string(raw)), 300)),
	}
}

// GzipBase64 compacta e codifica o XML para o campo dpsXmlGZipB64.
func GzipBase64(data []byte) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return "", fmt.Errorf("gzip: escrever XML: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip: fechar: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// GunzipBase64 operação inversa, usada para ler nfseXmlGZipB64.
func GunzipBase64(s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, err
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	var out bytes.Buffer
	if _, err := out.ReadFrom(io.LimitReader(zr, 16<<20)); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func hasBusinessErrors(raw []byte) bool {
	var envelope struct {
		Erros []json.RawMessage `json:"erros"`
	}
	return json.Unmarshal(raw, &envelope) == nil && len(envelope.Erros) > 0
}
