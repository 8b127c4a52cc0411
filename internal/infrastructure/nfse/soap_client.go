package nfse

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

// ── Constantes SOAP ────────────────────────────────────────────────────────────

const (
	soapNS         = "http://schemas.xmlsoap.org/soap/envelope/"
	soapActionNFe  = "http://www.prefeitura.sp.gov.br/nfe/ws/"
	soapActionNFTS = "http://www.prefeitura.sp.gov.br/nfts/ws/"
)

// ── Estruturas SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	XmlnsS  string   `xml:"xmlns:soap,attr"`
	Body    soapBody `xml:"soap:Body"`
}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soap:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

// nfeRequest corpo das operações do lotenfe: VersaoSchema + MensagemXML (XML como texto).
type nfeRequest struct {
	XMLName      xml.Name
	Xmlns        string `xml:"xmlns,attr"`
	VersaoSchema string `xml:"VersaoSchema"`
	MensagemXML  string `xml:"MensagemXML"`
}

// nftsRequest corpo das operações do loteNFTS.
type nftsRequest struct {
	XMLName     xml.Name
	Xmlns       string `xml:"xmlns,attr"`
	MensagemXML string `xml:"MensagemXML"`
}

// ── Estruturas de resposta SOAP ─────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	Fault  *soapFault    `xml:"Fault"`
	Result *soapResponse `xml:",any"`
}

type soapResponse struct {
	XMLName    xml.Name
	RetornoXML string `xml:"RetornoXML"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// SOAPClient cliente dos webservices lotenfe / loteNFTS da prefeitura de São Paulo.
type SOAPClient struct {
	cfg TransportConfig
}

// Call embrulha o XML assinado no envelope SOAP da operação e devolve o RetornoXML.
func (c *SOAPClient) Call(ctx context.Context, op Operation, cert tls.Certificate, signedXML []byte) ([]byte, error) {
	url, action, body, err := c.buildRequest(op, signedXML)
	if err != nil {
		return nil, err
	}
	payload, err := xml.Marshal(soapEnvelope{XmlnsS: soapNS, Body: soapBody{Content: body}})
	if err != nil {
		return nil, &domain.TransportError{Operation: string(op), Err: fmt.Errorf("serializar envelope: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(append([]byte(xml.Header), payload...)))
	if err != nil {
		return nil, &domain.TransportError{Operation: string(op), Err: fmt.Errorf("criar request: %w", err)}
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", action)

	status, raw, err := do(ctx, httpClientFor(c.cfg, cert), req, op, c.cfg.MaxResponseBytes)
	if err != nil {
		return nil, err
	}
	return parseSOAPResponse(op, status, raw)
}

// buildRequest URL, SOAPAction e corpo conforme a operação.
func (c *SOAPClient) buildRequest(op Operation, signedXML []byte) (url, action string, body interface{}, err error) {
	name := string(op) + "Request"
	switch op {
	case OpEnvioRPS, OpCancelamentoNFe, OpConsultaNFeEmitidas, OpConsultaNFeRecebidas:
		return c.cfg.NFeURL, soapActionNFe + lowerFirst(string(op)), &nfeRequest{
			XMLName:      xml.Name{Local: name},
			Xmlns:        fiscal.NamespaceNFe,
			VersaoSchema: fiscal.SPLayoutVersao,
			MensagemXML:  string(signedXML),
		}, nil
	case OpEnvioNFTS, OpCancelamentoNFTS:
		return c.cfg.NFTSURL, soapActionNFTS + lowerFirst(string(op)), &nftsRequest{
			XMLName:     xml.Name{Local: name},
			Xmlns:       fiscal.NamespaceNFTS,
			MensagemXML: string(signedXML),
		}, nil
	}
	return "", "", nil, &domain.TransportError{Operation: string(op), Err: fmt.Errorf("operação SOAP desconhecida")}
}

// parseSOAPResponse extrai RetornoXML; Fault e status não-2xx viram TransportError.
func parseSOAPResponse(op Operation, status int, raw []byte) ([]byte, error) {
	var env soapResponseEnvelope
	parseErr := xml.Unmarshal(raw, &env)

	if parseErr == nil && env.Body.Fault != nil {
		return nil, &domain.TransportError{
			Operation:  string(op),
			StatusCode: status,
			Err:        fmt.Errorf("SOAP Fault [%s]: %s", env.Body.Fault.FaultCode, strings.TrimSpace(env.Body.Fault.FaultString)),
		}
	}
	if status < 200 || status > 299 {
		return nil, &domain.TransportError{Operation: string(op), StatusCode: status, Err: fmt.Errorf("resposta HTTP %d", status)}
	}
	if parseErr != nil {
		return nil, &domain.ProtocolError{Detail: "envelope SOAP ilegível", Err: parseErr}
	}
	if env.Body.Result == nil || strings.TrimSpace(env.Body.Result.RetornoXML) == "" {
		return nil, &domain.ProtocolError{Detail: "RetornoXML ausente na resposta SOAP"}
	}
	return []byte(env.Body.Result.RetornoXML), nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
