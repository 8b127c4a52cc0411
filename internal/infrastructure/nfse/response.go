package nfse

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	domnfse "github.com/jhoicas/emissor-nfse/internal/domain/nfse"
	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

// responseNamespaces namespaces tentados antes da busca só pelo nome local.
var responseNamespaces = []string{fiscal.NamespaceNFe, fiscal.NamespaceNFTS, fiscal.NamespaceDPS}

// ResponseInterpreter normaliza as respostas dos webservices em SuccessOutcome / FailureOutcome.
type ResponseInterpreter struct{}

// NewResponseInterpreter cria o interpretador.
func NewResponseInterpreter() *ResponseInterpreter {
	return &ResponseInterpreter{}
}

// Interpret lê o RetornoXML do webservice municipal (com ou sem namespace).
func (r *ResponseInterpreter) Interpret(raw []byte) (domnfse.Outcome, error) {
	root, err := parseRoot(raw)
	if err != nil {
		return nil, err
	}
	success := find(root, "Sucesso")
	if success == nil {
		return nil, &domain.ProtocolError{Detail: "indicador Sucesso ausente na resposta"}
	}

	if !strings.EqualFold(strings.TrimSpace(success.Text()), "true") {
		return &domnfse.FailureOutcome{
			Errors:      messages(root, "Erro"),
			RawResponse: string(raw),
		}, nil
	}

	out := &domnfse.SuccessOutcome{
		Warnings:    messages(root, "Alerta"),
		RawResponse: string(raw),
	}
	switch {
	case find(root, "ChaveNFe") != nil:
		key := find(root, "ChaveNFe")
		out.Number = childText(key, "NumeroNFe")
		out.VerificationCode = childText(key, "CodigoVerificacao")
	case find(root, "ChaveNFTS") != nil:
		key := find(root, "ChaveNFTS")
		out.Number = childText(key, "NumeroNFTS")
		out.VerificationCode = childText(key, "CodigoVerificacao")
	}
	if out.Number == "" {
		out.Number = nonEmpty(findText(root, "NumeroNFe"), findText(root, "NumeroNFTS"))
	}
	if out.VerificationCode == "" {
		out.VerificationCode = findText(root, "CodigoVerificacao")
	}
	return out, nil
}

// nationalResponse corpo JSON da SEFIN (sucesso ou rejeição).
type nationalResponse struct {
	ChaveAcesso    string            `json:"chaveAcesso"`
	IDDPS          string            `json:"idDps"`
	NFSeXMLGZipB64 string            `json:"nfseXmlGZipB64"`
	Alertas        []nationalMessage `json:"alertas"`
	Erros          []nationalMessage `json:"erros"`
}

type nationalMessage struct {
	Codigo      string `json:"Codigo"`
	Descricao   string `json:"Descricao"`
	Complemento string `json:"Complemento"`
}

func (m nationalMessage) toMessage() domnfse.Message {
	desc := m.Descricao
	if m.Complemento != "" {
		desc += " (" + m.Complemento + ")"
	}
	return domnfse.Message{Code: m.Codigo, Description: desc}
}

// InterpretNational lê a resposta JSON da API nacional. Sucesso exige chaveAcesso;
// o número da NFS-e vem do XML compactado em nfseXmlGZipB64 quando presente.
func (r *ResponseInterpreter) InterpretNational(body []byte) (domnfse.Outcome, error) {
	var resp nationalResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &domain.ProtocolError{Detail: "JSON da SEFIN ilegível", Err: err}
	}
	if len(resp.Erros) > 0 {
		errs := make([]domnfse.Message, 0, len(resp.Erros))
		for _, e := range resp.Erros {
			errs = append(errs, e.toMessage())
		}
		return &domnfse.FailureOutcome{Errors: errs, RawResponse: string(body)}, nil
	}
	if resp.ChaveAcesso == "" {
		return nil, &domain.ProtocolError{Detail: "chaveAcesso ausente na resposta da SEFIN"}
	}

	out := &domnfse.SuccessOutcome{AccessKey: resp.ChaveAcesso, RawResponse: string(body)}
	for _, a := range resp.Alertas {
		out.Warnings = append(out.Warnings, a.toMessage())
	}
	if resp.NFSeXMLGZipB64 != "" {
		xmlNFSe, err := GunzipBase64(resp.NFSeXMLGZipB64)
		if err != nil {
			return nil, &domain.ProtocolError{Detail: "nfseXmlGZipB64 inválido", Err: err}
		}
		if root, err := parseRoot(xmlNFSe); err == nil {
			out.Number = findText(root, "nNFSe")
			out.VerificationCode = findText(root, "cVerif")
		}
	}
	return out, nil
}

// InterpretPeriodQuery lista as NFS-e do retorno de ConsultaNFeEmitidas/Recebidas.
// Resposta sem sucesso vira ProtocolError com as mensagens de erro.
func (r *ResponseInterpreter) InterpretPeriodQuery(raw []byte) ([]domnfse.IssuedInvoice, error) {
	outcome, err := r.Interpret(raw)
	if err != nil {
		return nil, err
	}
	if f, ok := outcome.(*domnfse.FailureOutcome); ok {
		return nil, &domain.ProtocolError{Detail: f.Summary()}
	}

	root, _ := parseRoot(raw)
	var list []domnfse.IssuedInvoice
	for _, el := range findAll(root, "NFe") {
		inv := domnfse.IssuedInvoice{
			MunicipalRegistration: findText(el, "InscricaoPrestador"),
			Number:                findText(el, "NumeroNFe"),
			VerificationCode:      findText(el, "CodigoVerificacao"),
			ProviderName:          findText(el, "RazaoSocialPrestador"),
			Status:                findText(el, "StatusNFe"),
			ServiceValue:          parseDecimal(findText(el, "ValorServicos")),
			ISSValue:              parseDecimal(findText(el, "ValorISS")),
			ISSWithheld:           strings.EqualFold(findText(el, "ISSRetido"), "true"),
			Description:           findText(el, "Discriminacao"),
			TakerName:             findText(el, "RazaoSocialTomador"),
		}
		if prov := find(el, "CPFCNPJPrestador"); prov != nil {
			inv.ProviderTaxID = nonEmpty(findText(prov, "CNPJ"), findText(prov, "CPF"))
		}
		if taker := find(el, "CPFCNPJTomador"); taker != nil {
			inv.TakerTaxID = nonEmpty(findText(taker, "CNPJ"), findText(taker, "CPF"))
		}
		if ts := findText(el, "DataEmissaoNFe"); ts != "" {
			if t, err := time.ParseInLocation("2006-01-02T15:04:05", ts, fiscal.BrasiliaTime); err == nil {
				inv.IssuedAt = t
			}
		}
		list = append(list, inv)
	}
	return list, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func parseRoot(raw []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, &domain.ProtocolError{Detail: "XML de resposta ilegível", Err: err}
	}
	root := doc.Root()
	if root == nil {
		return nil, &domain.ProtocolError{Detail: "resposta sem elemento raiz"}
	}
	return root, nil
}

// find primeiro descendente com o nome: qualificado pelos namespaces conhecidos, depois só o local.
func find(el *etree.Element, local string) *etree.Element {
	for _, ns := range responseNamespaces {
		if found := el.FindElement(".//" + local + "[namespace-uri()='" + ns + "']"); found != nil {
			return found
		}
	}
	return el.FindElement(".//" + local)
}

func findAll(el *etree.Element, local string) []*etree.Element {
	for _, ns := range responseNamespaces {
		if found := el.FindElements(".//" + local + "[namespace-uri()='" + ns + "']"); len(found) > 0 {
			return found
		}
	}
	return el.FindElements(".//" + local)
}

func findText(el *etree.Element, local string) string {
	if found := find(el, local); found != nil {
		return strings.TrimSpace(found.Text())
	}
	return ""
}

// childText busca dentro do elemento informado.
func childText(el *etree.Element, local string) string {
	if el == nil {
		return ""
	}
	return findText(el, local)
}

// messages lê pares Codigo/Descricao de Alerta ou Erro.
func messages(root *etree.Element, local string) []domnfse.Message {
	var out []domnfse.Message
	for _, el := range findAll(root, local) {
		out = append(out, domnfse.Message{
			Code:        findText(el, "Codigo"),
			Description: findText(el, "Descricao"),
		})
	}
	return out
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", "."))
	if err != nil {
		return decimal.Zero
	}
	return d
}
