package nfse

import (
	"fmt"
	"strconv"
	"time"

	"github.com/beevik/etree"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	domnfse "github.com/jhoicas/emissor-nfse/internal/domain/nfse"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse/signer"
	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

// Prefixo usado na raiz dos pedidos do webservice NFS-e; os filhos são não qualificados.
const nfePrefix = "p1"

// Tipos da consulta por período.
const (
	QueryIssued   = "emitidas"
	QueryReceived = "recebidas"
)

// XMLBuilderService monta os pedidos do webservice lotenfe (RPS, cancelamento, consulta).
type XMLBuilderService struct {
	payload *domnfse.LegacyPayloadBuilder
}

// NewXMLBuilderService cria o serviço.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{payload: domnfse.NewLegacyPayloadBuilder()}
}

// BuildRPS PedidoEnvioRPS com o campo Assinatura já preenchido.
func (s *XMLBuilderService) BuildRPS(ctx *BuildContext, ls LegacySigner) (*Envelope, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	doc, iss := ctx.Document, ctx.Issuer
	if doc.SequenceNumber == nil {
		return nil, domain.NewValidationError("sequence_number", "número do RPS não alocado")
	}
	number := strconv.FormatInt(*doc.SequenceNumber, 10)
	im := fiscal.OnlyDigits(iss.MunicipalRegistration)
	takerID := fiscal.OnlyDigits(doc.Taker.TaxID)

	payload, err := s.payload.Build(&domnfse.LegacyPayloadParams{
		MunicipalRegistration: im,
		Series:                doc.Series,
		Number:                number,
		IssueDate:             doc.IssueDate,
		Taxation:              doc.Taxation,
		Status:                fiscal.RPSStatusCode(doc.Status),
		ISSWithheld:           doc.ISSWithheld,
		ServiceValue:          doc.GrossValue,
		Deductions:            doc.Deductions,
		ServiceCode:           doc.ServiceCode,
		TakerTaxID:            takerID,
	})
	if err != nil {
		return nil, err
	}
	sig, err := ls.SignLegacy([]byte(payload))
	if err != nil {
		return nil, err
	}

	xdoc, root := newNFeRequest("PedidoEnvioRPS")
	header(root, iss.CNPJ, false)

	rps := root.CreateElement("RPS")
	text(rps, "Assinatura", sig.Value)
	key := rps.CreateElement("ChaveRPS")
	text(key, "InscricaoPrestador", im)
	text(key, "SerieRPS", doc.Series)
	text(key, "NumeroRPS", number)
	text(rps, "TipoRPS", "RPS")
	text(rps, "DataEmissao", doc.IssueDate.Format("2006-01-02"))
	text(rps, "StatusRPS", fiscal.RPSStatusCode(doc.Status))
	text(rps, "TributacaoRPS", doc.Taxation)
	text(rps, "ValorServicos", spMoney(doc.GrossValue))
	text(rps, "ValorDeducoes", spMoney(doc.Deductions))

	w := doc.Withholdings
	for _, opt := range []struct {
		tag   string
		value string
		zero  bool
	}{
		{"ValorPIS", spMoney(w.PIS), w.PIS.IsZero()},
		{"ValorCOFINS", spMoney(w.COFINS), w.COFINS.IsZero()},
		{"ValorINSS", spMoney(w.INSS), w.INSS.IsZero()},
		{"ValorIR", spMoney(w.IR), w.IR.IsZero()},
		{"ValorCSLL", spMoney(w.CSLL), w.CSLL.IsZero()},
	} {
		if !opt.zero {
			text(rps, opt.tag, opt.value)
		}
	}

	text(rps, "CodigoServico", fiscal.OnlyDigits(doc.ServiceCode))
	text(rps, "AliquotaServicos", spRate(doc.ISSRate))
	text(rps, "ISSRetido", boolText(doc.ISSWithheld))
	taxIDElement(rps.CreateElement("CPFCNPJTomador"), takerID)
	if doc.Taker.Name != "" {
		spText(rps, "RazaoSocialTomador", truncateRunes(doc.Taker.Name, 75))
	}
	spText(rps, "Discriminacao", truncateRunes(doc.ServiceDescription, 2000))

	return &Envelope{
		Operation: OpEnvioRPS,
		Doc:       xdoc,
		Sign:      signer.SignOptions{Algorithm: signer.RSASHA1, IncludeCertificate: true},
	}, nil
}

// BuildCancelRPS PedidoCancelamentoNFe da NFS-e gerada a partir do RPS.
func (s *XMLBuilderService) BuildCancelRPS(ctx *BuildContext, ls LegacySigner) (*Envelope, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	im := fiscal.OnlyDigits(ctx.Issuer.MunicipalRegistration)
	number := fiscal.OnlyDigits(ctx.Document.ProtocolNumber)
	payload, err := s.payload.BuildCancel(im, number)
	if err != nil {
		return nil, err
	}
	sig, err := ls.SignLegacy([]byte(payload))
	if err != nil {
		return nil, err
	}

	xdoc, root := newNFeRequest("PedidoCancelamentoNFe")
	header(root, ctx.Issuer.CNPJ, true)
	detail := root.CreateElement("Detalhe")
	key := detail.CreateElement("ChaveNFe")
	text(key, "InscricaoPrestador", im)
	text(key, "NumeroNFe", number)
	text(detail, "AssinaturaCancelamento", sig.Value)

	return &Envelope{
		Operation: OpCancelamentoNFe,
		Doc:       xdoc,
		Sign:      signer.SignOptions{Algorithm: signer.RSASHA1, IncludeCertificate: true},
	}, nil
}

// PeriodQuery parâmetros de PedidoConsultaNFePeriodo.
type PeriodQuery struct {
	Kind string // QueryIssued ou QueryReceived
	From time.Time
	To   time.Time
	Page int
}

// BuildPeriodQuery consulta de NFS-e emitidas ou recebidas pelo emissor.
func (s *XMLBuilderService) BuildPeriodQuery(iss *entity.Issuer, q PeriodQuery) (*Envelope, error) {
	if iss == nil {
		return nil, fmt.Errorf("nfse: emissor obrigatório")
	}
	op := OpConsultaNFeEmitidas
	switch q.Kind {
	case QueryIssued, "":
	case QueryReceived:
		op = OpConsultaNFeRecebidas
	default:
		return nil, domain.NewValidationError("kind", "use emitidas ou recebidas")
	}
	if q.From.IsZero() || q.To.IsZero() || q.To.Before(q.From) {
		return nil, domain.NewValidationError("period", "intervalo de datas inválido")
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	cnpj := fiscal.OnlyDigits(iss.CNPJ)
	xdoc, root := newNFeRequest("PedidoConsultaNFePeriodo")
	cab := root.CreateElement("Cabecalho")
	cab.CreateAttr("Versao", fiscal.SPLayoutVersao)
	text(cab.CreateElement("CPFCNPJRemetente"), "CNPJ", cnpj)
	text(cab.CreateElement("CPFCNPJ"), "CNPJ", cnpj)
	text(cab, "Inscricao", fiscal.OnlyDigits(iss.MunicipalRegistration))
	text(cab, "dtInicio", q.From.Format("2006-01-02"))
	text(cab, "dtFim", q.To.Format("2006-01-02"))
	text(cab, "NumeroPagina", strconv.Itoa(page))

	return &Envelope{
		Operation: op,
		Doc:       xdoc,
		Sign:      signer.SignOptions{Algorithm: signer.RSASHA1, IncludeCertificate: true},
	}, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func newNFeRequest(name string) (*etree.Document, *etree.Element) {
	xdoc := etree.NewDocument()
	root := xdoc.CreateElement(nfePrefix + ":" + name)
	root.CreateAttr("xmlns:"+nfePrefix, fiscal.NamespaceNFe)
	return xdoc, root
}

// header Cabecalho Versao="1" com o CNPJ remetente; transacao apenas nos cancelamentos.
func header(root *etree.Element, cnpj string, transaction bool) {
	cab := root.CreateElement("Cabecalho")
	cab.CreateAttr("Versao", fiscal.SPLayoutVersao)
	text(cab.CreateElement("CPFCNPJRemetente"), "CNPJ", fiscal.OnlyDigits(cnpj))
	if transaction {
		text(cab, "transacao", "true")
	}
}

func checkContext(ctx *BuildContext) error {
	if ctx == nil || ctx.Issuer == nil || ctx.Document == nil {
		return fmt.Errorf("nfse: faltam emissor ou documento no contexto")
	}
	return nil
}
