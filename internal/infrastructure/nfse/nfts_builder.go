package nfse

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse/signer"
	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

// NFTSBuilderService monta os pedidos do webservice loteNFTS.
// Na NFTS a cadeia assinada é o próprio XML canônico do tpNFTS (ou do DetalheNFTS).
type NFTSBuilderService struct{}

// NewNFTSBuilderService cria o serviço.
func NewNFTSBuilderService() *NFTSBuilderService {
	return &NFTSBuilderService{}
}

// BuildNFTS PedidoEnvioNFTS. O tpNFTS é assinado antes de ser renomeado para NFTS.
func (s *NFTSBuilderService) BuildNFTS(ctx *BuildContext, ls LegacySigner) (*Envelope, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	doc, iss := ctx.Document, ctx.Issuer
	number := fiscal.OnlyDigits(doc.ExternalNumber)
	if number == "" && doc.SequenceNumber != nil {
		number = strconv.FormatInt(*doc.SequenceNumber, 10)
	}
	if number == "" {
		return nil, domain.NewValidationError("external_number", "número do documento obrigatório")
	}

	xdoc := etree.NewDocument()
	root := xdoc.CreateElement("PedidoEnvioNFTS")
	root.CreateAttr("xmlns", fiscal.NamespaceNFTS)

	cab := root.CreateElement("Cabecalho")
	cab.CreateAttr("xmlns", "")
	cab.CreateAttr("Versao", fiscal.SPLayoutVersao)
	taxIDElement(cab.CreateElement("Remetente").CreateElement("CPFCNPJ"), iss.CNPJ)

	nfts := root.CreateElement("tpNFTS")
	text(nfts, "TipoDocumento", fiscal.NFTSDocumentKindCode(doc.DocumentKind))
	key := nfts.CreateElement("ChaveDocumento")
	text(key, "InscricaoMunicipal", fiscal.OnlyDigits(iss.MunicipalRegistration))
	if serie := strings.TrimSpace(truncateRunes(doc.Series, 5)); serie != "" {
		text(key, "SerieNFTS", serie)
	}
	text(key, "NumeroDocumento", truncateRunes(number, 12))
	text(nfts, "DataPrestacao", doc.IssueDate.Format("2006-01-02"))
	text(nfts, "StatusNFTS", fiscal.RPSStatusNormal)
	text(nfts, "TributacaoNFTS", doc.Taxation)
	text(nfts, "ValorServicos", spMoney(doc.GrossValue))
	text(nfts, "ValorDeducoes", spMoney(doc.Deductions))
	text(nfts, "CodigoServico", truncateRunes(fiscal.OnlyDigits(doc.ServiceCode), 4))
	text(nfts, "AliquotaServicos", spRate(doc.ISSRate))
	text(nfts, "ISSRetidoTomador", boolText(doc.ISSWithheld))

	prest := nfts.CreateElement("Prestador")
	taxIDElement(prest.CreateElement("CPFCNPJ"), doc.Provider.TaxID)
	addr := prest.CreateElement("Endereco")
	spText(addr, "Cidade", doc.Provider.City)
	text(addr, "UF", strings.ToUpper(strings.TrimSpace(doc.Provider.State)))
	if cep := fiscal.OnlyDigits(doc.Provider.ZipCode); cep != "" {
		// CEP numérico: zeros à esquerda são descartados.
		n, err := strconv.Atoi(cep)
		if err != nil {
			return nil, domain.NewValidationError("provider.zip_code", "CEP inválido")
		}
		text(addr, "CEP", strconv.Itoa(n))
	}
	text(nfts, "RegimeTributacao", fiscal.NFTSRegimeCode(doc.ProviderRegime))
	spText(nfts, "Discriminacao", truncateRunes(doc.ServiceDescription, 2000))
	text(nfts, "TipoNFTS", "1")

	payload, err := signer.CanonicalSubtree(nfts, signer.CanonicalOptions{DropNamespaces: true})
	if err != nil {
		return nil, &domain.SignatureError{Step: "canonicalize", Err: err}
	}
	sig, err := ls.SignLegacy(payload)
	if err != nil {
		return nil, err
	}
	text(nfts, "Assinatura", sig.Value)
	nfts.Tag = "NFTS"
	nfts.CreateAttr("xmlns", "")

	return &Envelope{
		Operation: OpEnvioNFTS,
		Doc:       xdoc,
		Sign:      signer.SignOptions{Algorithm: signer.RSASHA1, IncludeCertificate: true},
	}, nil
}

// BuildCancelNFTS PedidoCancelamentoNFTS. A assinatura cobre o DetalheNFTS serializado
// como PedidoCancelamentoNFTSDetalheNFTS.
func (s *NFTSBuilderService) BuildCancelNFTS(ctx *BuildContext, ls LegacySigner) (*Envelope, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}
	number := fiscal.OnlyDigits(ctx.Document.ProtocolNumber)
	if number == "" {
		return nil, domain.NewValidationError("protocol_number", "NFTS sem número para cancelar")
	}

	xdoc := etree.NewDocument()
	root := xdoc.CreateElement(nfePrefix + ":PedidoCancelamentoNFTS")
	root.CreateAttr("xmlns:"+nfePrefix, fiscal.NamespaceNFTS)
	cab := root.CreateElement("Cabecalho")
	cab.CreateAttr("Versao", fiscal.SPLayoutVersao)
	taxIDElement(cab.CreateElement("Remetente").CreateElement("CPFCNPJ"), ctx.Issuer.CNPJ)
	text(cab, "transacao", "true")

	detail := root.CreateElement("DetalheNFTS")
	key := detail.CreateElement("ChaveNFTS")
	text(key, "InscricaoMunicipal", fiscal.OnlyDigits(ctx.Issuer.MunicipalRegistration))
	text(key, "NumeroNFTS", number)

	payload, err := signer.CanonicalSubtree(detail, signer.CanonicalOptions{
		Rename:         "PedidoCancelamentoNFTSDetalheNFTS",
		DropNamespaces: true,
	})
	if err != nil {
		return nil, &domain.SignatureError{Step: "canonicalize", Err: err}
	}
	sig, err := ls.SignLegacy(payload)
	if err != nil {
		return nil, err
	}
	text(detail, "AssinaturaCancelamento", sig.Value)

	return &Envelope{
		Operation: OpCancelamentoNFTS,
		Doc:       xdoc,
		Sign:      signer.SignOptions{Algorithm: signer.RSASHA1, IncludeCertificate: true},
	}, nil
}
