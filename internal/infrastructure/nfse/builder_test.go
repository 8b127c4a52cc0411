package nfse_test

import (
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	domnfse "github.com/jhoicas/emissor-nfse/internal/domain/nfse"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse/signer"
	"github.com/jhoicas/emissor-nfse/internal/testutil/certtest"
	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

func testIssuer() *entity.Issuer {
	return &entity.Issuer{
		ID:                    "iss-1",
		CNPJ:                  "11222333000181",
		LegalName:             "EMPRESA TESTE LTDA",
		MunicipalRegistration: "59073470",
		MunicipalityCode:      "3550308",
		SimplesNacional:       "1",
		SpecialRegime:         "0",
	}
}

func testDocument(dialect string, seq int64) *entity.FiscalDocument {
	return &entity.FiscalDocument{
		ID:             "doc-1",
		IssuerID:       "iss-1",
		Dialect:        dialect,
		Status:         entity.DocumentStatusPending,
		Series:         "1",
		SequenceNumber: &seq,
		IssueDate:      time.Date(2024, 7, 24, 0, 0, 0, 0, fiscal.BrasiliaTime),
		Taxation:       entity.TaxationInMunicipality,
		Taker: entity.Party{
			TaxID:    "37528267031",
			Name:     "José da Conceição",
			Street:   "Rua Augusta",
			Number:   "100",
			District: "Consolação",
			ZipCode:  "01305-000",
		},
		Provider: entity.Party{
			TaxID:   "11222333000181",
			City:    "São Paulo",
			State:   "sp",
			ZipCode: "01305-000",
		},
		ServiceCode:        "02919",
		NationalTaxCode:    "01.07.01",
		ServiceDescription: "Serviço de manutenção",
		GrossValue:         decimal.RequireFromString("40.20"),
		ISSRate:            decimal.RequireFromString("2.00"),
		ExternalNumber:     "123",
		ProtocolNumber:     "1044",
	}
}

func newSigner(t *testing.T) (*signer.Engine, *certtest.Identity) {
	t.Helper()
	id := certtest.New(t, "EMPRESA TESTE LTDA:11222333000181")
	e, err := signer.NewEngine(id.Key, id.Cert)
	require.NoError(t, err)
	return e, id
}

func parse(t *testing.T, raw []byte) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(raw))
	return doc.Root()
}

func TestBuildRPS_SignsPayloadAndEnvelope(t *testing.T) {
	eng, id := newSigner(t)
	ctx := &nfse.BuildContext{Issuer: testIssuer(), Document: testDocument(entity.DialectRPS, 2)}

	env, err := nfse.NewXMLBuilderService().BuildRPS(ctx, eng)
	require.NoError(t, err)
	assert.Equal(t, nfse.OpEnvioRPS, env.Operation)

	signed, err := env.Seal(eng)
	require.NoError(t, err)
	require.NoError(t, signer.VerifyEnveloped(signed, id.Cert))

	root := parse(t, signed)
	assert.Equal(t, "PedidoEnvioRPS", root.Tag)
	assert.Equal(t, "p1", root.Space)
	assert.Equal(t, fiscal.NamespaceNFe, root.SelectAttrValue("xmlns:p1", ""))
	assert.Equal(t, "Signature", root.ChildElements()[len(root.ChildElements())-1].Tag)

	rps := root.SelectElement("RPS")
	require.NotNil(t, rps)
	assert.Equal(t, "2", rps.FindElement("ChaveRPS/NumeroRPS").Text())
	assert.Equal(t, "2024-07-24", rps.SelectElement("DataEmissao").Text())
	assert.Equal(t, "40.20", rps.SelectElement("ValorServicos").Text())
	assert.Equal(t, "0", rps.SelectElement("ValorDeducoes").Text())
	assert.Equal(t, "0.02", rps.SelectElement("AliquotaServicos").Text())
	assert.Equal(t, "false", rps.SelectElement("ISSRetido").Text())
	assert.Equal(t, "37528267031", rps.FindElement("CPFCNPJTomador/CPF").Text())
	assert.Equal(t, "Jose da Conceicao", rps.SelectElement("RazaoSocialTomador").Text())
	assert.Nil(t, rps.SelectElement("ValorPIS"))

	payload, err := domnfse.NewLegacyPayloadBuilder().Build(&domnfse.LegacyPayloadParams{
		MunicipalRegistration: "59073470",
		Series:                "1",
		Number:                "2",
		IssueDate:             ctx.Document.IssueDate,
		Taxation:              "T",
		Status:                "N",
		ServiceValue:          ctx.Document.GrossValue,
		ServiceCode:           "02919",
		TakerTaxID:            "37528267031",
	})
	require.NoError(t, err)
	assert.NoError(t, signer.VerifyLegacy(id.Cert, []byte(payload), rps.SelectElement("Assinatura").Text()))
}

func TestBuildRPS_RequiresSequence(t *testing.T) {
	eng, _ := newSigner(t)
	doc := testDocument(entity.DialectRPS, 1)
	doc.SequenceNumber = nil

	_, err := nfse.NewXMLBuilderService().BuildRPS(&nfse.BuildContext{Issuer: testIssuer(), Document: doc}, eng)
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "sequence_number", vErr.Field)
}

func TestBuildRPS_WithholdingsOnlyWhenPresent(t *testing.T) {
	eng, _ := newSigner(t)
	doc := testDocument(entity.DialectRPS, 3)
	doc.Withholdings.PIS = decimal.RequireFromString("0.65")

	env, err := nfse.NewXMLBuilderService().BuildRPS(&nfse.BuildContext{Issuer: testIssuer(), Document: doc}, eng)
	require.NoError(t, err)
	rps := env.Doc.Root().SelectElement("RPS")
	assert.Equal(t, "0.65", rps.SelectElement("ValorPIS").Text())
	assert.Nil(t, rps.SelectElement("ValorCOFINS"))
}

func TestBuildCancelRPS(t *testing.T) {
	eng, id := newSigner(t)
	ctx := &nfse.BuildContext{Issuer: testIssuer(), Document: testDocument(entity.DialectRPS, 2)}

	env, err := nfse.NewXMLBuilderService().BuildCancelRPS(ctx, eng)
	require.NoError(t, err)
	assert.Equal(t, nfse.OpCancelamentoNFe, env.Operation)

	signed, err := env.Seal(eng)
	require.NoError(t, err)
	require.NoError(t, signer.VerifyEnveloped(signed, id.Cert))

	root := parse(t, signed)
	assert.Equal(t, "true", root.FindElement("Cabecalho/transacao").Text())
	detail := root.SelectElement("Detalhe")
	assert.Equal(t, "1044", detail.FindElement("ChaveNFe/NumeroNFe").Text())
	assert.NoError(t, signer.VerifyLegacy(id.Cert, []byte("59073470000000001044"), detail.SelectElement("AssinaturaCancelamento").Text()))
}

func TestBuildCancelRPS_WithoutNumber(t *testing.T) {
	eng, _ := newSigner(t)
	doc := testDocument(entity.DialectRPS, 2)
	doc.ProtocolNumber = ""

	_, err := nfse.NewXMLBuilderService().BuildCancelRPS(&nfse.BuildContext{Issuer: testIssuer(), Document: doc}, eng)
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "protocol_number", vErr.Field)
}

func TestBuildPeriodQuery(t *testing.T) {
	b := nfse.NewXMLBuilderService()
	from := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 7, 31, 0, 0, 0, 0, time.UTC)

	env, err := b.BuildPeriodQuery(testIssuer(), nfse.PeriodQuery{Kind: nfse.QueryReceived, From: from, To: to})
	require.NoError(t, err)
	assert.Equal(t, nfse.OpConsultaNFeRecebidas, env.Operation)
	cab := env.Doc.Root().SelectElement("Cabecalho")
	assert.Equal(t, "2024-07-01", cab.SelectElement("dtInicio").Text())
	assert.Equal(t, "2024-07-31", cab.SelectElement("dtFim").Text())
	assert.Equal(t, "1", cab.SelectElement("NumeroPagina").Text())

	_, err = b.BuildPeriodQuery(testIssuer(), nfse.PeriodQuery{From: to, To: from})
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "period", vErr.Field)

	_, err = b.BuildPeriodQuery(testIssuer(), nfse.PeriodQuery{Kind: "todas", From: from, To: to})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "kind", vErr.Field)
}

func TestBuildNFTS_SignsCanonicalTpNFTS(t *testing.T) {
	eng, id := newSigner(t)
	ctx := &nfse.BuildContext{Issuer: testIssuer(), Document: testDocument(entity.DialectNFTS, 5)}

	env, err := nfse.NewNFTSBuilderService().BuildNFTS(ctx, eng)
	require.NoError(t, err)
	assert.Equal(t, nfse.OpEnvioNFTS, env.Operation)

	nfts := env.Doc.Root().SelectElement("NFTS")
	require.NotNil(t, nfts)
	assert.Equal(t, "123", nfts.FindElement("ChaveDocumento/NumeroDocumento").Text())
	assert.Equal(t, "0291", nfts.SelectElement("CodigoServico").Text())
	assert.Equal(t, "1305000", nfts.FindElement("Prestador/Endereco/CEP").Text())
	assert.Equal(t, "SP", nfts.FindElement("Prestador/Endereco/UF").Text())
	assert.Equal(t, "Sao Paulo", nfts.FindElement("Prestador/Endereco/Cidade").Text())

	// a cadeia assinada é o tpNFTS canônico, sem a própria Assinatura
	sigValue := nfts.SelectElement("Assinatura").Text()
	unsigned := nfts.Copy()
	unsigned.RemoveChild(unsigned.SelectElement("Assinatura"))
	unsigned.Tag = "tpNFTS"
	payload, err := signer.CanonicalSubtree(unsigned, signer.CanonicalOptions{DropNamespaces: true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "<tpNFTS><TipoDocumento>02</TipoDocumento>"))
	assert.NoError(t, signer.VerifyLegacy(id.Cert, payload, sigValue))

	signed, err := env.Seal(eng)
	require.NoError(t, err)
	assert.NoError(t, signer.VerifyEnveloped(signed, id.Cert))
}

func TestBuildNFTS_RequiresNumber(t *testing.T) {
	eng, _ := newSigner(t)
	doc := testDocument(entity.DialectNFTS, 0)
	doc.ExternalNumber = ""
	doc.SequenceNumber = nil

	_, err := nfse.NewNFTSBuilderService().BuildNFTS(&nfse.BuildContext{Issuer: testIssuer(), Document: doc}, eng)
	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "external_number", vErr.Field)
}

func TestBuildCancelNFTS(t *testing.T) {
	eng, id := newSigner(t)
	ctx := &nfse.BuildContext{Issuer: testIssuer(), Document: testDocument(entity.DialectNFTS, 5)}

	env, err := nfse.NewNFTSBuilderService().BuildCancelNFTS(ctx, eng)
	require.NoError(t, err)

	detail := env.Doc.Root().SelectElement("DetalheNFTS")
	payload := "<PedidoCancelamentoNFTSDetalheNFTS><ChaveNFTS>" +
		"<InscricaoMunicipal>59073470</InscricaoMunicipal><NumeroNFTS>1044</NumeroNFTS>" +
		"</ChaveNFTS></PedidoCancelamentoNFTSDetalheNFTS>"
	assert.NoError(t, signer.VerifyLegacy(id.Cert, []byte(payload), detail.SelectElement("AssinaturaCancelamento").Text()))

	signed, err := env.Seal(eng)
	require.NoError(t, err)
	assert.NoError(t, signer.VerifyEnveloped(signed, id.Cert))
}

func TestDPSID(t *testing.T) {
	id := nfse.DPSID("3550308", "1", "11.222.333/0001-81", "1", 42)
	assert.Equal(t, "DPS355030811122233300018100001000000000000042", id)
	assert.Len(t, id, 45)
}

func TestBuildDPS_SignsInfDPS(t *testing.T) {
	eng, id := newSigner(t)
	clock := time.Date(2024, 7, 24, 15, 0, 0, 0, time.UTC)
	b := nfse.NewDPSBuilderService("", "").WithClock(func() time.Time { return clock })
	ctx := &nfse.BuildContext{Issuer: testIssuer(), Document: testDocument(entity.DialectDPS, 42)}

	env, err := b.BuildDPS(ctx)
	require.NoError(t, err)
	assert.Equal(t, nfse.OpEnvioDPS, env.Operation)

	signed, err := env.Seal(eng)
	require.NoError(t, err)
	require.NoError(t, signer.VerifyEnveloped(signed, id.Cert))

	root := parse(t, signed)
	assert.Equal(t, "DPS", root.Tag)
	inf := root.SelectElement("infDPS")
	require.NotNil(t, inf)
	assert.Equal(t, "DPS355030811122233300018100001000000000000042", inf.SelectAttrValue("Id", ""))
	assert.Equal(t, "2024-07-24T11:58:00-03:00", inf.SelectElement("dhEmi").Text())
	assert.Equal(t, fiscal.DPSEnvironmentHomologation, inf.SelectElement("tpAmb").Text())
	assert.Equal(t, "00001", inf.SelectElement("serie").Text())
	assert.Equal(t, "010701", inf.FindElement("serv/cServ/cTribNac").Text())
	assert.Equal(t, "40.20", inf.FindElement("valores/vServPrest/vServ").Text())
	assert.Equal(t, "2.00", inf.FindElement("valores/trib/tribMun/pAliq").Text())
	assert.Equal(t, "01305000", inf.FindElement("toma/end/endNac/CEP").Text())

	sig := root.SelectElement("Signature")
	require.NotNil(t, sig)
	ref := sig.FindElement("SignedInfo/Reference")
	assert.Equal(t, "#"+inf.SelectAttrValue("Id", ""), ref.SelectAttrValue("URI", ""))
	assert.Equal(t, signer.AlgRSASHA256, sig.FindElement("SignedInfo/SignatureMethod").SelectAttrValue("Algorithm", ""))
}
