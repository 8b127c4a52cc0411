package signer_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/emissor-nfse/internal/domain"
	"github.com/jhoicas/emissor-nfse/internal/infrastructure/nfse/signer"
	"github.com/jhoicas/emissor-nfse/internal/testutil/certtest"
)

func newEngine(t *testing.T) (*signer.Engine, *certtest.Identity) {
	t.Helper()
	id := certtest.New(t, "EMPRESA TESTE")
	e, err := signer.NewEngine(id.Key, id.Cert)
	require.NoError(t, err)
	return e, id
}

func TestSignLegacy_RoundTrip(t *testing.T) {
	e, id := newEngine(t)
	payload := []byte("59073470001  00000000000220240724TNN00000000000402000000000000000006297100003752826703")

	sig, err := e.SignLegacy(payload)
	require.NoError(t, err)
	assert.NotEmpty(t, sig.String())

	require.NoError(t, signer.VerifyLegacy(id.Cert, payload, sig.Value))

	tampered := append([]byte{}, payload...)
	tampered[0] = '9'
	err = signer.VerifyLegacy(id.Cert, tampered, sig.Value)
	var sigErr *domain.SignatureError
	require.True(t, errors.As(err, &sigErr))
	assert.Equal(t, "verify", sigErr.Step)
}

func TestSignLegacy_EmptyPayload(t *testing.T) {
	e, _ := newEngine(t)
	_, err := e.SignLegacy(nil)
	var sigErr *domain.SignatureError
	require.True(t, errors.As(err, &sigErr))
}

func TestNewEngine_RejectsMismatchedCertificate(t *testing.T) {
	a := certtest.New(t, "A")
	b := certtest.New(t, "B")

	_, err := signer.NewEngine(a.Key, b.Cert)
	var sigErr *domain.SignatureError
	require.True(t, errors.As(err, &sigErr))
	assert.Equal(t, "key", sigErr.Step)

	_, err = signer.NewEngine(nil, a.Cert)
	require.Error(t, err)
}

func TestSignEnveloped_WholeDocument(t *testing.T) {
	e, id := newEngine(t)
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<PedidoEnvioRPS xmlns="http://www.prefeitura.sp.gov.br/nfe"><Cabecalho Versao="1"><CPFCNPJRemetente><CNPJ>11222333000181</CNPJ></CPFCNPJRemetente></Cabecalho></PedidoEnvioRPS>`))

	sig, err := e.SignEnveloped(doc, signer.SignOptions{Algorithm: signer.RSASHA1, IncludeCertificate: true})
	require.NoError(t, err)
	assert.Equal(t, "", sig.ReferenceURI)

	children := doc.Root().ChildElements()
	assert.Equal(t, "Signature", children[len(children)-1].Tag)

	out, err := doc.WriteToBytes()
	require.NoError(t, err)
	s := string(out)
	assert.Contains(t, s, `<Signature xmlns="http://www.w3.org/2000/09/xmldsig#">`)
	assert.Contains(t, s, signer.AlgRSASHA1)
	assert.Contains(t, s, signer.AlgExcC14N)
	assert.Equal(t, 2, strings.Count(s, "<Transform "))
	assert.Contains(t, s, "<X509Certificate>")

	require.NoError(t, signer.VerifyEnveloped(out, nil))
	require.NoError(t, signer.VerifyEnveloped(out, id.Cert))

	tampered := strings.Replace(s, "11222333000181", "11222333000182", 1)
	err = signer.VerifyEnveloped([]byte(tampered), nil)
	var sigErr *domain.SignatureError
	require.True(t, errors.As(err, &sigErr))
	assert.Equal(t, "digest", sigErr.Step)
}

func TestSignEnveloped_ReferencedSubtree(t *testing.T) {
	e, _ := newEngine(t)
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<DPS xmlns="http://www.sped.fazenda.gov.br/nfse" versao="1.00"><infDPS Id="DPS355030811122233300018100001000000000000001"><tpAmb>2</tpAmb></infDPS></DPS>`))

	sig, err := e.SignEnveloped(doc, signer.SignOptions{
		Algorithm:          signer.RSASHA256,
		ReferenceID:        "DPS355030811122233300018100001000000000000001",
		IncludeCertificate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "#DPS355030811122233300018100001000000000000001", sig.ReferenceURI)
	assert.Equal(t, doc.Root(), sig.Element.Parent())

	out, err := doc.WriteToBytes()
	require.NoError(t, err)
	assert.Contains(t, string(out), signer.AlgRSASHA256)
	require.NoError(t, signer.VerifyEnveloped(out, nil))

	// alteração fora do infDPS não invalida a referência
	doc.Root().CreateAttr("extra", "x")
	out, err = doc.WriteToBytes()
	require.NoError(t, err)
	require.NoError(t, signer.VerifyEnveloped(out, nil))
}

func TestSignEnveloped_MissingTarget(t *testing.T) {
	e, _ := newEngine(t)
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<DPS><infDPS/></DPS>`))

	_, err := e.SignEnveloped(doc, signer.SignOptions{Algorithm: signer.RSASHA256, ReferenceID: "DPS1"})
	var sigErr *domain.SignatureError
	require.True(t, errors.As(err, &sigErr))
	assert.Equal(t, "target", sigErr.Step)
	assert.Empty(t, doc.Root().SelectElements("Signature"))
}

func TestCanonicalSubtree(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<PedidoCancelamentoNFTS xmlns="http://www.prefeitura.sp.gov.br/nfts"><DetalheNFTS xmlns=""><ChaveNFTS><InscricaoMunicipal>59073470</InscricaoMunicipal><NumeroNFTS>15</NumeroNFTS></ChaveNFTS></DetalheNFTS></PedidoCancelamentoNFTS>`))
	detail := doc.Root().SelectElement("DetalheNFTS")
	require.NotNil(t, detail)

	got, err := signer.CanonicalSubtree(detail, signer.CanonicalOptions{Rename: "PedidoCancelamentoNFTSDetalheNFTS", DropNamespaces: true})
	require.NoError(t, err)
	assert.Equal(t, `<PedidoCancelamentoNFTSDetalheNFTS><ChaveNFTS><InscricaoMunicipal>59073470</InscricaoMunicipal><NumeroNFTS>15</NumeroNFTS></ChaveNFTS></PedidoCancelamentoNFTSDetalheNFTS>`, string(got))
	assert.Equal(t, "DetalheNFTS", detail.Tag, "original não deve ser alterado")
}

func TestCanonicalSubtree_InheritsNamespaceAndDropsSignature(t *testing.T) {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(`<DPS xmlns="http://www.sped.fazenda.gov.br/nfse"><infDPS Id="X"><serie>1</serie><Signature xmlns="http://www.w3.org/2000/09/xmldsig#"/></infDPS></DPS>`))
	inf := doc.Root().SelectElement("infDPS")

	got, err := signer.CanonicalSubtree(inf, signer.CanonicalOptions{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(got), "<infDPS"))
	assert.Contains(t, string(got), `xmlns="http://www.sped.fazenda.gov.br/nfse"`)
	assert.Contains(t, string(got), `Id="X"`)
	assert.Contains(t, string(got), "<serie>1</serie>")
	assert.NotContains(t, string(got), "Signature")
}
