// Package signer implementa as duas disciplinas de assinatura da NFS-e: a cadeia assinada
// (RSA-SHA1 PKCS#1 v1.5 em base64, campo Assinatura) e a XMLDSig envelopada.

package signer

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/beevik/etree"

	"github.com/jhoicas/emissor-nfse/internal/domain"
)

// LegacySignedString valor do campo Assinatura / AssinaturaCancelamento.
type LegacySignedString struct {
	Value string // base64
}

func (s LegacySignedString) String() string { return s.Value }

// EnvelopedXmlSignature Signature já inserida como último filho da raiz.
type EnvelopedXmlSignature struct {
	Algorithm      Algorithm
	ReferenceURI   string
	DigestValue    string
	SignatureValue string
	Element        *etree.Element
}

// SignOptions parâmetros da assinatura envelopada.
type SignOptions struct {
	Algorithm Algorithm
	// ReferenceID Id do elemento assinado; vazio referencia o documento inteiro (URI="").
	ReferenceID string
	// IncludeCertificate inclui KeyInfo/X509Data/X509Certificate.
	IncludeCertificate bool
}

// Engine assina com a chave do emissor.
type Engine struct {
	key  *rsa.PrivateKey
	cert *x509.Certificate
}

// NewEngine valida o par chave/certificado.
func NewEngine(key *rsa.PrivateKey, cert *x509.Certificate) (*Engine, error) {
	if key == nil {
		return nil, &domain.SignatureError{Step: "key", Err: errors.New("chave privada ausente")}
	}
	if err := key.Validate(); err != nil {
		return nil, &domain.SignatureError{Step: "key", Err: err}
	}
	if cert != nil {
		if pub, ok := cert.PublicKey.(*rsa.PublicKey); !ok || !pub.Equal(&key.PublicKey) {
			return nil, &domain.SignatureError{Step: "key", Err: errors.New("certificado não corresponde à chave privada")}
		}
	}
	return &Engine{key: key, cert: cert}, nil
}

// Certificate certificado usado no KeyInfo.
func (e *Engine) Certificate() *x509.Certificate { return e.cert }

// SignLegacy RSA PKCS#1 v1.5 sobre SHA-1 do payload.
func (e *Engine) SignLegacy(payload []byte) (LegacySignedString, error) {
	if len(payload) == 0 {
		return LegacySignedString{}, &domain.SignatureError{Step: "payload", Err: errors.New("cadeia vazia")}
	}
	sum := sha1.Sum(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, e.key, RSASHA1.Hash, sum[:])
	if err != nil {
		return LegacySignedString{}, &domain.SignatureError{Step: "sign", Err: err}
	}
	return LegacySignedString{Value: base64.StdEncoding.EncodeToString(sig)}, nil
}

// SignEnveloped digere o alvo (raiz ou elemento com Id), assina o SignedInfo e anexa
// Signature como último filho da raiz do documento.
func (e *Engine) SignEnveloped(doc *etree.Document, opts SignOptions) (*EnvelopedXmlSignature, error) {
	root := doc.Root()
	if root == nil {
		return nil, &domain.SignatureError{Step: "target", Err: errors.New("documento sem raiz")}
	}
	alg := opts.Algorithm
	if alg.Hash == 0 {
		alg = RSASHA1
	}

	target := root
	uri := ""
	if opts.ReferenceID != "" {
		target = findByID(root, opts.ReferenceID)
		if target == nil {
			return nil, &domain.SignatureError{Step: "target", Err: fmt.Errorf("elemento Id=%q não encontrado", opts.ReferenceID)}
		}
		uri = "#" + opts.ReferenceID
	}

	canonical, err := CanonicalSubtree(target, CanonicalOptions{})
	if err != nil {
		return nil, &domain.SignatureError{Step: "canonicalize", Err: err}
	}
	digest := base64.StdEncoding.EncodeToString(hashBytes(alg, canonical))

	sig := root.CreateElement("Signature")
	sig.CreateAttr("xmlns", NamespaceDS)
	signedInfo := sig.CreateElement("SignedInfo")
	signedInfo.CreateElement("CanonicalizationMethod").CreateAttr("Algorithm", AlgExcC14N)
	signedInfo.CreateElement("SignatureMethod").CreateAttr("Algorithm", alg.SignatureMethod)
	ref := signedInfo.CreateElement("Reference")
	ref.CreateAttr("URI", uri)
	transforms := ref.CreateElement("Transforms")
	transforms.CreateElement("Transform").CreateAttr("Algorithm", TransformEnveloped)
	transforms.CreateElement("Transform").CreateAttr("Algorithm", AlgExcC14N)
	ref.CreateElement("DigestMethod").CreateAttr("Algorithm", alg.DigestMethod)
	ref.CreateElement("DigestValue").SetText(digest)

	siCanonical, err := CanonicalSubtree(signedInfo, CanonicalOptions{})
	if err != nil {
		root.RemoveChild(sig)
		return nil, &domain.SignatureError{Step: "canonicalize", Err: err}
	}
	raw, err := rsa.SignPKCS1v15(rand.Reader, e.key, alg.Hash, hashBytes(alg, siCanonical))
	if err != nil {
		root.RemoveChild(sig)
		return nil, &domain.SignatureError{Step: "sign", Err: err}
	}
	value := base64.StdEncoding.EncodeToString(raw)
	sig.CreateElement("SignatureValue").SetText(value)

	if opts.IncludeCertificate {
		if e.cert == nil {
			root.RemoveChild(sig)
			return nil, &domain.SignatureError{Step: "key", Err: errors.New("certificado ausente para KeyInfo")}
		}
		sig.CreateElement("KeyInfo").CreateElement("X509Data").CreateElement("X509Certificate").
			SetText(base64.StdEncoding.EncodeToString(e.cert.Raw))
	}

	return &EnvelopedXmlSignature{
		Algorithm:      alg,
		ReferenceURI:   uri,
		DigestValue:    digest,
		SignatureValue: value,
		Element:        sig,
	}, nil
}

func hashBytes(alg Algorithm, data []byte) []byte {
	h := alg.Hash.New()
	h.Write(data)
	return h.Sum(nil)
}

func findByID(el *etree.Element, id string) *etree.Element {
	if el.SelectAttrValue("Id", "") == id {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}
