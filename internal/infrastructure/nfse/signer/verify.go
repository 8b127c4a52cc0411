package signer

import (
	"bytes"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/jhoicas/emissor-nfse/internal/domain"
)

// VerifyLegacy confere a cadeia assinada com a chave pública do certificado.
func VerifyLegacy(cert *x509.Certificate, payload []byte, signature string) error {
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return &domain.SignatureError{Step: "key", Err: errors.New("certificado sem chave RSA")}
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return &domain.SignatureError{Step: "decode", Err: err}
	}
	sum := sha1.Sum(payload)
	if err := rsa.VerifyPKCS1v15(pub, RSASHA1.Hash, sum[:], raw); err != nil {
		return &domain.SignatureError{Step: "verify", Err: err}
	}
	return nil
}

// VerifyEnveloped valida a Signature filha da raiz. Com cert nil usa o X509Certificate do KeyInfo.
func VerifyEnveloped(signed []byte, cert *x509.Certificate) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signed); err != nil {
		return &domain.SignatureError{Step: "parse", Err: err}
	}
	root := doc.Root()
	if root == nil {
		return &domain.SignatureError{Step: "parse", Err: errors.New("documento sem raiz")}
	}
	var sig *etree.Element
	for _, child := range root.ChildElements() {
		if child.Tag == "Signature" {
			sig = child
		}
	}
	if sig == nil {
		return &domain.SignatureError{Step: "target", Err: errors.New("Signature ausente na raiz")}
	}

	signedInfo := sig.SelectElement("SignedInfo")
	if signedInfo == nil {
		return &domain.SignatureError{Step: "parse", Err: errors.New("SignedInfo ausente")}
	}
	method := signedInfo.SelectElement("SignatureMethod")
	ref := signedInfo.SelectElement("Reference")
	if method == nil || ref == nil {
		return &domain.SignatureError{Step: "parse", Err: errors.New("SignedInfo incompleto")}
	}
	alg, ok := algorithmBySignatureMethod(method.SelectAttrValue("Algorithm", ""))
	if !ok {
		return &domain.SignatureError{Step: "parse", Err: fmt.Errorf("algoritmo %q não suportado", method.SelectAttrValue("Algorithm", ""))}
	}

	target := root
	if uri := ref.SelectAttrValue("URI", ""); uri != "" {
		target = findByID(root, strings.TrimPrefix(uri, "#"))
		if target == nil {
			return &domain.SignatureError{Step: "target", Err: fmt.Errorf("referência %s não encontrada", uri)}
		}
	}
	canonical, err := CanonicalSubtree(target, CanonicalOptions{})
	if err != nil {
		return &domain.SignatureError{Step: "canonicalize", Err: err}
	}
	wantDigest, err := base64.StdEncoding.DecodeString(strings.TrimSpace(textOf(ref.SelectElement("DigestValue"))))
	if err != nil {
		return &domain.SignatureError{Step: "decode", Err: err}
	}
	if !bytes.Equal(hashBytes(alg, canonical), wantDigest) {
		return &domain.SignatureError{Step: "digest", Err: errors.New("DigestValue não confere")}
	}

	if cert == nil {
		cert, err = embeddedCertificate(sig)
		if err != nil {
			return err
		}
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return &domain.SignatureError{Step: "key", Err: errors.New("certificado sem chave RSA")}
	}
	siCanonical, err := CanonicalSubtree(signedInfo, CanonicalOptions{})
	if err != nil {
		return &domain.SignatureError{Step: "canonicalize", Err: err}
	}
	sigValue, err := base64.StdEncoding.DecodeString(strings.TrimSpace(textOf(sig.SelectElement("SignatureValue"))))
	if err != nil {
		return &domain.SignatureError{Step: "decode", Err: err}
	}
	if err := rsa.VerifyPKCS1v15(pub, alg.Hash, hashBytes(alg, siCanonical), sigValue); err != nil {
		return &domain.SignatureError{Step: "verify", Err: err}
	}
	return nil
}

func embeddedCertificate(sig *etree.Element) (*x509.Certificate, error) {
	el := sig.FindElement("./KeyInfo/X509Data/X509Certificate")
	if el == nil {
		return nil, &domain.SignatureError{Step: "key", Err: errors.New("X509Certificate ausente")}
	}
	der, err := base64.StdEncoding.DecodeString(strings.TrimSpace(el.Text()))
	if err != nil {
		return nil, &domain.SignatureError{Step: "decode", Err: err}
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, &domain.SignatureError{Step: "key", Err: err}
	}
	return cert, nil
}

func textOf(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.Text()
}
