// Namespaces e algoritmos XMLDSig usados nos envelopes NFS-e.

package signer

import (
	"crypto"
	_ "crypto/sha1"   // registra crypto.SHA1
	_ "crypto/sha256" // registra crypto.SHA256
)

const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	AlgExcC14N         = "http://www.w3.org/2001/10/xml-exc-c14n#"
	AlgRSASHA1         = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgRSASHA256       = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA1            = "http://www.w3.org/2000/09/xmldsig#sha1"
	AlgSHA256          = "http://www.w3.org/2001/04/xmlenc#sha256"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// Algorithm par assinatura/digest de uma Signature.
type Algorithm struct {
	SignatureMethod string
	DigestMethod    string
	Hash            crypto.Hash
}

var (
	// RSASHA1 envelopes da prefeitura de São Paulo (RPS, NFTS, cancelamentos, consultas).
	RSASHA1 = Algorithm{SignatureMethod: AlgRSASHA1, DigestMethod: AlgSHA1, Hash: crypto.SHA1}
	// RSASHA256 DPS do padrão nacional.
	RSASHA256 = Algorithm{SignatureMethod: AlgRSASHA256, DigestMethod: AlgSHA256, Hash: crypto.SHA256}
)

// algorithmBySignatureMethod usado na verificação.
func algorithmBySignatureMethod(uri string) (Algorithm, bool) {
	switch uri {
	case AlgRSASHA1:
		return RSASHA1, true
	case AlgRSASHA256:
		return RSASHA256, true
	}
	return Algorithm{}, false
}
