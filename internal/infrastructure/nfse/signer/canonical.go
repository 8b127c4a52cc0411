package signer

import (
	"bytes"
	"encoding/xml"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
)

// CanonicalOptions ajustes aplicados à cópia antes da canonicalização.
type CanonicalOptions struct {
	// Rename troca o nome do elemento raiz da cópia (cancelamento NFTS).
	Rename string
	// DropNamespaces remove todas as declarações xmlns e não herda as do contexto (tpNFTS).
	DropNamespaces bool
}

// CanonicalSubtree serializa uma cópia de el em C14N exclusiva. Declarações de namespace
// em escopo e visivelmente usadas são trazidas dos ancestrais; Signature aninhadas são removidas.
// O elemento original não é alterado.
func CanonicalSubtree(el *etree.Element, opts CanonicalOptions) ([]byte, error) {
	cp := el.Copy()
	if opts.Rename != "" {
		cp.Tag = opts.Rename
	}
	removeSignatures(cp)
	if opts.DropNamespaces {
		dropNamespaceDecls(cp)
	} else {
		inheritNamespaces(el, cp)
	}

	doc := etree.NewDocument()
	doc.SetRoot(cp)
	raw, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return canonicalizeXML(raw)
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

// removeSignatures transformação enveloped-signature.
func removeSignatures(el *etree.Element) {
	for _, child := range el.ChildElements() {
		if child.Tag == "Signature" {
			el.RemoveChild(child)
			continue
		}
		removeSignatures(child)
	}
}

func dropNamespaceDecls(el *etree.Element) {
	kept := el.Attr[:0]
	for _, a := range el.Attr {
		if a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns") {
			continue
		}
		kept = append(kept, a)
	}
	el.Attr = kept
	for _, child := range el.ChildElements() {
		dropNamespaceDecls(child)
	}
}

// inheritNamespaces copia para cp as declarações dos ancestrais de orig que cp utiliza.
func inheritNamespaces(orig, cp *etree.Element) {
	used := usedPrefixes(cp, map[string]bool{})
	declared := map[string]bool{}
	for _, a := range cp.Attr {
		if key, ok := nsDeclKey(a); ok {
			declared[key] = true
		}
	}
	for p := orig.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			key, ok := nsDeclKey(a)
			if !ok || declared[key] || !used[key] {
				continue
			}
			declared[key] = true
			if key == "" {
				cp.CreateAttr("xmlns", a.Value)
			} else {
				cp.CreateAttr("xmlns:"+key, a.Value)
			}
		}
	}
}

// nsDeclKey devolve o prefixo declarado ("" para o namespace padrão).
func nsDeclKey(a etree.Attr) (string, bool) {
	switch {
	case a.Space == "xmlns":
		return a.Key, true
	case a.Space == "" && a.Key == "xmlns":
		return "", true
	}
	return "", false
}

func usedPrefixes(el *etree.Element, acc map[string]bool) map[string]bool {
	acc[el.Space] = true
	for _, a := range el.Attr {
		if a.Space != "" && a.Space != "xmlns" && !strings.EqualFold(a.Space, "xml") {
			acc[a.Space] = true
		}
	}
	for _, child := range el.ChildElements() {
		usedPrefixes(child, acc)
	}
	return acc
}
