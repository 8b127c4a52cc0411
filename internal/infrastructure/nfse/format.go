package nfse

import (
	"strings"
	"unicode"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

var hundred = decimal.NewFromInt(100)

// spMoney valor com ponto decimal; zero vira "0" (leiaute SP).
func spMoney(d decimal.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	return d.Round(2).StringFixed(2)
}

// spRate alíquota percentual convertida para fração uma única vez (2.00 -> 0.02).
func spRate(percent decimal.Decimal) string {
	if percent.IsZero() {
		return "0"
	}
	return percent.Div(hundred).String()
}

// dpsMoney valores da DPS sempre com duas casas.
func dpsMoney(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// stripAccents remove diacríticos e caracteres de controle (webservice SP aceita apenas ASCII).
func stripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return '?'
		}
		if unicode.IsControl(r) && r != '\n' {
			return ' '
		}
		return r
	}, strings.TrimSpace(out))
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) > n {
		return string(r[:n])
	}
	return s
}

// text cria um elemento filho com texto.
func text(parent *etree.Element, tag, value string) *etree.Element {
	el := parent.CreateElement(tag)
	el.SetText(value)
	return el
}

// spText elemento de texto livre já sem acentos.
func spText(parent *etree.Element, tag, value string) *etree.Element {
	return text(parent, tag, stripAccents(value))
}

// taxIDElement CPF ou CNPJ conforme o tamanho.
func taxIDElement(parent *etree.Element, taxID string) {
	digits := fiscal.OnlyDigits(taxID)
	if fiscal.IsCPF(digits) {
		text(parent, "CPF", digits)
		return
	}
	text(parent, "CNPJ", digits)
}

func boolText(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func nonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
