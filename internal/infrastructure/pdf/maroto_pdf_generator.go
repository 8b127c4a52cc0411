// Package pdf gera o comprovante da NFS-e emitida e o relatório de lote.
//
// Layout do comprovante (A4):
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  CABEÇALHO: Razão social + CNPJ  │  Nº NFS-e + emissão       │
//	│  PRESTADOR: IM / município / regime                          │
//	│  TOMADOR: nome + CPF/CNPJ + endereço                         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  SERVIÇO: código + discriminação                             │
//	│  VALORES: bruto / deduções / base / ISS / retenções / líquido│
//	│  ─────────────────────────────────────────────────────────  │
//	│  RODAPÉ: verificação ou chave de acesso + QR                 │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/emissor-nfse/internal/application/emission"
	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
	domnfse "github.com/jhoicas/emissor-nfse/internal/domain/nfse"
	"github.com/jhoicas/emissor-nfse/pkg/fiscal"
)

// ── Paleta ────────────────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorRed     = &props.Color{Red: 170, Green: 30, Blue: 30}
)

var _ emission.ReceiptPDFGenerator = (*MarotoPDFGenerator)(nil)

// MarotoPDFGenerator implementa emission.ReceiptPDFGenerator com Maroto v2.
type MarotoPDFGenerator struct{}

// NewMarotoPDFGenerator constrói o gerador.
func NewMarotoPDFGenerator() *MarotoPDFGenerator { return &MarotoPDFGenerator{} }

// GenerateReceipt comprovante de um documento emitido ou cancelado.
func (g *MarotoPDFGenerator) GenerateReceipt(
	_ context.Context,
	doc *entity.FiscalDocument,
	issuer *entity.Issuer,
	taxes domnfse.TaxSummary,
) ([]byte, error) {
	m := newDocument(documentTitle(doc.Dialect), issuer.LegalName)

	m.AddRows(headerRow(doc, issuer))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(providerRow(issuer))
	m.AddRows(partyRow(counterpartLabel(doc.Dialect), counterpart(doc)))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(serviceRows(doc)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(doc, taxes))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRows(doc)...)

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: gerar comprovante: %w", err)
	}
	return out.GetBytes(), nil
}

// GenerateBatchReport relatório do lote: um item por documento, na ordem de entrada.
func (g *MarotoPDFGenerator) GenerateBatchReport(
	_ context.Context,
	issuer *entity.Issuer,
	report *emission.BatchReport,
	generatedAt time.Time,
) ([]byte, error) {
	m := newDocument("Relatório de lote NFS-e", issuer.LegalName)

	m.AddRows(row.New(18).Add(
		col.New(8).Add(
			text.New(issuer.LegalName, props.Text{Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1}),
			text.New("CNPJ: "+fiscal.FormatCNPJ(issuer.CNPJ), props.Text{Size: 9, Top: 9, Color: colorGray}),
		),
		col.New(4).Add(
			text.New("RELATÓRIO DE LOTE", props.Text{Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1}),
			text.New(actionLabel(report.Action), props.Text{Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 7}),
			text.New(generatedAt.In(fiscal.BrasiliaTime).Format("02/01/2006 15:04"), props.Text{Size: 8, Align: align.Right, Top: 14, Color: colorGray}),
		),
	))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(row.New(8).Add(col.New(12).Add(
		text.New(fmt.Sprintf("Documentos: %d   |   Sucesso: %d   |   Falha: %d",
			len(report.Items), report.Succeeded, report.Failed), props.Text{Size: 9, Top: 2}),
	)))

	h := func(label string, size int) core.Col {
		return col.New(size).Add(text.New(label, props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 2, Left: 1}))
	}
	m.AddRows(row.New(8).Add(h("Documento", 4), h("Resultado", 2), h("Detalhe", 6)))
	for _, item := range report.Items {
		m.AddRows(batchItemRow(item))
	}

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: gerar relatório de lote: %w", err)
	}
	return out.GetBytes(), nil
}

func newDocument(title, author string) core.Maroto {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(title, true).
		WithAuthor(author, true).
		Build()
	return maroto.New(cfg)
}

// ── Seções ────────────────────────────────────────────────────────────────────

// headerRow: razão social + CNPJ (esq.) e número + data de emissão (dir.).
func headerRow(doc *entity.FiscalDocument, issuer *entity.Issuer) core.Row {
	issued := doc.IssueDate
	if doc.IssuedAt != nil {
		issued = *doc.IssuedAt
	}
	right := []core.Component{
		text.New(documentTitle(doc.Dialect), props.Text{
			Style: fontstyle.Bold, Size: 8, Align: align.Right, Color: colorPrimary, Top: 1,
		}),
		text.New("Nº "+nonEmpty(doc.ProtocolNumber, "—"), props.Text{
			Style: fontstyle.Bold, Size: 12, Align: align.Right, Top: 7,
		}),
		text.New("Emissão: "+issued.In(fiscal.BrasiliaTime).Format("02/01/2006 15:04"), props.Text{
			Size: 8, Align: align.Right, Top: 14, Color: colorGray,
		}),
	}
	return row.New(20).Add(
		col.New(7).Add(
			text.New(issuer.LegalName, props.Text{Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1}),
			text.New("CNPJ: "+fiscal.FormatCNPJ(issuer.CNPJ), props.Text{Size: 9, Top: 9, Color: colorGray}),
		),
		col.New(5).Add(right...),
	)
}

// providerRow: dados municipais do emissor.
func providerRow(issuer *entity.Issuer) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("EMISSOR", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(fmt.Sprintf("Inscrição municipal: %s   |   Município (IBGE): %s   |   Nome fantasia: %s",
				nonEmpty(issuer.MunicipalRegistration, "—"),
				nonEmpty(issuer.MunicipalityCode, "—"),
				nonEmpty(issuer.TradeName, "—"),
			), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

// partyRow: tomador (RPS/DPS) ou prestador declarado (NFTS).
func partyRow(label string, p entity.Party) core.Row {
	taxLabel := "CNPJ"
	taxID := fiscal.FormatCNPJ(p.TaxID)
	if fiscal.IsCPF(p.TaxID) {
		taxLabel, taxID = "CPF", fiscal.OnlyDigits(p.TaxID)
	}
	address := strings.TrimSpace(strings.Join(nonBlank(p.Street, p.Number, p.District, p.City, strings.ToUpper(p.State)), ", "))
	return row.New(18).Add(
		col.New(12).Add(
			text.New(label, props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(nonEmpty(p.Name, "—"), props.Text{Style: fontstyle.Bold, Size: 10, Top: 6}),
			text.New(fmt.Sprintf("%s: %s   |   Endereço: %s   |   E-mail: %s",
				taxLabel, nonEmpty(taxID, "—"), nonEmpty(address, "—"), nonEmpty(p.Email, "—"),
			), props.Text{Size: 8, Top: 12, Color: colorGray}),
		),
	)
}

// serviceRows: código do serviço e discriminação quebrada em linhas.
func serviceRows(doc *entity.FiscalDocument) []core.Row {
	code := doc.ServiceCode
	if doc.Dialect == entity.DialectDPS {
		code = doc.NationalTaxCode
	}
	rows := []core.Row{
		row.New(10).Add(col.New(12).Add(
			text.New("DISCRIMINAÇÃO DO SERVIÇO", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New("Código do serviço: "+nonEmpty(code, "—")+"   |   Tributação: "+nonEmpty(doc.Taxation, "—"),
				props.Text{Size: 8, Top: 6, Color: colorGray}),
		)),
	}
	for _, chunk := range splitEvery(doc.ServiceDescription, 110) {
		rows = append(rows, row.New(5).Add(col.New(12).Add(
			text.New(chunk, props.Text{Size: 8, Top: 0.5, Left: 1}),
		)))
	}
	return rows
}

// totalsRow: bloco de valores alinhado à direita.
func totalsRow(doc *entity.FiscalDocument, taxes domnfse.TaxSummary) core.Row {
	label := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2})
	}
	value := func(d decimal.Decimal) core.Component {
		return text.New("R$ "+formatMoney(d), props.Text{Size: 9, Align: align.Right, Right: 1})
	}
	grand := func(s string) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1})
	}

	issLabel := fmt.Sprintf("ISS (%s%%):", doc.ISSRate.StringFixed(2))
	if doc.ISSWithheld {
		issLabel = fmt.Sprintf("ISS retido (%s%%):", doc.ISSRate.StringFixed(2))
	}
	return row.New(40).Add(
		col.New(4),
		col.New(4).Add(
			label("Valor dos serviços:"),
			label("Deduções:"),
			label("Base de cálculo:"),
			label(issLabel),
			label("Retenções:"),
			grand("VALOR LÍQUIDO:"),
		),
		col.New(4).Add(
			value(doc.GrossValue),
			value(doc.Deductions),
			value(taxes.Base),
			value(taxes.ISS),
			value(taxes.Retentions),
			grand("R$ "+formatMoney(taxes.Net)),
		),
	)
}

// footerRows: código de verificação ou chave de acesso, QR para a consulta pública e situação.
func footerRows(doc *entity.FiscalDocument) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("AUTENTICIDADE", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
		)),
	}
	if doc.VerificationCode != "" {
		rows = append(rows, row.New(5).Add(col.New(12).Add(
			text.New("Código de verificação: "+doc.VerificationCode, props.Text{Size: 8, Top: 1}),
		)))
	}
	if doc.AccessKey != "" {
		rows = append(rows, row.New(5).Add(col.New(12).Add(
			text.New("Chave de acesso:", props.Text{Style: fontstyle.Bold, Size: 7, Top: 1}),
		)))
		for _, chunk := range splitEvery(doc.AccessKey, 80) {
			rows = append(rows, row.New(4).Add(col.New(12).Add(
				text.New(chunk, props.Text{Size: 6.5, Color: colorGray, Top: 0.5, Left: 2}),
			)))
		}
	}

	rows = append(rows, row.New(3))
	if doc.ViewURL != "" {
		rows = append(rows, row.New(45).Add(
			col.New(4).Add(code.NewQr(doc.ViewURL, props.Rect{Percent: 95, Center: true})),
			col.New(8).Add(
				text.New("Consulte a autenticidade desta nota\nno portal da prefeitura.", props.Text{
					Size: 8, Top: 4, Left: 3, Color: colorGray,
				}),
			),
		))
	}
	if doc.Status == entity.DocumentStatusCanceled {
		rows = append(rows, row.New(10).Add(col.New(12).Add(
			text.New("DOCUMENTO CANCELADO", props.Text{
				Style: fontstyle.Bold, Size: 12, Align: align.Center, Color: colorRed, Top: 2,
			}),
		)))
	}
	return rows
}

func batchItemRow(item emission.BatchItem) core.Row {
	result, detail, color := "", "", colorGray
	switch it := item.(type) {
	case emission.ItemSucceeded:
		result = "Sucesso"
		if it.Outcome != nil {
			detail = "Nº " + it.Outcome.Number
			if it.Outcome.VerificationCode != "" {
				detail += " / verificação " + it.Outcome.VerificationCode
			}
		}
		color = colorPrimary
	case emission.ItemFailed:
		result, detail, color = "Falha", it.Message, colorRed
	}
	return row.New(7).Add(
		col.New(4).Add(text.New(item.DocumentID(), props.Text{Size: 7, Top: 1, Left: 1})),
		col.New(2).Add(text.New(result, props.Text{Style: fontstyle.Bold, Size: 8, Top: 1, Color: color})),
		col.New(6).Add(text.New(detail, props.Text{Size: 7, Top: 1, Color: colorGray})),
	)
}

// ── helpers ───────────────────────────────────────────────────────────────────

func documentTitle(dialect string) string {
	switch dialect {
	case entity.DialectNFTS:
		return "NOTA FISCAL DO TOMADOR DE SERVIÇOS - NFTS"
	case entity.DialectDPS:
		return "NFS-e PADRÃO NACIONAL"
	default:
		return "NOTA FISCAL DE SERVIÇOS ELETRÔNICA - NFS-e"
	}
}

func counterpartLabel(dialect string) string {
	if dialect == entity.DialectNFTS {
		return "PRESTADOR DO SERVIÇO"
	}
	return "TOMADOR DO SERVIÇO"
}

func counterpart(doc *entity.FiscalDocument) entity.Party {
	if doc.Dialect == entity.DialectNFTS {
		return doc.Provider
	}
	return doc.Taker
}

func actionLabel(a emission.Action) string {
	if a == emission.ActionCancel {
		return "Cancelamento"
	}
	return "Emissão"
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

func nonBlank(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}

// formatMoney formata no padrão brasileiro: 1234.5 → "1.234,50".
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	n := len(intPart)
	buf := make([]byte, 0, n+n/3+3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	out := string(buf) + "," + frac
	if neg {
		out = "-" + out
	}
	return out
}

// splitEvery divide s em pedaços de no máximo n runas.
func splitEvery(s string, n int) []string {
	r := []rune(s)
	var parts []string
	for len(r) > n {
		parts = append(parts, string(r[:n]))
		r = r[n:]
	}
	if len(r) > 0 {
		parts = append(parts, string(r))
	}
	return parts
}
