package nfse

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/emissor-nfse/internal/domain/entity"
)

var hundred = decimal.NewFromInt(100)

// TaxSummary resumo de base, ISS, retenções e valor líquido de um documento.
type TaxSummary struct {
	Base       decimal.Decimal
	ISS        decimal.Decimal
	Retentions decimal.Decimal
	Net        decimal.Decimal
}

// ComputeTaxes base = bruto - deduções - desconto incondicionado; ISS = base * alíquota / 100.
// Retenções somam as federais, o ISS quando retido e IBS/CBS quando retidos na fonte.
func ComputeTaxes(doc *entity.FiscalDocument) TaxSummary {
	base := doc.GrossValue.Sub(doc.Deductions).Sub(doc.UnconditionalDiscount)
	iss := base.Mul(doc.ISSRate).Div(hundred).Round(2)

	retentions := doc.Withholdings.Total()
	if doc.ISSWithheld {
		retentions = retentions.Add(iss)
	}
	if doc.TaxReform.IBSWithheld {
		retentions = retentions.Add(doc.TaxReform.IBSValue)
	}
	if doc.TaxReform.CBSWithheld {
		retentions = retentions.Add(doc.TaxReform.CBSValue)
	}

	return TaxSummary{
		Base:       base,
		ISS:        iss,
		Retentions: retentions,
		Net:        doc.GrossValue.Sub(retentions),
	}
}
