package core

import "github.com/shopspring/decimal"

// DocumentTotals aggregates the computed lines of a document.
// NetAmount − RoundOff always equals BeforeRoundOff.
type DocumentTotals struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TotalCGST      decimal.Decimal `json:"total_cgst"`
	TotalSGST      decimal.Decimal `json:"total_sgst"`
	TotalIGST      decimal.Decimal `json:"total_igst"`
	BeforeRoundOff decimal.Decimal `json:"before_round_off"`
	RoundOff       decimal.Decimal `json:"round_off"`
	NetAmount      decimal.Decimal `json:"net_amount"`
}

// TotalTax is the sum of the three tax buckets.
func (t DocumentTotals) TotalTax() decimal.Decimal {
	return t.TotalCGST.Add(t.TotalSGST).Add(t.TotalIGST)
}

// Aggregate sums lines in slice order. With applyRoundOff the net amount is
// rounded to the nearest rupee, half away from zero (1234.50 → 1235); without
// it the fractional paise are kept and RoundOff is zero.
// An empty slice yields all-zero totals.
func Aggregate(lines []LineItemComputed, applyRoundOff bool) DocumentTotals {
	t := DocumentTotals{
		Subtotal:  decimal.Zero,
		TotalCGST: decimal.Zero,
		TotalSGST: decimal.Zero,
		TotalIGST: decimal.Zero,
		RoundOff:  decimal.Zero,
	}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.TaxableAmount)
		t.TotalCGST = t.TotalCGST.Add(l.CGSTAmount)
		t.TotalSGST = t.TotalSGST.Add(l.SGSTAmount)
		t.TotalIGST = t.TotalIGST.Add(l.IGSTAmount)
	}
	t.BeforeRoundOff = t.Subtotal.Add(t.TotalTax())
	t.NetAmount = t.BeforeRoundOff

	if applyRoundOff {
		// decimal.Round rounds half away from zero; RoundBank would not.
		rounded := t.BeforeRoundOff.Round(0)
		t.RoundOff = rounded.Sub(t.BeforeRoundOff)
		t.NetAmount = rounded
	}
	return t
}
