package core

import "github.com/shopspring/decimal"

var (
	hundred    = decimal.NewFromInt(100)
	twoHundred = decimal.NewFromInt(200)
)

// LineItemInput is one row entered on a document. ItemCode is optional; free
// text lines carry only a Description.
type LineItemInput struct {
	ItemCode        string          `json:"item_code,omitempty" jsonschema_description:"Catalog item code; empty for free-text lines"`
	Description     string          `json:"description,omitempty"`
	HSNCode         string          `json:"hsn_code,omitempty" jsonschema_description:"HSN classification of the goods"`
	Unit            string          `json:"unit,omitempty"`
	Quantity        decimal.Decimal `json:"quantity" jsonschema_description:"Quantity, must be greater than zero"`
	UnitPrice       decimal.Decimal `json:"unit_price" jsonschema_description:"Unit price before discount and tax"`
	DiscountPercent decimal.Decimal `json:"discount_percent" jsonschema_description:"Discount percent between 0 and 100"`
	GSTPercent      decimal.Decimal `json:"gst_percent" jsonschema_description:"Combined GST rate between 0 and 100"`
	LedgerCode      string          `json:"ledger_code,omitempty" jsonschema_description:"Expense ledger debited by this line"`
	Remark          string          `json:"remark,omitempty"`
}

// LineItemComputed holds the derived amounts of one line. Either CGST and SGST
// are populated or IGST is, never both.
type LineItemComputed struct {
	GrossAmount    decimal.Decimal `json:"gross_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	TaxableAmount  decimal.Decimal `json:"taxable_amount"`
	CGSTAmount     decimal.Decimal `json:"cgst_amount"`
	SGSTAmount     decimal.Decimal `json:"sgst_amount"`
	IGSTAmount     decimal.Decimal `json:"igst_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Interstate     bool            `json:"interstate"`
}

// TaxAmount is the sum of the three tax buckets.
func (c LineItemComputed) TaxAmount() decimal.Decimal {
	return c.CGSTAmount.Add(c.SGSTAmount).Add(c.IGSTAmount)
}

// Validate checks the ranges ComputeLine relies on.
func (in LineItemInput) Validate() error {
	if !in.Quantity.IsPositive() {
		return invalid("quantity", "must be greater than zero")
	}
	if in.UnitPrice.IsNegative() {
		return invalid("unit_price", "cannot be negative")
	}
	if in.DiscountPercent.IsNegative() || in.DiscountPercent.GreaterThan(hundred) {
		return invalid("discount_percent", "must be between 0 and 100")
	}
	if in.GSTPercent.IsNegative() || in.GSTPercent.GreaterThan(hundred) {
		return invalid("gst_percent", "must be between 0 and 100")
	}
	return nil
}

// ComputeLine derives taxable amount and the GST split for one line.
//
//	taxable = qty × price × (100 − discount) / 100
//	local:      cgst = sgst = taxable × gst / 200
//	interstate: igst = taxable × gst / 100
//
// It is pure; identical input yields identical output.
func ComputeLine(in LineItemInput, interstate bool) (LineItemComputed, error) {
	if err := in.Validate(); err != nil {
		return LineItemComputed{}, err
	}

	gross := in.Quantity.Mul(in.UnitPrice)
	taxable := gross.Mul(hundred.Sub(in.DiscountPercent)).Div(hundred)

	out := LineItemComputed{
		GrossAmount:    gross,
		DiscountAmount: gross.Sub(taxable),
		TaxableAmount:  taxable,
		CGSTAmount:     decimal.Zero,
		SGSTAmount:     decimal.Zero,
		IGSTAmount:     decimal.Zero,
		Interstate:     interstate,
	}
	if interstate {
		out.IGSTAmount = taxable.Mul(in.GSTPercent).Div(hundred)
	} else {
		half := taxable.Mul(in.GSTPercent).Div(twoHundred)
		out.CGSTAmount = half
		out.SGSTAmount = half
	}
	out.TotalAmount = taxable.Add(out.TaxAmount())
	return out, nil
}
