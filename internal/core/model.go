package core

import (
	"fmt"
	"time"
)

type Company struct {
	ID          int    `json:"id"`
	CompanyCode string `json:"company_code"`
	Name        string `json:"name"`
	StateCode   string `json:"state_code"`
}

// Side is the trading side a voucher type belongs to. It decides which GST
// categories are offered for the document.
type Side string

const (
	SidePurchase Side = "purchase"
	SideSales    Side = "sales"
)

// HeaderField names a document header field that can be required.
type HeaderField string

const (
	FieldParty           HeaderField = "party"
	FieldDate            HeaderField = "date"
	FieldValidUntil      HeaderField = "valid_until"
	FieldDeliveryAddress HeaderField = "delivery_address"
	FieldWarehouse       HeaderField = "warehouse"
	FieldReferenceNumber HeaderField = "reference_number"
	FieldGSTCategory     HeaderField = "gst_category"
)

// VoucherType describes one kind of transactional document.
type VoucherType struct {
	Code             string        `json:"code"`
	Name             string        `json:"name"`
	Side             Side          `json:"side"`
	GSTBearing       bool          `json:"gst_bearing"`
	PostsLedger      bool          `json:"posts_ledger"`
	AffectsInventory bool          `json:"affects_inventory"`
	RequiredFields   []HeaderField `json:"required_fields"`
}

const (
	VoucherEnquiry         = "ENQ"
	VoucherQuotation       = "QTN"
	VoucherSalesOrder      = "SO"
	VoucherDeliveryChallan = "DC"
	VoucherPurchaseOrder   = "PO"
	VoucherExpense         = "EXP"
	VoucherGateInward      = "GI"
)

var voucherTypes = map[string]VoucherType{
	VoucherEnquiry: {
		Code: VoucherEnquiry, Name: "Enquiry", Side: SideSales,
		RequiredFields: []HeaderField{FieldParty, FieldDate},
	},
	VoucherQuotation: {
		Code: VoucherQuotation, Name: "Quotation", Side: SideSales, GSTBearing: true,
		RequiredFields: []HeaderField{FieldParty, FieldDate, FieldValidUntil},
	},
	VoucherSalesOrder: {
		Code: VoucherSalesOrder, Name: "Sales Order", Side: SideSales, GSTBearing: true,
		RequiredFields: []HeaderField{FieldParty, FieldDate},
	},
	VoucherDeliveryChallan: {
		Code: VoucherDeliveryChallan, Name: "Delivery Challan", Side: SideSales, GSTBearing: true,
		RequiredFields: []HeaderField{FieldParty, FieldDate, FieldDeliveryAddress},
	},
	VoucherPurchaseOrder: {
		Code: VoucherPurchaseOrder, Name: "Purchase Order", Side: SidePurchase, GSTBearing: true,
		RequiredFields: []HeaderField{FieldParty, FieldDate},
	},
	VoucherExpense: {
		Code: VoucherExpense, Name: "Expense", Side: SidePurchase, GSTBearing: true, PostsLedger: true,
		RequiredFields: []HeaderField{FieldParty, FieldDate},
	},
	VoucherGateInward: {
		Code: VoucherGateInward, Name: "Gate Inward", Side: SidePurchase, AffectsInventory: true,
		RequiredFields: []HeaderField{FieldParty, FieldDate, FieldWarehouse, FieldReferenceNumber},
	},
}

// copyRules lists, per target type, the source types a document may be built from.
var copyRules = map[string][]string{
	VoucherQuotation:       {VoucherEnquiry},
	VoucherSalesOrder:      {VoucherQuotation},
	VoucherDeliveryChallan: {VoucherQuotation, VoucherSalesOrder},
	VoucherGateInward:      {VoucherPurchaseOrder},
}

// LookupVoucherType returns the voucher type for code or a ConfigurationError.
func LookupVoucherType(code string) (VoucherType, error) {
	vt, ok := voucherTypes[code]
	if !ok {
		return VoucherType{}, &ConfigurationError{Details: fmt.Sprintf("unknown voucher type %q", code)}
	}
	return vt, nil
}

// CanCopy reports whether a document of type target may be built from one of type source.
func CanCopy(source, target string) bool {
	for _, s := range copyRules[target] {
		if s == source {
			return true
		}
	}
	return false
}

type DocumentStatus string

const (
	DocumentStatusPosted    DocumentStatus = "POSTED"
	DocumentStatusCancelled DocumentStatus = "CANCELLED"
)

// Party is a customer or supplier. LedgerCode is its control ledger.
type Party struct {
	ID         int     `json:"id"`
	CompanyID  int     `json:"company_id"`
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Kind       string  `json:"kind"` // customer, supplier, both
	GSTIN      *string `json:"gstin,omitempty"`
	StateCode  string  `json:"state_code"`
	LedgerCode *string `json:"ledger_code,omitempty"`
	IsActive   bool    `json:"is_active"`
}

// Document is a persisted voucher header with its lines.
type Document struct {
	ID               int64           `json:"id"`
	CompanyID        int             `json:"company_id"`
	TypeCode         string          `json:"type_code"`
	Status           DocumentStatus  `json:"status"`
	Prefix           string          `json:"prefix"`
	FinancialYear    FinancialYear   `json:"financial_year"`
	SequenceNumber   int64           `json:"sequence_number"`
	DocumentNumber   string          `json:"document_number"`
	IdempotencyKey   string          `json:"idempotency_key"`
	Header           DraftHeader     `json:"header"`
	GSTCategory      string          `json:"gst_category,omitempty"`
	Interstate       bool            `json:"interstate"`
	SourceDocumentID *int64          `json:"source_document_id,omitempty"`
	Totals           DocumentTotals  `json:"totals"`
	Lines            []DocumentLine  `json:"lines"`
	CreatedAt        time.Time       `json:"created_at"`
	JournalEntryID   *int            `json:"journal_entry_id,omitempty"`
	RoundOffApplied  bool            `json:"round_off_applied"`
}

// DocumentLine is a persisted line: the user's input plus its computed amounts.
type DocumentLine struct {
	LineNumber int              `json:"line_number"`
	Input      LineItemInput    `json:"input"`
	Computed   LineItemComputed `json:"computed"`
}

var voucherOrder = []string{
	VoucherEnquiry, VoucherQuotation, VoucherSalesOrder, VoucherDeliveryChallan,
	VoucherPurchaseOrder, VoucherExpense, VoucherGateInward,
}

// VoucherTypes lists every supported voucher type, sales side first.
func VoucherTypes() []VoucherType {
	out := make([]VoucherType, 0, len(voucherOrder))
	for _, code := range voucherOrder {
		out = append(out, voucherTypes[code])
	}
	return out
}
