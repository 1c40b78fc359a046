package app

import "distributor-erp/internal/core"

// DocumentRequest is a complete draft as sent by a client.
type DocumentRequest struct {
	CompanyCode      string               `json:"company_code,omitempty" jsonschema_description:"Defaults to the configured company"`
	TypeCode         string               `json:"type_code" jsonschema:"enum=ENQ,enum=QTN,enum=SO,enum=DC,enum=PO,enum=EXP,enum=GI"`
	IdempotencyKey   string               `json:"idempotency_key,omitempty" jsonschema:"format=uuid" jsonschema_description:"Generate once per draft and resend it on every retry"`
	Header           core.DraftHeader     `json:"header"`
	GSTCategory      string               `json:"gst_category,omitempty" jsonschema:"enum=Local Purchase,enum=Inter-State Purchase,enum=Imports,enum=Local Sales,enum=Inter-State Sales,enum=Exports"`
	ApplyRoundOff    bool                 `json:"apply_round_off,omitempty"`
	SourceDocumentID *int64               `json:"source_document_id,omitempty"`
	Prefix           string               `json:"prefix,omitempty" jsonschema_description:"Empty selects the default prefix"`
	ManualNumber     *int64               `json:"manual_number,omitempty" jsonschema_description:"Overrides the sequence; does not advance it"`
	FinancialYear    string               `json:"financial_year,omitempty" jsonschema_description:"YY-YY; derived from the document date when empty"`
	Lines            []core.LineItemInput `json:"lines"`
}

// ComputeLineRequest computes a single line under a GST category.
type ComputeLineRequest struct {
	Line        core.LineItemInput `json:"line"`
	GSTCategory string             `json:"gst_category,omitempty"`
	// Interstate is used when GSTCategory is empty.
	Interstate bool `json:"interstate,omitempty"`
}

// NumberPreviewRequest selects the sequence to preview.
type NumberPreviewRequest struct {
	CompanyCode   string `json:"company_code,omitempty"`
	TypeCode      string `json:"type_code"`
	Prefix        string `json:"prefix,omitempty"`
	FinancialYear string `json:"financial_year,omitempty"`
	DocumentDate  string `json:"document_date,omitempty"`
}

// CreatePartyRequest is the input for creating a new customer or supplier.
type CreatePartyRequest struct {
	CompanyCode string  `json:"company_code,omitempty"`
	Code        string  `json:"code"`
	Name        string  `json:"name"`
	Kind        string  `json:"kind,omitempty"`
	GSTIN       *string `json:"gstin,omitempty"`
	StateCode   string  `json:"state_code"`
	LedgerCode  *string `json:"ledger_code,omitempty"`
}

// CancelRequest carries the reason recorded on a cancelled document.
type CancelRequest struct {
	Reason string `json:"reason"`
}
