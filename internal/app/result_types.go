package app

import "distributor-erp/internal/core"

// DraftPreviewResult is returned by PreviewDraft.
type DraftPreviewResult struct {
	TypeCode          string               `json:"type_code"`
	IdempotencyKey    string               `json:"idempotency_key"`
	Interstate        bool                 `json:"interstate"`
	Lines             []core.DocumentLine  `json:"lines"`
	Totals            core.DocumentTotals  `json:"totals"`
	Postings          []core.LedgerPosting `json:"postings,omitempty"`
	Missing           []string             `json:"missing,omitempty"`
	Ready             bool                 `json:"ready"`
	SuggestedCategory string               `json:"suggested_category,omitempty"`
	NextNumber        *core.NumberPreview  `json:"next_number,omitempty"`
}

// DocumentResult is returned by document operations.
type DocumentResult struct {
	Document *core.Document `json:"document"`
}

// DocumentListResult is returned by ListDocuments.
type DocumentListResult struct {
	CompanyCode string          `json:"company_code"`
	Documents   []core.Document `json:"documents"`
}

// SubmissionCheckResult is returned by CheckSubmission.
type SubmissionCheckResult struct {
	IdempotencyKey string         `json:"idempotency_key"`
	Exists         bool           `json:"exists"`
	Document       *core.Document `json:"document,omitempty"`
}

// PrefixListResult is returned by ListPrefixes.
type PrefixListResult struct {
	FinancialYear core.FinancialYear `json:"financial_year"`
	Prefixes      []core.PrefixRecord `json:"prefixes"`
}

// PartyListResult is returned by ListParties.
type PartyListResult struct {
	Parties []core.Party `json:"parties"`
}

// BalancesResult is returned by GetLedgerBalances.
type BalancesResult struct {
	CompanyCode string                `json:"company_code"`
	CompanyName string                `json:"company_name"`
	Accounts    []core.AccountBalance `json:"accounts"`
}

// StockResult is returned by GetStockLevels.
type StockResult struct {
	Levels      []core.StockLevel `json:"levels"`
	CompanyCode string            `json:"company_code"`
}

// WarehouseListResult is returned by ListWarehouses.
type WarehouseListResult struct {
	Warehouses []core.Warehouse `json:"warehouses"`
}
