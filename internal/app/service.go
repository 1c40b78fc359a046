package app

import (
	"context"

	"distributor-erp/internal/core"
)

// ApplicationService is the single interface all adapters (CLI, Web) call.
// It decouples presentation from business logic. Implementations must contain
// no display logic of any kind.
type ApplicationService interface {
	// LoadDefaultCompany loads the configured company.
	LoadDefaultCompany(ctx context.Context) (*core.Company, error)

	// ListVoucherTypes returns the supported voucher types.
	ListVoucherTypes() []core.VoucherType

	// ListCategories returns the GST categories for a voucher type's side.
	// An empty type code returns every category.
	ListCategories(typeCode string) ([]string, error)

	// ComputeLine computes one line's amounts without touching the database.
	ComputeLine(ctx context.Context, req ComputeLineRequest) (*core.LineItemComputed, error)

	// PreviewDraft recomputes a draft and reports what still blocks submission.
	// It never allocates a number.
	PreviewDraft(ctx context.Context, req DocumentRequest) (*DraftPreviewResult, error)

	// PreviewNumber shows the next number for a prefix without reserving it.
	PreviewNumber(ctx context.Context, req NumberPreviewRequest) (*core.NumberPreview, error)

	// ListPrefixes returns the active prefixes for a voucher type and financial year.
	ListPrefixes(ctx context.Context, companyCode, typeCode, financialYear string) (*PrefixListResult, error)

	// CreateDocument validates and submits a document. The request's
	// idempotency key makes resubmission after a failure safe.
	CreateDocument(ctx context.Context, req DocumentRequest) (*DocumentResult, error)

	// OpenDraft loads a request into a draft that a session keeps across
	// submission attempts.
	OpenDraft(ctx context.Context, req DocumentRequest) (*core.DraftBuilder, error)

	// SubmitDraft submits an open draft. After an ambiguous outcome the draft
	// refuses further submits until ReconcileDraft ran or the caller confirmed
	// a retry on the draft.
	SubmitDraft(ctx context.Context, d *core.DraftBuilder) (*DocumentResult, error)

	// ReconcileDraft runs the existence check for a draft whose submission
	// ended ambiguously. A draft that was not saved is released for retry.
	ReconcileDraft(ctx context.Context, d *core.DraftBuilder) (*SubmissionCheckResult, error)

	// CheckSubmission runs the existence check for an idempotency key after
	// an ambiguous outcome.
	CheckSubmission(ctx context.Context, companyCode, idempotencyKey string) (*SubmissionCheckResult, error)

	// GetDocument returns one stored document with its lines.
	GetDocument(ctx context.Context, companyCode string, id int64) (*DocumentResult, error)

	// ListDocuments returns recent documents, optionally of one type.
	ListDocuments(ctx context.Context, companyCode, typeCode string, limit int) (*DocumentListResult, error)

	// CancelDocument cancels a posted document and reverses its side effects.
	CancelDocument(ctx context.Context, companyCode string, id int64, reason string) (*DocumentResult, error)

	// CopyDocument builds a new draft request of targetType from a stored
	// document. Nothing is persisted.
	CopyDocument(ctx context.Context, companyCode string, sourceID int64, targetType string) (*DocumentRequest, error)

	// SubmissionSchema returns the JSON Schema of DocumentRequest.
	SubmissionSchema() ([]byte, error)

	// ListParties returns all active parties for a company.
	ListParties(ctx context.Context, companyCode string) (*PartyListResult, error)

	// CreateParty creates a customer or supplier.
	CreateParty(ctx context.Context, req CreatePartyRequest) (*core.Party, error)

	// GetLedgerBalances returns the balance of every ledger of a company.
	GetLedgerBalances(ctx context.Context, companyCode string) (*BalancesResult, error)

	// ListWarehouses returns all active warehouses for a company.
	ListWarehouses(ctx context.Context, companyCode string) (*WarehouseListResult, error)

	// GetStockLevels returns current stock levels for a company.
	GetStockLevels(ctx context.Context, companyCode string) (*StockResult, error)
}
