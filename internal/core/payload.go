package core

import "context"

// SubmissionPayload is everything the atomic-create collaborator needs to
// allocate a number and persist a document in one transaction.
type SubmissionPayload struct {
	CompanyID        int                 `json:"company_id"`
	TypeCode         string              `json:"type_code" jsonschema:"enum=ENQ,enum=QTN,enum=SO,enum=DC,enum=PO,enum=EXP,enum=GI"`
	IdempotencyKey   string              `json:"idempotency_key" jsonschema_description:"UUID generated once per draft; resubmissions reuse it"`
	Header           DraftHeader         `json:"header"`
	GSTCategory      string              `json:"gst_category,omitempty"`
	Interstate       bool                `json:"interstate"`
	ApplyRoundOff    bool                `json:"apply_round_off"`
	SourceDocumentID *int64              `json:"source_document_id,omitempty" jsonschema_description:"Document this one was copied from"`
	Numbering        NumberingDescriptor `json:"numbering"`
	Lines            []DocumentLine      `json:"lines"`
	Totals           DocumentTotals      `json:"totals"`
	Postings         []LedgerPosting     `json:"postings,omitempty"`
}

// DocumentCreator is the atomic-create collaborator.
//
// AllocateAndCreateDocument allocates the number and inserts header, lines and
// postings as a single unit; on any failure nothing is persisted. Errors are
// classified as ErrTransientUnavailable (safe to retry) or ErrAmbiguousOutcome
// (check FindByIdempotencyKey before retrying).
//
// Concurrent allocations for the same prefix and financial year must return
// strictly increasing, distinct sequence numbers.
type DocumentCreator interface {
	AllocateAndCreateDocument(ctx context.Context, p SubmissionPayload) (*Document, error)
	// FindByIdempotencyKey returns ErrDocumentNotFound when no document was created.
	FindByIdempotencyKey(ctx context.Context, companyID int, key string) (*Document, error)
}

// DocumentReader returns a stored document with its lines.
type DocumentReader interface {
	GetDocumentByID(ctx context.Context, companyID int, id int64) (*Document, error)
}
