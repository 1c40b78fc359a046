package core

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

// DraftHeader holds the header fields of a document being edited.
// Dates are YYYY-MM-DD.
type DraftHeader struct {
	PartyCode       string `json:"party_code" jsonschema_description:"Customer or supplier code"`
	PartyName       string `json:"party_name,omitempty"`
	PartyLedgerCode string `json:"party_ledger_code,omitempty" jsonschema_description:"Control ledger of the party"`
	DocumentDate    string `json:"document_date" jsonschema_description:"Document date in YYYY-MM-DD format"`
	ValidUntil      string `json:"valid_until,omitempty"`
	DeliveryAddress string `json:"delivery_address,omitempty"`
	WarehouseCode   string `json:"warehouse_code,omitempty"`
	ReferenceNumber string `json:"reference_number,omitempty" jsonschema_description:"Supplier challan or bill number"`
	Narration       string `json:"narration,omitempty"`
}

func (h DraftHeader) value(f HeaderField) string {
	switch f {
	case FieldParty:
		return h.PartyCode
	case FieldDate:
		return h.DocumentDate
	case FieldValidUntil:
		return h.ValidUntil
	case FieldDeliveryAddress:
		return h.DeliveryAddress
	case FieldWarehouse:
		return h.WarehouseCode
	case FieldReferenceNumber:
		return h.ReferenceNumber
	}
	return ""
}

// DraftState is the lifecycle of a draft:
//
//	EMPTY → EDITING → VALIDATED → SUBMITTING → COMMITTED
//	                                   └─ failure → EDITING (input kept)
type DraftState string

const (
	DraftEmpty      DraftState = "EMPTY"
	DraftEditing    DraftState = "EDITING"
	DraftValidated  DraftState = "VALIDATED"
	DraftSubmitting DraftState = "SUBMITTING"
	DraftCommitted  DraftState = "COMMITTED"
)

// DraftOption configures a DraftBuilder.
type DraftOption func(*DraftBuilder)

// WithIdempotencyKey reuses a key issued earlier, e.g. by a client that opened
// the dialog and generated the key itself. The key must be a UUID.
func WithIdempotencyKey(key string) DraftOption {
	return func(b *DraftBuilder) {
		if key != "" {
			b.idempotencyKey = key
		}
	}
}

// WithRoundOffLedger sets the ledger that absorbs the round-off adjustment.
func WithRoundOffLedger(code string) DraftOption {
	return func(b *DraftBuilder) {
		if code != "" {
			b.roundOffLedger = code
		}
	}
}

// DraftBuilder holds one document while it is edited and assembles the
// submission payload. Totals are recomputed after every mutation.
type DraftBuilder struct {
	mu sync.Mutex

	companyID      int
	voucherType    VoucherType
	header         DraftHeader
	category       string
	interstate     bool
	applyRoundOff  bool
	sourceID       *int64
	numbering      NumberingDescriptor
	lines          []DocumentLine
	totals         DocumentTotals
	idempotencyKey string
	roundOffLedger string

	state DraftState
	// needsCheck is set after an ambiguous outcome; submission stays blocked
	// until the existence check ran or the user confirmed a retry.
	needsCheck bool
	lastErr    error
	committed  *Document
}

// NewDraftBuilder opens an empty draft of the given voucher type.
func NewDraftBuilder(companyID int, typeCode string, opts ...DraftOption) (*DraftBuilder, error) {
	vt, err := LookupVoucherType(typeCode)
	if err != nil {
		return nil, err
	}
	b := &DraftBuilder{
		companyID:      companyID,
		voucherType:    vt,
		idempotencyKey: uuid.NewString(),
		roundOffLedger: DefaultRoundOffLedger,
		state:          DraftEmpty,
	}
	for _, opt := range opts {
		opt(b)
	}
	key, err := ParseIdempotencyKey(b.idempotencyKey)
	if err != nil {
		return nil, err
	}
	b.idempotencyKey = key
	b.totals = Aggregate(nil, false)
	return b, nil
}

// ParseIdempotencyKey checks that key is a UUID and returns its canonical form.
func ParseIdempotencyKey(key string) (string, error) {
	id, err := uuid.Parse(key)
	if err != nil {
		return "", invalid("idempotency_key", "must be a UUID")
	}
	return id.String(), nil
}

// ── Accessors ────────────────────────────────────────────────────────────────

func (b *DraftBuilder) VoucherType() VoucherType { return b.voucherType }
func (b *DraftBuilder) CompanyID() int           { return b.companyID }
func (b *DraftBuilder) IdempotencyKey() string   { return b.idempotencyKey }

func (b *DraftBuilder) State() DraftState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *DraftBuilder) Header() DraftHeader {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.header
}

func (b *DraftBuilder) Category() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.category
}

func (b *DraftBuilder) Interstate() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interstate
}

// Lines returns a copy of the current lines.
func (b *DraftBuilder) Lines() []DocumentLine {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]DocumentLine, len(b.lines))
	copy(out, b.lines)
	return out
}

func (b *DraftBuilder) Totals() DocumentTotals {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totals
}

// LastError is the error of the last failed submission, if any.
func (b *DraftBuilder) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

// NeedsExistenceCheck reports whether the last submission ended ambiguously.
func (b *DraftBuilder) NeedsExistenceCheck() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.needsCheck
}

// Committed returns the created document once the draft is committed.
func (b *DraftBuilder) Committed() *Document {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.committed
}

// ── Mutations ────────────────────────────────────────────────────────────────

// edit runs fn with the lock held and moves the draft back to EDITING.
func (b *DraftBuilder) edit(fn func() error) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == DraftSubmitting || b.state == DraftCommitted {
		return fmt.Errorf("%w: %s", ErrDraftLocked, b.state)
	}
	if err := fn(); err != nil {
		return err
	}
	b.state = DraftEditing
	return nil
}

func (b *DraftBuilder) SetHeader(h DraftHeader) error {
	return b.edit(func() error {
		h.PartyCode = strings.TrimSpace(h.PartyCode)
		h.DocumentDate = strings.TrimSpace(h.DocumentDate)
		b.header = h
		return nil
	})
}

func (b *DraftBuilder) SetNumbering(n NumberingDescriptor) error {
	return b.edit(func() error {
		if n.ManualNumber != nil && *n.ManualNumber <= 0 {
			return invalid("number", "must be greater than zero")
		}
		if n.FinancialYear != "" {
			fy, err := ParseFinancialYear(string(n.FinancialYear))
			if err != nil {
				return err
			}
			n.FinancialYear = fy
		}
		b.numbering = n
		return nil
	})
}

// SetSourceDocument links the draft to the document it was copied from.
func (b *DraftBuilder) SetSourceDocument(id int64) error {
	return b.edit(func() error {
		b.sourceID = &id
		return nil
	})
}

func (b *DraftBuilder) SetRoundOff(apply bool) error {
	return b.edit(func() error {
		b.applyRoundOff = apply
		b.totals = b.aggregate()
		return nil
	})
}

// SetInterstateCategory sets the GST category and re-splits the tax of every
// existing line under the new jurisdiction.
func (b *DraftBuilder) SetInterstateCategory(category string) error {
	return b.edit(func() error {
		if !b.voucherType.GSTBearing {
			return &ConfigurationError{Details: fmt.Sprintf("%s documents carry no GST category", b.voucherType.Name)}
		}
		interstate, err := interstateFor(b.voucherType.Side, category)
		if err != nil {
			return err
		}
		b.category = category
		b.interstate = interstate
		return b.recompute()
	})
}

// AddLine validates and appends a line, returning its index.
func (b *DraftBuilder) AddLine(in LineItemInput) (int, error) {
	var idx int
	err := b.edit(func() error {
		computed, err := b.computeLine(in)
		if err != nil {
			return err
		}
		b.lines = append(b.lines, DocumentLine{LineNumber: len(b.lines) + 1, Input: in, Computed: computed})
		idx = len(b.lines) - 1
		b.totals = b.aggregate()
		return nil
	})
	if err != nil {
		return -1, err
	}
	return idx, nil
}

func (b *DraftBuilder) UpdateLine(index int, in LineItemInput) error {
	return b.edit(func() error {
		if index < 0 || index >= len(b.lines) {
			return invalid("index", fmt.Sprintf("line %d does not exist", index))
		}
		computed, err := b.computeLine(in)
		if err != nil {
			return err
		}
		b.lines[index].Input = in
		b.lines[index].Computed = computed
		b.totals = b.aggregate()
		return nil
	})
}

func (b *DraftBuilder) RemoveLine(index int) error {
	return b.edit(func() error {
		if index < 0 || index >= len(b.lines) {
			return invalid("index", fmt.Sprintf("line %d does not exist", index))
		}
		b.lines = append(b.lines[:index], b.lines[index+1:]...)
		for i := range b.lines {
			b.lines[i].LineNumber = i + 1
		}
		b.totals = b.aggregate()
		return nil
	})
}

// Recompute re-derives every line and the totals from the stored inputs.
func (b *DraftBuilder) Recompute() error {
	return b.edit(b.recompute)
}

func (b *DraftBuilder) recompute() error {
	for i := range b.lines {
		computed, err := b.computeLine(b.lines[i].Input)
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		b.lines[i].Computed = computed
	}
	b.totals = b.aggregate()
	return nil
}

func (b *DraftBuilder) computeLine(in LineItemInput) (LineItemComputed, error) {
	if !b.voucherType.GSTBearing && !in.GSTPercent.IsZero() {
		return LineItemComputed{}, invalid("gst_percent", fmt.Sprintf("must be 0 on %s documents", b.voucherType.Name))
	}
	return ComputeLine(in, b.interstate)
}

func (b *DraftBuilder) aggregate() DocumentTotals {
	computed := make([]LineItemComputed, len(b.lines))
	for i, l := range b.lines {
		computed[i] = l.Computed
	}
	return Aggregate(computed, b.applyRoundOff)
}

// ── Submission ───────────────────────────────────────────────────────────────

// ValidateForSubmit checks that the draft is complete. It must pass before any
// number is allocated or the backend is called. On success the draft is
// VALIDATED; an empty financial year is derived from the document date.
func (b *DraftBuilder) ValidateForSubmit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.validateLocked()
}

func (b *DraftBuilder) validateLocked() error {
	if b.state == DraftSubmitting || b.state == DraftCommitted {
		return fmt.Errorf("%w: %s", ErrDraftLocked, b.state)
	}

	var missing []string
	if len(b.lines) == 0 {
		missing = append(missing, "lines")
	}
	for _, f := range b.voucherType.RequiredFields {
		if strings.TrimSpace(b.header.value(f)) == "" {
			missing = append(missing, string(f))
		}
	}
	if b.voucherType.GSTBearing && b.category == "" {
		missing = append(missing, string(FieldGSTCategory))
	}

	var docDate time.Time
	if b.header.DocumentDate != "" {
		d, err := time.Parse(dateLayout, b.header.DocumentDate)
		if err != nil {
			missing = append(missing, "date (YYYY-MM-DD)")
		}
		docDate = d
	}
	if b.header.ValidUntil != "" {
		if _, err := time.Parse(dateLayout, b.header.ValidUntil); err != nil {
			missing = append(missing, "valid_until (YYYY-MM-DD)")
		}
	}
	// A malformed date is already reported; the year is only missing when
	// there is no date to derive it from.
	if b.numbering.FinancialYear == "" && b.header.DocumentDate == "" {
		missing = append(missing, "financial_year")
	}

	if len(missing) > 0 {
		return &IncompleteDocumentError{Missing: missing}
	}
	if b.numbering.FinancialYear == "" {
		b.numbering.FinancialYear = FinancialYearFor(docDate)
	}
	b.state = DraftValidated
	return nil
}

// ToSubmissionPayload validates the draft and produces the payload handed to
// the atomic-create collaborator.
func (b *DraftBuilder) ToSubmissionPayload() (*SubmissionPayload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.payloadLocked()
}

func (b *DraftBuilder) payloadLocked() (*SubmissionPayload, error) {
	if err := b.validateLocked(); err != nil {
		return nil, err
	}

	lines := make([]DocumentLine, len(b.lines))
	copy(lines, b.lines)

	var postings []LedgerPosting
	if b.voucherType.PostsLedger {
		p, err := DerivePostings(lines, b.totals, b.header.PartyLedgerCode, b.roundOffLedger)
		if err != nil {
			return nil, err
		}
		postings = p
	}

	return &SubmissionPayload{
		CompanyID:        b.companyID,
		TypeCode:         b.voucherType.Code,
		IdempotencyKey:   b.idempotencyKey,
		Header:           b.header,
		GSTCategory:      b.category,
		Interstate:       b.interstate,
		ApplyRoundOff:    b.applyRoundOff,
		SourceDocumentID: b.sourceID,
		Numbering:        b.numbering,
		Lines:            lines,
		Totals:           b.totals,
		Postings:         postings,
	}, nil
}

// beginSubmit moves a complete draft to SUBMITTING. A second call while a
// submission is in flight fails with ErrSubmitInFlight.
func (b *DraftBuilder) beginSubmit() (*SubmissionPayload, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.state == DraftSubmitting:
		return nil, ErrSubmitInFlight
	case b.state == DraftCommitted:
		return nil, fmt.Errorf("%w: %s", ErrDraftLocked, b.state)
	case b.needsCheck:
		return nil, &AmbiguousOutcomeError{IdempotencyKey: b.idempotencyKey}
	}
	p, err := b.payloadLocked()
	if err != nil {
		return nil, err
	}
	b.state = DraftSubmitting
	b.lastErr = nil
	return p, nil
}

func (b *DraftBuilder) markCommitted(doc *Document) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = DraftCommitted
	b.needsCheck = false
	b.lastErr = nil
	b.committed = doc
}

// markFailed returns the draft to EDITING with all input intact.
func (b *DraftBuilder) markFailed(err error, ambiguous bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = DraftEditing
	b.lastErr = err
	if ambiguous {
		b.needsCheck = true
	}
}

// ConfirmRetry records the user's explicit decision to resubmit after an
// ambiguous outcome without running the existence check.
func (b *DraftBuilder) ConfirmRetry() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.needsCheck = false
}
