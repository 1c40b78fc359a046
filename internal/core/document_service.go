package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentService is the Postgres-backed numbering authority and atomic-create
// collaborator.
type DocumentService interface {
	NumberPreviewer
	DocumentCreator
	DocumentReader
	// ResolvePrefix returns the active prefix record; prefix empty selects the default.
	ResolvePrefix(ctx context.Context, companyID int, typeCode, prefix string, fy FinancialYear) (*PrefixRecord, error)
	ListPrefixes(ctx context.Context, companyID int, typeCode string, fy FinancialYear) ([]PrefixRecord, error)
	ListDocuments(ctx context.Context, companyID int, typeCode string, limit int) ([]Document, error)
	// CancelDocument marks a posted document CANCELLED and reverses its journal
	// entry and stock movements. The number stays consumed.
	CancelDocument(ctx context.Context, companyID int, id int64, reason string) (*Document, error)
}

type documentService struct {
	pool      *pgxpool.Pool
	ledger    *Ledger
	inventory InventoryService
}

func NewDocumentService(pool *pgxpool.Pool, ledger *Ledger, inventory InventoryService) DocumentService {
	return &documentService{pool: pool, ledger: ledger, inventory: inventory}
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const prefixColumns = `id, company_id, type_code, financial_year, prefix, separator, pad_width,
	       start_number, max_number, is_default, is_active`

func scanPrefix(row pgx.Row) (*PrefixRecord, error) {
	var p PrefixRecord
	var fy string
	if err := row.Scan(&p.ID, &p.CompanyID, &p.TypeCode, &fy, &p.Prefix, &p.Separator, &p.PadWidth,
		&p.StartNumber, &p.MaxNumber, &p.IsDefault, &p.IsActive); err != nil {
		return nil, err
	}
	p.FinancialYear = FinancialYear(fy)
	return &p, nil
}

func (s *documentService) ResolvePrefix(ctx context.Context, companyID int, typeCode, prefix string, fy FinancialYear) (*PrefixRecord, error) {
	return resolvePrefix(ctx, s.pool, companyID, typeCode, prefix, fy)
}

func resolvePrefix(ctx context.Context, q querier, companyID int, typeCode, prefix string, fy FinancialYear) (*PrefixRecord, error) {
	query := `
		SELECT ` + prefixColumns + `
		FROM document_prefixes
		WHERE company_id = $1 AND type_code = $2 AND financial_year = $3 AND is_active = true
		  AND ($4 = '' OR prefix = $4)
		ORDER BY is_default DESC, id
		LIMIT 1
	`
	p, err := scanPrefix(q.QueryRow(ctx, query, companyID, typeCode, string(fy), prefix))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			details := fmt.Sprintf("%s documents in %s", typeCode, fy)
			if prefix != "" {
				details = fmt.Sprintf("prefix %q for %s", prefix, details)
			}
			return nil, &ConfigurationError{Err: ErrPrefixNotConfigured, Details: details}
		}
		return nil, classify(fmt.Errorf("failed to resolve prefix: %w", err))
	}
	return p, nil
}

func (s *documentService) ListPrefixes(ctx context.Context, companyID int, typeCode string, fy FinancialYear) ([]PrefixRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixColumns+`
		FROM document_prefixes
		WHERE company_id = $1 AND type_code = $2 AND financial_year = $3 AND is_active = true
		ORDER BY is_default DESC, prefix
	`, companyID, typeCode, string(fy))
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list prefixes: %w", err))
	}
	defer rows.Close()

	var out []PrefixRecord
	for rows.Next() {
		p, err := scanPrefix(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan prefix: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// PreviewNextNumber reads the next number without taking any lock. The result
// may be stale by the time the document is submitted.
func (s *documentService) PreviewNextNumber(ctx context.Context, companyID int, typeCode, prefix string, fy FinancialYear) (*NumberPreview, error) {
	rec, err := s.ResolvePrefix(ctx, companyID, typeCode, prefix, fy)
	if err != nil {
		return nil, err
	}

	var next int64
	err = s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(s.last_number) + 1, $2)
		FROM document_sequences s
		WHERE s.prefix_id = $1
	`, rec.ID, rec.StartNumber).Scan(&next)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read sequence: %w", err))
	}

	return &NumberPreview{
		Prefix:          rec.Prefix,
		FinancialYear:   fy,
		NextNumber:      next,
		FormattedNumber: rec.Format(next),
	}, nil
}

// AllocateAndCreateDocument allocates the number and persists header, lines,
// journal entry and stock movements in one transaction. A resubmission with an
// idempotency key that already produced a document returns that document.
func (s *documentService) AllocateAndCreateDocument(ctx context.Context, p SubmissionPayload) (*Document, error) {
	vt, err := LookupVoucherType(p.TypeCode)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	var existingID int64
	err = tx.QueryRow(ctx,
		"SELECT id FROM documents WHERE company_id = $1 AND idempotency_key = $2",
		p.CompanyID, p.IdempotencyKey,
	).Scan(&existingID)
	if err == nil {
		return s.GetDocumentByID(ctx, p.CompanyID, existingID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, classify(fmt.Errorf("failed to check idempotency key: %w", err))
	}

	prefix, err := resolvePrefix(ctx, tx, p.CompanyID, p.TypeCode, p.Numbering.Prefix, p.Numbering.FinancialYear)
	if err != nil {
		return nil, err
	}

	alloc, err := allocateNumberTx(ctx, tx, prefix, p.Numbering.ManualNumber)
	if err != nil {
		return nil, err
	}

	docID, err := insertDocumentTx(ctx, tx, p, prefix, alloc)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "documents_number_key":
				return nil, invalid("number", fmt.Sprintf("%s is already used", alloc.FormattedNumber))
			case "documents_idempotency_key":
				// A concurrent submit with the same key won the race.
				_ = tx.Rollback(ctx)
				return s.FindByIdempotencyKey(ctx, p.CompanyID, p.IdempotencyKey)
			}
		}
		return nil, classify(err)
	}

	for _, line := range p.Lines {
		if err := insertLineTx(ctx, tx, docID, line); err != nil {
			return nil, classify(err)
		}
	}

	var journalEntryID *int
	if vt.PostsLedger && len(p.Postings) > 0 {
		entryID, err := s.ledger.PostTx(ctx, tx, p.CompanyID, JournalHeader{
			PostingDate:    p.Header.DocumentDate,
			Narration:      fmt.Sprintf("%s %s %s", vt.Name, alloc.FormattedNumber, p.Header.Narration),
			ReferenceType:  "DOCUMENT",
			ReferenceID:    alloc.FormattedNumber,
			IdempotencyKey: p.IdempotencyKey,
		}, p.Postings)
		if err != nil {
			return nil, classify(err)
		}
		if _, err := tx.Exec(ctx, "UPDATE documents SET journal_entry_id = $1 WHERE id = $2", entryID, docID); err != nil {
			return nil, classify(fmt.Errorf("failed to link journal entry: %w", err))
		}
		journalEntryID = &entryID
	}

	if vt.AffectsInventory {
		if err := s.inventory.ReceiveStockTx(ctx, tx, p.CompanyID, docID, p.Header.WarehouseCode, p.Header.DocumentDate, p.Lines); err != nil {
			return nil, classify(err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		// Only a failure provably raised before anything reached the server
		// leaves the outcome known.
		if pgconn.SafeToRetry(err) {
			return nil, fmt.Errorf("%w: commit: %v", ErrTransientUnavailable, err)
		}
		return nil, &AmbiguousOutcomeError{IdempotencyKey: p.IdempotencyKey, Cause: err}
	}

	doc, err := s.GetDocumentByID(ctx, p.CompanyID, docID)
	if err != nil {
		// The document is committed; a failed read-back must not invite a retry.
		return committedDocument(p, docID, prefix, alloc, journalEntryID), nil
	}
	return doc, nil
}

// committedDocument rebuilds the stored document from what the create
// transaction wrote.
func committedDocument(p SubmissionPayload, id int64, prefix *PrefixRecord, alloc NumberAllocation, journalEntryID *int) *Document {
	return &Document{
		ID:               id,
		CompanyID:        p.CompanyID,
		TypeCode:         p.TypeCode,
		Status:           DocumentStatusPosted,
		Prefix:           prefix.Prefix,
		FinancialYear:    prefix.FinancialYear,
		SequenceNumber:   alloc.SequenceNumber,
		DocumentNumber:   alloc.FormattedNumber,
		IdempotencyKey:   p.IdempotencyKey,
		Header:           p.Header,
		GSTCategory:      p.GSTCategory,
		Interstate:       p.Interstate,
		SourceDocumentID: p.SourceDocumentID,
		Totals:           p.Totals,
		Lines:            p.Lines,
		CreatedAt:        time.Now().UTC(),
		JournalEntryID:   journalEntryID,
		RoundOffApplied:  p.ApplyRoundOff,
	}
}

// allocateNumberTx takes the next gapless sequence value for the prefix. The
// upsert locks the sequence row until the surrounding transaction ends, so
// concurrent allocations serialize and never collide. A manual number is used
// as given and consumes nothing.
func allocateNumberTx(ctx context.Context, tx pgx.Tx, prefix *PrefixRecord, manual *int64) (NumberAllocation, error) {
	if manual != nil {
		return NumberAllocation{SequenceNumber: *manual, FormattedNumber: prefix.Format(*manual)}, nil
	}

	var next int64
	err := tx.QueryRow(ctx, `
		INSERT INTO document_sequences (prefix_id, last_number)
		VALUES ($1, $2)
		ON CONFLICT (prefix_id)
		DO UPDATE SET last_number = document_sequences.last_number + 1
		RETURNING last_number
	`, prefix.ID, prefix.StartNumber).Scan(&next)
	if err != nil {
		return NumberAllocation{}, classify(fmt.Errorf("failed to generate gapless sequence number: %w", err))
	}
	if prefix.MaxNumber != nil && next > *prefix.MaxNumber {
		return NumberAllocation{}, fmt.Errorf("%w: prefix %q reached %d", ErrSequenceExhausted, prefix.Prefix, *prefix.MaxNumber)
	}
	return NumberAllocation{SequenceNumber: next, FormattedNumber: prefix.Format(next)}, nil
}

func insertDocumentTx(ctx context.Context, tx pgx.Tx, p SubmissionPayload, prefix *PrefixRecord, alloc NumberAllocation) (int64, error) {
	var validUntil *string
	if p.Header.ValidUntil != "" {
		validUntil = &p.Header.ValidUntil
	}
	var id int64
	err := tx.QueryRow(ctx, `
		INSERT INTO documents (
			company_id, type_code, status, prefix_id, prefix, financial_year, sequence_number, document_number,
			idempotency_key, party_code, party_name, party_ledger_code, document_date, valid_until,
			delivery_address, warehouse_code, reference_number, narration,
			gst_category, interstate, apply_round_off, source_document_id,
			subtotal, total_cgst, total_sgst, total_igst, before_round_off, round_off, net_amount
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, $20, $21, $22,
			$23, $24, $25, $26, $27, $28, $29
		)
		RETURNING id
	`,
		p.CompanyID, p.TypeCode, string(DocumentStatusPosted), prefix.ID, prefix.Prefix, string(prefix.FinancialYear), alloc.SequenceNumber, alloc.FormattedNumber,
		p.IdempotencyKey, p.Header.PartyCode, p.Header.PartyName, p.Header.PartyLedgerCode, p.Header.DocumentDate, validUntil,
		p.Header.DeliveryAddress, p.Header.WarehouseCode, p.Header.ReferenceNumber, p.Header.Narration,
		p.GSTCategory, p.Interstate, p.ApplyRoundOff, p.SourceDocumentID,
		p.Totals.Subtotal, p.Totals.TotalCGST, p.Totals.TotalSGST, p.Totals.TotalIGST, p.Totals.BeforeRoundOff, p.Totals.RoundOff, p.Totals.NetAmount,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert document: %w", err)
	}
	return id, nil
}

func insertLineTx(ctx context.Context, tx pgx.Tx, docID int64, l DocumentLine) error {
	in, c := l.Input, l.Computed
	_, err := tx.Exec(ctx, `
		INSERT INTO document_lines (
			document_id, line_number, item_code, description, hsn_code, unit,
			quantity, unit_price, discount_percent, gst_percent, ledger_code, remark,
			gross_amount, discount_amount, taxable_amount, cgst_amount, sgst_amount, igst_amount, total_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`,
		docID, l.LineNumber, in.ItemCode, in.Description, in.HSNCode, in.Unit,
		in.Quantity, in.UnitPrice, in.DiscountPercent, in.GSTPercent, in.LedgerCode, in.Remark,
		c.GrossAmount, c.DiscountAmount, c.TaxableAmount, c.CGSTAmount, c.SGSTAmount, c.IGSTAmount, c.TotalAmount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert line %d: %w", l.LineNumber, err)
	}
	return nil
}

const documentColumns = `id, company_id, type_code, status, prefix, financial_year, sequence_number, document_number,
	       idempotency_key::text, party_code, party_name, party_ledger_code, to_char(document_date, 'YYYY-MM-DD'),
	       COALESCE(to_char(valid_until, 'YYYY-MM-DD'), ''), delivery_address, warehouse_code, reference_number, narration,
	       gst_category, interstate, apply_round_off, source_document_id,
	       subtotal, total_cgst, total_sgst, total_igst, before_round_off, round_off, net_amount,
	       journal_entry_id, created_at`

func (s *documentService) GetDocumentByID(ctx context.Context, companyID int, id int64) (*Document, error) {
	return s.getDocument(ctx, "id = $2", companyID, id)
}

func (s *documentService) FindByIdempotencyKey(ctx context.Context, companyID int, key string) (*Document, error) {
	return s.getDocument(ctx, "idempotency_key = $2", companyID, key)
}

func (s *documentService) getDocument(ctx context.Context, where string, companyID int, arg any) (*Document, error) {
	var d Document
	var status, fy string
	err := s.pool.QueryRow(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE company_id = $1 AND `+where,
		companyID, arg,
	).Scan(
		&d.ID, &d.CompanyID, &d.TypeCode, &status, &d.Prefix, &fy, &d.SequenceNumber, &d.DocumentNumber,
		&d.IdempotencyKey, &d.Header.PartyCode, &d.Header.PartyName, &d.Header.PartyLedgerCode, &d.Header.DocumentDate,
		&d.Header.ValidUntil, &d.Header.DeliveryAddress, &d.Header.WarehouseCode, &d.Header.ReferenceNumber, &d.Header.Narration,
		&d.GSTCategory, &d.Interstate, &d.RoundOffApplied, &d.SourceDocumentID,
		&d.Totals.Subtotal, &d.Totals.TotalCGST, &d.Totals.TotalSGST, &d.Totals.TotalIGST, &d.Totals.BeforeRoundOff, &d.Totals.RoundOff, &d.Totals.NetAmount,
		&d.JournalEntryID, &d.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %v", ErrDocumentNotFound, arg)
		}
		return nil, classify(fmt.Errorf("failed to read document: %w", err))
	}
	d.Status = DocumentStatus(status)
	d.FinancialYear = FinancialYear(fy)

	lines, err := s.getLines(ctx, d.ID, d.Interstate)
	if err != nil {
		return nil, err
	}
	d.Lines = lines
	return &d, nil
}

// ListDocuments returns the most recent documents without their lines. An
// empty typeCode lists every type.
func (s *documentService) ListDocuments(ctx context.Context, companyID int, typeCode string, limit int) ([]Document, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, type_code, status, document_number, party_code, party_name,
		       to_char(document_date, 'YYYY-MM-DD'), net_amount, created_at
		FROM documents
		WHERE company_id = $1 AND ($2 = '' OR type_code = $2)
		ORDER BY id DESC
		LIMIT $3
	`, companyID, typeCode, limit)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list documents: %w", err))
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d := Document{CompanyID: companyID}
		var status string
		if err := rows.Scan(&d.ID, &d.TypeCode, &status, &d.DocumentNumber, &d.Header.PartyCode, &d.Header.PartyName,
			&d.Header.DocumentDate, &d.Totals.NetAmount, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.Status = DocumentStatus(status)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *documentService) CancelDocument(ctx context.Context, companyID int, id int64, reason string) (*Document, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback(ctx)

	var typeCode, status string
	var entryID *int
	err = tx.QueryRow(ctx,
		"SELECT type_code, status, journal_entry_id FROM documents WHERE company_id = $1 AND id = $2 FOR UPDATE",
		companyID, id,
	).Scan(&typeCode, &status, &entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %d", ErrDocumentNotFound, id)
		}
		return nil, classify(fmt.Errorf("failed to lock document: %w", err))
	}
	if DocumentStatus(status) != DocumentStatusPosted {
		return nil, invalid("status", fmt.Sprintf("document %d is %s", id, status))
	}

	if entryID != nil {
		if _, err := s.ledger.ReverseTx(ctx, tx, *entryID, reason); err != nil {
			return nil, classify(err)
		}
	}
	vt, err := LookupVoucherType(typeCode)
	if err != nil {
		return nil, err
	}
	if vt.AffectsInventory {
		if err := s.inventory.ReverseReceiptTx(ctx, tx, id); err != nil {
			return nil, classify(err)
		}
	}

	if _, err := tx.Exec(ctx,
		"UPDATE documents SET status = $1, cancel_reason = $2, cancelled_at = NOW() WHERE id = $3",
		string(DocumentStatusCancelled), reason, id,
	); err != nil {
		return nil, classify(fmt.Errorf("failed to cancel document: %w", err))
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return s.GetDocumentByID(ctx, companyID, id)
}

func (s *documentService) getLines(ctx context.Context, docID int64, interstate bool) ([]DocumentLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT line_number, item_code, description, hsn_code, unit,
		       quantity, unit_price, discount_percent, gst_percent, ledger_code, remark,
		       gross_amount, discount_amount, taxable_amount, cgst_amount, sgst_amount, igst_amount, total_amount
		FROM document_lines
		WHERE document_id = $1
		ORDER BY line_number
	`, docID)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to query lines: %w", err))
	}
	defer rows.Close()

	var lines []DocumentLine
	for rows.Next() {
		var l DocumentLine
		in, c := &l.Input, &l.Computed
		if err := rows.Scan(&l.LineNumber, &in.ItemCode, &in.Description, &in.HSNCode, &in.Unit,
			&in.Quantity, &in.UnitPrice, &in.DiscountPercent, &in.GSTPercent, &in.LedgerCode, &in.Remark,
			&c.GrossAmount, &c.DiscountAmount, &c.TaxableAmount, &c.CGSTAmount, &c.SGSTAmount, &c.IGSTAmount, &c.TotalAmount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan line: %w", err)
		}
		c.Interstate = interstate
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lines: %w", err)
	}
	return lines, nil
}

// classify marks infrastructure failures as transient. Every caller runs
// before COMMIT, so the rollback guarantees nothing was persisted. Domain
// errors and constraint violations pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	for _, domainErr := range []error{ErrConfiguration, ErrValidation, ErrUnresolvedLedger, ErrSequenceExhausted,
		ErrDocumentNotFound, ErrTransientUnavailable, ErrAmbiguousOutcome} {
		if errors.Is(err, domainErr) {
			return err
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "53"),
			pgErr.Code == "40001", pgErr.Code == "40P01",
			pgErr.Code == "57P01", pgErr.Code == "57P02", pgErr.Code == "57P03":
			return fmt.Errorf("%w: %v", ErrTransientUnavailable, err)
		}
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	// Network errors, timeouts and pool exhaustion.
	return fmt.Errorf("%w: %v", ErrTransientUnavailable, err)
}
