package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type LedgerService interface {
	PostTx(ctx context.Context, tx pgx.Tx, companyID int, h JournalHeader, postings []LedgerPosting) (int, error)
	ReverseTx(ctx context.Context, tx pgx.Tx, entryID int, reason string) (int, error)
	GetBalances(ctx context.Context, companyID int) ([]AccountBalance, error)
}

// JournalHeader describes the journal entry a document's postings land in.
type JournalHeader struct {
	PostingDate    string
	Narration      string
	ReferenceType  string
	ReferenceID    string
	IdempotencyKey string
}

type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// PostTx writes a balanced journal entry inside the caller's transaction and
// returns its id. The idempotency key guards against a second entry for the
// same submission.
func (l *Ledger) PostTx(ctx context.Context, tx pgx.Tx, companyID int, h JournalHeader, postings []LedgerPosting) (int, error) {
	if len(postings) < 2 {
		return 0, fmt.Errorf("journal entry needs at least two postings, got %d", len(postings))
	}
	if err := checkBalanced(postings); err != nil {
		return 0, err
	}

	var entryID int
	err := tx.QueryRow(ctx, `
		INSERT INTO journal_entries (company_id, narration, posting_date, reference_type, reference_id, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING id
	`, companyID, h.Narration, h.PostingDate, h.ReferenceType, h.ReferenceID, h.IdempotencyKey).Scan(&entryID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("duplicate journal entry: idempotency key %s already exists", h.IdempotencyKey)
		}
		return 0, fmt.Errorf("failed to insert journal entry: %w", err)
	}

	for _, p := range postings {
		var accountID int
		err := tx.QueryRow(ctx, "SELECT id FROM accounts WHERE company_id = $1 AND code = $2", companyID, p.LedgerCode).Scan(&accountID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return 0, fmt.Errorf("%w: ledger code %s not found", ErrUnresolvedLedger, p.LedgerCode)
			}
			return 0, fmt.Errorf("failed to fetch account ID for code %s: %w", p.LedgerCode, err)
		}

		debit, credit := decimal.Zero, decimal.Zero
		if p.Direction == Debit {
			debit = p.Amount
		} else {
			credit = p.Amount
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO journal_lines (entry_id, account_id, debit, credit, narration)
			VALUES ($1, $2, $3, $4, $5)
		`, entryID, accountID, debit, credit, p.Narration)
		if err != nil {
			return 0, fmt.Errorf("failed to insert journal line: %w", err)
		}
	}

	return entryID, nil
}

// ReverseTx books a mirror entry for entryID with debits and credits swapped.
func (l *Ledger) ReverseTx(ctx context.Context, tx pgx.Tx, entryID int, reason string) (int, error) {
	var narration string
	err := tx.QueryRow(ctx, "SELECT narration FROM journal_entries WHERE id = $1", entryID).Scan(&narration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("entry %d not found", entryID)
		}
		return 0, fmt.Errorf("failed to fetch entry %d: %w", entryID, err)
	}

	var count int
	if err := tx.QueryRow(ctx, "SELECT count(*) FROM journal_entries WHERE reversed_entry_id = $1", entryID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to check reversal status: %w", err)
	}
	if count > 0 {
		return 0, fmt.Errorf("entry %d is already reversed", entryID)
	}

	var newEntryID int
	err = tx.QueryRow(ctx, `
		INSERT INTO journal_entries (company_id, narration, posting_date, reference_type, reference_id, reversed_entry_id, created_at)
		SELECT company_id, $1, posting_date, reference_type, reference_id, $2, NOW()
		FROM journal_entries WHERE id = $2
		RETURNING id
	`, fmt.Sprintf("Reversal of entry %d: %s (%s)", entryID, narration, reason), entryID).Scan(&newEntryID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert reversal entry: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO journal_lines (entry_id, account_id, debit, credit, narration)
		SELECT $1, account_id, credit, debit, narration
		FROM journal_lines WHERE entry_id = $2
	`, newEntryID, entryID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert inverted lines: %w", err)
	}
	return newEntryID, nil
}

type AccountBalance struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Balance decimal.Decimal `json:"balance"`
}

func (l *Ledger) GetBalances(ctx context.Context, companyID int) ([]AccountBalance, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT a.code, a.name, COALESCE(SUM(jl.debit), 0) - COALESCE(SUM(jl.credit), 0) AS balance
		FROM accounts a
		LEFT JOIN journal_lines jl ON a.id = jl.account_id
		WHERE a.company_id = $1
		GROUP BY a.id, a.code, a.name
		ORDER BY a.code
	`, companyID)
	if err != nil {
		return nil, classify(fmt.Errorf("query failed: %w", err))
	}
	defer rows.Close()

	var balances []AccountBalance
	for rows.Next() {
		var b AccountBalance
		if err := rows.Scan(&b.Code, &b.Name, &b.Balance); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		balances = append(balances, b)
	}
	return balances, rows.Err()
}
