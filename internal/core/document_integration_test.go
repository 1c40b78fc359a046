package core_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"distributor-erp/internal/config"
	"distributor-erp/internal/core"
	"distributor-erp/internal/db"
	"distributor-erp/migrations"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	pool      *pgxpool.Pool
	docs      core.DocumentService
	ledger    *core.Ledger
	inventory core.InventoryService
	companyID int
}

func setupTestDB(t *testing.T) *testEnv {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, config.DBConfig{DatabaseURL: dbURL, MaxConns: 10, ConnectTimeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = db.Migrate(ctx, pool, migrations.FS, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, db.ResetDemo(ctx, pool, migrations.FS, zerolog.Nop()))

	company, err := core.NewPartyService(pool).GetCompanyByCode(ctx, "1000")
	require.NoError(t, err)

	ledger := core.NewLedger(pool)
	inventory := core.NewInventoryService(pool)
	return &testEnv{
		pool:      pool,
		docs:      core.NewDocumentService(pool, ledger, inventory),
		ledger:    ledger,
		inventory: inventory,
		companyID: company.ID,
	}
}

func (e *testEnv) poPayload(t *testing.T, opts ...func(*core.DraftBuilder)) core.SubmissionPayload {
	t.Helper()
	d, err := core.NewDraftBuilder(e.companyID, core.VoucherPurchaseOrder)
	require.NoError(t, err)
	require.NoError(t, d.SetHeader(core.DraftHeader{PartyCode: "ACME", PartyName: "Acme Traders", DocumentDate: "2026-05-10"}))
	require.NoError(t, d.SetInterstateCategory(core.CategoryLocalPurchase))
	_, err = d.AddLine(line("10", "100", "10", "18"))
	require.NoError(t, err)
	for _, opt := range opts {
		opt(d)
	}
	p, err := d.ToSubmissionPayload()
	require.NoError(t, err)
	return *p
}

func balanceOf(t *testing.T, balances []core.AccountBalance, code string) string {
	t.Helper()
	for _, b := range balances {
		if b.Code == code {
			return b.Balance.String()
		}
	}
	t.Fatalf("account %s not found", code)
	return ""
}

func TestAllocateAndCreate_PersistsDocument(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()

	preview, err := env.docs.PreviewNextNumber(ctx, env.companyID, core.VoucherPurchaseOrder, "", "26-27")
	require.NoError(t, err)
	assert.Equal(t, "PO26/0001", preview.FormattedNumber)

	p := env.poPayload(t)
	doc, err := env.docs.AllocateAndCreateDocument(ctx, p)
	require.NoError(t, err)

	assert.Equal(t, "PO26/0001", doc.DocumentNumber)
	assert.Equal(t, core.DocumentStatusPosted, doc.Status)
	assert.Equal(t, p.IdempotencyKey, doc.IdempotencyKey)
	assert.Equal(t, "2026-05-10", doc.Header.DocumentDate)
	assertDecimal(t, "1062", doc.Totals.NetAmount)
	require.Len(t, doc.Lines, 1)
	assertDecimal(t, "81", doc.Lines[0].Computed.CGSTAmount)

	preview, err = env.docs.PreviewNextNumber(ctx, env.companyID, core.VoucherPurchaseOrder, "", "26-27")
	require.NoError(t, err)
	assert.Equal(t, int64(2), preview.NextNumber)

	docs, err := env.docs.ListDocuments(ctx, env.companyID, core.VoucherPurchaseOrder, 0)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestAllocateAndCreate_ConcurrentSubmitsGetUniqueNumbers(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()

	const n = 20
	payloads := make([]core.SubmissionPayload, n)
	for i := range payloads {
		payloads[i] = env.poPayload(t)
	}

	var wg sync.WaitGroup
	errCh := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(p core.SubmissionPayload) {
			defer wg.Done()
			if _, err := env.docs.AllocateAndCreateDocument(ctx, p); err != nil {
				errCh <- err
			}
		}(payloads[i])
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent create failed: %v", err)
	}

	var total, distinct int
	var maxSeq int64
	err := env.pool.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT document_number), MAX(sequence_number)
		FROM documents WHERE company_id = $1 AND type_code = 'PO'
	`, env.companyID).Scan(&total, &distinct, &maxSeq)
	require.NoError(t, err)
	assert.Equal(t, n, total)
	assert.Equal(t, n, distinct, "document numbers must be unique")
	assert.Equal(t, int64(n), maxSeq, "numbering must be gapless")
}

func TestAllocateAndCreate_ResubmitReturnsSameDocument(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()

	p := env.poPayload(t)
	first, err := env.docs.AllocateAndCreateDocument(ctx, p)
	require.NoError(t, err)
	second, err := env.docs.AllocateAndCreateDocument(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.DocumentNumber, second.DocumentNumber)

	found, err := env.docs.FindByIdempotencyKey(ctx, env.companyID, p.IdempotencyKey)
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)

	_, err = env.docs.FindByIdempotencyKey(ctx, env.companyID, uuid.NewString())
	assert.True(t, errors.Is(err, core.ErrDocumentNotFound))

	next, err := env.docs.AllocateAndCreateDocument(ctx, env.poPayload(t))
	require.NoError(t, err)
	assert.Equal(t, int64(2), next.SequenceNumber)
}

func TestAllocateAndCreate_ManualNumberCollision(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()

	_, err := env.docs.AllocateAndCreateDocument(ctx, env.poPayload(t))
	require.NoError(t, err)

	manual := func(n int64) func(*core.DraftBuilder) {
		return func(d *core.DraftBuilder) {
			require.NoError(t, d.SetNumbering(core.NumberingDescriptor{ManualNumber: &n}))
		}
	}

	_, err = env.docs.AllocateAndCreateDocument(ctx, env.poPayload(t, manual(1)))
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "number", ve.Field)

	doc, err := env.docs.AllocateAndCreateDocument(ctx, env.poPayload(t, manual(500)))
	require.NoError(t, err)
	assert.Equal(t, "PO26/0500", doc.DocumentNumber)

	// Manual numbers consume nothing from the sequence.
	auto, err := env.docs.AllocateAndCreateDocument(ctx, env.poPayload(t))
	require.NoError(t, err)
	assert.Equal(t, int64(2), auto.SequenceNumber)
}

func TestAllocateAndCreate_PrefixAndExhaustion(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()

	_, err := env.docs.AllocateAndCreateDocument(ctx, env.poPayload(t, func(d *core.DraftBuilder) {
		require.NoError(t, d.SetNumbering(core.NumberingDescriptor{FinancialYear: "30-31"}))
	}))
	assert.True(t, errors.Is(err, core.ErrPrefixNotConfigured))
	assert.True(t, errors.Is(err, core.ErrConfiguration))

	_, err = env.pool.Exec(ctx, "UPDATE document_prefixes SET max_number = 2 WHERE company_id = $1 AND type_code = 'PO'", env.companyID)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := env.docs.AllocateAndCreateDocument(ctx, env.poPayload(t))
		require.NoError(t, err)
	}
	_, err = env.docs.AllocateAndCreateDocument(ctx, env.poPayload(t))
	assert.True(t, errors.Is(err, core.ErrSequenceExhausted))

	var count int
	require.NoError(t, env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM documents WHERE company_id = $1", env.companyID).Scan(&count))
	assert.Equal(t, 2, count)
}

func TestAllocateAndCreate_ExpensePostsAndCancelReverses(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()

	d, err := core.NewDraftBuilder(env.companyID, core.VoucherExpense)
	require.NoError(t, err)
	require.NoError(t, d.SetHeader(core.DraftHeader{PartyCode: "ACME", PartyLedgerCode: "2000", DocumentDate: "2026-06-01"}))
	require.NoError(t, d.SetInterstateCategory(core.CategoryLocalPurchase))
	require.NoError(t, d.SetRoundOff(true))
	in := line("1", "1046", "0", "18")
	in.LedgerCode = "5200"
	_, err = d.AddLine(in)
	require.NoError(t, err)
	p, err := d.ToSubmissionPayload()
	require.NoError(t, err)

	doc, err := env.docs.AllocateAndCreateDocument(ctx, *p)
	require.NoError(t, err)
	require.NotNil(t, doc.JournalEntryID)
	assertDecimal(t, "1234", doc.Totals.NetAmount)

	balances, err := env.ledger.GetBalances(ctx, env.companyID)
	require.NoError(t, err)
	assert.Equal(t, "1234.28", balanceOf(t, balances, "5200"))
	assert.Equal(t, "-1234", balanceOf(t, balances, "2000"))
	assert.Equal(t, "-0.28", balanceOf(t, balances, "ROUND_OFF"))

	cancelled, err := env.docs.CancelDocument(ctx, env.companyID, doc.ID, "entered twice")
	require.NoError(t, err)
	assert.Equal(t, core.DocumentStatusCancelled, cancelled.Status)

	balances, err = env.ledger.GetBalances(ctx, env.companyID)
	require.NoError(t, err)
	for _, code := range []string{"5200", "2000", "ROUND_OFF"} {
		assert.Equal(t, "0", balanceOf(t, balances, code), code)
	}

	_, err = env.docs.CancelDocument(ctx, env.companyID, doc.ID, "again")
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "status", ve.Field)
}

func TestAllocateAndCreate_GateInwardReceivesStock(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()

	receive := func(qty, price string) *core.Document {
		d, err := core.NewDraftBuilder(env.companyID, core.VoucherGateInward)
		require.NoError(t, err)
		require.NoError(t, d.SetHeader(core.DraftHeader{
			PartyCode: "ACME", DocumentDate: "2026-07-01", WarehouseCode: "MAIN", ReferenceNumber: "CH-" + qty,
		}))
		in := line(qty, price, "0", "0")
		in.ItemCode = "WID-01"
		_, err = d.AddLine(in)
		require.NoError(t, err)
		p, err := d.ToSubmissionPayload()
		require.NoError(t, err)
		doc, err := env.docs.AllocateAndCreateDocument(ctx, *p)
		require.NoError(t, err)
		return doc
	}

	first := receive("10", "50")
	receive("30", "70")

	levels, err := env.inventory.GetStockLevels(ctx, env.companyID)
	require.NoError(t, err)
	require.Len(t, levels, 1)
	assert.Equal(t, "WID-01", levels[0].ItemCode)
	assertDecimal(t, "40", levels[0].OnHand)
	assertDecimal(t, "65", levels[0].UnitCost)

	_, err = env.docs.CancelDocument(ctx, env.companyID, first.ID, "wrong challan")
	require.NoError(t, err)
	levels, err = env.inventory.GetStockLevels(ctx, env.companyID)
	require.NoError(t, err)
	assertDecimal(t, "30", levels[0].OnHand)
}

func TestAllocateAndCreate_UnknownItemRollsBack(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()

	d, err := core.NewDraftBuilder(env.companyID, core.VoucherGateInward)
	require.NoError(t, err)
	require.NoError(t, d.SetHeader(core.DraftHeader{PartyCode: "ACME", DocumentDate: "2026-07-01", WarehouseCode: "MAIN", ReferenceNumber: "CH-9"}))
	in := line("1", "10", "0", "0")
	in.ItemCode = "NOPE"
	_, err = d.AddLine(in)
	require.NoError(t, err)
	p, err := d.ToSubmissionPayload()
	require.NoError(t, err)

	_, err = env.docs.AllocateAndCreateDocument(ctx, *p)
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "lines[1].item_code", ve.Field)

	preview, err := env.docs.PreviewNextNumber(ctx, env.companyID, core.VoucherGateInward, "", "26-27")
	require.NoError(t, err)
	assert.Equal(t, "GI26/0001", preview.FormattedNumber, fmt.Sprintf("failed create must not consume a number, got %s", preview.FormattedNumber))
}

func TestAllocateAndCreate_StoresUnroundedTotals(t *testing.T) {
	env := setupTestDB(t)
	ctx := context.Background()

	expense := func(t *testing.T, lines ...core.LineItemInput) (*core.Document, *core.SubmissionPayload) {
		t.Helper()
		d, err := core.NewDraftBuilder(env.companyID, core.VoucherExpense)
		require.NoError(t, err)
		require.NoError(t, d.SetHeader(core.DraftHeader{PartyCode: "ACME", PartyLedgerCode: "2000", DocumentDate: "2026-06-01"}))
		require.NoError(t, d.SetInterstateCategory(core.CategoryLocalPurchase))
		for _, in := range lines {
			_, err = d.AddLine(in)
			require.NoError(t, err)
		}
		p, err := d.ToSubmissionPayload()
		require.NoError(t, err)
		doc, err := env.docs.AllocateAndCreateDocument(ctx, *p)
		require.NoError(t, err)
		return doc, p
	}
	onLedger := func(in core.LineItemInput, code string) core.LineItemInput {
		in.LedgerCode = code
		return in
	}

	cases := []struct {
		name  string
		lines []core.LineItemInput
		net   string
	}{
		{"three lines at a fractional paisa", []core.LineItemInput{
			onLedger(line("1", "10.005", "0", "0"), "5100"),
			onLedger(line("1", "10.005", "0", "0"), "5200"),
			onLedger(line("1", "10.005", "0", "0"), "1200"),
		}, "30.015"},
		{"tax below a paisa", []core.LineItemInput{
			onLedger(line("1", "0.05", "0", "18"), "5200"),
		}, "0.059"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			created, p := expense(t, tc.lines...)
			assertDecimal(t, tc.net, created.Totals.NetAmount)

			doc, err := env.docs.GetDocumentByID(ctx, env.companyID, created.ID)
			require.NoError(t, err)
			tot := doc.Totals
			assertDecimal(t, p.Totals.Subtotal.String(), tot.Subtotal)
			assertDecimal(t, p.Totals.TotalCGST.String(), tot.TotalCGST)
			assertDecimal(t, p.Totals.TotalSGST.String(), tot.TotalSGST)
			assertDecimal(t, tc.net, tot.NetAmount)
			assertDecimal(t, tot.Subtotal.Add(tot.TotalCGST).Add(tot.TotalSGST).Add(tot.TotalIGST).String(),
				tot.NetAmount.Sub(tot.RoundOff), "stored net minus round off must equal subtotal plus taxes")

			require.NotNil(t, doc.JournalEntryID)
			var debits, credits string
			require.NoError(t, env.pool.QueryRow(ctx, `
				SELECT SUM(debit)::text, SUM(credit)::text FROM journal_lines WHERE entry_id = $1
			`, *doc.JournalEntryID).Scan(&debits, &credits))
			assertDecimal(t, tc.net, decimal.RequireFromString(debits))
			assertDecimal(t, tc.net, decimal.RequireFromString(credits))
		})
	}

	balances, err := env.ledger.GetBalances(ctx, env.companyID)
	require.NoError(t, err)
	assert.Equal(t, "-30.074", balanceOf(t, balances, "2000"))
}
