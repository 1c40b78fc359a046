package repl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"distributor-erp/internal/app"
	"distributor-erp/internal/core"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	app.ApplicationService
	mock.Mock
	creator *mockCreator
}

// mockCreator stands in for the database behind a real Submitter so the
// existence-check gate of the draft is the one under test.
type mockCreator struct {
	mock.Mock
}

func (m *mockCreator) AllocateAndCreateDocument(ctx context.Context, p core.SubmissionPayload) (*core.Document, error) {
	args := m.Called(p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Document), args.Error(1)
}

func (m *mockCreator) FindByIdempotencyKey(ctx context.Context, companyID int, key string) (*core.Document, error) {
	args := m.Called(key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*core.Document), args.Error(1)
}

func newStub() *stubService {
	return &stubService{creator: &mockCreator{}}
}

func (m *stubService) LoadDefaultCompany(ctx context.Context) (*core.Company, error) {
	return &core.Company{ID: 1, CompanyCode: "1000", Name: "Demo Distributors", StateCode: "27"}, nil
}

func (m *stubService) ListCategories(typeCode string) ([]string, error) {
	args := m.Called(typeCode)
	return args.Get(0).([]string), args.Error(1)
}

func (m *stubService) PreviewDraft(ctx context.Context, req app.DocumentRequest) (*app.DraftPreviewResult, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.DraftPreviewResult), args.Error(1)
}

// OpenDraft loads the request the way the service does, minus the masters.
func (m *stubService) OpenDraft(ctx context.Context, req app.DocumentRequest) (*core.DraftBuilder, error) {
	d, err := core.NewDraftBuilder(1, req.TypeCode, core.WithIdempotencyKey(req.IdempotencyKey))
	if err != nil {
		return nil, err
	}
	if err := d.SetHeader(req.Header); err != nil {
		return nil, err
	}
	if req.GSTCategory != "" {
		if err := d.SetInterstateCategory(req.GSTCategory); err != nil {
			return nil, err
		}
	}
	for _, l := range req.Lines {
		if _, err := d.AddLine(l); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (m *stubService) SubmitDraft(ctx context.Context, d *core.DraftBuilder) (*app.DocumentResult, error) {
	doc, err := core.NewSubmitter(m.creator, zerolog.Nop()).Submit(ctx, d)
	if err != nil {
		return nil, err
	}
	return &app.DocumentResult{Document: doc}, nil
}

func (m *stubService) ReconcileDraft(ctx context.Context, d *core.DraftBuilder) (*app.SubmissionCheckResult, error) {
	doc, err := core.NewSubmitter(m.creator, zerolog.Nop()).Reconcile(ctx, d)
	if err != nil {
		return nil, err
	}
	return &app.SubmissionCheckResult{IdempotencyKey: d.IdempotencyKey(), Exists: doc != nil, Document: doc}, nil
}

func (m *stubService) CopyDocument(ctx context.Context, companyCode string, id int64, target string) (*app.DocumentRequest, error) {
	args := m.Called(companyCode, id, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*app.DocumentRequest), args.Error(1)
}

func runScript(t *testing.T, svc app.ApplicationService, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	reader := bufio.NewReader(strings.NewReader(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, Run(context.Background(), svc, reader, &out))
	return out.String()
}

func submittedKeys(svc *stubService) []string {
	var keys []string
	for _, c := range svc.creator.Calls {
		if c.Method == "AllocateAndCreateDocument" {
			keys = append(keys, c.Arguments.Get(0).(core.SubmissionPayload).IdempotencyKey)
		}
	}
	return keys
}

func TestRun_AmbiguousSubmitRequiresCheck(t *testing.T) {
	svc := newStub()
	svc.On("ListCategories", "PO").Return([]string{"Local Purchase", "Inter-State Purchase", "Imports"}, nil)
	svc.On("PreviewDraft", mock.Anything).Return(&app.DraftPreviewResult{TypeCode: "PO", Ready: true}, nil)

	svc.creator.On("AllocateAndCreateDocument", mock.MatchedBy(func(p core.SubmissionPayload) bool {
		return p.TypeCode == "PO" && p.Header.PartyCode == "ACME" &&
			p.GSTCategory == "Local Purchase" && len(p.Lines) == 1 &&
			p.Lines[0].Input.Quantity.Equal(decimal.NewFromInt(10))
	})).Return(nil, context.DeadlineExceeded).Once()

	doc := &core.Document{ID: 7, TypeCode: "PO", DocumentNumber: "PO26/0001", Status: core.DocumentStatusPosted}
	svc.creator.On("FindByIdempotencyKey", mock.Anything).Return(doc, nil).Once()

	out := runScript(t, svc,
		"/new po",
		"/party ACME",
		"/gst 1",
		"/line sku-1 10 100 0 18",
		"/submit",
		"/show",
		"/submit",
		"/check",
		"/exit",
	)

	keys := submittedKeys(svc)
	require.Len(t, keys, 1, "the second submit must be refused before reaching the backend")
	assert.NotEmpty(t, keys[0])
	svc.creator.AssertCalled(t, "FindByIdempotencyKey", keys[0])

	assert.Contains(t, out, "The outcome of the submission is unknown")
	assert.Contains(t, out, "Idempotency key: "+keys[0])
	assert.Contains(t, out, "Last submission failed")
	assert.Contains(t, out, "run /check first")
	assert.Contains(t, out, "The draft was saved as PO26/0001.")
	assert.Contains(t, out, "Goodbye.")
}

func TestRun_CheckFindsNothingAndReleasesDraft(t *testing.T) {
	svc := newStub()
	svc.On("ListCategories", "ENQ").Return([]string{}, nil)
	svc.On("PreviewDraft", mock.Anything).Return(&app.DraftPreviewResult{TypeCode: "ENQ"}, nil)
	svc.creator.On("AllocateAndCreateDocument", mock.Anything).
		Return(nil, &core.AmbiguousOutcomeError{Cause: errors.New("commit reply lost")}).Once()
	svc.creator.On("FindByIdempotencyKey", mock.Anything).Return(nil, core.ErrDocumentNotFound).Once()
	svc.creator.On("AllocateAndCreateDocument", mock.Anything).
		Return(&core.Document{ID: 4, DocumentNumber: "ENQ26/0004"}, nil).Once()

	out := runScript(t, svc, "/new ENQ", "/party ACME", "/line - 1 10", "/submit", "/check", "/submit")

	keys := submittedKeys(svc)
	require.Len(t, keys, 2)
	assert.Equal(t, keys[0], keys[1])
	assert.Contains(t, out, "The draft was not saved.")
	assert.Contains(t, out, "Saved ENQ26/0004 (id 4).")
}

func TestRun_RetryResendsSameKey(t *testing.T) {
	svc := newStub()
	svc.On("ListCategories", "ENQ").Return([]string{}, nil)
	svc.On("PreviewDraft", mock.Anything).Return(&app.DraftPreviewResult{TypeCode: "ENQ"}, nil)

	svc.creator.On("AllocateAndCreateDocument", mock.Anything).
		Return(nil, &core.AmbiguousOutcomeError{Cause: context.Canceled}).Once()
	svc.creator.On("AllocateAndCreateDocument", mock.Anything).
		Return(&core.Document{ID: 3, DocumentNumber: "ENQ26/0003"}, nil).Once()

	out := runScript(t, svc,
		"/new ENQ",
		"/party ACME",
		"/line - 1 10",
		"/submit",
		"/retry",
		"/submit",
		"/retry",
	)

	keys := submittedKeys(svc)
	require.Len(t, keys, 2)
	assert.Equal(t, keys[0], keys[1])
	assert.Contains(t, out, "Check skipped.")
	assert.Contains(t, out, "Saved ENQ26/0003 (id 3).")
	assert.Contains(t, out, "no draft open")
	svc.creator.AssertNotCalled(t, "FindByIdempotencyKey", mock.Anything)
}

func TestRun_IncompleteAndTransientErrors(t *testing.T) {
	svc := newStub()
	svc.On("ListCategories", "GI").Return([]string{}, nil)
	svc.On("ListCategories", "ENQ").Return([]string{}, nil)
	svc.On("PreviewDraft", mock.Anything).Return(&app.DraftPreviewResult{TypeCode: "ENQ"}, nil)
	svc.creator.On("AllocateAndCreateDocument", mock.Anything).
		Return(nil, fmt.Errorf("insert: %w", core.ErrTransientUnavailable)).Once()

	out := runScript(t, svc,
		"/new GI", "/submit", "/check", "/retry",
		"/new ENQ", "/party ACME", "/line - 1 10", "/submit",
	)

	assert.Contains(t, out, "Cannot submit yet. Missing: ")
	assert.Contains(t, out, "party")
	assert.Contains(t, out, "nothing to check")
	assert.Contains(t, out, "Nothing to retry")
	assert.Contains(t, out, "Nothing was saved")
	assert.Len(t, submittedKeys(svc), 1)
}

func TestRun_LineRejectedByServiceIsRemoved(t *testing.T) {
	svc := newStub()
	svc.On("ListCategories", "SO").Return([]string{"Local Sales"}, nil)
	svc.On("PreviewDraft", mock.MatchedBy(func(req app.DocumentRequest) bool { return len(req.Lines) == 1 })).
		Return(nil, &core.ValidationError{Field: "lines[1].quantity", Reason: "must be greater than zero"}).Once()
	svc.On("PreviewDraft", mock.MatchedBy(func(req app.DocumentRequest) bool { return len(req.Lines) == 0 })).
		Return(&app.DraftPreviewResult{TypeCode: "SO"}, nil).Once()

	out := runScript(t, svc, "/new SO", "/line A 0 10", "/show")

	svc.AssertExpectations(t)
	assert.Contains(t, out, "lines[1].quantity must be greater than zero")
}

func TestRun_CopyStartsDraftWithFreshKey(t *testing.T) {
	svc := newStub()
	svc.On("CopyDocument", "1000", int64(4), "SO").
		Return(&app.DocumentRequest{CompanyCode: "1000", TypeCode: "SO"}, nil)
	svc.On("PreviewDraft", mock.MatchedBy(func(req app.DocumentRequest) bool {
		return req.TypeCode == "SO" && req.IdempotencyKey != ""
	})).Return(&app.DraftPreviewResult{TypeCode: "SO"}, nil)

	out := runScript(t, svc, "/copy 4 so")

	svc.AssertExpectations(t)
	assert.Contains(t, out, "New SO draft from document 4.")
}

func TestRun_CommandsWithoutDraft(t *testing.T) {
	out := runScript(t, newStub(), "/line A 1 1", "/submit", "/bogus", "hello")

	assert.Equal(t, 2, strings.Count(out, "no draft open"))
	assert.Contains(t, out, "Unknown command: /bogus")
	assert.Contains(t, out, "Commands start with /.")
}

func TestParseLine(t *testing.T) {
	in, err := parseLine([]string{"sku-9", "2.5", "80", "10", "12", "5100"})
	require.NoError(t, err)
	assert.Equal(t, "SKU-9", in.ItemCode)
	assert.True(t, in.Quantity.Equal(decimal.RequireFromString("2.5")))
	assert.True(t, in.UnitPrice.Equal(decimal.NewFromInt(80)))
	assert.True(t, in.DiscountPercent.Equal(decimal.NewFromInt(10)))
	assert.True(t, in.GSTPercent.Equal(decimal.NewFromInt(12)))
	assert.Equal(t, "5100", in.LedgerCode)

	in, err = parseLine([]string{"-", "1", "99"})
	require.NoError(t, err)
	assert.Empty(t, in.ItemCode)
	assert.True(t, in.DiscountPercent.IsZero())
	assert.True(t, in.GSTPercent.IsZero())

	_, err = parseLine([]string{"A", "1"})
	assert.ErrorContains(t, err, "usage")

	_, err = parseLine([]string{"A", "x", "1"})
	assert.ErrorContains(t, err, `invalid quantity "x"`)
}

func TestEnterLines(t *testing.T) {
	req := &app.DocumentRequest{TypeCode: "PO"}
	reader := bufio.NewReader(strings.NewReader("A 1 10\nbad\nB 2 20 0 5\ndone\n"))
	var out bytes.Buffer

	assert.True(t, enterLines(reader, &out, req))
	require.Len(t, req.Lines, 2)
	assert.Equal(t, "B", req.Lines[1].ItemCode)
	assert.Contains(t, out.String(), "usage")

	reader = bufio.NewReader(strings.NewReader("C 1 1\ncancel\n"))
	assert.False(t, enterLines(reader, &out, req))
	assert.Len(t, req.Lines, 2)
}

func TestPickCategory(t *testing.T) {
	cats := []string{"Local Sales", "Inter-State Sales", "Exports"}

	got, err := pickCategory(cats, "2")
	require.NoError(t, err)
	assert.Equal(t, "Inter-State Sales", got)

	got, err = pickCategory(cats, "exports")
	require.NoError(t, err)
	assert.Equal(t, "Exports", got)

	_, err = pickCategory(cats, "4")
	assert.Error(t, err)
	_, err = pickCategory(cats, "Imports")
	assert.Error(t, err)
}
