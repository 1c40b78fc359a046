package core_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"distributor-erp/internal/core"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCreator numbers documents per prefix under a mutex and dedupes on the
// idempotency key, like the database-backed service.
type fakeCreator struct {
	mu    sync.Mutex
	last  map[string]int64
	byKey map[string]*core.Document
	calls int

	// failures are consumed one per call. When persist is set the document is
	// stored before the failure is returned.
	failures []failure

	started chan struct{}
	release chan struct{}
}

type failure struct {
	err     error
	persist bool
}

func newFakeCreator() *fakeCreator {
	return &fakeCreator{last: map[string]int64{}, byKey: map[string]*core.Document{}}
}

func (f *fakeCreator) AllocateAndCreateDocument(ctx context.Context, p core.SubmissionPayload) (*core.Document, error) {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	if doc, ok := f.byKey[p.IdempotencyKey]; ok {
		return doc, nil
	}

	var fail *failure
	if len(f.failures) > 0 {
		fail = &f.failures[0]
		f.failures = f.failures[1:]
		if !fail.persist {
			return nil, fail.err
		}
	}

	prefix := p.TypeCode + "26"
	f.last[prefix]++
	seq := f.last[prefix]
	doc := &core.Document{
		ID:             int64(len(f.byKey) + 1),
		CompanyID:      p.CompanyID,
		TypeCode:       p.TypeCode,
		Status:         core.DocumentStatusPosted,
		Prefix:         prefix,
		FinancialYear:  p.Numbering.FinancialYear,
		SequenceNumber: seq,
		DocumentNumber: core.FormatDocumentNumber(prefix, "/", seq, 4),
		IdempotencyKey: p.IdempotencyKey,
		Header:         p.Header,
		Totals:         p.Totals,
		Lines:          p.Lines,
	}
	f.byKey[p.IdempotencyKey] = doc
	if fail != nil {
		return nil, fail.err
	}
	return doc, nil
}

func (f *fakeCreator) FindByIdempotencyKey(ctx context.Context, companyID int, key string) (*core.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if doc, ok := f.byKey[key]; ok {
		return doc, nil
	}
	return nil, core.ErrDocumentNotFound
}

func (f *fakeCreator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// testKey derives a stable idempotency key from a readable label.
func testKey(label string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(label)).String()
}

func readyDraft(t *testing.T, label string) *core.DraftBuilder {
	t.Helper()
	d, err := core.NewDraftBuilder(1, core.VoucherPurchaseOrder, core.WithIdempotencyKey(testKey(label)))
	require.NoError(t, err)
	require.NoError(t, d.SetHeader(core.DraftHeader{PartyCode: "ACME", DocumentDate: "2026-05-10"}))
	require.NoError(t, d.SetInterstateCategory(core.CategoryLocalPurchase))
	_, err = d.AddLine(line("10", "100", "10", "18"))
	require.NoError(t, err)
	return d
}

func TestSubmit_CommitsDraft(t *testing.T) {
	creator := newFakeCreator()
	s := core.NewSubmitter(creator, zerolog.Nop())
	d := readyDraft(t, "k-1")

	doc, err := s.Submit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "PO26/0001", doc.DocumentNumber)
	assert.Equal(t, core.DraftCommitted, d.State())
	assert.Same(t, doc, d.Committed())

	_, err = s.Submit(context.Background(), d)
	assert.True(t, errors.Is(err, core.ErrDraftLocked))
	assert.True(t, errors.Is(d.SetRoundOff(true), core.ErrDraftLocked))
	assert.Equal(t, 1, creator.callCount())
}

func TestSubmit_IncompleteDraftNeverReachesBackend(t *testing.T) {
	creator := newFakeCreator()
	s := core.NewSubmitter(creator, zerolog.Nop())
	d, err := core.NewDraftBuilder(1, core.VoucherPurchaseOrder)
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), d)
	assert.True(t, errors.Is(err, core.ErrIncompleteDocument))
	assert.Equal(t, 0, creator.callCount())
}

func TestSubmit_ConcurrentDraftsGetDistinctNumbers(t *testing.T) {
	creator := newFakeCreator()
	s := core.NewSubmitter(creator, zerolog.Nop())

	const n = 40
	var wg sync.WaitGroup
	numbers := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		d := readyDraft(t, fmt.Sprintf("k-%d", i))
		wg.Add(1)
		go func() {
			defer wg.Done()
			doc, err := s.Submit(context.Background(), d)
			if err != nil {
				errs <- err
				return
			}
			numbers <- doc.DocumentNumber
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		t.Errorf("submit failed: %v", err)
	}
	seen := map[string]bool{}
	for num := range numbers {
		assert.False(t, seen[num], "duplicate number %s", num)
		seen[num] = true
	}
	assert.Len(t, seen, n)
	assert.True(t, seen["PO26/0001"])
	assert.True(t, seen[fmt.Sprintf("PO26/%04d", n)])
}

func TestSubmit_TransientFailureKeepsInputAndNumber(t *testing.T) {
	creator := newFakeCreator()
	creator.failures = []failure{{err: fmt.Errorf("%w: connection refused", core.ErrTransientUnavailable)}}
	s := core.NewSubmitter(creator, zerolog.Nop())
	d := readyDraft(t, "k-t")

	_, err := s.Submit(context.Background(), d)
	require.Error(t, err)
	assert.True(t, core.IsRetryable(err))
	assert.Equal(t, core.DraftEditing, d.State())
	assert.Equal(t, err, d.LastError())
	assert.False(t, d.NeedsExistenceCheck())
	assert.Len(t, d.Lines(), 1)

	doc, err := s.Submit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.SequenceNumber)
	assert.Nil(t, d.LastError())
}

func TestSubmit_AmbiguousOutcomeRequiresExistenceCheck(t *testing.T) {
	creator := newFakeCreator()
	creator.failures = []failure{{err: context.DeadlineExceeded, persist: true}}
	s := core.NewSubmitter(creator, zerolog.Nop())
	d := readyDraft(t, "k-amb")

	_, err := s.Submit(context.Background(), d)
	var amb *core.AmbiguousOutcomeError
	require.ErrorAs(t, err, &amb)
	assert.Equal(t, testKey("k-amb"), amb.IdempotencyKey)
	assert.Equal(t, d.IdempotencyKey(), amb.IdempotencyKey)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, core.IsRetryable(err))
	assert.True(t, d.NeedsExistenceCheck())
	assert.Equal(t, core.DraftEditing, d.State())

	_, err = s.Submit(context.Background(), d)
	assert.True(t, errors.Is(err, core.ErrAmbiguousOutcome))
	assert.Equal(t, 1, creator.callCount())

	doc, err := s.Reconcile(context.Background(), d)
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "PO26/0001", doc.DocumentNumber)
	assert.Equal(t, core.DraftCommitted, d.State())
	assert.False(t, d.NeedsExistenceCheck())
}

func TestSubmit_AmbiguousNotCreatedReleasesRetry(t *testing.T) {
	creator := newFakeCreator()
	creator.failures = []failure{{err: &core.AmbiguousOutcomeError{IdempotencyKey: testKey("k-lost"), Cause: errors.New("commit reply lost")}}}
	s := core.NewSubmitter(creator, zerolog.Nop())
	d := readyDraft(t, "k-lost")

	_, err := s.Submit(context.Background(), d)
	var amb *core.AmbiguousOutcomeError
	require.ErrorAs(t, err, &amb)
	assert.EqualError(t, amb.Cause, "commit reply lost")

	doc, err := s.Reconcile(context.Background(), d)
	require.NoError(t, err)
	assert.Nil(t, doc)
	assert.False(t, d.NeedsExistenceCheck())

	doc, err = s.Submit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.SequenceNumber)
}

func TestSubmit_ConfirmedRetryDoesNotDuplicate(t *testing.T) {
	creator := newFakeCreator()
	creator.failures = []failure{{err: context.DeadlineExceeded, persist: true}}
	s := core.NewSubmitter(creator, zerolog.Nop())
	d := readyDraft(t, "k-retry")

	_, err := s.Submit(context.Background(), d)
	require.Error(t, err)

	d.ConfirmRetry()
	doc, err := s.Submit(context.Background(), d)
	require.NoError(t, err)
	assert.Equal(t, "PO26/0001", doc.DocumentNumber)

	other := readyDraft(t, "k-next")
	next, err := s.Submit(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, "PO26/0002", next.DocumentNumber)
}

func TestSubmit_SecondSubmitWhileInFlight(t *testing.T) {
	creator := newFakeCreator()
	creator.started = make(chan struct{})
	creator.release = make(chan struct{})
	s := core.NewSubmitter(creator, zerolog.Nop())
	d := readyDraft(t, "k-fly")

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), d)
		done <- err
	}()
	<-creator.started

	assert.Equal(t, core.DraftSubmitting, d.State())
	_, err := s.Submit(context.Background(), d)
	assert.True(t, errors.Is(err, core.ErrSubmitInFlight))
	_, err = d.AddLine(line("1", "1", "0", "0"))
	assert.True(t, errors.Is(err, core.ErrDraftLocked))

	close(creator.release)
	require.NoError(t, <-done)
	assert.Equal(t, core.DraftCommitted, d.State())
	assert.Equal(t, 1, creator.callCount())
}
