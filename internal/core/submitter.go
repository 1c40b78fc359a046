package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Submitter drives a validated draft through number allocation and atomic
// creation, and owns the retry rules around ambiguous outcomes.
type Submitter struct {
	creator DocumentCreator
	log     zerolog.Logger
}

func NewSubmitter(creator DocumentCreator, log zerolog.Logger) *Submitter {
	return &Submitter{creator: creator, log: log}
}

// Submit validates the draft and hands it to the collaborator in a single
// call. On success the draft is COMMITTED. On failure it goes back to EDITING
// with its input intact; after an ambiguous outcome further submits are
// refused until Reconcile or ConfirmRetry.
func (s *Submitter) Submit(ctx context.Context, d *DraftBuilder) (*Document, error) {
	payload, err := d.beginSubmit()
	if err != nil {
		return nil, err
	}

	logger := s.log.With().
		Str("type", payload.TypeCode).
		Int("company_id", payload.CompanyID).
		Str("idempotency_key", payload.IdempotencyKey).
		Logger()

	doc, err := s.creator.AllocateAndCreateDocument(ctx, *payload)
	if err != nil {
		if errors.Is(err, ErrAmbiguousOutcome) || errors.Is(err, context.DeadlineExceeded) {
			logger.Warn().Err(err).Msg("submission outcome unknown, existence check required")
			var amb *AmbiguousOutcomeError
			if !errors.As(err, &amb) {
				amb = &AmbiguousOutcomeError{IdempotencyKey: payload.IdempotencyKey, Cause: err}
			}
			d.markFailed(amb, true)
			return nil, amb
		}
		logger.Error().Err(err).Bool("retryable", IsRetryable(err)).Msg("submission failed")
		d.markFailed(err, false)
		return nil, err
	}

	logger.Info().
		Str("document_number", doc.DocumentNumber).
		Int64("document_id", doc.ID).
		Msg("document created")
	d.markCommitted(doc)
	return doc, nil
}

// Reconcile runs the existence check after an ambiguous outcome. If the
// document was created the draft becomes COMMITTED and the document is
// returned; otherwise the draft is released for an ordinary retry and
// (nil, nil) is returned.
func (s *Submitter) Reconcile(ctx context.Context, d *DraftBuilder) (*Document, error) {
	doc, err := s.creator.FindByIdempotencyKey(ctx, d.CompanyID(), d.IdempotencyKey())
	if err != nil {
		if errors.Is(err, ErrDocumentNotFound) {
			d.ConfirmRetry()
			return nil, nil
		}
		return nil, fmt.Errorf("existence check for %s: %w", d.IdempotencyKey(), err)
	}
	d.markCommitted(doc)
	return doc, nil
}
