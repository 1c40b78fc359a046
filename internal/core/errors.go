package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Callers match them with errors.Is; the wrapper types below
// carry the details (offending field, missing header fields, line index).
var (
	ErrValidation         = errors.New("invalid input")
	ErrConfiguration      = errors.New("configuration error")
	ErrIncompleteDocument = errors.New("document is incomplete")
	ErrUnresolvedLedger   = errors.New("ledger could not be resolved")

	// ErrPrefixNotConfigured blocks document creation entirely; there is no
	// fallback prefix.
	ErrPrefixNotConfigured = errors.New("no active prefix configured")
	ErrSequenceExhausted   = errors.New("document sequence exhausted")

	// ErrTransientUnavailable means nothing was persisted and the whole
	// submission may be retried.
	ErrTransientUnavailable = errors.New("backend temporarily unavailable")
	// ErrAmbiguousOutcome means the request may or may not have been applied.
	// Never retry it blindly: check for the document first.
	ErrAmbiguousOutcome = errors.New("submission outcome unknown")

	ErrDocumentNotFound = errors.New("document not found")
	ErrDraftLocked      = errors.New("draft cannot be edited in its current state")
	ErrSubmitInFlight   = errors.New("submission already in progress")
)

// ValidationError names the input field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ConfigurationError reports an unrecognized GST category, a missing prefix or
// an unsupported voucher type. Err, when set, is one of the numbering sentinels.
type ConfigurationError struct {
	Err     error
	Details string
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", ErrConfiguration.Error(), e.Err.Error(), e.Details)
	}
	return fmt.Sprintf("%s: %s", ErrConfiguration.Error(), e.Details)
}

func (e *ConfigurationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrConfiguration, e.Err}
	}
	return []error{ErrConfiguration}
}

// IncompleteDocumentError lists everything that blocks submission.
type IncompleteDocumentError struct {
	Missing []string
}

func (e *IncompleteDocumentError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrIncompleteDocument.Error(), strings.Join(e.Missing, ", "))
}

func (e *IncompleteDocumentError) Unwrap() error { return ErrIncompleteDocument }

// UnresolvedLedgerError identifies the line (1-based) without a ledger.
// Line 0 means the counterparty ledger.
type UnresolvedLedgerError struct {
	Line int
}

func (e *UnresolvedLedgerError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("%s: counterparty ledger", ErrUnresolvedLedger.Error())
	}
	return fmt.Sprintf("%s: line %d", ErrUnresolvedLedger.Error(), e.Line)
}

func (e *UnresolvedLedgerError) Unwrap() error { return ErrUnresolvedLedger }

// AmbiguousOutcomeError carries the idempotency key the caller must use for
// the existence check before retrying.
type AmbiguousOutcomeError struct {
	IdempotencyKey string
	Cause          error
}

func (e *AmbiguousOutcomeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s (key %s): %v", ErrAmbiguousOutcome.Error(), e.IdempotencyKey, e.Cause)
	}
	return fmt.Sprintf("%s (key %s)", ErrAmbiguousOutcome.Error(), e.IdempotencyKey)
}

func (e *AmbiguousOutcomeError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrAmbiguousOutcome, e.Cause}
	}
	return []error{ErrAmbiguousOutcome}
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsRetryable reports whether a failed submission can be resubmitted as is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientUnavailable) && !errors.Is(err, ErrAmbiguousOutcome)
}
