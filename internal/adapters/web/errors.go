package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"distributor-erp/internal/core"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
	// Field names the offending input for VALIDATION_ERROR.
	Field string `json:"field,omitempty"`
	// Missing lists what blocks an INCOMPLETE_DOCUMENT.
	Missing []string `json:"missing,omitempty"`
	// IdempotencyKey and Hint accompany AMBIGUOUS_OUTCOME.
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	Hint           string `json:"hint,omitempty"`
	Retryable      bool   `json:"retryable,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	writeErrorResponse(w, r, status, errorResponse{Error: message, Code: code})
}

func writeErrorResponse(w http.ResponseWriter, r *http.Request, status int, resp errorResponse) {
	resp.RequestID = requestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// writeDomainError maps the error taxonomy to HTTP statuses.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validation *core.ValidationError
		incomplete *core.IncompleteDocumentError
		ambiguous  *core.AmbiguousOutcomeError
	)

	switch {
	case errors.As(err, &ambiguous):
		writeErrorResponse(w, r, http.StatusGatewayTimeout, errorResponse{
			Error:          err.Error(),
			Code:           "AMBIGUOUS_OUTCOME",
			IdempotencyKey: ambiguous.IdempotencyKey,
			Hint:           "check GET /api/companies/{code}/submissions/{idempotency_key} before retrying",
		})
	case errors.Is(err, core.ErrTransientUnavailable):
		w.Header().Set("Retry-After", "1")
		writeErrorResponse(w, r, http.StatusServiceUnavailable, errorResponse{
			Error: err.Error(), Code: "TEMPORARILY_UNAVAILABLE", Retryable: true,
		})
	case errors.As(err, &validation):
		writeErrorResponse(w, r, http.StatusUnprocessableEntity, errorResponse{
			Error: err.Error(), Code: "VALIDATION_ERROR", Field: validation.Field,
		})
	case errors.As(err, &incomplete):
		writeErrorResponse(w, r, http.StatusUnprocessableEntity, errorResponse{
			Error: err.Error(), Code: "INCOMPLETE_DOCUMENT", Missing: incomplete.Missing,
		})
	case errors.Is(err, core.ErrUnresolvedLedger):
		writeError(w, r, err.Error(), "UNRESOLVED_LEDGER", http.StatusUnprocessableEntity)
	case errors.Is(err, core.ErrPrefixNotConfigured):
		writeError(w, r, err.Error(), "PREFIX_NOT_CONFIGURED", http.StatusConflict)
	case errors.Is(err, core.ErrSequenceExhausted):
		writeError(w, r, err.Error(), "SEQUENCE_EXHAUSTED", http.StatusConflict)
	case errors.Is(err, core.ErrConfiguration):
		writeError(w, r, err.Error(), "CONFIGURATION_ERROR", http.StatusConflict)
	case errors.Is(err, core.ErrDocumentNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrSubmitInFlight), errors.Is(err, core.ErrDraftLocked):
		writeError(w, r, err.Error(), "CONFLICT", http.StatusConflict)
	default:
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
