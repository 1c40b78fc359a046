package web

import (
	"net/http"
	"strconv"

	"distributor-erp/internal/app"
	"distributor-erp/internal/core"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// fail logs unexpected errors and writes the mapped response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	zerolog.Ctx(r.Context()).Debug().Err(err).Msg("request failed")
	writeDomainError(w, r, err)
}

// apiPreviewDraft handles POST /api/companies/{code}/documents/preview.
func (h *Handler) apiPreviewDraft(w http.ResponseWriter, r *http.Request) {
	var req app.DocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyCode = companyCode(r)
	res, err := h.svc.PreviewDraft(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiCreateDocument handles POST /api/companies/{code}/documents. The
// idempotency key may come in the body or the Idempotency-Key header.
func (h *Handler) apiCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req app.DocumentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyCode = companyCode(r)
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	if req.IdempotencyKey != "" {
		key, err := core.ParseIdempotencyKey(req.IdempotencyKey)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		req.IdempotencyKey = key
	}
	res, err := h.svc.CreateDocument(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

// apiListDocuments handles GET /api/companies/{code}/documents?type=PO&limit=50.
func (h *Handler) apiListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeError(w, r, "limit must be an integer", "BAD_REQUEST", http.StatusBadRequest)
			return
		}
		limit = n
	}
	res, err := h.svc.ListDocuments(r.Context(), companyCode(r), r.URL.Query().Get("type"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiGetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	res, err := h.svc.GetDocument(r.Context(), companyCode(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiCancelDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	var req app.CancelRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CancelDocument(r.Context(), companyCode(r), id, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiCopyDocument handles GET /api/companies/{code}/documents/{id}/copy?target=SO
// and returns a prefilled draft request.
func (h *Handler) apiCopyDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := documentID(w, r)
	if !ok {
		return
	}
	target := r.URL.Query().Get("target")
	if target == "" {
		writeError(w, r, "target query parameter is required", "BAD_REQUEST", http.StatusBadRequest)
		return
	}
	res, err := h.svc.CopyDocument(r.Context(), companyCode(r), id, target)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiCheckSubmission handles GET /api/companies/{code}/submissions/{key}.
func (h *Handler) apiCheckSubmission(w http.ResponseWriter, r *http.Request) {
	key, err := core.ParseIdempotencyKey(chi.URLParam(r, "key"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.svc.CheckSubmission(r.Context(), companyCode(r), key)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

// apiPreviewNumber handles GET /api/companies/{code}/numbering/{type}/next?prefix=&fy=&date=.
func (h *Handler) apiPreviewNumber(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.svc.PreviewNumber(r.Context(), app.NumberPreviewRequest{
		CompanyCode:   companyCode(r),
		TypeCode:      chi.URLParam(r, "type"),
		Prefix:        q.Get("prefix"),
		FinancialYear: q.Get("fy"),
		DocumentDate:  q.Get("date"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiListPrefixes(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListPrefixes(r.Context(), companyCode(r), chi.URLParam(r, "type"), r.URL.Query().Get("fy"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiComputeLine(w http.ResponseWriter, r *http.Request) {
	var req app.ComputeLineRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.ComputeLine(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiListVoucherTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.ListVoucherTypes())
}

// apiListCategories handles GET /api/gst-categories?type=PO.
func (h *Handler) apiListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.svc.ListCategories(r.URL.Query().Get("type"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, cats)
}

func (h *Handler) apiSubmissionSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := h.svc.SubmissionSchema()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	_, _ = w.Write(schema)
}
