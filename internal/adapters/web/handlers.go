package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"distributor-erp/internal/app"
	"distributor-erp/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Handler holds the ApplicationService and the chi router.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
	log    zerolog.Logger
}

// Config holds the HTTP-level settings of the handler.
type Config struct {
	AllowedOrigins string
	RequestTimeout time.Duration
	Metrics        *metrics.Metrics
	// MetricsHandler serves /metrics; nil uses the default Prometheus registry.
	MetricsHandler http.Handler
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, log zerolog.Logger, cfg Config) http.Handler {
	h := &Handler{svc: svc, log: log}

	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer(log))
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(Instrument(cfg.Metrics))

	// ── Health and metrics ────────────────────────────────────────────────────
	r.Get("/api/health", h.health)
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(RequestBodyLimit(1 << 20)) // 1 MB
		if cfg.RequestTimeout > 0 {
			r.Use(Timeout(cfg.RequestTimeout))
		}

		// ── Catalog ───────────────────────────────────────────────────────────
		r.Get("/api/voucher-types", h.apiListVoucherTypes)
		r.Get("/api/gst-categories", h.apiListCategories)
		r.Get("/api/schema/document", h.apiSubmissionSchema)
		r.Post("/api/lines/compute", h.apiComputeLine)

		// ── Documents ─────────────────────────────────────────────────────────
		r.Post("/api/companies/{code}/documents/preview", h.apiPreviewDraft)
		r.Post("/api/companies/{code}/documents", h.apiCreateDocument)
		r.Get("/api/companies/{code}/documents", h.apiListDocuments)
		r.Get("/api/companies/{code}/documents/{id}", h.apiGetDocument)
		r.Post("/api/companies/{code}/documents/{id}/cancel", h.apiCancelDocument)
		r.Get("/api/companies/{code}/documents/{id}/copy", h.apiCopyDocument)
		r.Get("/api/companies/{code}/submissions/{key}", h.apiCheckSubmission)

		// ── Numbering ─────────────────────────────────────────────────────────
		r.Get("/api/companies/{code}/numbering/{type}/next", h.apiPreviewNumber)
		r.Get("/api/companies/{code}/numbering/{type}/prefixes", h.apiListPrefixes)

		// ── Masters and reports ───────────────────────────────────────────────
		r.Get("/api/companies/{code}/parties", h.apiListParties)
		r.Post("/api/companies/{code}/parties", h.apiCreateParty)
		r.Get("/api/companies/{code}/balances", h.apiBalances)
		r.Get("/api/companies/{code}/warehouses", h.apiListWarehouses)
		r.Get("/api/companies/{code}/stock", h.apiStock)
	})

	h.router = r
	return r
}

// health returns service status and the loaded company code.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	company, err := h.svc.LoadDefaultCompany(r.Context())
	companyCode := ""
	if err == nil && company != nil {
		companyCode = company.CompanyCode
	}

	type response struct {
		Status  string `json:"status"`
		Company string `json:"company"`
	}

	writeJSON(w, response{Status: "ok", Company: companyCode})
}

// companyCode extracts the {code} URL parameter.
func companyCode(r *http.Request) string {
	return chi.URLParam(r, "code")
}

// documentID parses the {id} URL parameter, writing a 400 on failure.
func documentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, "invalid document id", "BAD_REQUEST", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// decodeJSON decodes the request body into v and returns false + writes an appropriate
// error response on failure. Returns HTTP 413 when the body exceeds the size limit set
// by RequestBodyLimit middleware; HTTP 400 for all other decode errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			writeError(w, r, "request body too large", "REQUEST_TOO_LARGE", http.StatusRequestEntityTooLarge)
			return false
		}
		writeError(w, r, "invalid JSON body: "+err.Error(), "BAD_REQUEST", http.StatusBadRequest)
		return false
	}
	return true
}
