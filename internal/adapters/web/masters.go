package web

import (
	"net/http"

	"distributor-erp/internal/app"
)

func (h *Handler) apiListParties(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListParties(r.Context(), companyCode(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiCreateParty(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePartyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.CompanyCode = companyCode(r)
	party, err := h.svc.CreateParty(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, party)
}

func (h *Handler) apiBalances(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetLedgerBalances(r.Context(), companyCode(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiListWarehouses(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ListWarehouses(r.Context(), companyCode(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (h *Handler) apiStock(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.GetStockLevels(r.Context(), companyCode(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, res)
}
