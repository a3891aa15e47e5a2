package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// ListLivestockHandler handles GET /livestock
func (h *HandlerProvider) ListLivestockHandler(w http.ResponseWriter, r *http.Request) {
	lots, err := h.svc.Livestock(r.Context())
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	resp := make([]livestockResponse, 0, len(lots))
	for _, l := range lots {
		resp = append(resp, toLivestock(l))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetWalletHandler handles GET /wallet
func (h *HandlerProvider) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	wal, err := h.svc.Wallet(r.Context(), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toWallet(wal))
}

// OpenWalletHandler handles POST /wallet. Repeated calls return the same wallet.
func (h *HandlerProvider) OpenWalletHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	wal, err := h.svc.OpenWallet(r.Context(), p)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toWallet(wal))
}

// ListTransactionsHandler handles GET /wallet/transactions?limit=N
func (h *HandlerProvider) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	limit := 0

	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}

		limit = n
	}

	recs, err := h.svc.History(r.Context(), p, limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	resp := make([]transactionResponse, 0, len(recs))
	for _, rec := range recs {
		resp = append(resp, toTransaction(rec))
	}

	writeJSON(w, http.StatusOK, resp)
}

type topUpRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// StartTopUpHandler handles POST /wallet/top-ups
func (h *HandlerProvider) StartTopUpHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req topUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := h.svc.StartTopUp(r.Context(), p, req.Amount)
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, toOutcome(out, p.UserID))
}

type topUpResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Wallet      walletResponse      `json:"wallet"`
}

// CompleteTopUpHandler handles POST /wallet/top-ups/{reference}/complete
func (h *HandlerProvider) CompleteTopUpHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	res, err := h.svc.CompleteTopUp(r.Context(), p, chi.URLParam(r, "reference"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, topUpResponse{
		Transaction: toTransaction(res.Record),
		Wallet:      toWallet(res.Wallet),
	})
}
