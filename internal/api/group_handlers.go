package api

import (
	"net/http"

	"github.com/fastprodman/groupbuy/internal/services/payments"
	"github.com/go-chi/chi/v5"
)

type createGroupRequest struct {
	LivestockID       string `json:"livestockId"`
	GroupName         string `json:"groupName"`
	TotalSlot         int    `json:"totalSlot"`
	SlotTaken         int    `json:"slotTaken"`
	PaymentMethod     string `json:"paymentMethod"`
	ExternalReference string `json:"externalReference"`
}

// CreateGroupHandler handles POST /groups
func (h *HandlerProvider) CreateGroupHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req createGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := h.svc.CreateGroup(r.Context(), p, payments.CreateGroupRequest{
		LivestockID:       req.LivestockID,
		GroupName:         req.GroupName,
		TotalSlot:         req.TotalSlot,
		SlotTaken:         req.SlotTaken,
		PaymentMethod:     req.PaymentMethod,
		ExternalReference: req.ExternalReference,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, outcomeStatus(out), toOutcome(out, p.UserID))
}

// GetGroupHandler handles GET /groups/{groupId}
func (h *HandlerProvider) GetGroupHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	g, members, err := h.svc.Group(r.Context(), chi.URLParam(r, "groupId"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toGroup(g, members, p.UserID))
}

type joinGroupRequest struct {
	Slots             int    `json:"slots"`
	PaymentMethod     string `json:"paymentMethod"`
	ExternalReference string `json:"externalReference"`
}

// JoinGroupHandler handles POST /groups/{groupId}/join
func (h *HandlerProvider) JoinGroupHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var req joinGroupRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := h.svc.JoinGroup(r.Context(), p, payments.JoinGroupRequest{
		GroupID:           chi.URLParam(r, "groupId"),
		Slots:             req.Slots,
		PaymentMethod:     req.PaymentMethod,
		ExternalReference: req.ExternalReference,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, outcomeStatus(out), toOutcome(out, p.UserID))
}

// CompletePaymentHandler handles POST /payments/{reference}/complete, the
// client-side poll after returning from the checkout page.
func (h *HandlerProvider) CompletePaymentHandler(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	out, err := h.svc.CompletePendingPayment(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toOutcome(out, p.UserID))
}
