package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/fastprodman/groupbuy/internal/apperr"
	"github.com/fastprodman/groupbuy/internal/gateway/paystack"
)

// PaystackWebhookHandler handles POST /paystack/webhook.
//
// Anything other than 200 makes Paystack redeliver, so only failures worth
// retrying answer 5xx. A reference with no pending payment is a duplicate
// delivery or a top-up and is acknowledged.
func (h *HandlerProvider) PaystackWebhookHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if !paystack.ValidSignature(h.webhookSecret, body, r.Header.Get(paystack.SignatureHeader)) {
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	ev, err := paystack.ParseEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if ev.Event != paystack.EventChargeSuccess || ev.Data.Reference == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	ctx := r.Context()
	ref := ev.Data.Reference

	_, err = h.svc.CompletePendingPayment(ctx, ref)

	ae, classified := apperr.From(err)

	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "applied"})
	case classified && ae.Kind == apperr.KindNotFound:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
	case !classified || ae.Retryable:
		slog.WarnContext(ctx, "webhook delivery not applied, asking for redelivery", "reference", ref, "error", err)

		status := http.StatusServiceUnavailable
		if !classified {
			status = http.StatusInternalServerError
		}

		writeError(w, status, "try again later")
	default:
		slog.ErrorContext(ctx, "webhook delivery rejected", "reference", ref, "kind", ae.Kind, "error", err)
		writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
	}
}
