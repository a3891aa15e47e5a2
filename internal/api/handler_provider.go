package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/fastprodman/groupbuy/internal/apperr"
	"github.com/fastprodman/groupbuy/internal/repos/groups"
	"github.com/fastprodman/groupbuy/internal/repos/livestock"
	"github.com/fastprodman/groupbuy/internal/repos/transactions"
	"github.com/fastprodman/groupbuy/internal/repos/wallets"
	"github.com/fastprodman/groupbuy/internal/services/payments"
	"github.com/shopspring/decimal"
)

// PaymentService is the part of payments.Service the handlers call.
type PaymentService interface {
	Livestock(ctx context.Context) ([]livestock.Livestock, error)
	OpenWallet(ctx context.Context, p payments.Principal) (wallets.Wallet, error)
	Wallet(ctx context.Context, p payments.Principal) (wallets.Wallet, error)
	History(ctx context.Context, p payments.Principal, limit int) ([]transactions.Record, error)
	StartTopUp(ctx context.Context, p payments.Principal, amount decimal.Decimal) (payments.Outcome, error)
	CompleteTopUp(ctx context.Context, p payments.Principal, reference string) (payments.TopUpResult, error)
	CreateGroup(ctx context.Context, p payments.Principal, req payments.CreateGroupRequest) (payments.Outcome, error)
	JoinGroup(ctx context.Context, p payments.Principal, req payments.JoinGroupRequest) (payments.Outcome, error)
	Group(ctx context.Context, id string) (groups.Group, []groups.Membership, error)
	CompletePendingPayment(ctx context.Context, reference string) (payments.Outcome, error)
}

var _ PaymentService = (*payments.Service)(nil)

// HandlerProvider wraps the payment service and exposes HTTP handlers.
type HandlerProvider struct {
	svc           PaymentService
	webhookSecret string
}

// NewHandler returns a new Handler provider.
func NewHandler(svc PaymentService, webhookSecret string) *HandlerProvider {
	return &HandlerProvider{svc: svc, webhookSecret: webhookSecret}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

type errorBody struct {
	Error     string      `json:"error"`
	Kind      apperr.Kind `json:"kind,omitempty"`
	Retryable bool        `json:"retryable"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeAppError maps a classified error to its status code. Unclassified
// errors never leak their text.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	ae, ok := apperr.From(err)
	if !ok {
		slog.ErrorContext(r.Context(), "unhandled error", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	status := statusFor(ae.Kind)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "internal inconsistency", "path", r.URL.Path, "error", err)
	}

	writeJSON(w, status, errorBody{Error: ae.Reason, Kind: ae.Kind, Retryable: ae.Retryable})
}

func statusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads at most 1MB and rejects unknown fields. It writes the
// error response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty body")
			return false
		}

		writeError(w, http.StatusBadRequest, "invalid JSON")

		return false
	}

	return true
}

// principal answers 401 itself when the request carries none.
func principal(w http.ResponseWriter, r *http.Request) (payments.Principal, bool) {
	p, err := principalFrom(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return payments.Principal{}, false
	}

	return p, true
}
