package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Deps is everything the router needs. Metrics may be nil.
type Deps struct {
	Payments      PaymentService
	Metrics       http.Handler
	JWTSecret     []byte
	WebhookSecret string
	CORSOrigins   []string
}

// NewRouter constructs a chi router with all API endpoints registered.
func NewRouter(deps Deps) http.Handler {
	h := NewHandler(deps.Payments, deps.WebhookSecret)
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	if len(deps.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: deps.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	// Paystack signs its deliveries; no bearer token here.
	r.Post("/paystack/webhook", h.PaystackWebhookHandler)

	r.Group(func(r chi.Router) {
		r.Use(authenticate(deps.JWTSecret))

		r.Get("/livestock", h.ListLivestockHandler)

		r.Get("/wallet", h.GetWalletHandler)
		r.Post("/wallet", h.OpenWalletHandler)
		r.Get("/wallet/transactions", h.ListTransactionsHandler)
		r.Post("/wallet/top-ups", h.StartTopUpHandler)
		r.Post("/wallet/top-ups/{reference}/complete", h.CompleteTopUpHandler)

		r.Post("/groups", h.CreateGroupHandler)
		r.Get("/groups/{groupId}", h.GetGroupHandler)
		r.Post("/groups/{groupId}/join", h.JoinGroupHandler)

		r.Post("/payments/{reference}/complete", h.CompletePaymentHandler)
	})

	return r
}
