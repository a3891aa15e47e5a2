// Package gateway is the boundary to the hosted payment provider. The
// provider is untrusted: callers re-check amounts against what they asked for.
package gateway

import (
	"context"

	"github.com/fastprodman/groupbuy/internal/apperr"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

var (
	ErrUnavailable       = apperr.External("payment gateway unavailable")
	ErrRejected          = apperr.External("payment gateway rejected the request")
	ErrReferenceNotFound = apperr.NotFound("payment reference not found at gateway")
	ErrInvalidAmount     = apperr.Validation("amount cannot be charged through the gateway")
)

// Checkout is a hosted payment page for one reference.
type Checkout struct {
	Link      string
	Reference string
}

// Verification is the gateway's final word on a reference. Amount is in
// major currency units.
type Verification struct {
	Reference string
	Status    Status
	Amount    decimal.Decimal
	Email     string
}

type Gateway interface {
	Initialize(ctx context.Context, email string, amount decimal.Decimal) (Checkout, error)
	Verify(ctx context.Context, reference string) (Verification, error)
}
