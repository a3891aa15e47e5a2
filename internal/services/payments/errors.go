package payments

import (
	"github.com/fastprodman/groupbuy/internal/apperr"
	"github.com/google/uuid"
)

var (
	ErrInvalidPaymentMethod = apperr.Validation("payment method must be wallet or external")
	ErrGroupNameRequired    = apperr.Validation("group name is required")
	ErrEmailRequired        = apperr.Validation("payer email is required for gateway payments")
	ErrPrincipalRequired    = apperr.Validation("authenticated user is required")
	ErrReferenceRequired    = apperr.Validation("payment reference is required")
	ErrTopUpBelowMinimum    = apperr.Validation("top-up amount is below the minimum")

	ErrPaymentNotSuccessful = apperr.ExternalFinal("payment was not successful")
	ErrPaymentPending       = apperr.External("payment is still pending at the gateway")
	ErrReferenceMismatch    = apperr.Inconsistency("gateway verified a different reference")

	ErrAmountMismatch       = apperr.Conflict("verified amount is less than the amount due")
	ErrReferenceReserved    = apperr.Conflict("reference belongs to a pending group payment")
	ErrPaymentOwnerMismatch = apperr.Conflict("payment was made by a different customer")
	ErrSlotPriceChanged     = apperr.Inconsistency("group slot price differs from the payment snapshot")
)

func parseID(raw string, notFound error) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, notFound
	}

	return id, nil
}
