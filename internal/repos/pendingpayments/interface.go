package pendingpayments

import (
	"context"
	"database/sql"
	"time"

	"github.com/fastprodman/groupbuy/internal/apperr"
)

var (
	ErrPendingPaymentNotFound = apperr.NotFound("pending payment not found")
	ErrDuplicateReference     = apperr.Conflict("pending payment already exists for this reference")
	ErrCorruptIntent          = apperr.Inconsistency("pending payment metadata is corrupt")
)

// PendingPayment is an action waiting for the gateway to confirm its payment.
type PendingPayment struct {
	Reference string
	UserID    string
	Email     string
	Intent    Intent
	CreatedAt time.Time
}

// Store is keyed by payment reference. Claim and Remove run inside the
// transaction that replays the intent.
type Store interface {
	Put(ctx context.Context, p PendingPayment) error
	Get(ctx context.Context, reference string) (PendingPayment, error)
	Claim(tx *sql.Tx, reference string) (PendingPayment, error)
	Remove(tx *sql.Tx, reference string) error
}
