package transactions

import (
	"context"
	"database/sql"
	"time"

	"github.com/fastprodman/groupbuy/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrDuplicatePayment means the payment reference was already applied.
	ErrDuplicatePayment = apperr.Conflict("payment reference already used")
	ErrInvalidRecord    = apperr.Inconsistency("transaction record violates ledger constraints")
)

type Type string

const (
	TypeDebit  Type = "debit"
	TypeCredit Type = "credit"
)

type Means string

const (
	MeansWallet   Means = "wallet"
	MeansExternal Means = "external"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Record is an immutable audit entry. WalletID is empty for payments that
// never touched a wallet; GroupID is empty for pure wallet movements.
type Record struct {
	ID          uuid.UUID
	Reference   string
	UserID      string
	WalletID    uuid.NullUUID
	Type        Type
	Means       Means
	Amount      decimal.Decimal
	Status      Status
	GroupID     uuid.NullUUID
	Description string
	CreatedAt   time.Time
}

type Transactions interface {
	Insert(tx *sql.Tx, rec Record) (Record, error)
	SucceededExists(ctx context.Context, reference string) (bool, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Record, error)
}
