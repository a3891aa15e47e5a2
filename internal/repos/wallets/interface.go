package wallets

import (
	"context"
	"database/sql"
	"time"

	"github.com/fastprodman/groupbuy/internal/apperr"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds = apperr.Conflict("insufficient wallet balance")
	ErrWalletNotFound    = apperr.NotFound("wallet not found")
)

type Wallet struct {
	ID        uuid.UUID
	UserID    string
	Balance   decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Wallets interface {
	Create(ctx context.Context, userID string) (Wallet, error)
	Get(ctx context.Context, userID string) (Wallet, error)
	LockForUpdate(tx *sql.Tx, userID string) (Wallet, error)
	IncreaseBalance(tx *sql.Tx, walletID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
	DecreaseBalance(tx *sql.Tx, walletID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error)
}
