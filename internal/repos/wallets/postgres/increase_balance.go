package wallets

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/groupbuy/internal/repos/wallets"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func (r *walletsRepo) IncreaseBalance(tx *sql.Tx, walletID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := tx.QueryRow(`
		UPDATE wallets
		SET balance = balance + $2, updated_at = now()
		WHERE id = $1
		RETURNING balance
	`, walletID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, wallets.ErrWalletNotFound
		}

		return decimal.Zero, fmt.Errorf("increase balance: %w", err)
	}

	return balance, nil
}
