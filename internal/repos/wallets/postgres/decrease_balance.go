package wallets

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/groupbuy/internal/repos/wallets"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DecreaseBalance never takes a balance below zero: when the wallet holds
// less than amount nothing is updated and ErrInsufficientFunds is returned.
func (r *walletsRepo) DecreaseBalance(tx *sql.Tx, walletID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal

	err := tx.QueryRow(`
		UPDATE wallets
		SET balance = balance - $2, updated_at = now()
		WHERE id = $1
		  AND balance >= $2
		RETURNING balance
	`, walletID, amount).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, wallets.ErrInsufficientFunds
		}

		return decimal.Zero, fmt.Errorf("decrease balance: %w", err)
	}

	return balance, nil
}
