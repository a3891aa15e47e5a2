package wallets

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/groupbuy/internal/repos/wallets"
)

func (r *walletsRepo) LockForUpdate(tx *sql.Tx, userID string) (wallets.Wallet, error) {
	w, err := scanWallet(tx.QueryRow(`
		SELECT `+walletColumns+`
		FROM wallets
		WHERE user_id = $1
		FOR UPDATE
	`, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return wallets.Wallet{}, wallets.ErrWalletNotFound
		}

		return wallets.Wallet{}, fmt.Errorf("lock wallet: %w", err)
	}

	return w, nil
}
