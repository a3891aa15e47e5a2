package wallets

import (
	"context"
	"fmt"

	"github.com/fastprodman/groupbuy/internal/repos/wallets"
	"github.com/google/uuid"
)

// Create opens a zero-balance wallet for userID. An existing wallet is
// returned unchanged.
func (r *walletsRepo) Create(ctx context.Context, userID string) (wallets.Wallet, error) {
	w, err := scanWallet(r.db.QueryRowContext(ctx, `
		INSERT INTO wallets (id, user_id, balance)
		VALUES ($1, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING `+walletColumns,
		uuid.New(), userID))
	if err != nil {
		return wallets.Wallet{}, fmt.Errorf("create wallet: %w", err)
	}

	return w, nil
}
