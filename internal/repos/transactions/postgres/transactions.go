package transactions

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/groupbuy/internal/infra/pgutils"
	"github.com/fastprodman/groupbuy/internal/repos/transactions"
	"github.com/google/uuid"
)

var _ transactions.Transactions = (*transactionsRepo)(nil)

const referenceConstraint = "transactions_payment_reference_key"

type transactionsRepo struct{ db *sql.DB }

func New(db *sql.DB) *transactionsRepo {
	return &transactionsRepo{db: db}
}

// Insert writes rec and returns it with its id and creation time. A reused
// payment reference yields ErrDuplicatePayment.
func (r *transactionsRepo) Insert(tx *sql.Tx, rec transactions.Record) (transactions.Record, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}

	err := tx.QueryRow(`
		INSERT INTO transactions (
			id, payment_reference, user_id, wallet_id, type, means,
			amount, status, group_id, description
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`, rec.ID, rec.Reference, rec.UserID, rec.WalletID, rec.Type, rec.Means,
		rec.Amount, rec.Status, rec.GroupID, rec.Description,
	).Scan(&rec.CreatedAt)
	if err != nil {
		switch {
		case pgutils.IsUniqueViolation(err, referenceConstraint):
			return transactions.Record{}, transactions.ErrDuplicatePayment
		case pgutils.IsCheckViolation(err):
			return transactions.Record{}, fmt.Errorf("%w: %v", transactions.ErrInvalidRecord, err)
		}

		return transactions.Record{}, fmt.Errorf("insert transaction: %w", err)
	}

	return rec, nil
}

func (r *transactionsRepo) SucceededExists(ctx context.Context, reference string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM transactions
			WHERE payment_reference = $1 AND status = $2
		)
	`, reference, transactions.StatusSuccess).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check transaction exists: %w", err)
	}

	return exists, nil
}

// ListByUser returns the user's records, newest first.
func (r *transactionsRepo) ListByUser(ctx context.Context, userID string, limit int) ([]transactions.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, payment_reference, user_id, wallet_id, type, means,
		       amount, status, group_id, description, created_at
		FROM transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]transactions.Record, 0, limit)

	for rows.Next() {
		var rec transactions.Record

		err = rows.Scan(&rec.ID, &rec.Reference, &rec.UserID, &rec.WalletID, &rec.Type, &rec.Means,
			&rec.Amount, &rec.Status, &rec.GroupID, &rec.Description, &rec.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}

		out = append(out, rec)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}

	return out, nil
}
