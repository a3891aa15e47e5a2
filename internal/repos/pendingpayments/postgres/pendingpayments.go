package pendingpayments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/groupbuy/internal/infra/pgutils"
	"github.com/fastprodman/groupbuy/internal/repos/pendingpayments"
)

var _ pendingpayments.Store = (*pendingRepo)(nil)

type pendingRepo struct{ db *sql.DB }

func New(db *sql.DB) *pendingRepo {
	return &pendingRepo{db: db}
}

func (r *pendingRepo) Put(ctx context.Context, p pendingpayments.PendingPayment) error {
	action, meta, err := pendingpayments.EncodeIntent(p.Intent)
	if err != nil {
		return fmt.Errorf("encode intent: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pending_payments (reference, user_id, email, action_type, meta)
		VALUES ($1, $2, $3, $4, $5)
	`, p.Reference, p.UserID, p.Email, string(action), string(meta))
	if err != nil {
		if pgutils.IsUniqueViolation(err, "") {
			return pendingpayments.ErrDuplicateReference
		}

		return fmt.Errorf("insert pending payment: %w", err)
	}

	return nil
}

func (r *pendingRepo) Get(ctx context.Context, reference string) (pendingpayments.PendingPayment, error) {
	p, err := scanPending(r.db.QueryRowContext(ctx, selectPending+`WHERE reference = $1`, reference))
	if err != nil {
		return pendingpayments.PendingPayment{}, fmt.Errorf("get pending payment: %w", err)
	}

	return p, nil
}

// Claim locks the row so that concurrent completions of one reference
// apply it once; the loser sees ErrPendingPaymentNotFound after the
// winner's Remove commits.
func (r *pendingRepo) Claim(tx *sql.Tx, reference string) (pendingpayments.PendingPayment, error) {
	p, err := scanPending(tx.QueryRow(selectPending+`WHERE reference = $1 FOR UPDATE`, reference))
	if err != nil {
		return pendingpayments.PendingPayment{}, fmt.Errorf("claim pending payment: %w", err)
	}

	return p, nil
}

func (r *pendingRepo) Remove(tx *sql.Tx, reference string) error {
	res, err := tx.Exec(`DELETE FROM pending_payments WHERE reference = $1`, reference)
	if err != nil {
		return fmt.Errorf("delete pending payment: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return pendingpayments.ErrPendingPaymentNotFound
	}

	return nil
}

const selectPending = `
	SELECT reference, user_id, email, action_type, meta, created_at
	FROM pending_payments
	`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPending(row rowScanner) (pendingpayments.PendingPayment, error) {
	var (
		p      pendingpayments.PendingPayment
		action string
		meta   []byte
	)

	err := row.Scan(&p.Reference, &p.UserID, &p.Email, &action, &meta, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pendingpayments.PendingPayment{}, pendingpayments.ErrPendingPaymentNotFound
		}

		return pendingpayments.PendingPayment{}, err
	}

	p.Intent, err = pendingpayments.DecodeIntent(pendingpayments.ActionType(action), meta)
	if err != nil {
		return pendingpayments.PendingPayment{}, fmt.Errorf("reference %s: %w", p.Reference, err)
	}

	return p, nil
}
