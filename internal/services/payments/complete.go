package payments

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fastprodman/groupbuy/internal/apperr"
	"github.com/fastprodman/groupbuy/internal/infra/pgutils"
	"github.com/fastprodman/groupbuy/internal/repos/groups"
	"github.com/fastprodman/groupbuy/internal/repos/pendingpayments"
)

const flowCompletePayment = "complete_payment"

// CompletePendingPayment applies the intent stored under reference once the
// gateway confirms the payment. It is safe to call repeatedly: after the
// first success the pending row is gone and later calls fail with
// ErrPendingPaymentNotFound.
//
// 1) Look up the intent; absent means already consumed or never created.
// 2) Verify with the gateway, outside any transaction.
// 3) In one transaction: claim the pending row, replay the intent with
//    means=external, delete the pending row as the last statement.
func (s *Service) CompletePendingPayment(ctx context.Context, reference string) (out Outcome, err error) {
	defer func() { s.record(ctx, flowCompletePayment, RailExternal, out, err) }()

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Outcome{}, ErrReferenceRequired
	}

	release, err := s.locks.Acquire(ctx, "payment:"+reference)
	if err != nil {
		return Outcome{}, err
	}

	defer func() {
		rerr := release(context.WithoutCancel(ctx))
		if rerr != nil {
			slog.WarnContext(ctx, "release reference lock", "reference", reference, "error", rerr)
		}
	}()

	pp, err := s.pending.Get(ctx, reference)
	if err != nil {
		return Outcome{}, fmt.Errorf("load pending payment: %w", err)
	}

	v, err := s.verify(ctx, reference)
	if err != nil {
		return Outcome{}, err
	}

	due := pp.Intent.Due()
	if v.Amount.LessThan(due) {
		return Outcome{}, fmt.Errorf("%w: paid %s, due %s", ErrAmountMismatch, v.Amount, due)
	}

	c := charge{
		payer:          Principal{UserID: pp.UserID, Email: pp.Email},
		amount:         due,
		reference:      reference,
		verifiedAmount: v.Amount,
	}

	rs := s.settlerFor(RailExternal)

	var g groups.Group

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		claimed, err := s.pending.Claim(tx, reference)
		if err != nil {
			return err
		}

		action := pendingpayments.ActionType("unknown")

		switch in := claimed.Intent.(type) {
		case pendingpayments.CreateGroupIntent:
			action = in.ActionType()
			c.description = fmt.Sprintf("%d slot(s) in new group %q", in.SlotTaken, in.GroupName)
			g, err = s.insertGroup(tx, rs, c, c.payer, in)
		case pendingpayments.JoinGroupIntent:
			action = in.ActionType()
			c.description = fmt.Sprintf("%d slot(s) in group %q", in.Slots, in.GroupName)
			g, _, err = s.applyJoin(tx, rs, c, in)
		default:
			err = fmt.Errorf("%w: unexpected intent %T", pendingpayments.ErrCorruptIntent, in)
		}

		if err != nil {
			return fmt.Errorf("replay %s: %w", action, err)
		}

		return s.pending.Remove(tx, reference)
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindConflict {
			slog.ErrorContext(ctx, "captured payment could not be applied, kept for manual resolution",
				"reference", reference, "user_id", pp.UserID, "amount", v.Amount.String(), "error", err)
		}

		return Outcome{}, fmt.Errorf("complete payment %s: %w", reference, err)
	}

	return Outcome{
		Status:    StatusCompleted,
		Reference: reference,
		AmountDue: due,
		Group:     &g,
	}, nil
}
