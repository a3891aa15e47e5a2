package payments

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fastprodman/groupbuy/internal/gateway"
	"github.com/fastprodman/groupbuy/internal/repos/transactions"
	"github.com/fastprodman/groupbuy/internal/repos/wallets"
	"github.com/fastprodman/groupbuy/internal/services/ledger"
	"github.com/shopspring/decimal"
)

const (
	flowStartTopUp    = "start_top_up"
	flowCompleteTopUp = "complete_top_up"
)

type TopUpResult struct {
	Record transactions.Record
	Wallet wallets.Wallet
}

// StartTopUp opens a gateway checkout to fund the principal's wallet. No
// state is stored; CompleteTopUp credits whatever the gateway confirms.
func (s *Service) StartTopUp(ctx context.Context, p Principal, amount decimal.Decimal) (out Outcome, err error) {
	defer func() { s.record(ctx, flowStartTopUp, RailExternal, out, err) }()

	if p.UserID == "" {
		return Outcome{}, ErrPrincipalRequired
	}

	if p.Email == "" {
		return Outcome{}, ErrEmailRequired
	}

	if amount.LessThan(s.topUpMin) || !amount.IsPositive() {
		return Outcome{}, fmt.Errorf("%w: minimum is %s", ErrTopUpBelowMinimum, s.topUpMin)
	}

	_, err = s.ledger.Balance(ctx, p.UserID)
	if err != nil {
		return Outcome{}, err
	}

	co, err := s.gateway.Initialize(ctx, p.Email, amount)
	if err != nil {
		return Outcome{}, fmt.Errorf("initialize top-up: %w", err)
	}

	return Outcome{
		Status:    StatusPendingExternal,
		Reference: co.Reference,
		AmountDue: amount,
		Checkout:  &co,
	}, nil
}

// CompleteTopUp credits the verified gateway amount to the principal's
// wallet. The amount comes from the gateway, never from the client, and a
// reference is credited at most once.
func (s *Service) CompleteTopUp(ctx context.Context, p Principal, reference string) (res TopUpResult, err error) {
	reference = strings.TrimSpace(reference)

	defer func() {
		out := Outcome{Status: StatusCompleted, Reference: reference}
		s.record(ctx, flowCompleteTopUp, RailExternal, out, err)
	}()

	if p.UserID == "" {
		return TopUpResult{}, ErrPrincipalRequired
	}

	if reference == "" {
		return TopUpResult{}, ErrReferenceRequired
	}

	release, err := s.locks.Acquire(ctx, "payment:"+reference)
	if err != nil {
		return TopUpResult{}, err
	}

	defer func() {
		rerr := release(context.WithoutCancel(ctx))
		if rerr != nil {
			slog.WarnContext(ctx, "release reference lock", "reference", reference, "error", rerr)
		}
	}()

	used, err := s.ledger.ReferenceUsed(ctx, reference)
	if err != nil {
		return TopUpResult{}, err
	}

	if used {
		return TopUpResult{}, transactions.ErrDuplicatePayment
	}

	err = s.checkUnreserved(ctx, reference)
	if err != nil {
		return TopUpResult{}, err
	}

	v, err := s.verify(ctx, reference)
	if err != nil {
		return TopUpResult{}, err
	}

	err = checkPayer(p, v)
	if err != nil {
		return TopUpResult{}, err
	}

	rec, err := s.ledger.Credit(ctx, ledger.Entry{
		UserID:      p.UserID,
		Amount:      v.Amount,
		Description: "wallet top-up",
		Reference:   reference,
		Means:       transactions.MeansExternal,
	})
	if err != nil {
		return TopUpResult{}, err
	}

	w, err := s.ledger.Balance(ctx, p.UserID)
	if err != nil {
		return TopUpResult{}, err
	}

	return TopUpResult{Record: rec, Wallet: w}, nil
}

// checkPayer rejects crediting someone else's payment when the gateway
// reports who paid.
func checkPayer(p Principal, v gateway.Verification) error {
	if v.Email == "" || p.Email == "" {
		return nil
	}

	if !strings.EqualFold(v.Email, p.Email) {
		return ErrPaymentOwnerMismatch
	}

	return nil
}
