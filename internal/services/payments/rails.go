package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fastprodman/groupbuy/internal/gateway"
	"github.com/fastprodman/groupbuy/internal/repos/pendingpayments"
	"github.com/fastprodman/groupbuy/internal/repos/transactions"
	"github.com/fastprodman/groupbuy/internal/services/ledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Rail is the path a payment settles through.
type Rail string

const (
	RailWallet   Rail = "wallet"
	RailExternal Rail = "external"
)

// ParseRail accepts "wallet" and "external"; "others" is an older name for
// the external rail.
func ParseRail(raw string) (Rail, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "wallet":
		return RailWallet, nil
	case "external", "others":
		return RailExternal, nil
	}

	return "", ErrInvalidPaymentMethod
}

// charge is one payment owed by the principal. verifiedAmount is set once
// the gateway confirmed the reference.
type charge struct {
	payer          Principal
	amount         decimal.Decimal
	description    string
	reference      string
	verifiedAmount decimal.Decimal
	groupID        uuid.UUID
}

// settler is one rail's way of taking a charge.
//
// authorize runs before the storage transaction. A non-nil checkout means
// the payer still has to pay off-platform and the flow suspends there.
// settle runs inside the transaction and writes the payment record.
type settler interface {
	rail() Rail
	authorize(ctx context.Context, c *charge) (*gateway.Checkout, error)
	settle(tx *sql.Tx, c charge) (transactions.Record, error)
}

func (s *Service) settlerFor(r Rail) settler {
	if r == RailWallet {
		return walletRail{ledger: s.ledger}
	}

	return gatewayRail{svc: s}
}

type walletRail struct {
	ledger *ledger.Service
}

func (walletRail) rail() Rail { return RailWallet }

func (walletRail) authorize(context.Context, *charge) (*gateway.Checkout, error) {
	return nil, nil
}

func (w walletRail) settle(tx *sql.Tx, c charge) (transactions.Record, error) {
	rec, err := w.ledger.DebitTx(tx, ledger.Entry{
		UserID:      c.payer.UserID,
		Amount:      c.amount,
		Description: c.description,
		GroupID:     uuid.NullUUID{UUID: c.groupID, Valid: c.groupID != uuid.Nil},
	})
	if err != nil {
		return transactions.Record{}, fmt.Errorf("wallet debit: %w", err)
	}

	return rec, nil
}

type gatewayRail struct {
	svc *Service
}

func (gatewayRail) rail() Rail { return RailExternal }

// authorize opens a checkout when no reference is given. A supplied
// reference must be unused, not reserved by a pending payment, paid by the
// payer and verified for at least the amount due.
func (g gatewayRail) authorize(ctx context.Context, c *charge) (*gateway.Checkout, error) {
	if c.reference == "" {
		if c.payer.Email == "" {
			return nil, ErrEmailRequired
		}

		co, err := g.svc.gateway.Initialize(ctx, c.payer.Email, c.amount)
		if err != nil {
			return nil, fmt.Errorf("initialize payment: %w", err)
		}

		return &co, nil
	}

	used, err := g.svc.ledger.ReferenceUsed(ctx, c.reference)
	if err != nil {
		return nil, err
	}

	if used {
		return nil, transactions.ErrDuplicatePayment
	}

	err = g.svc.checkUnreserved(ctx, c.reference)
	if err != nil {
		return nil, err
	}

	v, err := g.svc.verify(ctx, c.reference)
	if err != nil {
		return nil, err
	}

	err = checkPayer(c.payer, v)
	if err != nil {
		return nil, err
	}

	if v.Amount.LessThan(c.amount) {
		return nil, fmt.Errorf("%w: paid %s, due %s", ErrAmountMismatch, v.Amount, c.amount)
	}

	c.verifiedAmount = v.Amount

	return nil, nil
}

func (g gatewayRail) settle(tx *sql.Tx, c charge) (transactions.Record, error) {
	amount := c.verifiedAmount
	if !amount.IsPositive() {
		amount = c.amount
	}

	rec, err := g.svc.ledger.RecordExternal(tx, ledger.Entry{
		UserID:      c.payer.UserID,
		Amount:      amount,
		Description: c.description,
		GroupID:     uuid.NullUUID{UUID: c.groupID, Valid: c.groupID != uuid.Nil},
		Reference:   c.reference,
		Means:       transactions.MeansExternal,
	})
	if err != nil {
		return transactions.Record{}, fmt.Errorf("record gateway payment: %w", err)
	}

	return rec, nil
}

// verify asks the gateway for the final status of reference and accepts
// only a success for that same reference.
func (s *Service) verify(ctx context.Context, reference string) (gateway.Verification, error) {
	v, err := s.gateway.Verify(ctx, reference)
	if err != nil {
		return gateway.Verification{}, fmt.Errorf("verify payment: %w", err)
	}

	if v.Reference != "" && v.Reference != reference {
		return gateway.Verification{}, fmt.Errorf("%w: asked %s, got %s", ErrReferenceMismatch, reference, v.Reference)
	}

	switch v.Status {
	case gateway.StatusSuccess:
	case gateway.StatusPending:
		return gateway.Verification{}, ErrPaymentPending
	default:
		return gateway.Verification{}, ErrPaymentNotSuccessful
	}

	if !v.Amount.IsPositive() {
		return gateway.Verification{}, fmt.Errorf("%w: verified amount %s", ErrPaymentNotSuccessful, v.Amount)
	}

	return v, nil
}

// checkUnreserved fails when reference belongs to a payment still waiting
// to be applied by CompletePendingPayment.
func (s *Service) checkUnreserved(ctx context.Context, reference string) error {
	_, err := s.pending.Get(ctx, reference)
	switch {
	case err == nil:
		return ErrReferenceReserved
	case errors.Is(err, pendingpayments.ErrPendingPaymentNotFound):
		return nil
	}

	return err
}
