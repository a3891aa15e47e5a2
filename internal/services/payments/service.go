// Package payments reconciles gateway payments, wallet movements and group
// slot accounting. Every flow either completes inside one storage
// transaction or, on the external rail without a reference, suspends as a
// pending payment that CompletePendingPayment later replays.
//
// Gateway calls never run inside a storage transaction.
package payments

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/fastprodman/groupbuy/internal/apperr"
	"github.com/fastprodman/groupbuy/internal/gateway"
	"github.com/fastprodman/groupbuy/internal/infra/metrics"
	"github.com/fastprodman/groupbuy/internal/infra/reflock"
	"github.com/fastprodman/groupbuy/internal/repos/groups"
	pggroups "github.com/fastprodman/groupbuy/internal/repos/groups/postgres"
	"github.com/fastprodman/groupbuy/internal/repos/livestock"
	pglivestock "github.com/fastprodman/groupbuy/internal/repos/livestock/postgres"
	"github.com/fastprodman/groupbuy/internal/repos/pendingpayments"
	pgpending "github.com/fastprodman/groupbuy/internal/repos/pendingpayments/postgres"
	"github.com/fastprodman/groupbuy/internal/repos/transactions"
	"github.com/fastprodman/groupbuy/internal/repos/wallets"
	"github.com/fastprodman/groupbuy/internal/services/ledger"
	"github.com/shopspring/decimal"
)

// Principal is the already-authenticated actor.
type Principal struct {
	UserID string
	Email  string
}

type FlowStatus string

const (
	StatusCompleted       FlowStatus = "completed"
	StatusPendingExternal FlowStatus = "pending_external"
)

// Outcome is the result of a money-moving flow. Checkout is set only for
// StatusPendingExternal; Group only once the group change is applied.
type Outcome struct {
	Status    FlowStatus
	Reference string
	AmountDue decimal.Decimal
	Group     *groups.Group
	Checkout  *gateway.Checkout
}

type Options struct {
	Locks          reflock.Locker
	Metrics        *metrics.Recorder
	TopUpMinAmount decimal.Decimal
}

type Service struct {
	db        *sql.DB
	ledger    *ledger.Service
	groups    groups.Groups
	livestock livestock.Catalog
	pending   pendingpayments.Store
	gateway   gateway.Gateway
	locks     reflock.Locker
	metrics   *metrics.Recorder
	topUpMin  decimal.Decimal
}

func New(dbx *sql.DB, gw gateway.Gateway, opts Options) *Service {
	locks := opts.Locks
	if locks == nil {
		locks = reflock.Noop{}
	}

	return &Service{
		db:        dbx,
		ledger:    ledger.New(dbx),
		groups:    pggroups.New(dbx),
		livestock: pglivestock.New(dbx),
		pending:   pgpending.New(dbx),
		gateway:   gw,
		locks:     locks,
		metrics:   opts.Metrics,
		topUpMin:  opts.TopUpMinAmount,
	}
}

// OpenWallet returns the principal's wallet, creating it on first use.
func (s *Service) OpenWallet(ctx context.Context, p Principal) (wallets.Wallet, error) {
	if p.UserID == "" {
		return wallets.Wallet{}, ErrPrincipalRequired
	}

	return s.ledger.Open(ctx, p.UserID)
}

func (s *Service) Wallet(ctx context.Context, p Principal) (wallets.Wallet, error) {
	if p.UserID == "" {
		return wallets.Wallet{}, ErrPrincipalRequired
	}

	return s.ledger.Balance(ctx, p.UserID)
}

// History lists the principal's transactions, newest first.
func (s *Service) History(ctx context.Context, p Principal, limit int) ([]transactions.Record, error) {
	if p.UserID == "" {
		return nil, ErrPrincipalRequired
	}

	return s.ledger.History(ctx, p.UserID, limit)
}

// Livestock lists lots that groups can be opened on.
func (s *Service) Livestock(ctx context.Context) ([]livestock.Livestock, error) {
	return s.livestock.ListAvailable(ctx)
}

// Group returns a group with its memberships.
func (s *Service) Group(ctx context.Context, id string) (groups.Group, []groups.Membership, error) {
	gid, err := parseID(id, groups.ErrGroupNotFound)
	if err != nil {
		return groups.Group{}, nil, err
	}

	g, err := s.groups.Get(ctx, gid)
	if err != nil {
		return groups.Group{}, nil, err
	}

	members, err := s.groups.ListMemberships(ctx, gid)
	if err != nil {
		return groups.Group{}, nil, err
	}

	return g, members, nil
}

// record counts the flow and logs its outcome.
func (s *Service) record(ctx context.Context, flow string, rail Rail, out Outcome, err error) {
	outcome := string(out.Status)
	if err != nil {
		outcome = outcomeOf(err)
	}

	s.metrics.Flow(flow, string(rail), outcome)

	attrs := []any{"flow", flow, "rail", string(rail), "reference", out.Reference, "outcome", outcome}
	if out.Group != nil {
		attrs = append(attrs, "group_id", out.Group.ID.String())
	}

	switch apperr.KindOf(err) {
	case "":
		if err != nil {
			slog.ErrorContext(ctx, "payment flow failed", append(attrs, "error", err)...)
			return
		}

		slog.InfoContext(ctx, "payment flow finished", attrs...)
	case apperr.KindInconsistency:
		slog.ErrorContext(ctx, "payment flow aborted on inconsistent state", append(attrs, "error", err)...)
	case apperr.KindExternal:
		slog.WarnContext(ctx, "payment flow hit gateway failure", append(attrs, "error", err)...)
	default:
		slog.InfoContext(ctx, "payment flow rejected", append(attrs, "error", err)...)
	}
}

func outcomeOf(err error) string {
	kind := apperr.KindOf(err)
	if kind == "" {
		return "error"
	}

	return string(kind)
}
