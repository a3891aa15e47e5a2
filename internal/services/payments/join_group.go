package payments

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fastprodman/groupbuy/internal/groupledger"
	"github.com/fastprodman/groupbuy/internal/infra/pgutils"
	"github.com/fastprodman/groupbuy/internal/repos/groups"
	"github.com/fastprodman/groupbuy/internal/repos/pendingpayments"
)

const flowJoinGroup = "join_group"

type JoinGroupRequest struct {
	GroupID           string
	Slots             int
	PaymentMethod     string
	ExternalReference string
}

// JoinGroup buys Slots slots of an active group. All eligibility checks run
// before any payment is attempted and are repeated under the group row lock
// before the slots are taken.
func (s *Service) JoinGroup(ctx context.Context, p Principal, req JoinGroupRequest) (out Outcome, err error) {
	rail, err := ParseRail(req.PaymentMethod)
	if err != nil {
		return Outcome{}, err
	}

	defer func() { s.record(ctx, flowJoinGroup, rail, out, err) }()

	if p.UserID == "" {
		return Outcome{}, ErrPrincipalRequired
	}

	if req.Slots <= 0 {
		return Outcome{}, groupledger.ErrInvalidSlotCount
	}

	if req.Slots > groupledger.MaxTotalSlot {
		return Outcome{}, groupledger.ErrTooManySlots
	}

	gid, err := parseID(req.GroupID, groups.ErrGroupNotFound)
	if err != nil {
		return Outcome{}, err
	}

	g, err := s.groups.Get(ctx, gid)
	if err != nil {
		return Outcome{}, fmt.Errorf("load group: %w", err)
	}

	if g.Status != groupledger.StatusActive {
		return Outcome{}, groupledger.ErrGroupNotActive
	}

	member, err := s.groups.IsMember(ctx, g.ID, p.UserID)
	if err != nil {
		return Outcome{}, err
	}

	if member {
		return Outcome{}, groups.ErrAlreadyMember
	}

	_, due, err := g.Join(req.Slots)
	if err != nil {
		return Outcome{}, err
	}

	intent := pendingpayments.JoinGroupIntent{
		GroupID:   g.ID,
		GroupName: g.Name,
		Slots:     req.Slots,
		SlotPrice: g.SlotPrice,
		AmountDue: due,
	}

	c := &charge{
		payer:       p,
		amount:      due,
		description: fmt.Sprintf("%d slot(s) in group %q", req.Slots, g.Name),
		reference:   strings.TrimSpace(req.ExternalReference),
	}

	rs := s.settlerFor(rail)

	checkout, err := rs.authorize(ctx, c)
	if err != nil {
		return Outcome{}, err
	}

	if checkout != nil {
		return s.suspend(ctx, p, *checkout, intent)
	}

	var (
		joined groups.Group
		ref    string
	)

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		joined, ref, err = s.applyJoin(tx, rs, *c, intent)
		return err
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("join group: %w", err)
	}

	return Outcome{
		Status:    StatusCompleted,
		Reference: ref,
		AmountDue: due,
		Group:     &joined,
	}, nil
}

// applyJoin locks the group, re-validates the join against the locked row,
// settles the charge, and writes the new slot accounting and membership.
// It returns the updated group and the payment reference.
func (s *Service) applyJoin(
	tx *sql.Tx, rs settler, c charge, in pendingpayments.JoinGroupIntent,
) (groups.Group, string, error) {
	g, err := s.groups.LockForUpdate(tx, in.GroupID)
	if err != nil {
		return groups.Group{}, "", fmt.Errorf("lock group: %w", err)
	}

	if !g.SlotPrice.Equal(in.SlotPrice) {
		return groups.Group{}, "", fmt.Errorf("%w: group %s, snapshot %s", ErrSlotPriceChanged, g.SlotPrice, in.SlotPrice)
	}

	next, due, err := g.Join(in.Slots)
	if err != nil {
		return groups.Group{}, "", err
	}

	if !due.Equal(in.AmountDue) {
		return groups.Group{}, "", fmt.Errorf("%w: amount due %s, snapshot %s", groupledger.ErrInconsistentLedger, due, in.AmountDue)
	}

	c.groupID = g.ID
	c.amount = due

	rec, err := rs.settle(tx, c)
	if err != nil {
		return groups.Group{}, "", err
	}

	err = s.groups.UpdateSlots(tx, g.ID, next)
	if err != nil {
		return groups.Group{}, "", fmt.Errorf("update slots: %w", err)
	}

	_, err = s.groups.InsertMembership(tx, groups.Membership{
		GroupID:          g.ID,
		UserID:           c.payer.UserID,
		Slots:            in.Slots,
		PaymentReference: rec.Reference,
		Status:           groups.MembershipApproved,
	})
	if err != nil {
		return groups.Group{}, "", fmt.Errorf("insert membership: %w", err)
	}

	g.State = next

	return g, rec.Reference, nil
}
