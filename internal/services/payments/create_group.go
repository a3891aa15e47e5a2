package payments

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fastprodman/groupbuy/internal/gateway"
	"github.com/fastprodman/groupbuy/internal/groupledger"
	"github.com/fastprodman/groupbuy/internal/infra/pgutils"
	"github.com/fastprodman/groupbuy/internal/repos/groups"
	"github.com/fastprodman/groupbuy/internal/repos/livestock"
	"github.com/fastprodman/groupbuy/internal/repos/pendingpayments"
	"github.com/google/uuid"
)

const flowCreateGroup = "create_group"

type CreateGroupRequest struct {
	LivestockID       string
	GroupName         string
	TotalSlot         int
	SlotTaken         int
	PaymentMethod     string
	ExternalReference string
}

// CreateGroup opens a group on an available livestock lot with the creator
// buying SlotTaken slots.
//
// 1) Validate slots, load the lot and price the slots.
// 2) Authorize the charge on the chosen rail.
// 3) External rail without a reference: store the intent, return a checkout.
// 4) Otherwise settle and insert the group in one transaction.
func (s *Service) CreateGroup(ctx context.Context, p Principal, req CreateGroupRequest) (out Outcome, err error) {
	rail, err := ParseRail(req.PaymentMethod)
	if err != nil {
		return Outcome{}, err
	}

	defer func() { s.record(ctx, flowCreateGroup, rail, out, err) }()

	if p.UserID == "" {
		return Outcome{}, ErrPrincipalRequired
	}

	name := strings.TrimSpace(req.GroupName)
	if name == "" {
		return Outcome{}, ErrGroupNameRequired
	}

	if req.TotalSlot <= 0 {
		return Outcome{}, groupledger.ErrInvalidTotalSlot
	}

	if req.TotalSlot > groupledger.MaxTotalSlot {
		return Outcome{}, groupledger.ErrTooManySlots
	}

	if req.SlotTaken <= 0 {
		return Outcome{}, groupledger.ErrInvalidSlotCount
	}

	if req.SlotTaken > req.TotalSlot {
		return Outcome{}, groupledger.ErrSlotTakenExceeds
	}

	lsID, err := parseID(req.LivestockID, livestock.ErrLivestockNotFound)
	if err != nil {
		return Outcome{}, err
	}

	lot, err := s.livestock.GetAvailable(ctx, lsID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load livestock: %w", err)
	}

	st, due, err := groupledger.Open(lot.Price, req.TotalSlot, req.SlotTaken)
	if err != nil {
		return Outcome{}, err
	}

	intent := pendingpayments.CreateGroupIntent{
		LivestockID: lot.ID,
		GroupName:   name,
		TotalSlot:   req.TotalSlot,
		SlotTaken:   req.SlotTaken,
		SlotPrice:   st.SlotPrice,
		AmountDue:   due,
	}

	c := &charge{
		payer:       p,
		amount:      due,
		description: fmt.Sprintf("%d slot(s) in new group %q", req.SlotTaken, name),
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

	var g groups.Group

	err = pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		g, err = s.insertGroup(tx, rs, *c, p, intent)
		return err
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("create group: %w", err)
	}

	return Outcome{
		Status:    StatusCompleted,
		Reference: g.PaymentReference,
		AmountDue: due,
		Group:     &g,
	}, nil
}

// insertGroup settles the creator's charge and inserts the group. The
// transaction record is written first; its group reference is checked at
// commit.
func (s *Service) insertGroup(
	tx *sql.Tx, rs settler, c charge, creator Principal, in pendingpayments.CreateGroupIntent,
) (groups.Group, error) {
	st, err := groupledger.FromSnapshot(in.TotalSlot, in.SlotTaken, in.SlotPrice)
	if err != nil {
		return groups.Group{}, err
	}

	c.groupID = uuid.New()
	c.amount = in.AmountDue

	rec, err := rs.settle(tx, c)
	if err != nil {
		return groups.Group{}, err
	}

	g, err := s.groups.Insert(tx, groups.Group{
		ID:               c.groupID,
		LivestockID:      in.LivestockID,
		Name:             in.GroupName,
		CreatedBy:        creator.UserID,
		PaymentMethod:    string(rs.rail()),
		PaymentReference: rec.Reference,
		State:            st,
	})
	if err != nil {
		return groups.Group{}, fmt.Errorf("insert group: %w", err)
	}

	return g, nil
}

// suspend stores the intent under the gateway reference so the action can
// be replayed once the payment is confirmed.
func (s *Service) suspend(ctx context.Context, p Principal, co gateway.Checkout, in pendingpayments.Intent) (Outcome, error) {
	err := s.pending.Put(ctx, pendingpayments.PendingPayment{
		Reference: co.Reference,
		UserID:    p.UserID,
		Email:     p.Email,
		Intent:    in,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("store pending payment: %w", err)
	}

	return Outcome{
		Status:    StatusPendingExternal,
		Reference: co.Reference,
		AmountDue: in.Due(),
		Checkout:  &co,
	}, nil
}
