package groups

import (
	"database/sql"

	"github.com/fastprodman/groupbuy/internal/groupledger"
	"github.com/fastprodman/groupbuy/internal/repos/groups"
)

var _ groups.Groups = (*groupsRepo)(nil)

const (
	groupReferenceConstraint      = "buying_groups_payment_reference_key"
	membershipUserConstraint      = "group_memberships_group_user_key"
	membershipReferenceConstraint = "group_memberships_payment_reference_key"
)

const groupColumns = `
	id, livestock_id, name, created_by, total_slot, slot_taken, total_slot_left,
	slot_price, total_slot_price, payment_method, payment_reference, status,
	created_at, updated_at`

type groupsRepo struct{ db *sql.DB }

func New(db *sql.DB) *groupsRepo {
	return &groupsRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (groups.Group, error) {
	var (
		g      groups.Group
		status string
	)

	err := row.Scan(&g.ID, &g.LivestockID, &g.Name, &g.CreatedBy, &g.TotalSlot, &g.SlotTaken,
		&g.TotalSlotLeft, &g.SlotPrice, &g.TotalSlotPrice, &g.PaymentMethod, &g.PaymentReference,
		&status, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return groups.Group{}, err
	}

	g.Status = groupledger.Status(status)

	return g, nil
}
