package groups

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/groupbuy/internal/infra/pgutils"
	"github.com/fastprodman/groupbuy/internal/repos/groups"
	"github.com/google/uuid"
)

func (r *groupsRepo) IsMember(ctx context.Context, groupID uuid.UUID, userID string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM group_memberships WHERE group_id = $1 AND user_id = $2)
	`, groupID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}

	return exists, nil
}

// InsertMembership relies on the (group_id, user_id) unique key to reject
// repeat joins, including ones racing past IsMember.
func (r *groupsRepo) InsertMembership(tx *sql.Tx, m groups.Membership) (groups.Membership, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}

	err := tx.QueryRow(`
		INSERT INTO group_memberships (id, group_id, user_id, slots, payment_reference, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING joined_at
	`, m.ID, m.GroupID, m.UserID, m.Slots, m.PaymentReference, string(m.Status)).Scan(&m.JoinedAt)
	if err != nil {
		switch {
		case pgutils.IsUniqueViolation(err, membershipUserConstraint):
			return groups.Membership{}, groups.ErrAlreadyMember
		case pgutils.IsUniqueViolation(err, membershipReferenceConstraint):
			return groups.Membership{}, groups.ErrDuplicateReference
		case pgutils.IsCheckViolation(err):
			return groups.Membership{}, fmt.Errorf("%w: %v", groups.ErrInvalidMembership, err)
		}

		return groups.Membership{}, fmt.Errorf("insert membership: %w", err)
	}

	return m, nil
}

func (r *groupsRepo) ListMemberships(ctx context.Context, groupID uuid.UUID) ([]groups.Membership, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, group_id, user_id, slots, payment_reference, status, joined_at
		FROM group_memberships
		WHERE group_id = $1
		ORDER BY joined_at, id
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var out []groups.Membership

	for rows.Next() {
		var (
			m      groups.Membership
			status string
		)

		err = rows.Scan(&m.ID, &m.GroupID, &m.UserID, &m.Slots, &m.PaymentReference, &status, &m.JoinedAt)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}

		m.Status = groups.MembershipStatus(status)
		out = append(out, m)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}

	return out, nil
}
