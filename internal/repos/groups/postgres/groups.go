package groups

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fastprodman/groupbuy/internal/groupledger"
	"github.com/fastprodman/groupbuy/internal/infra/pgutils"
	"github.com/fastprodman/groupbuy/internal/repos/groups"
	"github.com/google/uuid"
)

func (r *groupsRepo) Insert(tx *sql.Tx, g groups.Group) (groups.Group, error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}

	out, err := scanGroup(tx.QueryRow(`
		INSERT INTO buying_groups (
			id, livestock_id, name, created_by, total_slot, slot_taken, total_slot_left,
			slot_price, total_slot_price, payment_method, payment_reference, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+groupColumns,
		g.ID, g.LivestockID, g.Name, g.CreatedBy, g.TotalSlot, g.SlotTaken, g.TotalSlotLeft,
		g.SlotPrice, g.TotalSlotPrice, g.PaymentMethod, g.PaymentReference, string(g.Status),
	))
	if err != nil {
		switch {
		case pgutils.IsUniqueViolation(err, groupReferenceConstraint):
			return groups.Group{}, groups.ErrDuplicateReference
		case pgutils.IsCheckViolation(err):
			return groups.Group{}, fmt.Errorf("%w: %v", groups.ErrInvalidGroupState, err)
		}

		return groups.Group{}, fmt.Errorf("insert group: %w", err)
	}

	return out, nil
}

func (r *groupsRepo) Get(ctx context.Context, id uuid.UUID) (groups.Group, error) {
	g, err := scanGroup(r.db.QueryRowContext(ctx, `
		SELECT `+groupColumns+`
		FROM buying_groups
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return groups.Group{}, groups.ErrGroupNotFound
		}

		return groups.Group{}, fmt.Errorf("get group: %w", err)
	}

	return g, nil
}

// LockForUpdate serializes slot accounting per group: a second caller
// blocks until the holder's transaction ends.
func (r *groupsRepo) LockForUpdate(tx *sql.Tx, id uuid.UUID) (groups.Group, error) {
	g, err := scanGroup(tx.QueryRow(`
		SELECT `+groupColumns+`
		FROM buying_groups
		WHERE id = $1
		FOR UPDATE
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return groups.Group{}, groups.ErrGroupNotFound
		}

		return groups.Group{}, fmt.Errorf("lock group: %w", err)
	}

	return g, nil
}

// UpdateSlots writes the derived slot fields together.
func (r *groupsRepo) UpdateSlots(tx *sql.Tx, id uuid.UUID, st groupledger.State) error {
	res, err := tx.Exec(`
		UPDATE buying_groups
		SET slot_taken = $2,
		    total_slot_left = $3,
		    total_slot_price = $4,
		    status = $5,
		    updated_at = now()
		WHERE id = $1
	`, id, st.SlotTaken, st.TotalSlotLeft, st.TotalSlotPrice, string(st.Status))
	if err != nil {
		if pgutils.IsCheckViolation(err) {
			return fmt.Errorf("%w: %v", groups.ErrInvalidGroupState, err)
		}

		return fmt.Errorf("update group slots: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		return groups.ErrGroupNotFound
	}

	return nil
}
