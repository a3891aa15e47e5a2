// Package groupledger holds the slot accounting rules for a buying group.
//
// A group sells TotalSlot equal slots of one livestock lot. SlotPrice is the
// ceiling of price/TotalSlot, so the last buyer never gets a fractional share.
// TotalSlotLeft and TotalSlotPrice are always derived together from SlotTaken;
// a group completes exactly when no slots are left and never reopens.
//
// The package does no I/O.
package groupledger

import (
	"fmt"

	"github.com/fastprodman/groupbuy/internal/apperr"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// MaxTotalSlot bounds how finely one lot can be split.
const MaxTotalSlot = 100_000

var (
	ErrInvalidTotalSlot   = apperr.Validation("total slot must be positive")
	ErrTooManySlots       = apperr.Validation("slot count exceeds the maximum of 100000")
	ErrInvalidSlotCount   = apperr.Validation("slot count must be positive")
	ErrSlotTakenExceeds   = apperr.Validation("slot taken cannot exceed total slots")
	ErrInvalidSlotPrice   = apperr.Validation("invalid slot price")
	ErrGroupNotActive     = apperr.Conflict("group is not active")
	ErrSlotsExceedLeft    = apperr.Conflict("requested slots exceed available slots")
	ErrInconsistentLedger = apperr.Inconsistency("group slot accounting is inconsistent")
)

// State is the accounting view of a group.
type State struct {
	TotalSlot      int
	SlotTaken      int
	TotalSlotLeft  int
	SlotPrice      decimal.Decimal
	TotalSlotPrice decimal.Decimal
	Status         Status
}

// SlotPrice returns ceil(price / totalSlot).
func SlotPrice(price decimal.Decimal, totalSlot int) (decimal.Decimal, error) {
	if totalSlot <= 0 {
		return decimal.Zero, ErrInvalidTotalSlot
	}

	slotPrice := price.Div(decimal.NewFromInt(int64(totalSlot))).Ceil()
	if !slotPrice.IsPositive() {
		return decimal.Zero, ErrInvalidSlotPrice
	}

	return slotPrice, nil
}

// Open computes the initial state of a group whose creator takes slotTaken
// slots, and the amount the creator owes for them.
func Open(price decimal.Decimal, totalSlot, slotTaken int) (State, decimal.Decimal, error) {
	if totalSlot <= 0 {
		return State{}, decimal.Zero, ErrInvalidTotalSlot
	}

	if totalSlot > MaxTotalSlot {
		return State{}, decimal.Zero, ErrTooManySlots
	}

	if slotTaken <= 0 {
		return State{}, decimal.Zero, ErrInvalidSlotCount
	}

	if slotTaken > totalSlot {
		return State{}, decimal.Zero, ErrSlotTakenExceeds
	}

	slotPrice, err := SlotPrice(price, totalSlot)
	if err != nil {
		return State{}, decimal.Zero, err
	}

	st, err := FromSnapshot(totalSlot, slotTaken, slotPrice)
	if err != nil {
		return State{}, decimal.Zero, err
	}

	return st, AmountDue(slotPrice, slotTaken), nil
}

// FromSnapshot rebuilds a state from the values captured at payment
// initialization. It is used when replaying a suspended group creation.
func FromSnapshot(totalSlot, slotTaken int, slotPrice decimal.Decimal) (State, error) {
	left := totalSlot - slotTaken

	st := State{
		TotalSlot:      totalSlot,
		SlotTaken:      slotTaken,
		TotalSlotLeft:  left,
		SlotPrice:      slotPrice,
		TotalSlotPrice: slotPrice.Mul(decimal.NewFromInt(int64(left))),
		Status:         statusFor(left),
	}

	err := st.Check()
	if err != nil {
		return State{}, err
	}

	return st, nil
}

// AmountDue is the price of the given number of slots.
func AmountDue(slotPrice decimal.Decimal, slots int) decimal.Decimal {
	return slotPrice.Mul(decimal.NewFromInt(int64(slots)))
}

// CanJoin reports whether slots can be bought from the group right now.
func (s State) CanJoin(slots int) error {
	if s.Status != StatusActive {
		return ErrGroupNotActive
	}

	if slots <= 0 {
		return ErrInvalidSlotCount
	}

	if slots > MaxTotalSlot {
		return ErrTooManySlots
	}

	if slots > s.TotalSlotLeft {
		return ErrSlotsExceedLeft
	}

	return nil
}

// Join returns the state after slots are bought and the amount owed for them.
func (s State) Join(slots int) (State, decimal.Decimal, error) {
	err := s.Check()
	if err != nil {
		return State{}, decimal.Zero, err
	}

	err = s.CanJoin(slots)
	if err != nil {
		return State{}, decimal.Zero, err
	}

	due := AmountDue(s.SlotPrice, slots)

	next := s
	next.SlotTaken = s.SlotTaken + slots
	next.TotalSlotLeft = s.TotalSlot - next.SlotTaken
	next.TotalSlotPrice = s.TotalSlotPrice.Sub(due)
	next.Status = statusFor(next.TotalSlotLeft)

	err = next.Check()
	if err != nil {
		return State{}, decimal.Zero, err
	}

	return next, due, nil
}

// Check verifies the accounting invariants.
func (s State) Check() error {
	switch {
	case s.TotalSlot <= 0:
		return fmt.Errorf("%w: total slot %d", ErrInconsistentLedger, s.TotalSlot)
	case s.SlotTaken < 0 || s.SlotTaken > s.TotalSlot:
		return fmt.Errorf("%w: slot taken %d of %d", ErrInconsistentLedger, s.SlotTaken, s.TotalSlot)
	case s.SlotTaken+s.TotalSlotLeft != s.TotalSlot:
		return fmt.Errorf("%w: taken %d + left %d != total %d",
			ErrInconsistentLedger, s.SlotTaken, s.TotalSlotLeft, s.TotalSlot)
	case !s.SlotPrice.IsPositive():
		return fmt.Errorf("%w: slot price %s", ErrInconsistentLedger, s.SlotPrice)
	case !s.SlotPrice.Mul(decimal.NewFromInt(int64(s.TotalSlotLeft))).Equal(s.TotalSlotPrice):
		return fmt.Errorf("%w: remaining value %s != %s x %d",
			ErrInconsistentLedger, s.TotalSlotPrice, s.SlotPrice, s.TotalSlotLeft)
	case s.TotalSlotLeft == 0 && s.Status != StatusCompleted && s.Status != StatusCancelled:
		return fmt.Errorf("%w: no slots left but status %q", ErrInconsistentLedger, s.Status)
	case s.TotalSlotLeft > 0 && s.Status == StatusCompleted:
		return fmt.Errorf("%w: completed with %d slots left", ErrInconsistentLedger, s.TotalSlotLeft)
	}

	return nil
}

func statusFor(left int) Status {
	if left == 0 {
		return StatusCompleted
	}

	return StatusActive
}
