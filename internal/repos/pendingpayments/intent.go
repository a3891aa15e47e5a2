package pendingpayments

import (
	"encoding/json"
	"fmt"

	"github.com/fastprodman/groupbuy/internal/groupledger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ActionType string

const (
	ActionCreateGroup ActionType = "CREATE_GROUP"
	ActionJoinGroup   ActionType = "JOIN_GROUP"
)

// Intent is what to do once the payment lands. It is one of
// CreateGroupIntent or JoinGroupIntent.
type Intent interface {
	ActionType() ActionType
	// Due is the amount the payer was asked for.
	Due() decimal.Decimal
	Validate() error
}

// CreateGroupIntent snapshots the group terms at payment initialization.
type CreateGroupIntent struct {
	LivestockID uuid.UUID       `json:"livestock_id"`
	GroupName   string          `json:"group_name"`
	TotalSlot   int             `json:"total_slot"`
	SlotTaken   int             `json:"slot_taken"`
	SlotPrice   decimal.Decimal `json:"slot_price"`
	AmountDue   decimal.Decimal `json:"amount_due"`
}

func (CreateGroupIntent) ActionType() ActionType { return ActionCreateGroup }

func (i CreateGroupIntent) Due() decimal.Decimal { return i.AmountDue }

func (i CreateGroupIntent) Validate() error {
	switch {
	case i.LivestockID == uuid.Nil:
		return fmt.Errorf("%w: missing livestock id", ErrCorruptIntent)
	case i.TotalSlot <= 0 || i.SlotTaken <= 0 || i.SlotTaken > i.TotalSlot:
		return fmt.Errorf("%w: slot taken %d of %d", ErrCorruptIntent, i.SlotTaken, i.TotalSlot)
	case !i.SlotPrice.IsPositive():
		return fmt.Errorf("%w: slot price %s", ErrCorruptIntent, i.SlotPrice)
	case !i.AmountDue.Equal(groupledger.AmountDue(i.SlotPrice, i.SlotTaken)):
		return fmt.Errorf("%w: amount due %s does not match %d slots at %s",
			ErrCorruptIntent, i.AmountDue, i.SlotTaken, i.SlotPrice)
	}

	return nil
}

// JoinGroupIntent snapshots the join terms. SlotPrice is rechecked against
// the locked group on replay.
type JoinGroupIntent struct {
	GroupID   uuid.UUID       `json:"group_id"`
	GroupName string          `json:"group_name"`
	Slots     int             `json:"slots"`
	SlotPrice decimal.Decimal `json:"slot_price"`
	AmountDue decimal.Decimal `json:"amount_due"`
}

func (JoinGroupIntent) ActionType() ActionType { return ActionJoinGroup }

func (i JoinGroupIntent) Due() decimal.Decimal { return i.AmountDue }

func (i JoinGroupIntent) Validate() error {
	switch {
	case i.GroupID == uuid.Nil:
		return fmt.Errorf("%w: missing group id", ErrCorruptIntent)
	case i.Slots <= 0:
		return fmt.Errorf("%w: slots %d", ErrCorruptIntent, i.Slots)
	case !i.SlotPrice.IsPositive():
		return fmt.Errorf("%w: slot price %s", ErrCorruptIntent, i.SlotPrice)
	case !i.AmountDue.Equal(groupledger.AmountDue(i.SlotPrice, i.Slots)):
		return fmt.Errorf("%w: amount due %s does not match %d slots at %s",
			ErrCorruptIntent, i.AmountDue, i.Slots, i.SlotPrice)
	}

	return nil
}

// EncodeIntent validates in and returns its discriminator and JSON body.
func EncodeIntent(in Intent) (ActionType, []byte, error) {
	if in == nil {
		return "", nil, fmt.Errorf("%w: nil intent", ErrCorruptIntent)
	}

	err := in.Validate()
	if err != nil {
		return "", nil, err
	}

	raw, err := json.Marshal(in)
	if err != nil {
		return "", nil, fmt.Errorf("marshal intent: %w", err)
	}

	return in.ActionType(), raw, nil
}

// DecodeIntent is the inverse of EncodeIntent. Unknown action types and
// payloads that fail validation are reported as ErrCorruptIntent.
func DecodeIntent(action ActionType, raw []byte) (Intent, error) {
	var (
		in  Intent
		err error
	)

	switch action {
	case ActionCreateGroup:
		var c CreateGroupIntent
		err = json.Unmarshal(raw, &c)
		in = c
	case ActionJoinGroup:
		var j JoinGroupIntent
		err = json.Unmarshal(raw, &j)
		in = j
	default:
		return nil, fmt.Errorf("%w: unknown action type %q", ErrCorruptIntent, action)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIntent, err)
	}

	err = in.Validate()
	if err != nil {
		return nil, err
	}

	return in, nil
}
