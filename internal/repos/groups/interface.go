package groups

import (
	"context"
	"database/sql"
	"time"

	"github.com/fastprodman/groupbuy/internal/apperr"
	"github.com/fastprodman/groupbuy/internal/groupledger"
	"github.com/google/uuid"
)

var (
	ErrGroupNotFound      = apperr.NotFound("group not found")
	ErrAlreadyMember      = apperr.Conflict("user is already a member of this group")
	ErrDuplicateReference = apperr.Conflict("payment reference already used")
	ErrInvalidGroupState  = apperr.Inconsistency("group row violates slot accounting constraints")
	ErrInvalidMembership  = apperr.Inconsistency("membership row violates constraints")
)

type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "pending"
	MembershipApproved MembershipStatus = "approved"
)

// Group is a pooled purchase of one livestock lot. The embedded ledger
// state is the only part that changes after creation.
type Group struct {
	ID               uuid.UUID
	LivestockID      uuid.UUID
	Name             string
	CreatedBy        string
	PaymentMethod    string
	PaymentReference string
	CreatedAt        time.Time
	UpdatedAt        time.Time

	groupledger.State
}

type Membership struct {
	ID               uuid.UUID
	GroupID          uuid.UUID
	UserID           string
	Slots            int
	PaymentReference string
	Status           MembershipStatus
	JoinedAt         time.Time
}

type Groups interface {
	Insert(tx *sql.Tx, g Group) (Group, error)
	Get(ctx context.Context, id uuid.UUID) (Group, error)
	LockForUpdate(tx *sql.Tx, id uuid.UUID) (Group, error)
	UpdateSlots(tx *sql.Tx, id uuid.UUID, st groupledger.State) error
	IsMember(ctx context.Context, groupID uuid.UUID, userID string) (bool, error)
	InsertMembership(tx *sql.Tx, m Membership) (Membership, error)
	ListMemberships(ctx context.Context, groupID uuid.UUID) ([]Membership, error)
}
