package api

import (
	"net/http"
	"time"

	"github.com/fastprodman/groupbuy/internal/repos/groups"
	"github.com/fastprodman/groupbuy/internal/repos/livestock"
	"github.com/fastprodman/groupbuy/internal/repos/transactions"
	"github.com/fastprodman/groupbuy/internal/repos/wallets"
	"github.com/fastprodman/groupbuy/internal/services/payments"
	"github.com/shopspring/decimal"
)

// Money goes over the wire as a fixed two-decimal string.
func money(d decimal.Decimal) string { return d.StringFixed(2) }

type livestockResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

func toLivestock(l livestock.Livestock) livestockResponse {
	return livestockResponse{ID: l.ID.String(), Name: l.Name, Price: money(l.Price)}
}

type walletResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Balance   string    `json:"balance"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toWallet(w wallets.Wallet) walletResponse {
	return walletResponse{ID: w.ID.String(), UserID: w.UserID, Balance: money(w.Balance), UpdatedAt: w.UpdatedAt}
}

type transactionResponse struct {
	ID          string    `json:"id"`
	Reference   string    `json:"reference"`
	Type        string    `json:"type"`
	Means       string    `json:"means"`
	Amount      string    `json:"amount"`
	Status      string    `json:"status"`
	GroupID     string    `json:"groupId,omitempty"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toTransaction(r transactions.Record) transactionResponse {
	out := transactionResponse{
		ID:          r.ID.String(),
		Reference:   r.Reference,
		Type:        string(r.Type),
		Means:       string(r.Means),
		Amount:      money(r.Amount),
		Status:      string(r.Status),
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}

	if r.GroupID.Valid {
		out.GroupID = r.GroupID.UUID.String()
	}

	return out
}

type groupResponse struct {
	ID               string               `json:"id"`
	LivestockID      string               `json:"livestockId"`
	Name             string               `json:"name"`
	CreatedBy        string               `json:"createdBy"`
	PaymentMethod    string               `json:"paymentMethod"`
	PaymentReference string               `json:"paymentReference"`
	TotalSlot        int                  `json:"totalSlot"`
	SlotTaken        int                  `json:"slotTaken"`
	TotalSlotLeft    int                  `json:"totalSlotLeft"`
	SlotPrice        string               `json:"slotPrice"`
	TotalSlotPrice   string               `json:"totalSlotPrice"`
	Status           string               `json:"status"`
	Members          []membershipResponse `json:"members,omitempty"`
}

type membershipResponse struct {
	UserID           string    `json:"userId"`
	Slots            int       `json:"slots"`
	PaymentReference string    `json:"paymentReference"`
	Status           string    `json:"status"`
	JoinedAt         time.Time `json:"joinedAt"`
}

// toGroup renders g for viewer. Payment references are only shown to the
// user who paid with them.
func toGroup(g groups.Group, members []groups.Membership, viewer string) groupResponse {
	out := groupResponse{
		ID:               g.ID.String(),
		LivestockID:      g.LivestockID.String(),
		Name:             g.Name,
		CreatedBy:        g.CreatedBy,
		PaymentMethod:    g.PaymentMethod,
		PaymentReference: ownReference(g.CreatedBy, g.PaymentReference, viewer),
		TotalSlot:        g.TotalSlot,
		SlotTaken:        g.SlotTaken,
		TotalSlotLeft:    g.TotalSlotLeft,
		SlotPrice:        money(g.SlotPrice),
		TotalSlotPrice:   money(g.TotalSlotPrice),
		Status:           string(g.Status),
	}

	for _, m := range members {
		out.Members = append(out.Members, membershipResponse{
			UserID:           m.UserID,
			Slots:            m.Slots,
			PaymentReference: ownReference(m.UserID, m.PaymentReference, viewer),
			Status:           string(m.Status),
			JoinedAt:         m.JoinedAt,
		})
	}

	return out
}

func ownReference(owner, reference, viewer string) string {
	if viewer == "" || owner != viewer {
		return ""
	}

	return reference
}

// outcomeResponse is returned by every money-moving endpoint.
type outcomeResponse struct {
	Status      string         `json:"status"`
	Reference   string         `json:"reference"`
	AmountDue   string         `json:"amountDue"`
	PaymentLink string         `json:"paymentLink,omitempty"`
	Group       *groupResponse `json:"group,omitempty"`
}

func toOutcome(o payments.Outcome, viewer string) outcomeResponse {
	out := outcomeResponse{
		Status:    string(o.Status),
		Reference: o.Reference,
		AmountDue: money(o.AmountDue),
	}

	if o.Checkout != nil {
		out.PaymentLink = o.Checkout.Link
	}

	if o.Group != nil {
		g := toGroup(*o.Group, nil, viewer)
		out.Group = &g
	}

	return out
}

// outcomeStatus is 202 while the payer still has to pay off-platform.
func outcomeStatus(o payments.Outcome) int {
	if o.Status == payments.StatusPendingExternal {
		return http.StatusAccepted
	}

	return http.StatusCreated
}
