package payments

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/fastprodman/groupbuy/internal/apperr"
	"github.com/fastprodman/groupbuy/internal/groupledger"
	"github.com/fastprodman/groupbuy/internal/infra/pgtestutil"
	"github.com/fastprodman/groupbuy/internal/repos/groups"
	"github.com/fastprodman/groupbuy/internal/repos/livestock"
	"github.com/fastprodman/groupbuy/internal/repos/pendingpayments"
	"github.com/fastprodman/groupbuy/internal/repos/transactions"
	"github.com/fastprodman/groupbuy/internal/repos/wallets"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var (
	alice = Principal{UserID: "alice", Email: "alice@example.com"}
	bob   = Principal{UserID: "bob", Email: "bob@example.com"}
	carol = Principal{UserID: "carol", Email: "carol@example.com"}
)

type fixture struct {
	db      *sql.DB
	gw      *fakeGateway
	svc     *Service
	cattle  uuid.UUID
	retired uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	db, cleanup := pgtestutil.NewTestDB(t)
	t.Cleanup(cleanup)

	gw := newFakeGateway()

	return fixture{
		db:      db,
		gw:      gw,
		svc:     New(db, gw, Options{TopUpMinAmount: dec("100")}),
		cattle:  pgtestutil.SeedLivestock(t, db, "cattle lot", dec("10000"), true),
		retired: pgtestutil.SeedLivestock(t, db, "sold lot", dec("8000"), false),
	}
}

func (f fixture) createWalletGroup(t *testing.T, p Principal, total, taken int) groups.Group {
	t.Helper()

	out, err := f.svc.CreateGroup(context.Background(), p, CreateGroupRequest{
		LivestockID:   f.cattle.String(),
		GroupName:     "herd",
		TotalSlot:     total,
		SlotTaken:     taken,
		PaymentMethod: "wallet",
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	return *out.Group
}

func wantErr(t *testing.T, err, target error, kind apperr.Kind) {
	t.Helper()

	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}

	if got := apperr.KindOf(err); got != kind {
		t.Fatalf("kind: want %s, got %s", kind, got)
	}
}

func retryable(err error) bool {
	ae, ok := apperr.From(err)
	return ok && ae.Retryable
}

func TestCreateAndJoin_WalletRail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pgtestutil.SeedWallet(t, f.db, alice.UserID, dec("5000"))
	pgtestutil.SeedWallet(t, f.db, bob.UserID, dec("10000"))

	out, err := f.svc.CreateGroup(ctx, alice, CreateGroupRequest{
		LivestockID:   f.cattle.String(),
		GroupName:     "  herd  ",
		TotalSlot:     4,
		SlotTaken:     1,
		PaymentMethod: "wallet",
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	if out.Status != StatusCompleted || out.Checkout != nil {
		t.Fatalf("wallet create must complete immediately, got %+v", out)
	}

	g := out.Group
	if g.Name != "herd" || g.Status != groupledger.StatusActive || g.TotalSlotLeft != 3 {
		t.Fatalf("unexpected group %+v", g)
	}

	if !g.SlotPrice.Equal(dec("2500")) || !g.TotalSlotPrice.Equal(dec("7500")) {
		t.Fatalf("slot price %s, total slot price %s", g.SlotPrice, g.TotalSlotPrice)
	}

	if !out.AmountDue.Equal(dec("2500")) || out.Reference == "" || out.Reference != g.PaymentReference {
		t.Fatalf("unexpected outcome amount %s reference %q", out.AmountDue, out.Reference)
	}

	if got := pgtestutil.WalletBalance(t, f.db, alice.UserID); !got.Equal(dec("2500")) {
		t.Fatalf("creator balance: want 2500, got %s", got)
	}

	joined, err := f.svc.JoinGroup(ctx, bob, JoinGroupRequest{
		GroupID:       g.ID.String(),
		Slots:         3,
		PaymentMethod: "wallet",
	})
	if err != nil {
		t.Fatalf("join group: %v", err)
	}

	if !joined.AmountDue.Equal(dec("7500")) || joined.Reference == "" {
		t.Fatalf("unexpected join outcome %+v", joined)
	}

	if joined.Group.Status != groupledger.StatusCompleted || joined.Group.TotalSlotLeft != 0 ||
		!joined.Group.TotalSlotPrice.IsZero() {
		t.Fatalf("group should be completed, got %+v", joined.Group.State)
	}

	if got := pgtestutil.WalletBalance(t, f.db, bob.UserID); !got.Equal(dec("2500")) {
		t.Fatalf("joiner balance: want 2500, got %s", got)
	}

	stored, members, err := f.svc.Group(ctx, g.ID.String())
	if err != nil {
		t.Fatalf("get group: %v", err)
	}

	if stored.Status != groupledger.StatusCompleted || stored.SlotTaken != 4 {
		t.Fatalf("stored group %+v", stored.State)
	}

	if len(members) != 1 || members[0].UserID != bob.UserID || members[0].Slots != 3 ||
		members[0].Status != groups.MembershipApproved {
		t.Fatalf("unexpected members %+v", members)
	}

	_, err = f.svc.JoinGroup(ctx, carol, JoinGroupRequest{GroupID: g.ID.String(), Slots: 1, PaymentMethod: "wallet"})
	wantErr(t, err, groupledger.ErrGroupNotActive, apperr.KindConflict)
}

func TestCreateGroup_Rejections(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	pgtestutil.SeedWallet(t, f.db, alice.UserID, dec("5000"))

	tests := []struct {
		name     string
		p        Principal
		req      CreateGroupRequest
		wantErr  error
		wantKind apperr.Kind
	}{
		{
			name:    "unknown_payment_method",
			p:       alice,
			req:     CreateGroupRequest{LivestockID: f.cattle.String(), GroupName: "g", TotalSlot: 4, SlotTaken: 1, PaymentMethod: "card"},
			wantErr: ErrInvalidPaymentMethod, wantKind: apperr.KindValidation,
		},
		{
			name:    "blank_name",
			p:       alice,
			req:     CreateGroupRequest{LivestockID: f.cattle.String(), GroupName: "  ", TotalSlot: 4, SlotTaken: 1, PaymentMethod: "wallet"},
			wantErr: ErrGroupNameRequired, wantKind: apperr.KindValidation,
		},
		{
			name:    "zero_total",
			p:       alice,
			req:     CreateGroupRequest{LivestockID: f.cattle.String(), GroupName: "g", TotalSlot: 0, SlotTaken: 1, PaymentMethod: "wallet"},
			wantErr: groupledger.ErrInvalidTotalSlot, wantKind: apperr.KindValidation,
		},
		{
			name:    "taken_exceeds_total",
			p:       alice,
			req:     CreateGroupRequest{LivestockID: f.cattle.String(), GroupName: "g", TotalSlot: 2, SlotTaken: 3, PaymentMethod: "wallet"},
			wantErr: groupledger.ErrSlotTakenExceeds, wantKind: apperr.KindValidation,
		},
		{
			name:    "total_beyond_column_range",
			p:       alice,
			req:     CreateGroupRequest{LivestockID: f.cattle.String(), GroupName: "g", TotalSlot: 1 << 40, SlotTaken: 1, PaymentMethod: "wallet"},
			wantErr: groupledger.ErrTooManySlots, wantKind: apperr.KindValidation,
		},
		{
			name:    "unavailable_livestock",
			p:       alice,
			req:     CreateGroupRequest{LivestockID: f.retired.String(), GroupName: "g", TotalSlot: 4, SlotTaken: 1, PaymentMethod: "wallet"},
			wantErr: livestock.ErrLivestockNotFound, wantKind: apperr.KindNotFound,
		},
		{
			name:    "malformed_livestock_id",
			p:       alice,
			req:     CreateGroupRequest{LivestockID: "abc", GroupName: "g", TotalSlot: 4, SlotTaken: 1, PaymentMethod: "wallet"},
			wantErr: livestock.ErrLivestockNotFound, wantKind: apperr.KindNotFound,
		},
		{
			name:    "insufficient_balance",
			p:       alice,
			req:     CreateGroupRequest{LivestockID: f.cattle.String(), GroupName: "g", TotalSlot: 4, SlotTaken: 3, PaymentMethod: "wallet"},
			wantErr: wallets.ErrInsufficientFunds, wantKind: apperr.KindConflict,
		},
		{
			name:    "no_wallet",
			p:       bob,
			req:     CreateGroupRequest{LivestockID: f.cattle.String(), GroupName: "g", TotalSlot: 4, SlotTaken: 1, PaymentMethod: "wallet"},
			wantErr: wallets.ErrWalletNotFound, wantKind: apperr.KindNotFound,
		},
		{
			name:    "external_without_email",
			p:       Principal{UserID: "alice"},
			req:     CreateGroupRequest{LivestockID: f.cattle.String(), GroupName: "g", TotalSlot: 4, SlotTaken: 1, PaymentMethod: "external"},
			wantErr: ErrEmailRequired, wantKind: apperr.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateGroup(context.Background(), tt.p, tt.req)
			wantErr(t, err, tt.wantErr, tt.wantKind)
		})
	}

	if n := pgtestutil.Count(t, f.db, "buying_groups", ""); n != 0 {
		t.Fatalf("rejected creates must not leave groups, got %d", n)
	}

	if n := pgtestutil.Count(t, f.db, "transactions", ""); n != 0 {
		t.Fatalf("rejected creates must not leave transactions, got %d", n)
	}

	if got := pgtestutil.WalletBalance(t, f.db, alice.UserID); !got.Equal(dec("5000")) {
		t.Fatalf("balance must be untouched, got %s", got)
	}

	if initialize, _ := f.gw.calls(); initialize != 0 {
		t.Fatalf("gateway must not be called, got %d initialize calls", initialize)
	}
}

func TestJoinGroup_RejectedBeforePayment(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pgtestutil.SeedWallet(t, f.db, alice.UserID, dec("5000"))
	pgtestutil.SeedWallet(t, f.db, bob.UserID, dec("50000"))

	g := f.createWalletGroup(t, alice, 4, 1)

	_, err := f.svc.JoinGroup(ctx, bob, JoinGroupRequest{GroupID: g.ID.String(), Slots: 4, PaymentMethod: "external"})
	wantErr(t, err, groupledger.ErrSlotsExceedLeft, apperr.KindConflict)

	_, err = f.svc.JoinGroup(ctx, bob, JoinGroupRequest{GroupID: g.ID.String(), Slots: 0, PaymentMethod: "wallet"})
	wantErr(t, err, groupledger.ErrInvalidSlotCount, apperr.KindValidation)

	_, err = f.svc.JoinGroup(ctx, bob, JoinGroupRequest{GroupID: g.ID.String(), Slots: 1 << 40, PaymentMethod: "wallet"})
	wantErr(t, err, groupledger.ErrTooManySlots, apperr.KindValidation)

	_, err = f.svc.JoinGroup(ctx, bob, JoinGroupRequest{GroupID: uuid.NewString(), Slots: 1, PaymentMethod: "wallet"})
	wantErr(t, err, groups.ErrGroupNotFound, apperr.KindNotFound)

	if initialize, verify := f.gw.calls(); initialize != 0 || verify != 0 {
		t.Fatalf("gateway must not be called, got %d/%d", initialize, verify)
	}

	if n := pgtestutil.Count(t, f.db, "pending_payments", ""); n != 0 {
		t.Fatalf("no pending payment expected, got %d", n)
	}

	if got := pgtestutil.WalletBalance(t, f.db, bob.UserID); !got.Equal(dec("50000")) {
		t.Fatalf("balance must be untouched, got %s", got)
	}
}

func TestJoinGroup_DuplicateMember(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pgtestutil.SeedWallet(t, f.db, alice.UserID, dec("5000"))
	pgtestutil.SeedWallet(t, f.db, bob.UserID, dec("10000"))

	g := f.createWalletGroup(t, alice, 4, 1)

	_, err := f.svc.JoinGroup(ctx, bob, JoinGroupRequest{GroupID: g.ID.String(), Slots: 1, PaymentMethod: "wallet"})
	if err != nil {
		t.Fatalf("first join: %v", err)
	}

	_, err = f.svc.JoinGroup(ctx, bob, JoinGroupRequest{GroupID: g.ID.String(), Slots: 1, PaymentMethod: "wallet"})
	wantErr(t, err, groups.ErrAlreadyMember, apperr.KindConflict)

	if got := pgtestutil.WalletBalance(t, f.db, bob.UserID); !got.Equal(dec("7500")) {
		t.Fatalf("second join must not be charged, got %s", got)
	}
}

func TestJoinGroup_LastSlotRace(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pgtestutil.SeedWallet(t, f.db, alice.UserID, dec("10000"))
	pgtestutil.SeedWallet(t, f.db, bob.UserID, dec("2500"))
	pgtestutil.SeedWallet(t, f.db, carol.UserID, dec("2500"))

	g := f.createWalletGroup(t, alice, 4, 3)

	var (
		wg   sync.WaitGroup
		errs = make([]error, 2)
	)

	for i, p := range []Principal{bob, carol} {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, errs[i] = f.svc.JoinGroup(ctx, p, JoinGroupRequest{
				GroupID: g.ID.String(), Slots: 1, PaymentMethod: "wallet",
			})
		}()
	}

	wg.Wait()

	var ok int

	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.KindOf(err) != apperr.KindConflict:
			t.Fatalf("loser must see a conflict, got %v", err)
		}
	}

	if ok != 1 {
		t.Fatalf("exactly one join must win, got %d (%v)", ok, errs)
	}

	stored, members, err := f.svc.Group(ctx, g.ID.String())
	if err != nil {
		t.Fatalf("get group: %v", err)
	}

	if stored.TotalSlotLeft != 0 || stored.Status != groupledger.StatusCompleted || len(members) != 1 {
		t.Fatalf("group must be full with one member, got %+v members=%d", stored.State, len(members))
	}

	total := pgtestutil.WalletBalance(t, f.db, bob.UserID).Add(pgtestutil.WalletBalance(t, f.db, carol.UserID))
	if !total.Equal(dec("2500")) {
		t.Fatalf("exactly one joiner must be charged, remaining total %s", total)
	}
}

func TestCreateGroup_ExternalPending_Completes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.CreateGroup(ctx, alice, CreateGroupRequest{
		LivestockID:   f.cattle.String(),
		GroupName:     "herd",
		TotalSlot:     4,
		SlotTaken:     2,
		PaymentMethod: "others",
	})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	if out.Status != StatusPendingExternal || out.Checkout == nil || out.Checkout.Link == "" || out.Group != nil {
		t.Fatalf("expected a checkout, got %+v", out)
	}

	if !out.AmountDue.Equal(dec("5000")) {
		t.Fatalf("amount due: want 5000, got %s", out.AmountDue)
	}

	if n := pgtestutil.Count(t, f.db, "buying_groups", ""); n != 0 {
		t.Fatalf("group must not exist before payment, got %d", n)
	}

	if n := pgtestutil.Count(t, f.db, "pending_payments", "reference = $1", out.Reference); n != 1 {
		t.Fatalf("pending payment must be stored, got %d", n)
	}

	_, err = f.svc.CompletePendingPayment(ctx, out.Reference)
	wantErr(t, err, ErrPaymentPending, apperr.KindExternal)

	if !retryable(err) {
		t.Fatal("pending gateway payment must be retryable")
	}

	f.gw.pay(out.Reference, dec("5000"), alice.Email)

	done, err := f.svc.CompletePendingPayment(ctx, out.Reference)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	g := done.Group
	if done.Status != StatusCompleted || g == nil || g.CreatedBy != alice.UserID || g.PaymentMethod != "external" {
		t.Fatalf("unexpected outcome %+v", done)
	}

	if g.PaymentReference != out.Reference || g.TotalSlotLeft != 2 || !g.TotalSlotPrice.Equal(dec("5000")) {
		t.Fatalf("unexpected group %+v", g)
	}

	if n := pgtestutil.Count(t, f.db, "pending_payments", ""); n != 0 {
		t.Fatalf("pending payment must be deleted, got %d", n)
	}

	_, err = f.svc.CompletePendingPayment(ctx, out.Reference)
	wantErr(t, err, pendingpayments.ErrPendingPaymentNotFound, apperr.KindNotFound)

	if n := pgtestutil.Count(t, f.db, "buying_groups", ""); n != 1 {
		t.Fatalf("replay must not duplicate the group, got %d", n)
	}

	if n := pgtestutil.Count(t, f.db, "transactions", "payment_reference = $1 AND means = 'external'", out.Reference); n != 1 {
		t.Fatalf("expected one external record, got %d", n)
	}
}

func TestJoinGroup_ExternalPending_Completes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pgtestutil.SeedWallet(t, f.db, alice.UserID, dec("5000"))
	g := f.createWalletGroup(t, alice, 4, 1)

	out, err := f.svc.JoinGroup(ctx, bob, JoinGroupRequest{GroupID: g.ID.String(), Slots: 2, PaymentMethod: "external"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	if out.Status != StatusPendingExternal || !out.AmountDue.Equal(dec("5000")) {
		t.Fatalf("unexpected outcome %+v", out)
	}

	f.gw.pay(out.Reference, dec("5000"), bob.Email)

	done, err := f.svc.CompletePendingPayment(ctx, out.Reference)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	if done.Group.TotalSlotLeft != 1 || !done.Group.TotalSlotPrice.Equal(dec("2500")) {
		t.Fatalf("unexpected group state %+v", done.Group.State)
	}

	_, members, err := f.svc.Group(ctx, g.ID.String())
	if err != nil {
		t.Fatalf("get group: %v", err)
	}

	if len(members) != 1 || members[0].UserID != bob.UserID || members[0].PaymentReference != out.Reference {
		t.Fatalf("unexpected members %+v", members)
	}
}

func TestCompletePendingPayment_Failures(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pgtestutil.SeedWallet(t, f.db, alice.UserID, dec("5000"))
	pgtestutil.SeedWallet(t, f.db, carol.UserID, dec("5000"))
	g := f.createWalletGroup(t, alice, 4, 2)

	t.Run("underpaid", func(t *testing.T) {
		out, err := f.svc.JoinGroup(ctx, bob, JoinGroupRequest{GroupID: g.ID.String(), Slots: 1, PaymentMethod: "external"})
		if err != nil {
			t.Fatalf("join: %v", err)
		}

		f.gw.pay(out.Reference, dec("2499.99"), bob.Email)

		_, err = f.svc.CompletePendingPayment(ctx, out.Reference)
		wantErr(t, err, ErrAmountMismatch, apperr.KindConflict)

		if n := pgtestutil.Count(t, f.db, "pending_payments", "reference = $1", out.Reference); n != 1 {
			t.Fatalf("pending payment must be kept, got %d", n)
		}
	})

	t.Run("declined", func(t *testing.T) {
		out, err := f.svc.JoinGroup(ctx, bob, JoinGroupRequest{GroupID: g.ID.String(), Slots: 1, PaymentMethod: "external"})
		if err != nil {
			t.Fatalf("join: %v", err)
		}

		f.gw.fail(out.Reference)

		_, err = f.svc.CompletePendingPayment(ctx, out.Reference)
		wantErr(t, err, ErrPaymentNotSuccessful, apperr.KindExternal)

		if retryable(err) {
			t.Fatal("declined payment must not be retryable")
		}
	})

	t.Run("group_filled_meanwhile", func(t *testing.T) {
		out, err := f.svc.JoinGroup(ctx, bob, JoinGroupRequest{GroupID: g.ID.String(), Slots: 2, PaymentMethod: "external"})
		if err != nil {
			t.Fatalf("join: %v", err)
		}

		_, err = f.svc.JoinGroup(ctx, carol, JoinGroupRequest{GroupID: g.ID.String(), Slots: 2, PaymentMethod: "wallet"})
		if err != nil {
			t.Fatalf("wallet join: %v", err)
		}

		f.gw.pay(out.Reference, dec("5000"), bob.Email)

		_, err = f.svc.CompletePendingPayment(ctx, out.Reference)
		if apperr.KindOf(err) != apperr.KindConflict {
			t.Fatalf("expected conflict, got %v", err)
		}

		if n := pgtestutil.Count(t, f.db, "pending_payments", "reference = $1", out.Reference); n != 1 {
			t.Fatalf("captured payment must stay recorded, got %d", n)
		}

		if n := pgtestutil.Count(t, f.db, "transactions", "payment_reference = $1", out.Reference); n != 0 {
			t.Fatalf("rolled back replay must not leave records, got %d", n)
		}
	})

	t.Run("unknown_reference", func(t *testing.T) {
		_, err := f.svc.CompletePendingPayment(ctx, "PSK-nope")
		wantErr(t, err, pendingpayments.ErrPendingPaymentNotFound, apperr.KindNotFound)
	})

	t.Run("blank_reference", func(t *testing.T) {
		_, err := f.svc.CompletePendingPayment(ctx, " ")
		wantErr(t, err, ErrReferenceRequired, apperr.KindValidation)
	})
}

func TestCreateGroup_ExternalWithReference(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	co, err := f.gw.Initialize(ctx, alice.Email, dec("2500"))
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}

	f.gw.pay(co.Reference, dec("2500"), alice.Email)

	req := CreateGroupRequest{
		LivestockID:       f.cattle.String(),
		GroupName:         "herd",
		TotalSlot:         4,
		SlotTaken:         1,
		PaymentMethod:     "external",
		ExternalReference: co.Reference,
	}

	out, err := f.svc.CreateGroup(ctx, alice, req)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if out.Status != StatusCompleted || out.Group.PaymentReference != co.Reference {
		t.Fatalf("unexpected outcome %+v", out)
	}

	_, err = f.svc.CreateGroup(ctx, alice, req)
	wantErr(t, err, transactions.ErrDuplicatePayment, apperr.KindConflict)

	req.SlotTaken = 2
	co2, _ := f.gw.Initialize(ctx, alice.Email, dec("5000"))
	f.gw.pay(co2.Reference, dec("2500"), alice.Email)
	req.ExternalReference = co2.Reference

	_, err = f.svc.CreateGroup(ctx, alice, req)
	wantErr(t, err, ErrAmountMismatch, apperr.KindConflict)

	if n := pgtestutil.Count(t, f.db, "buying_groups", ""); n != 1 {
		t.Fatalf("expected one group, got %d", n)
	}
}

func TestExternalReference_MustBelongToPayer(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pgtestutil.SeedWallet(t, f.db, alice.UserID, dec("5000"))
	g := f.createWalletGroup(t, alice, 4, 1)

	t.Run("paid_by_someone_else", func(t *testing.T) {
		co, err := f.gw.Initialize(ctx, alice.Email, dec("2500"))
		if err != nil {
			t.Fatalf("initialize: %v", err)
		}

		f.gw.pay(co.Reference, dec("2500"), alice.Email)

		_, err = f.svc.JoinGroup(ctx, carol, JoinGroupRequest{
			GroupID: g.ID.String(), Slots: 1, PaymentMethod: "external", ExternalReference: co.Reference,
		})
		wantErr(t, err, ErrPaymentOwnerMismatch, apperr.KindConflict)

		_, err = f.svc.CreateGroup(ctx, carol, CreateGroupRequest{
			LivestockID: f.cattle.String(), GroupName: "herd", TotalSlot: 4, SlotTaken: 1,
			PaymentMethod: "external", ExternalReference: co.Reference,
		})
		wantErr(t, err, ErrPaymentOwnerMismatch, apperr.KindConflict)
	})

	t.Run("reserved_by_pending_join", func(t *testing.T) {
		out, err := f.svc.JoinGroup(ctx, bob, JoinGroupRequest{GroupID: g.ID.String(), Slots: 1, PaymentMethod: "external"})
		if err != nil {
			t.Fatalf("pending join: %v", err)
		}

		f.gw.pay(out.Reference, dec("2500"), "")

		_, err = f.svc.JoinGroup(ctx, carol, JoinGroupRequest{
			GroupID: g.ID.String(), Slots: 1, PaymentMethod: "external", ExternalReference: out.Reference,
		})
		wantErr(t, err, ErrReferenceReserved, apperr.KindConflict)

		_, err = f.svc.JoinGroup(ctx, bob, JoinGroupRequest{
			GroupID: g.ID.String(), Slots: 1, PaymentMethod: "external", ExternalReference: out.Reference,
		})
		wantErr(t, err, ErrReferenceReserved, apperr.KindConflict)

		done, err := f.svc.CompletePendingPayment(ctx, out.Reference)
		if err != nil {
			t.Fatalf("owner's pending payment must still apply: %v", err)
		}

		if done.Group.SlotTaken != 2 {
			t.Fatalf("expected bob's slot applied, got %+v", done.Group.State)
		}
	})

	_, members, err := f.svc.Group(ctx, g.ID.String())
	if err != nil {
		t.Fatalf("get group: %v", err)
	}

	if len(members) != 1 || members[0].UserID != bob.UserID {
		t.Fatalf("only bob may hold slots, got %+v", members)
	}
}

func TestCompletePendingPayment_ConcurrentDelivery(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.CreateGroup(ctx, alice, CreateGroupRequest{
		LivestockID: f.cattle.String(), GroupName: "herd", TotalSlot: 4, SlotTaken: 1, PaymentMethod: "external",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.gw.pay(out.Reference, dec("2500"), alice.Email)

	const deliveries = 4

	var (
		wg   sync.WaitGroup
		errs = make([]error, deliveries)
	)

	for i := range deliveries {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, errs[i] = f.svc.CompletePendingPayment(ctx, out.Reference)
		}()
	}

	wg.Wait()

	var ok int

	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case !errors.Is(err, pendingpayments.ErrPendingPaymentNotFound):
			t.Fatalf("duplicate delivery must see not found, got %v", err)
		}
	}

	if ok != 1 {
		t.Fatalf("exactly one delivery must apply, got %d (%v)", ok, errs)
	}

	if n := pgtestutil.Count(t, f.db, "buying_groups", ""); n != 1 {
		t.Fatalf("expected one group, got %d", n)
	}

	if n := pgtestutil.Count(t, f.db, "transactions", "payment_reference = $1 AND means = 'external'", out.Reference); n != 1 {
		t.Fatalf("expected one external record, got %d", n)
	}

	if n := pgtestutil.Count(t, f.db, "pending_payments", ""); n != 0 {
		t.Fatalf("pending payment must be consumed, got %d", n)
	}
}

func TestTopUp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pgtestutil.SeedWallet(t, f.db, alice.UserID, dec("100"))

	_, err := f.svc.StartTopUp(ctx, alice, dec("99.99"))
	wantErr(t, err, ErrTopUpBelowMinimum, apperr.KindValidation)

	_, err = f.svc.StartTopUp(ctx, bob, dec("1000"))
	wantErr(t, err, wallets.ErrWalletNotFound, apperr.KindNotFound)

	out, err := f.svc.StartTopUp(ctx, alice, dec("1000"))
	if err != nil {
		t.Fatalf("start top-up: %v", err)
	}

	if out.Checkout == nil || out.Reference == "" {
		t.Fatalf("expected checkout, got %+v", out)
	}

	_, err = f.svc.CompleteTopUp(ctx, alice, out.Reference)
	wantErr(t, err, ErrPaymentPending, apperr.KindExternal)

	// the gateway amount wins over what was requested
	f.gw.pay(out.Reference, dec("1200"), "ALICE@example.com")

	_, err = f.svc.CompleteTopUp(ctx, bob, out.Reference)
	wantErr(t, err, ErrPaymentOwnerMismatch, apperr.KindConflict)

	res, err := f.svc.CompleteTopUp(ctx, alice, out.Reference)
	if err != nil {
		t.Fatalf("complete top-up: %v", err)
	}

	if !res.Wallet.Balance.Equal(dec("1300")) || !res.Record.Amount.Equal(dec("1200")) ||
		res.Record.Type != transactions.TypeCredit || res.Record.Means != transactions.MeansExternal {
		t.Fatalf("unexpected result %+v", res)
	}

	_, err = f.svc.CompleteTopUp(ctx, alice, out.Reference)
	wantErr(t, err, transactions.ErrDuplicatePayment, apperr.KindConflict)

	if got := pgtestutil.WalletBalance(t, f.db, alice.UserID); !got.Equal(dec("1300")) {
		t.Fatalf("replayed top-up must not credit twice, got %s", got)
	}
}

func TestTopUp_RejectsPendingGroupReference(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	pgtestutil.SeedWallet(t, f.db, alice.UserID, dec("0"))

	out, err := f.svc.CreateGroup(ctx, alice, CreateGroupRequest{
		LivestockID: f.cattle.String(), GroupName: "herd", TotalSlot: 4, SlotTaken: 1, PaymentMethod: "external",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.gw.pay(out.Reference, dec("2500"), alice.Email)

	_, err = f.svc.CompleteTopUp(ctx, alice, out.Reference)
	wantErr(t, err, ErrReferenceReserved, apperr.KindConflict)

	if got := pgtestutil.WalletBalance(t, f.db, alice.UserID); !got.IsZero() {
		t.Fatalf("wallet must not be credited, got %s", got)
	}
}

func TestWalletReads(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Wallet(ctx, alice)
	wantErr(t, err, wallets.ErrWalletNotFound, apperr.KindNotFound)

	first, err := f.svc.OpenWallet(ctx, alice)
	if err != nil {
		t.Fatalf("open wallet: %v", err)
	}

	again, err := f.svc.OpenWallet(ctx, alice)
	if err != nil {
		t.Fatalf("reopen wallet: %v", err)
	}

	if first.ID != again.ID || !again.Balance.IsZero() {
		t.Fatalf("open must be idempotent, got %+v then %+v", first, again)
	}

	_, err = f.svc.OpenWallet(ctx, Principal{})
	wantErr(t, err, ErrPrincipalRequired, apperr.KindValidation)

	lots, err := f.svc.Livestock(ctx)
	if err != nil {
		t.Fatalf("livestock: %v", err)
	}

	if len(lots) != 1 || lots[0].ID != f.cattle {
		t.Fatalf("only available lots must be listed, got %+v", lots)
	}

	pgtestutil.SeedWallet(t, f.db, bob.UserID, dec("5000"))
	f.createWalletGroup(t, bob, 4, 1)

	recs, err := f.svc.History(ctx, bob, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}

	if len(recs) != 1 || recs[0].Type != transactions.TypeDebit || !recs[0].Amount.Equal(dec("2500")) {
		t.Fatalf("unexpected history %+v", recs)
	}
}
