package pendingpayments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fastprodman/groupbuy/internal/infra/pgtestutil"
	"github.com/fastprodman/groupbuy/internal/repos/pendingpayments"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func joinIntent() pendingpayments.JoinGroupIntent {
	return pendingpayments.JoinGroupIntent{
		GroupID:   uuid.New(),
		GroupName: "herd",
		Slots:     2,
		SlotPrice: decimal.NewFromInt(2500),
		AmountDue: decimal.NewFromInt(5000),
	}
}

func TestPending_PutGetRemove(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)
	ctx := context.Background()

	in := joinIntent()

	err := repo.Put(ctx, pendingpayments.PendingPayment{
		Reference: "ps_ref_1", UserID: "u1", Email: "u1@example.com", Intent: in,
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	err = repo.Put(ctx, pendingpayments.PendingPayment{
		Reference: "ps_ref_1", UserID: "u1", Email: "u1@example.com", Intent: in,
	})
	if !errors.Is(err, pendingpayments.ErrDuplicateReference) {
		t.Fatalf("expected ErrDuplicateReference, got %v", err)
	}

	got, err := repo.Get(ctx, "ps_ref_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	j, ok := got.Intent.(pendingpayments.JoinGroupIntent)
	if !ok {
		t.Fatalf("want JoinGroupIntent, got %T", got.Intent)
	}

	if j.GroupID != in.GroupID || j.Slots != 2 || !j.AmountDue.Equal(in.AmountDue) || got.Email != "u1@example.com" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}

	err = repo.Remove(tx, "ps_ref_1")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}

	err = repo.Remove(tx, "ps_ref_1")
	if !errors.Is(err, pendingpayments.ErrPendingPaymentNotFound) {
		t.Fatalf("second remove: expected not found, got %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	_, err = repo.Get(ctx, "ps_ref_1")
	if !errors.Is(err, pendingpayments.ErrPendingPaymentNotFound) {
		t.Fatalf("expected not found after remove, got %v", err)
	}
}

func TestPending_CorruptMetaIsInconsistency(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	_, err := db.Exec(`
		INSERT INTO pending_payments (reference, user_id, email, action_type, meta)
		VALUES ('ps_bad', 'u1', 'u1@example.com', 'JOIN_GROUP', '{"slots": -1}')
	`)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	_, err = New(db).Get(context.Background(), "ps_bad")
	if !errors.Is(err, pendingpayments.ErrCorruptIntent) {
		t.Fatalf("expected ErrCorruptIntent, got %v", err)
	}
}

func TestPending_ClaimSerializesCompletions(t *testing.T) {
	t.Parallel()

	db, cleanup := pgtestutil.NewTestDB(t)
	defer cleanup()

	repo := New(db)
	ctx := context.Background()

	err := repo.Put(ctx, pendingpayments.PendingPayment{
		Reference: "ps_ref_2", UserID: "u1", Email: "u1@example.com", Intent: joinIntent(),
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}

	tx1, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("tx1 begin: %v", err)
	}
	defer func() { _ = tx1.Rollback() }()

	_, err = repo.Claim(tx1, "ps_ref_2")
	if err != nil {
		t.Fatalf("tx1 claim: %v", err)
	}

	done := make(chan error, 1)

	go func() {
		tx2, err := db.BeginTx(ctx, nil)
		if err != nil {
			done <- err
			return
		}
		defer func() { _ = tx2.Rollback() }()

		_, err = repo.Claim(tx2, "ps_ref_2")
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("second claim must block while the first holds the row, got %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	err = repo.Remove(tx1, "ps_ref_2")
	if err != nil {
		t.Fatalf("tx1 remove: %v", err)
	}

	if err := tx1.Commit(); err != nil {
		t.Fatalf("tx1 commit: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, pendingpayments.ErrPendingPaymentNotFound) {
			t.Fatalf("second claim: expected not found, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("second claim never returned")
	}
}

