package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/fastprodman/groupbuy/internal/gateway"
	"github.com/shopspring/decimal"
)

// fakeGateway hands out sequential references and answers Verify from the
// payments marked as paid.
type fakeGateway struct {
	mu       sync.Mutex
	seq      int
	issued   map[string]decimal.Decimal
	paid     map[string]gateway.Verification
	initErr  error
	initCall int
	verCall  int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		issued: map[string]decimal.Decimal{},
		paid:   map[string]gateway.Verification{},
	}
}

func (f *fakeGateway) Initialize(_ context.Context, _ string, amount decimal.Decimal) (gateway.Checkout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.initCall++
	if f.initErr != nil {
		return gateway.Checkout{}, f.initErr
	}

	f.seq++
	ref := fmt.Sprintf("PSK-%04d", f.seq)
	f.issued[ref] = amount

	return gateway.Checkout{Link: "https://checkout.test/" + ref, Reference: ref}, nil
}

func (f *fakeGateway) Verify(_ context.Context, reference string) (gateway.Verification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.verCall++

	v, ok := f.paid[reference]
	if !ok {
		if _, issued := f.issued[reference]; issued {
			return gateway.Verification{Reference: reference, Status: gateway.StatusPending}, nil
		}

		return gateway.Verification{}, gateway.ErrReferenceNotFound
	}

	return v, nil
}

// pay marks reference as successfully paid for amount.
func (f *fakeGateway) pay(reference string, amount decimal.Decimal, email string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.paid[reference] = gateway.Verification{
		Reference: reference,
		Status:    gateway.StatusSuccess,
		Amount:    amount,
		Email:     email,
	}
}

func (f *fakeGateway) fail(reference string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.paid[reference] = gateway.Verification{Reference: reference, Status: gateway.StatusFailed}
}

func (f *fakeGateway) calls() (initialize, verify int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.initCall, f.verCall
}
