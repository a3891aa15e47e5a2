// Package ledger owns every wallet balance change. Each debit or credit
// writes the new balance and its transaction record in one storage
// transaction.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/fastprodman/groupbuy/internal/apperr"
	"github.com/fastprodman/groupbuy/internal/infra/pgutils"
	"github.com/fastprodman/groupbuy/internal/repos/transactions"
	pgtransactions "github.com/fastprodman/groupbuy/internal/repos/transactions/postgres"
	"github.com/fastprodman/groupbuy/internal/repos/wallets"
	pgwallets "github.com/fastprodman/groupbuy/internal/repos/wallets/postgres"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

const (
	referencePrefix     = "WLT-"
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

var (
	ErrInsufficientBalance = wallets.ErrInsufficientFunds
	ErrInvalidAmount       = apperr.Validation("amount must be positive")
)

// Entry describes one balance movement. Reference is optional: wallet-rail
// movements get a fresh one, external settlements pass the gateway's.
type Entry struct {
	UserID      string
	Amount      decimal.Decimal
	Description string
	GroupID     uuid.NullUUID
	Reference   string
	Means       transactions.Means
}

type Service struct {
	db      *sql.DB
	wallets wallets.Wallets
	txns    transactions.Transactions
}

func New(dbx *sql.DB) *Service {
	return &Service{
		db:      dbx,
		wallets: pgwallets.New(dbx),
		txns:    pgtransactions.New(dbx),
	}
}

// NewReference returns a unique, time-ordered wallet payment reference.
func NewReference() string {
	return referencePrefix + ulid.Make().String()
}

// IsWalletReference reports whether ref was minted by NewReference.
func IsWalletReference(ref string) bool {
	return strings.HasPrefix(ref, referencePrefix)
}

// Debit runs DebitTx in its own transaction.
func (s *Service) Debit(ctx context.Context, e Entry) (transactions.Record, error) {
	var rec transactions.Record

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		rec, err = s.DebitTx(tx, e)
		return err
	})
	if err != nil {
		return transactions.Record{}, fmt.Errorf("debit wallet: %w", err)
	}

	return rec, nil
}

// Credit runs CreditTx in its own transaction.
func (s *Service) Credit(ctx context.Context, e Entry) (transactions.Record, error) {
	var rec transactions.Record

	err := pgutils.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		rec, err = s.CreditTx(tx, e)
		return err
	})
	if err != nil {
		return transactions.Record{}, fmt.Errorf("credit wallet: %w", err)
	}

	return rec, nil
}

// DebitTx takes e.Amount out of the user's wallet inside tx:
//
// 1) Lock the wallet row (FOR UPDATE).
// 2) Reject when the locked balance is short.
// 3) Decrease the balance (guarded again in SQL).
// 4) Insert the success debit record.
func (s *Service) DebitTx(tx *sql.Tx, e Entry) (transactions.Record, error) {
	if !e.Amount.IsPositive() {
		return transactions.Record{}, ErrInvalidAmount
	}

	w, err := s.wallets.LockForUpdate(tx, e.UserID)
	if err != nil {
		return transactions.Record{}, fmt.Errorf("lock wallet: %w", err)
	}

	if w.Balance.LessThan(e.Amount) {
		return transactions.Record{}, fmt.Errorf("pre-check debit: %w", ErrInsufficientBalance)
	}

	_, err = s.wallets.DecreaseBalance(tx, w.ID, e.Amount)
	if err != nil {
		return transactions.Record{}, fmt.Errorf("decrease balance: %w", err)
	}

	rec, err := s.record(tx, w, transactions.TypeDebit, e)
	if err != nil {
		return transactions.Record{}, err
	}

	return rec, nil
}

// CreditTx adds e.Amount to the user's wallet inside tx.
func (s *Service) CreditTx(tx *sql.Tx, e Entry) (transactions.Record, error) {
	if !e.Amount.IsPositive() {
		return transactions.Record{}, ErrInvalidAmount
	}

	w, err := s.wallets.LockForUpdate(tx, e.UserID)
	if err != nil {
		return transactions.Record{}, fmt.Errorf("lock wallet: %w", err)
	}

	_, err = s.wallets.IncreaseBalance(tx, w.ID, e.Amount)
	if err != nil {
		return transactions.Record{}, fmt.Errorf("increase balance: %w", err)
	}

	rec, err := s.record(tx, w, transactions.TypeCredit, e)
	if err != nil {
		return transactions.Record{}, err
	}

	return rec, nil
}

func (s *Service) record(tx *sql.Tx, w wallets.Wallet, typ transactions.Type, e Entry) (transactions.Record, error) {
	ref := e.Reference
	if ref == "" {
		ref = NewReference()
	}

	means := e.Means
	if means == "" {
		means = transactions.MeansWallet
	}

	rec, err := s.txns.Insert(tx, transactions.Record{
		Reference:   ref,
		UserID:      e.UserID,
		WalletID:    uuid.NullUUID{UUID: w.ID, Valid: true},
		Type:        typ,
		Means:       means,
		Amount:      e.Amount,
		Status:      transactions.StatusSuccess,
		GroupID:     e.GroupID,
		Description: e.Description,
	})
	if err != nil {
		return transactions.Record{}, fmt.Errorf("insert transaction: %w", err)
	}

	return rec, nil
}

// Open returns the user's wallet, creating an empty one on first use.
func (s *Service) Open(ctx context.Context, userID string) (wallets.Wallet, error) {
	w, err := s.wallets.Create(ctx, userID)
	if err != nil {
		return wallets.Wallet{}, fmt.Errorf("open wallet: %w", err)
	}

	return w, nil
}

// Balance reads the wallet without locking it.
func (s *Service) Balance(ctx context.Context, userID string) (wallets.Wallet, error) {
	w, err := s.wallets.Get(ctx, userID)
	if err != nil {
		return wallets.Wallet{}, fmt.Errorf("get wallet: %w", err)
	}

	return w, nil
}

// History lists the user's transaction records, newest first. limit is
// clamped to a sane page size.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]transactions.Record, error) {
	switch {
	case limit <= 0:
		limit = defaultHistoryLimit
	case limit > maxHistoryLimit:
		limit = maxHistoryLimit
	}

	recs, err := s.txns.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}

	return recs, nil
}

// ReferenceUsed reports whether a successful transaction already carries ref.
func (s *Service) ReferenceUsed(ctx context.Context, ref string) (bool, error) {
	used, err := s.txns.SucceededExists(ctx, ref)
	if err != nil {
		return false, fmt.Errorf("check reference: %w", err)
	}

	return used, nil
}

// RecordExternal inserts a success record for a payment that settled
// outside the wallet, e.g. a gateway-paid group share.
func (s *Service) RecordExternal(tx *sql.Tx, e Entry) (transactions.Record, error) {
	if !e.Amount.IsPositive() {
		return transactions.Record{}, ErrInvalidAmount
	}

	if e.Reference == "" {
		return transactions.Record{}, apperr.Validation("external payment reference is required")
	}

	rec, err := s.txns.Insert(tx, transactions.Record{
		Reference:   e.Reference,
		UserID:      e.UserID,
		Type:        transactions.TypeDebit,
		Means:       transactions.MeansExternal,
		Amount:      e.Amount,
		Status:      transactions.StatusSuccess,
		GroupID:     e.GroupID,
		Description: e.Description,
	})
	if err != nil {
		return transactions.Record{}, fmt.Errorf("insert transaction: %w", err)
	}

	return rec, nil
}
