package pgtestutil

import (
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SeedWallet inserts a wallet for userID and returns its id.
func SeedWallet(t *testing.T, db *sql.DB, userID string, balance decimal.Decimal) uuid.UUID {
	t.Helper()

	id := uuid.New()

	_, err := db.Exec(`
		INSERT INTO wallets (id, user_id, balance) VALUES ($1, $2, $3)
	`, id, userID, balance)
	if err != nil {
		t.Fatalf("seed wallet(%s): %v", userID, err)
	}

	return id
}

// SeedLivestock inserts a livestock lot and returns its id.
func SeedLivestock(t *testing.T, db *sql.DB, name string, price decimal.Decimal, available bool) uuid.UUID {
	t.Helper()

	id := uuid.New()

	_, err := db.Exec(`
		INSERT INTO livestock (id, name, price, available) VALUES ($1, $2, $3, $4)
	`, id, name, price, available)
	if err != nil {
		t.Fatalf("seed livestock(%s): %v", name, err)
	}

	return id
}
