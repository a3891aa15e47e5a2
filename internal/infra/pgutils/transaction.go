package pgutils

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fastprodman/groupbuy/internal/apperr"
)

const CodeForeignKeyViolation = "23503"

// ErrDeferredViolation is a constraint that only failed at commit, such as a
// deferred foreign key.
var ErrDeferredViolation = apperr.Inconsistency("transaction violated a deferred constraint")

// WithTx runs fn inside a transaction.
// It commits if fn returns nil, otherwise it rolls back. A panic in fn rolls
// back and re-panics.
func WithTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil) // default isolation level
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	err = fn(tx)
	if err != nil {
		rbErr := tx.Rollback()
		if rbErr != nil {
			return fmt.Errorf("rollback after fn error: %v (fn err: %w)", rbErr, err)
		}

		return fmt.Errorf("fn: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		code, constraint, ok := Violation(err)
		if ok && (code == CodeForeignKeyViolation || code == CodeCheckViolation) {
			return fmt.Errorf("commit tx: %w: %s (%v)", ErrDeferredViolation, constraint, err)
		}

		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}
