package pgutils

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	CodeUniqueViolation = "23505"
	CodeCheckViolation  = "23514"
)

// Violation returns the SQLSTATE and constraint name of a Postgres
// constraint failure anywhere in err's chain.
func Violation(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return "", "", false
	}

	return pgErr.Code, pgErr.ConstraintName, true
}

// IsUniqueViolation reports whether err is a unique violation. When
// constraint is not empty the violated constraint must also match.
func IsUniqueViolation(err error, constraint string) bool {
	code, name, ok := Violation(err)
	if !ok || code != CodeUniqueViolation {
		return false
	}

	return constraint == "" || name == constraint
}

func IsCheckViolation(err error) bool {
	code, _, ok := Violation(err)
	return ok && code == CodeCheckViolation
}
