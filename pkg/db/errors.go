package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE classes we map to domain errors.
const (
	sqlStateUnique     = "23505"
	sqlStateForeignKey = "23503"
)

// IsUniqueViolation matches a duplicate-key error from either driver.
// A non-empty constraint narrows the match to that constraint (postgres)
// or to a message naming it (sqlite).
func IsUniqueViolation(err error, constraint string) bool {
	return violates(err, sqlStateUnique, constraint,
		"duplicate key value", "UNIQUE constraint failed")
}

// IsForeignKeyViolation matches a write rejected by a foreign key.
func IsForeignKeyViolation(err error, constraint string) bool {
	return violates(err, sqlStateForeignKey, constraint,
		"violates foreign key constraint", "FOREIGN KEY constraint failed")
}

func violates(err error, state, constraint string, markers ...string) bool {
	if err == nil {
		return false
	}
	if code, name, ok := sqlState(err); ok {
		return code == state && (constraint == "" || name == constraint)
	}
	msg := err.Error()
	for _, marker := range markers {
		if strings.Contains(msg, marker) {
			return constraint == "" || strings.Contains(msg, constraint)
		}
	}
	return false
}

// sqlState unwraps whichever postgres driver produced err.
func sqlState(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}
	return "", "", false
}
