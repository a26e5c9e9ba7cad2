package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation from
// Postgres or SQLite. When constraintName is provided the violation must
// reference that constraint or index.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		return constraintName == "" || pgErr.ConstraintName == constraintName
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	return constraintName == "" || strings.Contains(msg, constraintName)
}
