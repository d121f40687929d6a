package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the domain layers translate into their own errors.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
)

// UniqueViolation reports whether err is a unique constraint violation and,
// if so, the name of the violated constraint or index.
func UniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == CodeUniqueViolation {
		return pgErr.ConstraintName, true
	}
	return "", false
}

// IsUniqueViolation reports whether err is any unique constraint violation.
func IsUniqueViolation(err error) bool {
	_, ok := UniqueViolation(err)
	return ok
}

// IsForeignKeyViolation reports whether err references a missing parent row.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == CodeForeignKeyViolation
}
