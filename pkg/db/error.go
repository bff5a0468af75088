package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgLockNotAvailable     = "55P03"
)

func IsDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, pgUniqueViolation) {
		return true
	}

	msg := err.Error()
	// PostgreSQL (23505) without pgconn wrapping
	if strings.Contains(msg, "duplicate key value violates unique constraint") {
		return true
	}
	// MySQL (1062)
	if strings.Contains(msg, "Error 1062") {
		return true
	}
	// SQLite (2067)
	return strings.Contains(msg, "UNIQUE constraint failed")
}

// IsSerializationFailure reports a postgres serialization conflict that the
// caller may retry.
func IsSerializationFailure(err error) bool {
	return hasPGCode(err, pgSerializationFailure)
}

func IsLockTimeout(err error) bool {
	return hasPGCode(err, pgLockNotAvailable)
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
