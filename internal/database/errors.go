package database

import (
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes that are worth retrying
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgConnectionClass      = "08"
)

// IsTransient reports whether err is a failure that a fresh attempt of the same
// transaction may not hit: serialization failures, deadlocks, dropped
// connections and a busy SQLite database.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure ||
			pgErr.Code == pgDeadlockDetected ||
			strings.HasPrefix(pgErr.Code, pgConnectionClass)
	}
	if pgconn.SafeToRetry(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}
