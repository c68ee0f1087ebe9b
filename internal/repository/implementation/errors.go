package implementation

import (
	"context"
	"strings"

	"membership-ledger-be/internal/entity"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// PostgreSQL codes that mean "someone else holds or changed the row".
const (
	pgLockNotAvailable     = "55P03"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// TranslateError maps driver errors onto the ledger sentinels and wraps the rest.
func TranslateError(err error, op string) error {
	if err == nil {
		return nil
	}
	if isDuplicate(err) {
		return errors.Wrapf(entity.ErrDuplicateRecord, "%s: %v", op, err)
	}
	if isConflict(err) {
		return errors.Wrapf(entity.ErrConcurrencyConflict, "%s: %v", op, err)
	}
	return errors.Wrap(err, op)
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isConflict(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgSerializationFailure, pgDeadlockDetected:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
