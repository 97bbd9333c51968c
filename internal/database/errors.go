package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrConflict marks a constraint violation: unique key or, on postgres,
	// the activity overlap exclusion constraint.
	ErrConflict = errors.New("database constraint conflict")

	// ErrBusy marks transient failures the caller may retry: timeouts,
	// deadlocks, serialization failures and lock waits.
	ErrBusy = errors.New("database busy")
)

// Postgres SQLSTATE codes
const (
	pqUniqueViolation      = "23505"
	pqExclusionViolation   = "23P01"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
	pqLockNotAvailable     = "55P03"
	pqQueryCanceled        = "57014"
)

// MySQL error numbers
const (
	myDuplicateEntry   = 1062
	myLockWaitTimeout  = 1205
	myDeadlockDetected = 1213
)

// Classify wraps driver errors with ErrConflict or ErrBusy so that callers
// can use errors.Is without importing driver packages. Other errors are
// returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrBusy) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation, pqExclusionViolation:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case pqSerializationFailure, pqDeadlockDetected, pqLockNotAvailable, pqQueryCanceled:
			return fmt.Errorf("%w: %w", ErrBusy, err)
		}
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case myDuplicateEntry:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case myLockWaitTimeout, myDeadlockDetected:
			return fmt.Errorf("%w: %w", ErrBusy, err)
		}
		return err
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch {
		case liteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case liteErr.Code == sqlite3.ErrBusy, liteErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %w", ErrBusy, err)
		}
	}

	return err
}

// IsExclusionViolation reports whether err came from a postgres EXCLUDE constraint
func IsExclusionViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == pqExclusionViolation
}
