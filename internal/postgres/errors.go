package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/openshop/openshop/internal/apperr"
)

// SQLSTATE codes the repositories care about.
const (
	codeLockNotAvailable = "55P03"
	codeUniqueViolation  = "23505"
	codeFKViolation      = "23503"
	codeCheckViolation   = "23514"
)

// MapError classifies driver errors into the shared taxonomy. Lock waits
// that hit lock_timeout come back retryable; everything unclassified stays
// an internal fault.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable:
			return apperr.Wrap(apperr.Unavailable, "row lock busy, retry later", err)
		case codeUniqueViolation:
			return apperr.Wrap(apperr.Conflict, "duplicate key", err)
		case codeFKViolation:
			return apperr.Wrap(apperr.NotFound, "referenced row does not exist", err)
		case codeCheckViolation:
			return apperr.Wrap(apperr.Internal, "constraint violated", err)
		}
	}
	return err
}

// SetLockTimeout bounds every row-lock wait in the transaction. Without it a
// contended inventory row would block the caller indefinitely.
func SetLockTimeout(ctx context.Context, tx pgx.Tx, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	_, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", d.Milliseconds()))
	return MapError(err)
}
