package storeerr

import (
	"context"
	"errors"
	"net"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/prosodia/prosodia-backend/internal/platform/apierr"
)

// IsUniqueViolation reports a Postgres duplicate-key error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Wrap classifies transport-level failures as StoreUnavailable so the
// orchestrator can translate them to 503. Everything else passes through.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apierr.StoreUnavailable(err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" {
		return apierr.StoreUnavailable(err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apierr.StoreUnavailable(err)
	}
	return err
}
