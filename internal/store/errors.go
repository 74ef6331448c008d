package store

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error kinds. Every error leaving this package that stems from one of
// these conditions wraps the matching kind, so callers can use errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrConflict         = errors.New("concurrent modification")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrNotFound         = errors.New("not found")
)

// Postgres SQLSTATE codes treated as lost races.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Classify maps a raw pgx/pgconn error onto one of the package's kinds.
// Errors that already carry a kind, and errors with no mapping, are
// returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrNotFound) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeSerializationFailure, pgErr.Code == codeDeadlockDetected:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "23":
			// integrity_constraint_violation class
			return fmt.Errorf("%w: %w", ErrValidation, err)
		case len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "57"):
			// connection_exception, operator_intervention
			return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		return err
	}

	var connectErr *pgconn.ConnectError
	var opErr *net.OpError
	switch {
	case errors.As(err, &connectErr), errors.As(err, &opErr):
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	case pgconn.Timeout(err), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	case errors.Is(err, pgx.ErrTxClosed):
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if err.Error() == "closed pool" {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return err
}
