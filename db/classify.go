package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/muthu-raja18/QuickServe-sub001/fault"
)

const (
	CodeUniqueViolation      = "23505"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
	CodeCheckViolation       = "23514"
)

// Classify attaches a fault.Kind to a pgx error so callers can tell lost races
// from outages. pgx.ErrNoRows passes through untouched for the caller to map.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if fault.KindOf(err) != fault.KindUnknown {
		return fmt.Errorf("%s: %w", op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case CodeSerializationFailure, CodeDeadlockDetected:
			return fault.Wrap(fault.KindConflict, op, err)
		case CodeCheckViolation:
			return fault.Wrap(fault.KindInvalid, op, err)
		}
		// 08xxx connection exceptions, admin shutdown, too many connections.
		if strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == "57P01" || pgErr.Code == "53300" {
			return fault.Wrap(fault.KindUnavailable, op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		pgconn.SafeToRetry(err),
		pgconn.Timeout(err),
		errors.As(err, &netErr):
		return fault.Wrap(fault.KindUnavailable, op, err)
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fault.Wrap(fault.KindUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsUniqueViolation reports a 23505 from Postgres.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == CodeUniqueViolation
}
