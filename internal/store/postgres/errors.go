package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/wolfeidau/donations/internal/store"
)

// constraintErrors maps named constraints to the sentinel error their violation means.
var constraintErrors = map[string]error{
	"tenants_slug_key":               store.ErrSlugTaken,
	"identities_email_key":           store.ErrEmailTaken,
	"memberships_pkey":               store.ErrMembershipAlreadyExists,
	"memberships_tenant_id_fkey":     store.ErrTenantNotFound,
	"donor_accounts_identity_id_key": store.ErrDonorAlreadyExists,
}

// mapPostgresError maps PostgreSQL-specific errors to sentinel errors.
// Transient failures are wrapped with store.ErrUnavailable so callers can tell
// retryable failures apart from terminal ones.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %w", store.ErrUnavailable, err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation, pgerrcode.ForeignKeyViolation:
		if sentinel, ok := constraintErrors[pgErr.ConstraintName]; ok {
			return sentinel
		}
		return fmt.Errorf("constraint violation: %s: %w", pgErr.ConstraintName, err)

	case pgerrcode.CheckViolation:
		return fmt.Errorf("check constraint violation: %s: %w", pgErr.ConstraintName, err)

	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return fmt.Errorf("%w: transaction conflict: %w", store.ErrUnavailable, err)

	case pgerrcode.ConnectionException,
		pgerrcode.ConnectionDoesNotExist,
		pgerrcode.ConnectionFailure,
		pgerrcode.CannotConnectNow,
		pgerrcode.SQLClientUnableToEstablishSQLConnection,
		pgerrcode.AdminShutdown,
		pgerrcode.CrashShutdown:
		return fmt.Errorf("%w: database connection error: %w", store.ErrUnavailable, err)

	case pgerrcode.QueryCanceled:
		return fmt.Errorf("%w: query canceled: %w", store.ErrUnavailable, err)

	case pgerrcode.InsufficientResources,
		pgerrcode.DiskFull,
		pgerrcode.OutOfMemory,
		pgerrcode.TooManyConnections:
		return fmt.Errorf("%w: database resource limit: %w", store.ErrUnavailable, err)

	default:
		return fmt.Errorf("postgres error [%s]: %s (detail: %s, hint: %s): %w",
			pgErr.Code, pgErr.Message, pgErr.Detail, pgErr.Hint, err)
	}
}
