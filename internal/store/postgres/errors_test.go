package postgres

import (
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/donations/internal/store"
)

func TestMapPostgresError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{
			name:     "slug unique violation",
			err:      &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "tenants_slug_key"},
			expected: store.ErrSlugTaken,
		},
		{
			name:     "email unique violation",
			err:      &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "identities_email_key"},
			expected: store.ErrEmailTaken,
		},
		{
			name:     "membership for missing tenant",
			err:      &pgconn.PgError{Code: pgerrcode.ForeignKeyViolation, ConstraintName: "memberships_tenant_id_fkey"},
			expected: store.ErrTenantNotFound,
		},
		{
			name:     "donor already exists",
			err:      &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "donor_accounts_identity_id_key"},
			expected: store.ErrDonorAlreadyExists,
		},
		{
			name:     "connection failure is transient",
			err:      &pgconn.PgError{Code: pgerrcode.ConnectionFailure},
			expected: store.ErrUnavailable,
		},
		{
			name:     "too many connections is transient",
			err:      &pgconn.PgError{Code: pgerrcode.TooManyConnections},
			expected: store.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.ErrorIs(t, mapPostgresError(tt.err), tt.expected)
		})
	}

	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, mapPostgresError(nil))
	})

	t.Run("unknown constraint is not a sentinel", func(t *testing.T) {
		err := mapPostgresError(&pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: "other_key"})
		require.Error(t, err)
		require.False(t, errors.Is(err, store.ErrSlugTaken))
		require.False(t, errors.Is(err, store.ErrUnavailable))
	})

	t.Run("non postgres errors pass through", func(t *testing.T) {
		plain := errors.New("boom")
		require.Equal(t, plain, mapPostgresError(plain))
	})
}
