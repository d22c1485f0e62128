package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/store"
)

func TestCredentialStore(t *testing.T) {
	t.Run("emails are case-insensitive", func(t *testing.T) {
		st := NewCredentialStore()
		ctx := context.Background()

		require.NoError(t, st.Create(ctx, &models.Credential{IdentityID: "id-1", Email: "Ana@Example.com"}))

		err := st.Create(ctx, &models.Credential{IdentityID: "id-2", Email: "ana@example.com"})
		require.ErrorIs(t, err, store.ErrEmailTaken)

		got, err := st.GetByEmail(ctx, "ANA@example.com")
		require.NoError(t, err)
		require.Equal(t, "id-1", got.IdentityID)
		require.Equal(t, "ana@example.com", got.Email)
	})

	t.Run("delete frees the email", func(t *testing.T) {
		st := NewCredentialStore()
		ctx := context.Background()

		require.NoError(t, st.Create(ctx, &models.Credential{IdentityID: "id-1", Email: "ana@example.com"}))
		require.NoError(t, st.Delete(ctx, "id-1"))
		require.ErrorIs(t, st.Delete(ctx, "id-1"), store.ErrCredentialNotFound)

		_, err := st.Get(ctx, "id-1")
		require.ErrorIs(t, err, store.ErrCredentialNotFound)

		require.NoError(t, st.Create(ctx, &models.Credential{IdentityID: "id-2", Email: "ana@example.com"}))
		require.Equal(t, 1, st.Len())
	})
}
