package memory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/donations/internal/models"
	"github.com/wolfeidau/donations/internal/store"
)

func TestDonorStore(t *testing.T) {
	st := NewDonorStore()
	ctx := context.Background()

	_, err := st.GetByIdentity(ctx, "identity-1")
	require.ErrorIs(t, err, store.ErrDonorNotFound)

	donor := &models.DonorAccount{DonorID: uuid.New(), IdentityID: "identity-1", DisplayName: "Ana"}
	require.NoError(t, st.Create(ctx, donor))
	require.ErrorIs(t, st.Create(ctx, donor), store.ErrDonorAlreadyExists)

	got, err := st.GetByIdentity(ctx, "identity-1")
	require.NoError(t, err)
	require.Equal(t, donor.DonorID, got.DonorID)
}
