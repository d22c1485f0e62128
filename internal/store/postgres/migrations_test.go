package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations()
	require.NoError(t, err)
	require.NotEmpty(t, migrations)

	for i := 1; i < len(migrations); i++ {
		require.Less(t, migrations[i-1].version, migrations[i].version)
	}

	require.Equal(t, 1, migrations[0].version)
	require.Contains(t, migrations[0].content, "CREATE TABLE tenants")
	require.Contains(t, migrations[0].content, "tenants_slug_key")
}
