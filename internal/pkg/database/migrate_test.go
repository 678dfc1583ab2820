package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartpay/smartpay-api/internal/pkg/database"
	"github.com/smartpay/smartpay-api/internal/pkg/database/dbtest"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db := dbtest.Postgres(t)
	ctx := context.Background()

	require.NoError(t, database.Migrate(ctx, db))

	var versions int
	require.NoError(t, db.GetContext(ctx, &versions, `SELECT COUNT(*) FROM schema_migrations`))
	assert.Equal(t, 1, versions)

	var tables []string
	require.NoError(t, db.SelectContext(ctx, &tables, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name IN ('users', 'wallets', 'wallet_transactions')
		ORDER BY table_name
	`))
	assert.Equal(t, []string{"users", "wallet_transactions", "wallets"}, tables)
}

func TestNewRedisEmptyURLDisablesRedis(t *testing.T) {
	client, err := database.NewRedis("")
	require.NoError(t, err)
	assert.Nil(t, client)
}
