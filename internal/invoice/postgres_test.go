package invoice

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/rentalcore/internal/config"
	"github.com/nikhilbhutani/rentalcore/internal/database"
	"github.com/nikhilbhutani/rentalcore/internal/models"
	"github.com/nikhilbhutani/rentalcore/internal/rbac/rbactest"
	"github.com/nikhilbhutani/rentalcore/internal/store/postgres"
)

func newPostgresFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, database.RunMigrations(ctx, dsn))
	pool, err := database.NewPool(ctx, config.DatabaseConfig{URL: dsn, MaxConns: 8, MinConns: 1})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return fixtureOn(t, rbactest.WithStore(t, postgres.New(pool)))
}

func TestPostgresConcurrentPaymentsAllLand(t *testing.T) {
	got := concurrentPayments(t, newPostgresFixture(t), 20)
	assert.True(t, got.PaidAmount.Equal(d("20")), "paid %s", got.PaidAmount)
	assert.Equal(t, models.InvoicePending, got.Status)
}
