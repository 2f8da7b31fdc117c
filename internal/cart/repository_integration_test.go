//go:build integration

package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/testutil"
)

func TestCartRepository_LineLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	repo := NewCartRepository(testutil.Postgres(ctx, t))

	_, err := repo.FindByOwner(ctx, "user-1")
	require.ErrorIs(t, err, domain.ErrCartNotFound)

	c, err := repo.AddLine(ctx, "user-1", domain.CartLine{ProductID: "PROD-001", Quantity: 2, FinalPrice: decimal.RequireFromString("10.50")})
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)

	c, err = repo.AddLine(ctx, "user-1", domain.CartLine{ProductID: "PROD-002", Quantity: 1, FinalPrice: decimal.RequireFromString("24.00")})
	require.NoError(t, err)
	require.Len(t, c.Lines, 2)
	assert.Equal(t, []string{"PROD-001", "PROD-002"}, c.ProductIDs())

	_, err = repo.AddLine(ctx, "user-1", domain.CartLine{ProductID: "PROD-001", Quantity: 1, FinalPrice: decimal.RequireFromString("10.50")})
	require.ErrorIs(t, err, domain.ErrCartLineExists)

	c, err = repo.UpdateLine(ctx, "user-1", domain.CartLine{ProductID: "PROD-002", Quantity: 4, FinalPrice: decimal.RequireFromString("24.00")})
	require.NoError(t, err)
	assert.Equal(t, 4, c.Lines[1].Quantity)

	_, err = repo.UpdateLine(ctx, "user-1", domain.CartLine{ProductID: "PROD-003", Quantity: 1, FinalPrice: decimal.RequireFromString("89.99")})
	require.ErrorIs(t, err, domain.ErrCartLineNotFound)

	_, err = repo.UpdateLine(ctx, "user-2", domain.CartLine{ProductID: "PROD-001", Quantity: 1, FinalPrice: decimal.RequireFromString("10.50")})
	require.ErrorIs(t, err, domain.ErrCartNotFound)

	c, err = repo.RemoveLine(ctx, "user-1", "PROD-001")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, "PROD-002", c.Lines[0].ProductID)

	_, err = repo.RemoveLine(ctx, "user-1", "PROD-001")
	require.ErrorIs(t, err, domain.ErrCartLineNotFound)
}

func TestCartRepository_RemoveProducts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	repo := NewCartRepository(testutil.Postgres(ctx, t))

	c, err := repo.ReplaceLines(ctx, "user-1", []domain.CartLine{
		{ProductID: "PROD-001", Quantity: 2, FinalPrice: decimal.RequireFromString("10.50")},
		{ProductID: "PROD-002", Quantity: 1, FinalPrice: decimal.RequireFromString("24.00")},
		{ProductID: "PROD-003", Quantity: 1, FinalPrice: decimal.RequireFromString("89.99")},
	})
	require.NoError(t, err)

	require.NoError(t, repo.RemoveProducts(ctx, c.ID, []string{"PROD-001", "PROD-003"}))

	got, err := repo.FindByOwner(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID, "the cart row is kept")
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "PROD-002", got.Lines[0].ProductID)

	require.NoError(t, repo.RemoveProducts(ctx, c.ID, nil))
}
