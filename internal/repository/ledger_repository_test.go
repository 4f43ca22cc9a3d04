package repository_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"fsanano/marketplace/internal/model"
	"fsanano/marketplace/internal/repository"
	"fsanano/marketplace/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	_ = godotenv.Load("../../.env")

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))

	// Truncate tables to ensure clean state
	for _, table := range []string{"orders", "items", "users"} {
		_, err := pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE")
		require.NoError(t, err)
	}

	return pool
}

func seedDB(t *testing.T, repo *repository.LedgerRepository, balance, price string) (buyerID, sellerID, itemID string) {
	t.Helper()
	ctx := context.Background()

	buyerID, sellerID, itemID = uuid.NewString(), uuid.NewString(), uuid.NewString()
	require.NoError(t, repo.CreateUser(ctx, model.User{
		ID: buyerID, Username: "buyer-" + buyerID[:8],
		Balance: decimal.RequireFromString(balance), Role: "USER"}))
	require.NoError(t, repo.CreateUser(ctx, model.User{
		ID: sellerID, Username: "seller-" + sellerID[:8],
		Balance: decimal.Zero, Role: "USER"}))
	require.NoError(t, repo.CreateItem(ctx, model.Item{
		ID: itemID, Title: "Test Item", Description: "integration fixture",
		Price: decimal.RequireFromString(price), SellerID: sellerID,
		Status: model.ItemStatusListed}))
	return buyerID, sellerID, itemID
}

func TestMarkItemSold_Conditional(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	repo := repository.NewLedgerRepository(pool)
	ctx := context.Background()

	buyerID, _, itemID := seedDB(t, repo, "100", "10")

	err := repo.RunAtomic(ctx, func(ctx context.Context) error {
		sold, err := repo.MarkItemSold(ctx, itemID, buyerID)
		require.NoError(t, err)
		assert.True(t, sold, "first transition must win")

		sold, err = repo.MarkItemSold(ctx, itemID, buyerID)
		require.NoError(t, err)
		assert.False(t, sold, "second transition must report zero affected rows")
		return nil
	})
	require.NoError(t, err)

	item, err := repo.GetItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusSold, item.Status)
	require.NotNil(t, item.OwnerID)
	assert.Equal(t, buyerID, *item.OwnerID)
}

func TestRunAtomic_RollsBack(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	repo := repository.NewLedgerRepository(pool)
	ctx := context.Background()

	buyerID, _, itemID := seedDB(t, repo, "100", "10")

	boom := errors.New("boom")
	err := repo.RunAtomic(ctx, func(ctx context.Context) error {
		if err := repo.DebitUser(ctx, buyerID, decimal.RequireFromString("40")); err != nil {
			return err
		}
		if _, err := repo.MarkItemSold(ctx, itemID, buyerID); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var balance decimal.Decimal
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT balance FROM users WHERE id = $1", buyerID).Scan(&balance))
	assert.True(t, balance.Equal(decimal.RequireFromString("100")), "rollback must restore the balance")

	item, err := repo.GetItem(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusListed, item.Status)
}

func TestGetItemForUpdate_NotFound(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	repo := repository.NewLedgerRepository(pool)

	err := repo.RunAtomic(context.Background(), func(ctx context.Context) error {
		_, err := repo.GetItemForUpdate(ctx, uuid.NewString())
		return err
	})
	require.ErrorIs(t, err, repository.ErrItemNotFound)
}

func TestListOrders_NewestFirst(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	repo := repository.NewLedgerRepository(pool)
	ctx := context.Background()

	buyerID, sellerID, itemID := seedDB(t, repo, "100", "10")
	secondItem := uuid.NewString()
	require.NoError(t, repo.CreateItem(ctx, model.Item{
		ID: secondItem, Title: "Second", Description: "integration fixture",
		Price: decimal.RequireFromString("20"), SellerID: sellerID,
		Status: model.ItemStatusListed}))

	base := time.Now().UTC().Truncate(time.Millisecond)
	older := model.Order{ID: uuid.NewString(), ItemID: itemID, BuyerID: buyerID,
		SellerID: sellerID, Price: decimal.RequireFromString("10"), CreatedAt: base.Add(-time.Hour)}
	newer := model.Order{ID: uuid.NewString(), ItemID: secondItem, BuyerID: buyerID,
		SellerID: sellerID, Price: decimal.RequireFromString("20"), CreatedAt: base}
	require.NoError(t, repo.CreateOrder(ctx, older))
	require.NoError(t, repo.CreateOrder(ctx, newer))

	orders, err := repo.ListOrdersByBuyer(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, newer.ID, orders[0].ID)
	assert.Equal(t, older.ID, orders[1].ID)

	sales, err := repo.ListOrdersBySeller(ctx, sellerID)
	require.NoError(t, err)
	assert.Len(t, sales, 2)
}

// Full engine against Postgres: the FOR UPDATE lock plus the conditional
// LISTED->SOLD update must let exactly one of the concurrent buyers through.
func TestPurchase_Postgres_Concurrent(t *testing.T) {
	pool := setupTestDB(t)
	defer pool.Close()
	repo := repository.NewLedgerRepository(pool)
	ctx := context.Background()

	const buyers = 10

	sellerID := uuid.NewString()
	require.NoError(t, repo.CreateUser(ctx, model.User{
		ID: sellerID, Username: "seller-" + sellerID[:8],
		Balance: decimal.Zero, Role: "USER"}))

	itemID := uuid.NewString()
	require.NoError(t, repo.CreateItem(ctx, model.Item{
		ID: itemID, Title: "Contended Item", Description: "integration fixture",
		Price: decimal.RequireFromString("25"), SellerID: sellerID,
		Status: model.ItemStatusListed}))

	buyerIDs := make([]string, buyers)
	for i := range buyerIDs {
		buyerIDs[i] = uuid.NewString()
		require.NoError(t, repo.CreateUser(ctx, model.User{
			ID: buyerIDs[i], Username: "buyer-" + buyerIDs[i][:8],
			Balance: decimal.RequireFromString("100"), Role: "USER"}))
	}

	svc := service.NewPurchaseService(repo, zap.NewNop())

	results := make([]error, buyers)
	var g errgroup.Group
	for i := 0; i < buyers; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.Purchase(ctx, buyerIDs[i], itemID)
			results[i] = err
			return nil
		})
	}
	require.NoError(t, g.Wait())

	won := 0
	for _, err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, service.ErrItemUnavailable):
		default:
			t.Fatalf("unexpected rejection: %v", err)
		}
	}
	assert.Equal(t, 1, won, "exactly one purchase must win")

	var orderCount int
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM orders WHERE item_id = $1", itemID).Scan(&orderCount))
	assert.Equal(t, 1, orderCount)

	var sellerBalance decimal.Decimal
	require.NoError(t, pool.QueryRow(ctx,
		"SELECT balance FROM users WHERE id = $1", sellerID).Scan(&sellerBalance))
	assert.True(t, sellerBalance.Equal(decimal.RequireFromString("25")))

	var total decimal.Decimal
	require.NoError(t, pool.QueryRow(ctx, "SELECT SUM(balance) FROM users").Scan(&total))
	assert.True(t, total.Equal(decimal.RequireFromString("1000")), "funds must be conserved")
}
