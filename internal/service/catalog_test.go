package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fsanano/marketplace/internal/model"
	"fsanano/marketplace/internal/service"
	"fsanano/marketplace/internal/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_ListedItemsCached(t *testing.T) {
	ledger := storetest.NewLedger()
	seedUser(ledger, "seller", "0")
	seedItem(ledger, "item-1", "seller", "10")
	seedItem(ledger, "item-2", "seller", "20")
	owner := "buyer"
	sold := model.Item{ID: "item-3", SellerID: "seller", Price: dec("30"),
		Status: model.ItemStatusSold, OwnerID: &owner}
	ledger.Items["item-3"] = sold

	catalog := service.NewCatalog(ledger, 50*time.Millisecond)

	items, err := catalog.ListedItems(context.Background())
	require.NoError(t, err)
	assert.Len(t, items, 2, "sold items are not part of the feed")
	assert.Equal(t, 1, ledger.ListCalls)

	// Within the TTL the store is not consulted again.
	_, err = catalog.ListedItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ledger.ListCalls)

	time.Sleep(60 * time.Millisecond)

	_, err = catalog.ListedItems(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, ledger.ListCalls, "expired cache must rebuild")
}

func TestCatalog_Item(t *testing.T) {
	ledger := storetest.NewLedger()
	seedUser(ledger, "seller", "0")
	seedItem(ledger, "item-1", "seller", "10")

	catalog := service.NewCatalog(ledger, time.Minute)

	item, err := catalog.Item(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, "item-1", item.ID)

	_, err = catalog.Item(context.Background(), "nope")
	require.ErrorIs(t, err, service.ErrItemNotFound)
}

func TestCatalog_StoreFailure(t *testing.T) {
	ledger := storetest.NewLedger()
	ledger.FailWith = errors.New("connection reset")

	catalog := service.NewCatalog(ledger, time.Minute)

	_, err := catalog.ListedItems(context.Background())
	var storageErr *service.StorageError
	require.ErrorAs(t, err, &storageErr)
}
