package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"fsanano/marketplace/internal/model"
	"fsanano/marketplace/internal/repository"
)

// CatalogStore is the read-only view of listings the catalog serves.
type CatalogStore interface {
	GetItem(ctx context.Context, itemID string) (model.Item, error)
	ListItemsByStatus(ctx context.Context, status model.ItemStatus) ([]model.Item, error)
}

// Catalog serves the browsable listing feed. The feed is cached for a short
// TTL; a momentarily stale LISTED status is fine for display, the purchase
// transaction is the source of truth.
type Catalog struct {
	store CatalogStore
	ttl   time.Duration

	cacheMu sync.RWMutex
	cached  []model.Item
	expiry  time.Time
}

func NewCatalog(store CatalogStore, ttl time.Duration) *Catalog {
	return &Catalog{store: store, ttl: ttl}
}

// ListedItems returns items currently up for sale, newest first.
func (c *Catalog) ListedItems(ctx context.Context) ([]model.Item, error) {
	c.cacheMu.RLock()
	if time.Now().Before(c.expiry) {
		items := c.cached
		c.cacheMu.RUnlock()
		return items, nil
	}
	c.cacheMu.RUnlock()

	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	// Double check logic
	if time.Now().Before(c.expiry) {
		return c.cached, nil
	}

	items, err := c.store.ListItemsByStatus(ctx, model.ItemStatusListed)
	if err != nil {
		return nil, &StorageError{Err: err}
	}

	c.cached = items
	c.expiry = time.Now().Add(c.ttl)
	return items, nil
}

// Item returns a single listing without caching.
func (c *Catalog) Item(ctx context.Context, itemID string) (model.Item, error) {
	item, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrItemNotFound) {
			return model.Item{}, ErrItemNotFound
		}
		return model.Item{}, &StorageError{Err: err}
	}
	return item, nil
}
