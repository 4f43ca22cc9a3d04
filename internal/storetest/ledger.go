// Package storetest provides an in-process Ledger implementation for tests.
// It honors the same atomicity contract as the Postgres store: RunAtomic
// serializes units of work and rolls state back when fn fails, so engine
// behavior under concurrency can be exercised without a database.
package storetest

import (
	"context"
	"sync"

	"fsanano/marketplace/internal/model"
	"fsanano/marketplace/internal/repository"

	"github.com/shopspring/decimal"
)

type Ledger struct {
	mu     sync.Mutex
	Users  map[string]model.User
	Items  map[string]model.Item
	Orders []model.Order

	// FailWith, when set, makes every store call fail with it.
	FailWith error
	// ListCalls counts ListItemsByStatus invocations (for cache tests).
	ListCalls int
}

func NewLedger() *Ledger {
	return &Ledger{
		Users: make(map[string]model.User),
		Items: make(map[string]model.Item),
	}
}

type txKey struct{}

// RunAtomic serializes fn against all other units of work and restores the
// pre-transaction state if fn returns an error.
func (l *Ledger) RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if l.FailWith != nil {
		return l.FailWith
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	users := make(map[string]model.User, len(l.Users))
	for k, v := range l.Users {
		users[k] = v
	}
	items := make(map[string]model.Item, len(l.Items))
	for k, v := range l.Items {
		items[k] = v
	}
	orders := len(l.Orders)

	ctx = context.WithValue(ctx, txKey{}, true)
	if err := fn(ctx); err != nil {
		l.Users = users
		l.Items = items
		l.Orders = l.Orders[:orders]
		return err
	}
	return nil
}

// enter takes the lock unless the call is already inside RunAtomic.
func (l *Ledger) enter(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	l.mu.Lock()
	return l.mu.Unlock
}

func (l *Ledger) GetItemForUpdate(ctx context.Context, itemID string) (model.Item, error) {
	return l.GetItem(ctx, itemID)
}

func (l *Ledger) GetItem(ctx context.Context, itemID string) (model.Item, error) {
	if l.FailWith != nil {
		return model.Item{}, l.FailWith
	}
	defer l.enter(ctx)()
	item, ok := l.Items[itemID]
	if !ok {
		return model.Item{}, repository.ErrItemNotFound
	}
	return item, nil
}

func (l *Ledger) GetUserForUpdate(ctx context.Context, userID string) (model.User, error) {
	if l.FailWith != nil {
		return model.User{}, l.FailWith
	}
	defer l.enter(ctx)()
	user, ok := l.Users[userID]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (l *Ledger) DebitUser(ctx context.Context, userID string, amount decimal.Decimal) error {
	return l.adjustBalance(ctx, userID, amount.Neg())
}

func (l *Ledger) CreditUser(ctx context.Context, userID string, amount decimal.Decimal) error {
	return l.adjustBalance(ctx, userID, amount)
}

func (l *Ledger) adjustBalance(ctx context.Context, userID string, delta decimal.Decimal) error {
	if l.FailWith != nil {
		return l.FailWith
	}
	defer l.enter(ctx)()
	user, ok := l.Users[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.Balance = user.Balance.Add(delta)
	l.Users[userID] = user
	return nil
}

func (l *Ledger) MarkItemSold(ctx context.Context, itemID, buyerID string) (bool, error) {
	if l.FailWith != nil {
		return false, l.FailWith
	}
	defer l.enter(ctx)()
	item, ok := l.Items[itemID]
	if !ok || item.Status != model.ItemStatusListed {
		return false, nil
	}
	owner := buyerID
	item.Status = model.ItemStatusSold
	item.OwnerID = &owner
	l.Items[itemID] = item
	return true, nil
}

func (l *Ledger) CreateOrder(ctx context.Context, order model.Order) error {
	if l.FailWith != nil {
		return l.FailWith
	}
	defer l.enter(ctx)()
	l.Orders = append(l.Orders, order)
	return nil
}

func (l *Ledger) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]model.Order, error) {
	return l.listOrders(ctx, func(o model.Order) bool { return o.BuyerID == buyerID })
}

func (l *Ledger) ListOrdersBySeller(ctx context.Context, sellerID string) ([]model.Order, error) {
	return l.listOrders(ctx, func(o model.Order) bool { return o.SellerID == sellerID })
}

// listOrders walks insertion order backwards: newest first.
func (l *Ledger) listOrders(ctx context.Context, match func(model.Order) bool) ([]model.Order, error) {
	if l.FailWith != nil {
		return nil, l.FailWith
	}
	defer l.enter(ctx)()
	var orders []model.Order
	for i := len(l.Orders) - 1; i >= 0; i-- {
		if match(l.Orders[i]) {
			orders = append(orders, l.Orders[i])
		}
	}
	return orders, nil
}

func (l *Ledger) ListItemsByStatus(ctx context.Context, status model.ItemStatus) ([]model.Item, error) {
	if l.FailWith != nil {
		return nil, l.FailWith
	}
	defer l.enter(ctx)()
	l.ListCalls++
	var items []model.Item
	for _, item := range l.Items {
		if item.Status == status {
			items = append(items, item)
		}
	}
	return items, nil
}
