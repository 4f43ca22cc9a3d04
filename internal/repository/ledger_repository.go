package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fsanano/marketplace/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrItemNotFound = errors.New("item not found")
	ErrUserNotFound = errors.New("user not found")
)

// LedgerRepository is the durable store for user balances, item listings and
// orders. All writes that must be atomic run inside RunAtomic.
type LedgerRepository struct {
	db *pgxpool.Pool
}

func NewLedgerRepository(db *pgxpool.Pool) *LedgerRepository {
	return &LedgerRepository{db: db}
}

type txKey struct{}

// RunAtomic executes fn within a single database transaction. The open
// transaction rides the context; every query method resolves it via
// getExecutor, so fn can call the repository methods transparently.
// Any error returned by fn rolls the whole unit back.
func (r *LedgerRepository) RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// No-op once Commit has succeeded.
	defer tx.Rollback(ctx)

	ctx = context.WithValue(ctx, txKey{}, tx)

	if err := fn(ctx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// PgxExecutor is an interface that matches both *pgxpool.Pool and pgx.Tx
type PgxExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *LedgerRepository) getExecutor(ctx context.Context) PgxExecutor {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.db
}

// GetItemForUpdate locks the item row for the duration of the surrounding
// transaction and returns it.
func (r *LedgerRepository) GetItemForUpdate(ctx context.Context, itemID string) (model.Item, error) {
	return r.scanItem(r.getExecutor(ctx).QueryRow(ctx,
		`SELECT id, title, description, price, seller_id, owner_id, status, created_at
		   FROM items WHERE id = $1 FOR UPDATE`, itemID))
}

// GetItem reads an item without locking. Callers outside a transaction may
// observe state that an in-flight purchase is about to change.
func (r *LedgerRepository) GetItem(ctx context.Context, itemID string) (model.Item, error) {
	return r.scanItem(r.getExecutor(ctx).QueryRow(ctx,
		`SELECT id, title, description, price, seller_id, owner_id, status, created_at
		   FROM items WHERE id = $1`, itemID))
}

func (r *LedgerRepository) scanItem(row pgx.Row) (model.Item, error) {
	var it model.Item
	err := row.Scan(&it.ID, &it.Title, &it.Description, &it.Price,
		&it.SellerID, &it.OwnerID, &it.Status, &it.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Item{}, ErrItemNotFound
		}
		return model.Item{}, fmt.Errorf("failed to get item: %w", err)
	}
	return it, nil
}

// GetUserForUpdate locks the user row and returns it.
func (r *LedgerRepository) GetUserForUpdate(ctx context.Context, userID string) (model.User, error) {
	var u model.User
	err := r.getExecutor(ctx).QueryRow(ctx,
		`SELECT id, username, balance, role FROM users WHERE id = $1 FOR UPDATE`, userID).
		Scan(&u.ID, &u.Username, &u.Balance, &u.Role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// MarkItemSold flips the item to SOLD and records the new owner, but only if
// the item is still LISTED. The returned bool is the affected-row count: false
// means another purchase won the race.
func (r *LedgerRepository) MarkItemSold(ctx context.Context, itemID, buyerID string) (bool, error) {
	tag, err := r.getExecutor(ctx).Exec(ctx,
		`UPDATE items SET status = $1, owner_id = $2 WHERE id = $3 AND status = $4`,
		model.ItemStatusSold, buyerID, itemID, model.ItemStatusListed)
	if err != nil {
		return false, fmt.Errorf("failed to mark item sold: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DebitUser subtracts amount from the user balance.
func (r *LedgerRepository) DebitUser(ctx context.Context, userID string, amount decimal.Decimal) error {
	_, err := r.getExecutor(ctx).Exec(ctx,
		`UPDATE users SET balance = balance - $1 WHERE id = $2`, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to debit user: %w", err)
	}
	return nil
}

// CreditUser adds amount to the user balance.
func (r *LedgerRepository) CreditUser(ctx context.Context, userID string, amount decimal.Decimal) error {
	_, err := r.getExecutor(ctx).Exec(ctx,
		`UPDATE users SET balance = balance + $1 WHERE id = $2`, amount, userID)
	if err != nil {
		return fmt.Errorf("failed to credit user: %w", err)
	}
	return nil
}

// CreateOrder inserts a new order
func (r *LedgerRepository) CreateOrder(ctx context.Context, order model.Order) error {
	_, err := r.getExecutor(ctx).Exec(ctx,
		`INSERT INTO orders (id, item_id, buyer_id, seller_id, price, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		order.ID, order.ItemID, order.BuyerID, order.SellerID, order.Price, order.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// ListOrdersByBuyer returns the buyer's purchases, newest first.
func (r *LedgerRepository) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]model.Order, error) {
	return r.listOrders(ctx, "buyer_id", buyerID)
}

// ListOrdersBySeller returns the seller's sales, newest first.
func (r *LedgerRepository) ListOrdersBySeller(ctx context.Context, sellerID string) ([]model.Order, error) {
	return r.listOrders(ctx, "seller_id", sellerID)
}

func (r *LedgerRepository) listOrders(ctx context.Context, column, userID string) ([]model.Order, error) {
	rows, err := r.getExecutor(ctx).Query(ctx,
		`SELECT id, item_id, buyer_id, seller_id, price, created_at
		   FROM orders WHERE `+column+` = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.ItemID, &o.BuyerID, &o.SellerID, &o.Price, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ListItemsByStatus returns items in the given state, newest first.
func (r *LedgerRepository) ListItemsByStatus(ctx context.Context, status model.ItemStatus) ([]model.Item, error) {
	rows, err := r.getExecutor(ctx).Query(ctx,
		`SELECT id, title, description, price, seller_id, owner_id, status, created_at
		   FROM items WHERE status = $1 ORDER BY created_at DESC`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Title, &it.Description, &it.Price,
			&it.SellerID, &it.OwnerID, &it.Status, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// CreateUser inserts a user row. Used by bootstrap and integration tests;
// balances are otherwise only touched inside purchase transactions.
func (r *LedgerRepository) CreateUser(ctx context.Context, user model.User) error {
	_, err := r.getExecutor(ctx).Exec(ctx,
		`INSERT INTO users (id, username, balance, role) VALUES ($1, $2, $3, $4)`,
		user.ID, user.Username, user.Balance, user.Role)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// CreateItem inserts a listing row. The listing lifecycle is owned by the
// catalog collaborator; this exists for bootstrap and integration tests.
func (r *LedgerRepository) CreateItem(ctx context.Context, item model.Item) error {
	createdAt := item.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := r.getExecutor(ctx).Exec(ctx,
		`INSERT INTO items (id, title, description, price, seller_id, owner_id, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		item.ID, item.Title, item.Description, item.Price,
		item.SellerID, item.OwnerID, item.Status, createdAt)
	if err != nil {
		return fmt.Errorf("failed to create item: %w", err)
	}
	return nil
}
