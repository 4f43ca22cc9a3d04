package service

import (
	"context"
	"errors"
	"time"

	"fsanano/marketplace/internal/model"
	"fsanano/marketplace/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Ledger is the atomic multi-row store contract the purchase engine requires.
// RunAtomic must isolate fn from concurrent units of work: two purchases of
// the same item must never both observe it LISTED. The ForUpdate reads lock
// their rows for the rest of the unit, and MarkItemSold reports via its bool
// whether the conditional LISTED->SOLD transition was applied.
type Ledger interface {
	RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error
	GetItemForUpdate(ctx context.Context, itemID string) (model.Item, error)
	GetUserForUpdate(ctx context.Context, userID string) (model.User, error)
	DebitUser(ctx context.Context, userID string, amount decimal.Decimal) error
	CreditUser(ctx context.Context, userID string, amount decimal.Decimal) error
	MarkItemSold(ctx context.Context, itemID, buyerID string) (bool, error)
	CreateOrder(ctx context.Context, order model.Order) error
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]model.Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID string) ([]model.Order, error)
}

type PurchaseService struct {
	ledger Ledger
	log    *zap.Logger
}

func NewPurchaseService(ledger Ledger, log *zap.Logger) *PurchaseService {
	return &PurchaseService{ledger: ledger, log: log}
}

// Purchase atomically transfers ownership of the item and funds between the
// buyer and the seller, and records the order. buyerID must be the already
// authenticated caller identity. On rejection nothing is applied.
//
// Lock order is fixed: item row first, then buyer row.
func (s *PurchaseService) Purchase(ctx context.Context, buyerID, itemID string) (model.Order, error) {
	ctx, span := otel.Tracer("purchase-engine").Start(ctx, "purchase")
	defer span.End()
	span.SetAttributes(
		attribute.String("item.id", itemID),
		attribute.String("buyer.id", buyerID),
	)

	var order model.Order
	err := s.ledger.RunAtomic(ctx, func(ctx context.Context) error {
		item, err := s.ledger.GetItemForUpdate(ctx, itemID)
		if err != nil {
			if errors.Is(err, repository.ErrItemNotFound) {
				return ErrItemNotFound
			}
			return &StorageError{Err: err}
		}
		if item.Status != model.ItemStatusListed {
			return ErrItemUnavailable
		}
		if item.SellerID == buyerID {
			return ErrSelfPurchaseForbidden
		}

		buyer, err := s.ledger.GetUserForUpdate(ctx, buyerID)
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return ErrUserNotFound
			}
			return &StorageError{Err: err}
		}
		if buyer.Balance.LessThan(item.Price) {
			return ErrInsufficientFunds
		}

		// Price is whatever the locked row says right now; a concurrent
		// price edit either landed before the lock or waits behind us.
		sold, err := s.ledger.MarkItemSold(ctx, itemID, buyerID)
		if err != nil {
			return &StorageError{Err: err}
		}
		if !sold {
			return ErrItemUnavailable
		}

		if err := s.ledger.DebitUser(ctx, buyerID, item.Price); err != nil {
			return &StorageError{Err: err}
		}
		if err := s.ledger.CreditUser(ctx, item.SellerID, item.Price); err != nil {
			return &StorageError{Err: err}
		}

		order = model.Order{
			ID:        uuid.NewString(),
			ItemID:    item.ID,
			BuyerID:   buyerID,
			SellerID:  item.SellerID,
			Price:     item.Price,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.ledger.CreateOrder(ctx, order); err != nil {
			return &StorageError{Err: err}
		}
		return nil
	})
	if err != nil {
		var storageErr *StorageError
		if !IsRejection(err) && !errors.As(err, &storageErr) {
			// Begin/commit failures surface here.
			err = &StorageError{Err: err}
		}
		s.log.Info("purchase rejected",
			zap.String("item_id", itemID),
			zap.String("buyer_id", buyerID),
			zap.Error(err))
		return model.Order{}, err
	}

	s.log.Info("item purchased",
		zap.String("order_id", order.ID),
		zap.String("item_id", order.ItemID),
		zap.String("buyer_id", order.BuyerID),
		zap.String("seller_id", order.SellerID),
		zap.String("price", order.Price.String()))
	return order, nil
}

// OrdersByBuyer returns the buyer's purchase history, newest first.
func (s *PurchaseService) OrdersByBuyer(ctx context.Context, buyerID string) ([]model.Order, error) {
	orders, err := s.ledger.ListOrdersByBuyer(ctx, buyerID)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	return orders, nil
}

// OrdersBySeller returns the seller's sales history, newest first.
func (s *PurchaseService) OrdersBySeller(ctx context.Context, sellerID string) ([]model.Order, error) {
	orders, err := s.ledger.ListOrdersBySeller(ctx, sellerID)
	if err != nil {
		return nil, &StorageError{Err: err}
	}
	return orders, nil
}
