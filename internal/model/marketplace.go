package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemStatus is the lifecycle state of a listing.
type ItemStatus string

const (
	// ItemStatusListed indicates an item that is available for purchase
	ItemStatusListed ItemStatus = "LISTED"
	// ItemStatusSold indicates an item that has been purchased; never reverted
	ItemStatusSold ItemStatus = "SOLD"
)

type User struct {
	ID       string          `json:"id"`
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
	Role     string          `json:"role"`
}

type Item struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	SellerID    string          `json:"seller_id"`
	OwnerID     *string         `json:"owner_id,omitempty"`
	Status      ItemStatus      `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Order is the immutable record of a completed purchase. Price is a snapshot
// of the item price at the moment of sale.
type Order struct {
	ID        string          `json:"id"`
	ItemID    string          `json:"item_id"`
	BuyerID   string          `json:"buyer_id"`
	SellerID  string          `json:"seller_id"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}
