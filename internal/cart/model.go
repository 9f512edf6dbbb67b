package cart

import (
	"time"

	"github.com/google/uuid"
)

// Cart is one per user, created lazily on first access.
type Cart struct {
	ID        uuid.UUID `json:"cartId"`
	UserID    uuid.UUID `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Item is a cart line. PriceAtAddCents is the snapshot taken the moment the
// variant entered the cart; later catalog price changes do not touch it.
type Item struct {
	ID              uuid.UUID `json:"itemId"`
	CartID          uuid.UUID `json:"cartId"`
	VariantID       uuid.UUID `json:"variantId"`
	Quantity        int       `json:"quantity"`
	PriceAtAddCents int64     `json:"priceAtAddCents"`
}

func (i Item) SubtotalCents() int64 {
	return i.PriceAtAddCents * int64(i.Quantity)
}

// ViewItem is one rendered cart line.
type ViewItem struct {
	ItemID          uuid.UUID `json:"itemId"`
	VariantID       uuid.UUID `json:"variantId"`
	ProductName     string    `json:"productName"`
	VariantName     string    `json:"variantName"`
	VariantSKU      string    `json:"variantSku"`
	Quantity        int       `json:"quantity"`
	PriceAtAddCents int64     `json:"priceAtAddCents"`
	SubtotalCents   int64     `json:"subtotalCents"`
}

// View is the rendered cart projection served to clients and held in the
// view cache. TotalItems and SubtotalCents are derived, never stored.
type View struct {
	CartID        uuid.UUID  `json:"cartId"`
	UserID        uuid.UUID  `json:"userId"`
	Items         []ViewItem `json:"items"`
	TotalItems    int        `json:"totalItems"`
	SubtotalCents int64      `json:"subtotalCents"`
}

// Drop reasons reported by Sync.
const (
	DropReasonUnavailable       = "unavailable"
	DropReasonInsufficientStock = "insufficient_stock"
)

// DroppedItem names a line Sync evicted and why. Lines are dropped outright
// rather than clamped to available stock, so the buyer re-confirms them
// explicitly.
type DroppedItem struct {
	ItemID    uuid.UUID `json:"itemId"`
	VariantID uuid.UUID `json:"variantId"`
	Reason    string    `json:"reason"`
}

type SyncResult struct {
	Dropped []DroppedItem `json:"dropped"`
	View    *View         `json:"cart"`
}
