package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	OrderCreatedName         = "OrderCreated"
	OrderStatusChangedName   = "OrderStatusChanged"
	PaymentStatusChangedName = "PaymentStatusChanged"
	CartViewedName           = "CartViewed"
)

type OrderLine struct {
	VariantID uuid.UUID `json:"variantId"`
	Quantity  int       `json:"quantity"`
	Price     int64     `json:"priceCents"`
}

type OrderCreated struct {
	OrderID     uuid.UUID   `json:"orderId"`
	OrderNumber string      `json:"orderNumber"`
	UserID      uuid.UUID   `json:"userId"`
	TotalCents  int64       `json:"totalCents"`
	Items       []OrderLine `json:"items"`
}

type OrderStatusChanged struct {
	OrderID      uuid.UUID `json:"orderId"`
	OrderNumber  string    `json:"orderNumber"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	CancelReason string    `json:"cancelReason,omitempty"`
}

type PaymentStatusChanged struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber"`
	From        string    `json:"from"`
	To          string    `json:"to"`
}

// CartViewed is the best-effort view-tracking signal consumed by the
// analytics collaborator.
type CartViewed struct {
	UserID   uuid.UUID `json:"userId"`
	ViewedAt time.Time `json:"viewedAt"`
}
