package order

import (
	"time"

	"github.com/google/uuid"
)

// Item is a frozen snapshot of one cart line at checkout. It carries the
// product and variant names of that moment and is never re-derived from
// current catalog data.
type Item struct {
	ID            uuid.UUID `json:"id"`
	OrderID       uuid.UUID `json:"orderId"`
	VariantID     uuid.UUID `json:"variantId"`
	ProductName   string    `json:"productName"`
	VariantSKU    string    `json:"variantSku"`
	VariantName   string    `json:"variantName"`
	Quantity      int       `json:"quantity"`
	PriceCents    int64     `json:"priceCents"`
	SubtotalCents int64     `json:"subtotalCents"`
}

// ShippingDetails is copied onto the order at creation and never changes.
type ShippingDetails struct {
	Address   string `json:"address"`
	City      string `json:"city"`
	Phone     string `json:"phone"`
	Recipient string `json:"recipient"`
}

type BillingDetails struct {
	Address string `json:"address"`
	City    string `json:"city"`
}

// Order is immutable after creation except for its status fields,
// timestamps, cancel reason and admin notes. It is never hard-deleted.
type Order struct {
	ID            uuid.UUID       `json:"orderId"`
	OrderNumber   string          `json:"orderNumber"`
	UserID        uuid.UUID       `json:"userId"`
	Items         []Item          `json:"items"`
	SubtotalCents int64           `json:"subtotalCents"`
	ShippingCents int64           `json:"shippingFeeCents"`
	TaxCents      int64           `json:"taxCents"`
	DiscountCents int64           `json:"discountCents"`
	TotalCents    int64           `json:"totalCents"`
	Shipping      ShippingDetails `json:"shipping"`
	Billing       BillingDetails  `json:"billing"`
	PaymentMethod PaymentMethod   `json:"paymentMethod"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	OrderStatus   Status          `json:"orderStatus"`
	Notes         string          `json:"notes,omitempty"`
	CancelReason  string          `json:"cancelReason,omitempty"`
	AdminNotes    string          `json:"adminNotes,omitempty"`
	ConfirmedAt   *time.Time      `json:"confirmedAt,omitempty"`
	ShippedAt     *time.Time      `json:"shippedAt,omitempty"`
	DeliveredAt   *time.Time      `json:"deliveredAt,omitempty"`
	CancelledAt   *time.Time      `json:"cancelledAt,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// CheckoutInput carries the externally supplied parts of a checkout:
// addresses, payment method, and the fee/tax/discount amounts computed by
// collaborators outside this core.
type CheckoutInput struct {
	Shipping      ShippingDetails
	Billing       *BillingDetails // nil defaults to the shipping address
	PaymentMethod PaymentMethod
	ShippingCents int64
	TaxCents      int64
	Notes         string
}
