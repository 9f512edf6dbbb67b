package inventory

import (
	"github.com/google/uuid"
)

// VariantStock is the authoritative counter pair for one variant.
// Invariant: 0 <= Reserved <= Stock. Available = Stock - Reserved.
type VariantStock struct {
	VariantID uuid.UUID `json:"variantId"`
	Stock     int       `json:"stock"`
	Reserved  int       `json:"reservedStock"`
}

func (s VariantStock) Available() int {
	return s.Stock - s.Reserved
}

// Line is one variant/quantity pair in a reservation request.
type Line struct {
	VariantID uuid.UUID
	Quantity  int
}

// ShortLine reports a line that could not be reserved.
type ShortLine struct {
	VariantID uuid.UUID `json:"variantId"`
	Requested int       `json:"requested"`
	Available int       `json:"available"`
}

// Reservation states. A reservation is created held, and ends either
// committed (stock permanently consumed at delivery) or released (quantity
// returned to availability).
const (
	StateHeld      = "held"
	StateCommitted = "committed"
	StateReleased  = "released"
)

// Reservation is the token handed back by a successful reserve. Commit and
// release are keyed by Token and are idempotent: only a held reservation
// moves the counters.
type Reservation struct {
	Token     uuid.UUID `json:"token"`
	OrderID   uuid.UUID `json:"orderId"`
	VariantID uuid.UUID `json:"variantId"`
	Quantity  int       `json:"quantity"`
	State     string    `json:"state"`
}
