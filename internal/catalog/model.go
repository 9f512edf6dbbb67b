package catalog

import "github.com/google/uuid"

type Product struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsActive bool      `json:"isActive"`
}

// Variant is the read model cart and checkout validate against: the variant's
// own flags plus its parent product's, and the current price.
type Variant struct {
	ID            uuid.UUID `json:"id"`
	ProductID     uuid.UUID `json:"productId"`
	SKU           string    `json:"sku"`
	Name          string    `json:"name"`
	PriceCents    int64     `json:"priceCents"`
	IsActive      bool      `json:"isActive"`
	ProductName   string    `json:"productName"`
	ProductActive bool      `json:"productActive"`
}

// Sellable reports whether the variant may enter a cart or an order.
func (v Variant) Sellable() bool {
	return v.IsActive && v.ProductActive
}
