// Package commerce is a typed client for a Strapi v4 storefront backend:
// products, carts, the ordered products attached to carts, and customers.
package commerce

import (
	"github.com/shopspring/decimal"
)

// ImageRef points at an uploaded media file.
type ImageRef struct {
	ID   int64
	URL  string
	Mime string
}

// Product is a catalog entry. Image is nil when absent or not populated.
type Product struct {
	ID          int64
	Title       string
	Description string
	Price       decimal.Decimal
	Image       *ImageRef
}

// Cart belongs to exactly one user and lists its line ids in insertion order.
type Cart struct {
	ID      int64
	OwnerID string
	LineIDs []int64
}

// CartLine is a product, quantity in kilograms and the unit price fixed at creation.
type CartLine struct {
	ID           int64
	ProductID    int64
	ProductTitle string
	Amount       decimal.Decimal
	FixedPrice   decimal.Decimal
}

// Subtotal returns Amount × FixedPrice.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Amount.Mul(l.FixedPrice)
}

// Customer is the checkout record of a chat user.
type Customer struct {
	ID         int64
	ExternalID string
	Email      string
}
