// Package catalog manages the product catalog: the priced, stock-counted
// rows that order creation reserves against.
package catalog

import (
	"errors"
	"time"
)

// ErrSKUExists indicates a product create collided with an existing SKU.
var ErrSKUExists = errors.New("sku already exists")

// Product is a catalog row. PriceCents changes only via an explicit
// patch; Stock is mutated by order creation and cancellation.
type Product struct {
	ID         int64     `json:"id" db:"id"`
	SKU        string    `json:"sku" db:"sku"`
	Name       string    `json:"name" db:"name"`
	PriceCents int64     `json:"price_cents" db:"price_cents"`
	Stock      int32     `json:"stock" db:"stock"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// NewProductInput is the payload for creating a product.
type NewProductInput struct {
	SKU        string
	Name       string
	PriceCents int64
	Stock      int32
}

// PatchProductInput carries the optional fields of a product patch.
type PatchProductInput struct {
	PriceCents *int64
	Stock      *int32
}

// ListProductsQuery filters and paginates the product listing. Search
// matches name or SKU, case-insensitively.
type ListProductsQuery struct {
	Search string
	Cursor int64
	Limit  int
}
