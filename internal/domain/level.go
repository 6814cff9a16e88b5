package domain

import (
	"github.com/shopspring/decimal"
)

// PriceLevel is a single price/quantity pair on one side of an order book.
// A level held by the mirror always has strictly positive quantity; levels
// that reach zero or negative quantity are removed, never stored.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Key returns the canonical map key for this level. The exact decimal string
// form is used (never a float) so that equal prices always collide on the
// same key regardless of how they were parsed.
func (l PriceLevel) Key() string {
	return l.Price.String()
}
