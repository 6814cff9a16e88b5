package domain

import (
	"statefeed/pkg/quant"
)

// OrderBookSnapshot is the immutable consumer-facing view of one order book.
// Bids are sorted descending by price, asks ascending; neither slice contains
// duplicate price keys. Built fresh on every emission, never mutated after.
type OrderBookSnapshot struct {
	Market    string          `json:"market"`
	Bids      []PriceLevel    `json:"bids"`
	Asks      []PriceLevel    `json:"asks"`
	Timestamp quant.TimeStamp `json:"timestamp"`
	Sequence  uint64          `json:"sequence"`
}

// AccountSnapshot is the immutable consumer-facing view of the account mirror.
// Orders and Positions hold only currently-live records, sorted by id so that
// two builds over identical state are structurally equal. Balance is nil until
// the first balance event arrives.
type AccountSnapshot struct {
	Orders    []Order         `json:"orders"`
	Positions []Position      `json:"positions"`
	Balance   *Balance        `json:"balance"`
	Timestamp quant.TimeStamp `json:"timestamp"`
	Sequence  uint64          `json:"sequence"`
}
