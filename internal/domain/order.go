package domain

import (
	"github.com/shopspring/decimal"

	"statefeed/pkg/quant"
)

// OrderStatus is the exchange-reported lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusUntriggered     OrderStatus = "UNTRIGGERED"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
	OrderStatusRejected        OrderStatus = "REJECTED"
)

const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// Order represents an exchange-side order as reported over the stream.
type Order struct {
	ID            int64           `json:"id"`
	Market        string          `json:"market"`
	Side          string          `json:"side"`
	Status        OrderStatus     `json:"status"`
	Price         decimal.Decimal `json:"price"`
	Size          decimal.Decimal `json:"size"`
	RemainingSize decimal.Decimal `json:"remaining_size"`
	CreatedAt     quant.TimeStamp `json:"created_at"`
}

// IsLive reports whether the order still rests on the exchange.
// Any other status is terminal and evicts the order from the live set.
func (o *Order) IsLive() bool {
	switch o.Status {
	case OrderStatusNew, OrderStatusUntriggered, OrderStatusPartiallyFilled:
		return true
	default:
		return false
	}
}
