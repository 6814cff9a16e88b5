package domain

import (
	"github.com/shopspring/decimal"

	"statefeed/pkg/quant"
)

// PositionStatus is the exchange-reported lifecycle state of a position.
type PositionStatus string

const (
	PositionStatusOpen        PositionStatus = "OPEN"
	PositionStatusClosed      PositionStatus = "CLOSED"
	PositionStatusLiquidating PositionStatus = "LIQUIDATING"
)

const (
	PositionSideLong  = "LONG"
	PositionSideShort = "SHORT"
)

// Position represents an open trading position as reported over the stream.
type Position struct {
	ID            int64           `json:"id"`
	Market        string          `json:"market"`
	Side          string          `json:"side"`
	Status        PositionStatus  `json:"status"`
	Size          decimal.Decimal `json:"size"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	Margin        decimal.Decimal `json:"margin"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	RealizedPnL   decimal.Decimal `json:"realized_pnl"`
	UpdatedAt     quant.TimeStamp `json:"updated_at"`
}

// IsOpen reports whether the position is still held on the exchange.
func (p *Position) IsOpen() bool {
	return p.Status != PositionStatusClosed
}
