package domain

import (
	"github.com/shopspring/decimal"

	"statefeed/pkg/quant"
)

// Balance is the single account balance record. Every accepted balance event
// replaces the prior record wholesale (last-write-wins, no field merge).
type Balance struct {
	Equity         decimal.Decimal `json:"equity"`
	FreeCollateral decimal.Decimal `json:"free_collateral"`
	QuoteBalance   decimal.Decimal `json:"quote_balance"`
	UpdatedAt      quant.TimeStamp `json:"updated_at"`
}
