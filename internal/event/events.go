package event

import (
	"statefeed/internal/domain"
	"statefeed/pkg/quant"
)

// Type tags the envelope payload. The entity kind and the snapshot/delta mode
// are folded into one closed enum so that dispatch is a single exhaustive
// switch per reducer.
type Type uint16

const (
	EvBookSnapshot Type = iota + 1
	EvBookDelta
	EvOrderSnapshot
	EvOrderDelta
	EvPositionSnapshot
	EvPositionDelta
	EvBalanceSnapshot
	EvBalanceDelta
)

func (t Type) String() string {
	switch t {
	case EvBookSnapshot:
		return "BOOK_SNAPSHOT"
	case EvBookDelta:
		return "BOOK_DELTA"
	case EvOrderSnapshot:
		return "ORDER_SNAPSHOT"
	case EvOrderDelta:
		return "ORDER_DELTA"
	case EvPositionSnapshot:
		return "POSITION_SNAPSHOT"
	case EvPositionDelta:
		return "POSITION_DELTA"
	case EvBalanceSnapshot:
		return "BALANCE_SNAPSHOT"
	case EvBalanceDelta:
		return "BALANCE_DELTA"
	default:
		return "UNKNOWN"
	}
}

// IsSnapshot reports whether the type is a full-replacement payload.
func (t Type) IsSnapshot() bool {
	switch t {
	case EvBookSnapshot, EvOrderSnapshot, EvPositionSnapshot, EvBalanceSnapshot:
		return true
	default:
		return false
	}
}

// BookPayload carries the level changes of one book event. For snapshots the
// slices are the full book; for deltas they are additive quantity changes.
type BookPayload struct {
	Market string              `json:"market"`
	Bids   []domain.PriceLevel `json:"bids"`
	Asks   []domain.PriceLevel `json:"asks"`
}

// Envelope is the outer message wrapper pulled from a stream source.
// Exactly one payload field is set, selected by Type; a missing payload for
// the declared type marks the envelope malformed and it is skipped by the
// reducers. Seq and Ts are applied to the subscription metadata regardless.
type Envelope struct {
	Type      Type              `json:"type"`
	Seq       uint64            `json:"seq"`
	Ts        quant.TimeStamp   `json:"ts"`
	Book      *BookPayload      `json:"book,omitempty"`
	Orders    []domain.Order    `json:"orders,omitempty"`
	Positions []domain.Position `json:"positions,omitempty"`
	Balance   *domain.Balance   `json:"balance,omitempty"`
}
