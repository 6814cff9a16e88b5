package engine

import (
	"sort"

	"statefeed/internal/domain"
	"statefeed/internal/event"
	"statefeed/pkg/quant"
)

// AccountReducer mirrors the account-side state: the set of live orders, the
// set of open positions, and the single balance record. Orders leave the map
// the moment their status turns terminal; positions leave when closed; the
// balance is replaced wholesale by every accepted balance event.
type AccountReducer struct {
	orders    map[int64]domain.Order
	positions map[int64]domain.Position
	balance   *domain.Balance
}

// NewAccountReducer creates an empty account mirror.
func NewAccountReducer() *AccountReducer {
	return &AccountReducer{
		orders:    make(map[int64]domain.Order),
		positions: make(map[int64]domain.Position),
	}
}

// Apply routes one envelope into the account state and returns whether a
// consumer snapshot should be emitted. The emission rules are asymmetric per
// entity and must stay that way: an order snapshot is a quiet baseline while
// a position snapshot emits; a balance delta emits only when the event
// actually carries a balance record.
func (r *AccountReducer) Apply(env event.Envelope) bool {
	switch env.Type {
	case event.EvOrderSnapshot:
		if env.Orders == nil {
			return false
		}
		r.orders = make(map[int64]domain.Order, len(env.Orders))
		for _, o := range env.Orders {
			if o.IsLive() {
				r.orders[o.ID] = o
			}
		}
		return false

	case event.EvOrderDelta:
		if env.Orders == nil {
			return false
		}
		for _, o := range env.Orders {
			if o.IsLive() {
				r.orders[o.ID] = o
			} else {
				delete(r.orders, o.ID)
			}
		}
		return true

	case event.EvPositionSnapshot:
		if env.Positions == nil {
			return false
		}
		r.positions = make(map[int64]domain.Position, len(env.Positions))
		for _, p := range env.Positions {
			if p.IsOpen() {
				r.positions[p.ID] = p
			}
		}
		return true

	case event.EvPositionDelta:
		if env.Positions == nil {
			return false
		}
		for _, p := range env.Positions {
			if p.IsOpen() {
				r.positions[p.ID] = p
			} else {
				delete(r.positions, p.ID)
			}
		}
		return true

	case event.EvBalanceSnapshot:
		if env.Balance != nil {
			b := *env.Balance
			r.balance = &b
		}
		return false

	case event.EvBalanceDelta:
		if env.Balance == nil {
			return false
		}
		b := *env.Balance
		r.balance = &b
		return true

	default:
		return false
	}
}

// Position returns the open position for the given market. When the exchange
// reports several records for one market the lowest id wins, keeping the
// lookup deterministic.
func (r *AccountReducer) Position(market string) (domain.Position, bool) {
	var found domain.Position
	ok := false
	for _, p := range r.positions {
		if p.Market != market {
			continue
		}
		if !ok || p.ID < found.ID {
			found = p
			ok = true
		}
	}
	return found, ok
}

// OrdersByMarket returns the live orders for one market, sorted by id.
func (r *AccountReducer) OrdersByMarket(market string) []domain.Order {
	var orders []domain.Order
	for _, o := range r.orders {
		if o.Market == market {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders
}

// Balance returns a copy of the current balance record, or nil before the
// first balance event.
func (r *AccountReducer) Balance() *domain.Balance {
	if r.balance == nil {
		return nil
	}
	b := *r.balance
	return &b
}

// Snapshot builds the immutable consumer view of the account. Orders and
// positions are sorted by id so two builds over identical state compare
// equal. It never mutates reducer state.
func (r *AccountReducer) Snapshot(ts quant.TimeStamp, seq uint64) domain.AccountSnapshot {
	orders := make([]domain.Order, 0, len(r.orders))
	for _, o := range r.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })

	positions := make([]domain.Position, 0, len(r.positions))
	for _, p := range r.positions {
		positions = append(positions, p)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].ID < positions[j].ID })

	return domain.AccountSnapshot{
		Orders:    orders,
		Positions: positions,
		Balance:   r.Balance(),
		Timestamp: ts,
		Sequence:  seq,
	}
}
