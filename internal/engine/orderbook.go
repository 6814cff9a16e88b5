package engine

import (
	"sort"

	"github.com/shopspring/decimal"

	"statefeed/internal/domain"
	"statefeed/internal/event"
	"statefeed/pkg/quant"
)

// OrderBookReducer mirrors one market's order book from snapshot and delta
// events. Levels live in per-side maps keyed by the exact decimal string of
// the price; no ordering is kept internally, ordering is imposed only when a
// consumer snapshot is built.
//
// Deltas are additive: an incoming quantity is added to the resting quantity,
// and the level is removed once the sum drops to zero or below. Deltas that
// arrive before the first snapshot are buffered in arrival order and replayed
// against the book right after that snapshot lands.
type OrderBookReducer struct {
	market      string
	bids        map[string]domain.PriceLevel
	asks        map[string]domain.PriceLevel
	initialized bool
	pending     []event.BookPayload
}

// NewOrderBookReducer creates an empty book mirror for the given market.
func NewOrderBookReducer(market string) *OrderBookReducer {
	return &OrderBookReducer{
		market: market,
		bids:   make(map[string]domain.PriceLevel),
		asks:   make(map[string]domain.PriceLevel),
	}
}

// Apply routes one envelope into the book. It returns true when the event was
// accepted and a consumer snapshot should be emitted. Envelopes of foreign
// types and book envelopes with a missing payload are skipped silently.
func (r *OrderBookReducer) Apply(env event.Envelope) bool {
	switch env.Type {
	case event.EvBookSnapshot:
		if env.Book == nil {
			return false
		}
		r.applySnapshot(env.Book)
		if !r.initialized {
			r.initialized = true
			for i := range r.pending {
				r.applyDelta(&r.pending[i])
			}
			r.pending = nil
		}
		return true

	case event.EvBookDelta:
		if env.Book == nil {
			return false
		}
		if !r.initialized {
			// No snapshot yet: hold the delta in arrival order.
			r.pending = append(r.pending, *env.Book)
			return false
		}
		r.applyDelta(env.Book)
		return true

	default:
		return false
	}
}

// applySnapshot replaces both sides wholesale. Only strictly positive
// quantities become entries.
func (r *OrderBookReducer) applySnapshot(book *event.BookPayload) {
	r.bids = make(map[string]domain.PriceLevel, len(book.Bids))
	r.asks = make(map[string]domain.PriceLevel, len(book.Asks))
	for _, lv := range book.Bids {
		if lv.Quantity.IsPositive() {
			r.bids[lv.Key()] = lv
		}
	}
	for _, lv := range book.Asks {
		if lv.Quantity.IsPositive() {
			r.asks[lv.Key()] = lv
		}
	}
}

func (r *OrderBookReducer) applyDelta(book *event.BookPayload) {
	applyDeltaSide(r.bids, book.Bids)
	applyDeltaSide(r.asks, book.Asks)
}

func applyDeltaSide(side map[string]domain.PriceLevel, changes []domain.PriceLevel) {
	for _, lv := range changes {
		key := lv.Key()
		existing, ok := side[key]
		if !ok {
			// Negative change for an absent level must not create a
			// spurious entry.
			if lv.Quantity.IsPositive() {
				side[key] = lv
			}
			continue
		}
		next := existing.Quantity.Add(lv.Quantity)
		if next.Sign() <= 0 {
			delete(side, key)
			continue
		}
		side[key] = domain.PriceLevel{Price: existing.Price, Quantity: next}
	}
}

// BestBid returns the level with the highest bid price.
func (r *OrderBookReducer) BestBid() (domain.PriceLevel, bool) {
	return extremeLevel(r.bids, func(a, b decimal.Decimal) bool { return a.GreaterThan(b) })
}

// BestAsk returns the level with the lowest ask price.
func (r *OrderBookReducer) BestAsk() (domain.PriceLevel, bool) {
	return extremeLevel(r.asks, func(a, b decimal.Decimal) bool { return a.LessThan(b) })
}

// MidPrice returns the arithmetic mean of best bid and best ask. It reports
// false while either side of the book is empty.
func (r *OrderBookReducer) MidPrice() (decimal.Decimal, bool) {
	bid, okBid := r.BestBid()
	ask, okAsk := r.BestAsk()
	if !okBid || !okAsk {
		return decimal.Decimal{}, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

func extremeLevel(side map[string]domain.PriceLevel, better func(a, b decimal.Decimal) bool) (domain.PriceLevel, bool) {
	var best domain.PriceLevel
	found := false
	for _, lv := range side {
		if !found || better(lv.Price, best.Price) {
			best = lv
			found = true
		}
	}
	return best, found
}

// Snapshot builds the immutable consumer view of the current book: bids
// sorted descending by price, asks ascending. It is a pure read; two builds
// without an intervening event are structurally equal.
func (r *OrderBookReducer) Snapshot(ts quant.TimeStamp, seq uint64) domain.OrderBookSnapshot {
	bids := make([]domain.PriceLevel, 0, len(r.bids))
	for _, lv := range r.bids {
		bids = append(bids, lv)
	}
	asks := make([]domain.PriceLevel, 0, len(r.asks))
	for _, lv := range r.asks {
		asks = append(asks, lv)
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].Price.GreaterThan(bids[j].Price) })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price.LessThan(asks[j].Price) })

	return domain.OrderBookSnapshot{
		Market:    r.market,
		Bids:      bids,
		Asks:      asks,
		Timestamp: ts,
		Sequence:  seq,
	}
}
