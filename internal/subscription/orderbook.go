package subscription

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"statefeed/internal/domain"
	"statefeed/internal/engine"
)

// OrderBookSubscription owns one order-book reducer and its stream source.
// Next yields a fresh immutable book view per accepted event; the point
// queries read the live book synchronously in any lifecycle state.
type OrderBookSubscription struct {
	conn
	market  string
	reducer *engine.OrderBookReducer
}

// NewOrderBook creates an order-book subscription for one market. The dial
// function is invoked by Connect to acquire the stream source.
func NewOrderBook(market string, dial DialFunc, opts ...Option) *OrderBookSubscription {
	s := &OrderBookSubscription{
		market:  market,
		reducer: engine.NewOrderBookReducer(market),
	}
	s.conn = conn{id: uuid.New(), dial: dial}
	for _, opt := range opts {
		opt(&s.conn)
	}
	return s
}

// Market returns the market this subscription mirrors.
func (s *OrderBookSubscription) Market() string { return s.market }

// Next blocks for the next emitted book view. It returns ok=false once the
// stream has ended, the subscription was closed, or a transport error
// occurred; consult Err to tell the last case apart.
func (s *OrderBookSubscription) Next(ctx context.Context) (domain.OrderBookSnapshot, bool) {
	for {
		env, ok := s.pull(ctx)
		if !ok {
			return domain.OrderBookSnapshot{}, false
		}

		s.mu.Lock()
		emit := s.reducer.Apply(env)
		var snap domain.OrderBookSnapshot
		if emit {
			snap = s.reducer.Snapshot(s.lastTs, s.lastSeq)
		}
		s.mu.Unlock()

		if emit {
			return snap, true
		}
	}
}

// BestBid returns the highest bid level, or ok=false on an empty side.
func (s *OrderBookSubscription) BestBid() (domain.PriceLevel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reducer.BestBid()
}

// BestAsk returns the lowest ask level, or ok=false on an empty side.
func (s *OrderBookSubscription) BestAsk() (domain.PriceLevel, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reducer.BestAsk()
}

// MidPrice returns the mean of best bid and ask, or ok=false while either
// side is empty.
func (s *OrderBookSubscription) MidPrice() (decimal.Decimal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reducer.MidPrice()
}
