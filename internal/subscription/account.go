package subscription

import (
	"context"

	"github.com/google/uuid"

	"statefeed/internal/domain"
	"statefeed/internal/engine"
)

// AccountSubscription owns the account reducer and its stream source,
// mirroring live orders, open positions, and the balance record.
type AccountSubscription struct {
	conn
	reducer *engine.AccountReducer
}

// NewAccount creates an account subscription. The dial function is invoked
// by Connect to acquire the stream source.
func NewAccount(dial DialFunc, opts ...Option) *AccountSubscription {
	s := &AccountSubscription{
		reducer: engine.NewAccountReducer(),
	}
	s.conn = conn{id: uuid.New(), dial: dial}
	for _, opt := range opts {
		opt(&s.conn)
	}
	return s
}

// Next blocks for the next emitted account view. It returns ok=false once
// the stream has ended, the subscription was closed, or a transport error
// occurred; consult Err to tell the last case apart.
func (s *AccountSubscription) Next(ctx context.Context) (domain.AccountSnapshot, bool) {
	for {
		env, ok := s.pull(ctx)
		if !ok {
			return domain.AccountSnapshot{}, false
		}

		s.mu.Lock()
		emit := s.reducer.Apply(env)
		var snap domain.AccountSnapshot
		if emit {
			snap = s.reducer.Snapshot(s.lastTs, s.lastSeq)
		}
		s.mu.Unlock()

		if emit {
			return snap, true
		}
	}
}

// Position returns the open position for a market, or ok=false when none is
// held.
func (s *AccountSubscription) Position(market string) (domain.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reducer.Position(market)
}

// OrdersByMarket returns the live orders for a market, sorted by id.
func (s *AccountSubscription) OrdersByMarket(market string) []domain.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reducer.OrdersByMarket(market)
}

// Balance returns a copy of the current balance record, or nil before the
// first balance event.
func (s *AccountSubscription) Balance() *domain.Balance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reducer.Balance()
}
