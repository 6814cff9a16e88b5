package subscription

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"statefeed/internal/domain"
	"statefeed/internal/event"
	"statefeed/pkg/quant"
)

func quantTs(ms int64) quant.TimeStamp { return quant.FromMillis(ms) }

// fakeSource plays back a fixed envelope script, then returns finalErr
// (io.EOF by default). Close short-circuits any remaining script.
type fakeSource struct {
	mu       sync.Mutex
	envs     []event.Envelope
	pos      int
	finalErr error
	closed   bool
}

func newFakeSource(envs ...event.Envelope) *fakeSource {
	return &fakeSource{envs: envs, finalErr: io.EOF}
}

func (f *fakeSource) Recv(ctx context.Context) (event.Envelope, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return event.Envelope{}, io.EOF
	}
	if f.pos >= len(f.envs) {
		return event.Envelope{}, f.finalErr
	}
	env := f.envs[f.pos]
	f.pos++
	return env, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func dialTo(src Source) DialFunc {
	return func(ctx context.Context) (Source, error) {
		return src, nil
	}
}

func lv(price, qty string) domain.PriceLevel {
	return domain.PriceLevel{
		Price:    decimal.RequireFromString(price),
		Quantity: decimal.RequireFromString(qty),
	}
}

func bookSnapEnv(seq uint64, ts int64, bids, asks []domain.PriceLevel) event.Envelope {
	return event.Envelope{
		Type: event.EvBookSnapshot,
		Seq:  seq,
		Ts:   quantTs(ts),
		Book: &event.BookPayload{Market: "BTC-USD", Bids: bids, Asks: asks},
	}
}

func bookDeltaEnv(seq uint64, ts int64, bids, asks []domain.PriceLevel) event.Envelope {
	return event.Envelope{
		Type: event.EvBookDelta,
		Seq:  seq,
		Ts:   quantTs(ts),
		Book: &event.BookPayload{Market: "BTC-USD", Bids: bids, Asks: asks},
	}
}

func TestSubscription_Lifecycle(t *testing.T) {
	ctx := context.Background()
	sub := NewOrderBook("BTC-USD", dialTo(newFakeSource()))

	if sub.State() != StateUnconnected {
		t.Fatalf("initial state = %s, want UNCONNECTED", sub.State())
	}

	if err := sub.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if sub.State() != StateConnected {
		t.Errorf("state after Connect = %s, want CONNECTED", sub.State())
	}

	if err := sub.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect = %v, want ErrAlreadyConnected", err)
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if sub.State() != StateClosed {
		t.Errorf("state after Close = %s, want CLOSED", sub.State())
	}
	if !sub.IsClosed() {
		t.Error("IsClosed = false after Close")
	}

	// Close is idempotent; Connect after Close is refused.
	if err := sub.Close(); err != nil {
		t.Errorf("repeated Close = %v, want nil", err)
	}
	if err := sub.Connect(ctx); !errors.Is(err, ErrSubscriptionClosed) {
		t.Errorf("Connect after Close = %v, want ErrSubscriptionClosed", err)
	}
}

func TestSubscription_DialFailurePropagates(t *testing.T) {
	dialErr := errors.New("dial refused")
	sub := NewOrderBook("BTC-USD", func(ctx context.Context) (Source, error) {
		return nil, dialErr
	})

	if err := sub.Connect(context.Background()); !errors.Is(err, dialErr) {
		t.Fatalf("Connect = %v, want dial error", err)
	}
	// A failed dial leaves the subscription reusable.
	if sub.State() != StateUnconnected {
		t.Errorf("state after failed dial = %s, want UNCONNECTED", sub.State())
	}
}

func TestOrderBookSubscription_NextEmitsViews(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(
		bookSnapEnv(1, 100, []domain.PriceLevel{lv("100", "5")}, []domain.PriceLevel{lv("101", "3")}),
		// Foreign envelope: no view, but metadata still advances.
		event.Envelope{Type: event.EvOrderDelta, Seq: 2, Ts: quantTs(200)},
		bookDeltaEnv(3, 300, []domain.PriceLevel{lv("100", "-2")}, nil),
	)

	sub := NewOrderBook("BTC-USD", dialTo(src))
	if err := sub.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	view, ok := sub.Next(ctx)
	if !ok {
		t.Fatal("expected first view from snapshot")
	}
	if view.Sequence != 1 || view.Timestamp != quantTs(100) {
		t.Errorf("view meta = (%d,%d), want ts of 100ms and seq 1", view.Timestamp, view.Sequence)
	}

	view, ok = sub.Next(ctx)
	if !ok {
		t.Fatal("expected second view from delta")
	}
	// The quiet foreign envelope advanced metadata before the delta.
	if view.Sequence != 3 {
		t.Errorf("view sequence = %d, want 3", view.Sequence)
	}
	if !view.Bids[0].Quantity.Equal(decimal.RequireFromString("3")) {
		t.Errorf("bid quantity = %s, want 3", view.Bids[0].Quantity)
	}

	if _, ok := sub.Next(ctx); ok {
		t.Fatal("Next must report false after clean stream end")
	}
	if err := sub.Err(); err != nil {
		t.Errorf("Err after clean end = %v, want nil", err)
	}
	if sub.LastSequence() != 3 || sub.LastTimestamp() != quantTs(300) {
		t.Errorf("final meta = (%d,%d), want (300µs, 3)", sub.LastTimestamp(), sub.LastSequence())
	}
}

func TestSubscription_MetadataAdvancesOnQuietEnvelopes(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(
		// Order snapshot never emits, its metadata must still land.
		event.Envelope{Type: event.EvOrderSnapshot, Seq: 7, Ts: quantTs(700), Orders: []domain.Order{}},
	)

	sub := NewAccount(dialTo(src))
	if err := sub.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if _, ok := sub.Next(ctx); ok {
		t.Fatal("order snapshot must not produce a view")
	}
	if sub.LastSequence() != 7 || sub.LastTimestamp() != quantTs(700) {
		t.Errorf("meta = (%d,%d), want (700µs, 7)", sub.LastTimestamp(), sub.LastSequence())
	}
}

func TestSubscription_TransportErrorSurfacesViaErr(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")
	src := newFakeSource(
		bookSnapEnv(1, 100, []domain.PriceLevel{lv("100", "5")}, nil),
	)
	src.finalErr = boom

	sub := NewOrderBook("BTC-USD", dialTo(src))
	if err := sub.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	if _, ok := sub.Next(ctx); !ok {
		t.Fatal("expected view before the failure")
	}
	if _, ok := sub.Next(ctx); ok {
		t.Fatal("Next must report false after transport failure")
	}
	if err := sub.Err(); !errors.Is(err, boom) {
		t.Errorf("Err = %v, want transport error", err)
	}

	// The failure does not tear down queries: the book stays readable.
	if _, ok := sub.BestBid(); !ok {
		t.Error("point queries must keep serving the last state")
	}
}

func TestSubscription_NextBeforeConnect(t *testing.T) {
	sub := NewOrderBook("BTC-USD", dialTo(newFakeSource()))
	if _, ok := sub.Next(context.Background()); ok {
		t.Fatal("Next before Connect must report false")
	}
	if err := sub.Err(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Err = %v, want ErrNotConnected", err)
	}
}

func TestSubscription_CloseEndsConsumption(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(
		bookSnapEnv(1, 100, []domain.PriceLevel{lv("100", "5")}, nil),
		bookDeltaEnv(2, 200, []domain.PriceLevel{lv("100", "1")}, nil),
	)

	sub := NewOrderBook("BTC-USD", dialTo(src))
	if err := sub.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if _, ok := sub.Next(ctx); !ok {
		t.Fatal("expected first view")
	}

	sub.Close()
	if _, ok := sub.Next(ctx); ok {
		t.Fatal("Next after Close must report false")
	}
	if err := sub.Err(); err != nil {
		t.Errorf("local Close must not set Err, got %v", err)
	}

	// Point queries survive Close.
	if _, ok := sub.BestBid(); !ok {
		t.Error("BestBid must keep serving after Close")
	}
}

type capturingRecorder struct {
	mu   sync.Mutex
	envs []event.Envelope
}

func (r *capturingRecorder) Record(ctx context.Context, env event.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envs = append(r.envs, env)
	return nil
}

func TestSubscription_RecorderSeesEveryEnvelope(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(
		bookSnapEnv(1, 100, []domain.PriceLevel{lv("100", "5")}, nil),
		event.Envelope{Type: event.EvOrderDelta, Seq: 2, Ts: quantTs(200)}, // quiet for a book sub
		bookDeltaEnv(3, 300, []domain.PriceLevel{lv("100", "1")}, nil),
	)

	rec := &capturingRecorder{}
	sub := NewOrderBook("BTC-USD", dialTo(src), WithRecorder(rec))
	if err := sub.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	for {
		if _, ok := sub.Next(ctx); !ok {
			break
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.envs) != 3 {
		t.Fatalf("recorder saw %d envelopes, want 3 (quiet ones included)", len(rec.envs))
	}
	if rec.envs[1].Seq != 2 {
		t.Errorf("recorder order broken: second envelope seq = %d", rec.envs[1].Seq)
	}
}

func TestAccountSubscription_PointQueries(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(
		event.Envelope{
			Type: event.EvOrderDelta, Seq: 1, Ts: quantTs(100),
			Orders: []domain.Order{{
				ID: 11, Market: "BTC-USD", Side: domain.SideBuy,
				Status: domain.OrderStatusNew,
				Price:  decimal.RequireFromString("100"),
				Size:   decimal.RequireFromString("1"),
			}},
		},
		event.Envelope{
			Type: event.EvPositionDelta, Seq: 2, Ts: quantTs(200),
			Positions: []domain.Position{{
				ID: 21, Market: "BTC-USD", Side: domain.PositionSideLong,
				Status: domain.PositionStatusOpen,
				Size:   decimal.RequireFromString("2"),
			}},
		},
		event.Envelope{
			Type: event.EvBalanceDelta, Seq: 3, Ts: quantTs(300),
			Balance: &domain.Balance{
				Equity:         decimal.RequireFromString("1000"),
				FreeCollateral: decimal.RequireFromString("900"),
			},
		},
	)

	sub := NewAccount(dialTo(src))

	// Queries are answerable before Connect: empty, not errors.
	if _, ok := sub.Position("BTC-USD"); ok {
		t.Error("Position before Connect must be empty")
	}
	if got := sub.OrdersByMarket("BTC-USD"); len(got) != 0 {
		t.Errorf("OrdersByMarket before Connect = %d entries", len(got))
	}
	if sub.Balance() != nil {
		t.Error("Balance before Connect must be nil")
	}

	if err := sub.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	for {
		if _, ok := sub.Next(ctx); !ok {
			break
		}
	}

	p, ok := sub.Position("BTC-USD")
	if !ok || p.ID != 21 {
		t.Errorf("Position = %+v ok=%v, want id 21", p, ok)
	}
	orders := sub.OrdersByMarket("BTC-USD")
	if len(orders) != 1 || orders[0].ID != 11 {
		t.Errorf("OrdersByMarket = %+v, want order 11", orders)
	}
	b := sub.Balance()
	if b == nil || !b.Equity.Equal(decimal.RequireFromString("1000")) {
		t.Errorf("Balance = %+v, want equity 1000", b)
	}
}
