package subscription

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"statefeed/internal/event"
	"statefeed/pkg/quant"
)

// Source is the boundary with the transport collaborator: a pull-based,
// ordered stream of envelopes. Recv returns io.EOF when the stream ends
// cleanly; any other error is a transport failure. How the envelopes were
// produced (framing, auth, reconnects) is entirely the source's concern.
type Source interface {
	Recv(ctx context.Context) (event.Envelope, error)
	Close() error
}

// DialFunc acquires a fresh Source for one connection.
type DialFunc func(ctx context.Context) (Source, error)

// Recorder journals envelopes as they are received. Journal failures are
// logged and never interrupt the stream.
type Recorder interface {
	Record(ctx context.Context, env event.Envelope) error
}

// State is the lifecycle state of a subscription.
type State int32

const (
	StateUnconnected State = iota
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "UNCONNECTED"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrAlreadyConnected signals a second Connect call, a caller error.
	ErrAlreadyConnected = errors.New("subscription: already connected")
	// ErrSubscriptionClosed signals Connect on an already closed subscription.
	ErrSubscriptionClosed = errors.New("subscription: closed")
	// ErrNotConnected signals consuming before Connect.
	ErrNotConnected = errors.New("subscription: not connected")
)

// conn is the connection state machine shared by both subscription kinds.
// It owns the source exclusively: one cooperative consumer pulls envelopes,
// Close may be called from anywhere, point queries take the read lock.
type conn struct {
	id       uuid.UUID
	dial     DialFunc
	recorder Recorder

	mu      sync.RWMutex
	state   State
	src     Source
	lastErr error
	lastTs  quant.TimeStamp
	lastSeq uint64
}

// Option configures a subscription at construction time.
type Option func(*conn)

// WithRecorder journals every received envelope to r.
func WithRecorder(r Recorder) Option {
	return func(c *conn) { c.recorder = r }
}

// ID returns the unique identity of this subscription.
func (c *conn) ID() uuid.UUID { return c.id }

// Connect acquires the stream source and moves Unconnected -> Connected.
// Calling Connect twice is a caller error.
func (c *conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return ErrAlreadyConnected
	case StateClosed:
		c.mu.Unlock()
		return ErrSubscriptionClosed
	}
	c.mu.Unlock()

	src, err := c.dial(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.state == StateClosed {
		// Closed while dialing: release the source immediately.
		c.mu.Unlock()
		src.Close()
		return ErrSubscriptionClosed
	}
	c.src = src
	c.state = StateConnected
	c.mu.Unlock()
	return nil
}

// Close releases the source and moves to Closed from any state. It is safe
// to call repeatedly; a consumption loop in flight terminates on its next
// pull.
func (c *conn) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	src := c.src
	c.src = nil
	c.mu.Unlock()

	if src != nil {
		return src.Close()
	}
	return nil
}

// IsClosed reports whether the subscription has been closed.
func (c *conn) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == StateClosed
}

// State returns the current lifecycle state.
func (c *conn) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Err returns the transport error that ended the stream, if any. A cleanly
// ended stream (io.EOF or local Close) leaves Err nil; the snapshot sequence
// itself never distinguishes the two.
func (c *conn) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// LastTimestamp returns the timestamp of the most recent envelope.
func (c *conn) LastTimestamp() quant.TimeStamp {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastTs
}

// LastSequence returns the sequence number of the most recent envelope.
func (c *conn) LastSequence() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastSeq
}

func (c *conn) setErr(err error) {
	c.mu.Lock()
	if c.lastErr == nil {
		c.lastErr = err
	}
	c.mu.Unlock()
}

// pull receives the next envelope. Closed state is checked before every
// receive. Both clean stream end and transport failure return ok=false; a
// failure is additionally retained for Err().
func (c *conn) pull(ctx context.Context) (event.Envelope, bool) {
	c.mu.RLock()
	state := c.state
	src := c.src
	c.mu.RUnlock()

	if state != StateConnected || src == nil {
		if state == StateUnconnected {
			c.setErr(ErrNotConnected)
		}
		return event.Envelope{}, false
	}

	env, err := src.Recv(ctx)
	if err != nil {
		if !errors.Is(err, io.EOF) && !c.IsClosed() {
			c.setErr(err)
			slog.Warn("stream receive failed",
				slog.String("subscription", c.id.String()),
				slog.Any("error", err))
		}
		return event.Envelope{}, false
	}

	// Sequencing metadata follows every envelope that carries it, applied or
	// not.
	c.mu.Lock()
	if env.Ts != 0 {
		c.lastTs = env.Ts
	}
	if env.Seq != 0 {
		c.lastSeq = env.Seq
	}
	c.mu.Unlock()

	if c.recorder != nil {
		if rerr := c.recorder.Record(ctx, env); rerr != nil {
			slog.Warn("journal write failed",
				slog.String("subscription", c.id.String()),
				slog.Any("error", rerr))
		}
	}

	return env, true
}
