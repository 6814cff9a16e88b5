package replay

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"

	"statefeed/internal/event"
	"statefeed/internal/infra"
	"statefeed/internal/storage"
)

// Source replays one journal session as if it were a live stream. It
// implements subscription.Source, so reducers see exactly the envelopes the
// original connection saw, in the original order. An optional rate limiter
// paces delivery; without one the replay runs as fast as the consumer pulls.
//
// Close may be called from any goroutine while a Recv is in flight.
type Source struct {
	limiter *infra.RateLimiter

	mu     sync.Mutex
	envs   []event.Envelope
	pos    int
	closed bool
}

// NewSource loads the session's envelopes from the journal.
func NewSource(ctx context.Context, journal *storage.Journal, sessionID uuid.UUID, limiter *infra.RateLimiter) (*Source, error) {
	envs, err := journal.LoadEnvelopes(ctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	return &Source{envs: envs, limiter: limiter}, nil
}

// Recv returns the next recorded envelope, io.EOF once the session is
// exhausted or the source is closed.
func (s *Source) Recv(ctx context.Context) (event.Envelope, error) {
	if err := ctx.Err(); err != nil {
		return event.Envelope{}, err
	}

	s.mu.Lock()
	drained := s.closed || s.pos >= len(s.envs)
	s.mu.Unlock()
	if drained {
		return event.Envelope{}, io.EOF
	}

	if s.limiter != nil {
		s.limiter.Wait()
	}

	if err := ctx.Err(); err != nil {
		return event.Envelope{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.pos >= len(s.envs) {
		return event.Envelope{}, io.EOF
	}
	env := s.envs[s.pos]
	s.pos++
	return env, nil
}

// Close ends the replay early. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
