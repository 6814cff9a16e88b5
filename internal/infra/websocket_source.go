package infra

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"statefeed/internal/event"
	"statefeed/internal/infra/wire"
	"statefeed/internal/subscription"
)

// StreamConfig describes one upstream stream: where to dial, what to
// subscribe to, and the connection keep-alive parameters.
type StreamConfig struct {
	URL          string
	Subscribe    []wire.SubscribeArg
	AuthPayload  string // raw login frame sent before subscribing, empty for public streams
	ReadTimeout  time.Duration
	PingInterval time.Duration
}

// WSSource is a live exchange connection decoded into envelopes. It
// implements subscription.Source. A single goroutine is expected to call
// Recv; Close may be called from any goroutine.
type WSSource struct {
	conn    *websocket.Conn
	codec   *wire.Codec
	cfg     StreamConfig
	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// DialStream connects to the configured endpoint, retrying with exponential
// backoff gated by the circuit breaker, then performs login (if configured)
// and subscribes. It returns once the stream is established or ctx ends.
func DialStream(ctx context.Context, cfg StreamConfig, breaker *CircuitBreaker) (*WSSource, error) {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 60 * time.Second
	}

	retry := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if breaker != nil && !breaker.Allow() {
			slog.Warn("WS Dial blocked by circuit breaker", "url", cfg.URL)
		} else {
			src, err := dialOnce(ctx, cfg)
			if err == nil {
				if breaker != nil {
					breaker.RecordSuccess()
				}
				return src, nil
			}
			if breaker != nil {
				breaker.RecordFailure()
			}
			slog.Warn("WS Connection failed", "url", cfg.URL, "err", err, "retry", retry)
		}

		delay := CalculateBackoff(retry)
		retry++

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func dialOnce(ctx context.Context, cfg StreamConfig) (*WSSource, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := make(http.Header)
	header.Set("User-Agent", AppName)

	conn, _, err := dialer.DialContext(ctx, cfg.URL, header)
	if err != nil {
		return nil, err
	}

	s := &WSSource{
		conn:  conn,
		codec: wire.NewCodec(),
		cfg:   cfg,
		done:  make(chan struct{}),
	}

	if err := s.handshake(); err != nil {
		conn.Close()
		return nil, err
	}

	if cfg.PingInterval > 0 {
		s.wg.Add(1)
		go s.pingLoop()
	}

	slog.Info("WS Connected", "url", cfg.URL, "channels", len(cfg.Subscribe))
	return s, nil
}

func (s *WSSource) handshake() error {
	if s.cfg.AuthPayload != "" {
		msg, err := wire.EncodeLogin(s.cfg.AuthPayload)
		if err != nil {
			return fmt.Errorf("encode login: %w", err)
		}
		if err := s.write(websocket.TextMessage, msg); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	}

	if len(s.cfg.Subscribe) > 0 {
		msg, err := wire.EncodeSubscribe(s.cfg.Subscribe...)
		if err != nil {
			return fmt.Errorf("encode subscribe: %w", err)
		}
		if err := s.write(websocket.TextMessage, msg); err != nil {
			return fmt.Errorf("subscribe failed: %w", err)
		}
	}
	return nil
}

// Recv reads frames until one decodes to an envelope. It returns io.EOF
// after Close.
func (s *WSSource) Recv(ctx context.Context) (event.Envelope, error) {
	for {
		select {
		case <-ctx.Done():
			return event.Envelope{}, ctx.Err()
		case <-s.done:
			return event.Envelope{}, io.EOF
		default:
		}

		s.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
				return event.Envelope{}, io.EOF
			default:
			}
			return event.Envelope{}, fmt.Errorf("ws read: %w", err)
		}

		env, ok := s.codec.Decode(msg)
		if !ok {
			continue
		}
		return env, nil
	}
}

// Close terminates the connection. Idempotent.
func (s *WSSource) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
	s.wg.Wait()
	return nil
}

func (s *WSSource) pingLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if err := s.write(websocket.TextMessage, []byte(wire.Ping)); err != nil {
				slog.Warn("WS Ping error", "url", s.cfg.URL, "err", err)
				return
			}
		}
	}
}

func (s *WSSource) write(msgType int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(msgType, data)
}

// StreamDialer adapts DialStream into a subscription.DialFunc.
func StreamDialer(cfg StreamConfig, breaker *CircuitBreaker) subscription.DialFunc {
	return func(ctx context.Context) (subscription.Source, error) {
		return DialStream(ctx, cfg, breaker)
	}
}
