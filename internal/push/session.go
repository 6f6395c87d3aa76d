// Copyright (c) 2025, the torrentedge contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package push

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the engine.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the engine.
	pongWait = 60 * time.Second

	// Ping period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size.
	maxMessageSize = 512 * 1024
)

// Conn is the subset of *websocket.Conn the session uses. Tests substitute
// their own implementation to count opens and closes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v any) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Dialer opens a push connection to the engine.
type Dialer interface {
	Dial(ctx context.Context, url string, header http.Header) (Conn, error)
}

type wsDialer struct{}

func (wsDialer) Dial(ctx context.Context, url string, header http.Header) (Conn, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// NewWebsocketDialer returns the production dialer.
func NewWebsocketDialer() Dialer {
	return wsDialer{}
}

// envelope is the wire format of one inbound push event.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// control is the wire format of one outbound subscription message.
type control struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
}

// Options tunes session reconnect behavior. Zero values fall back to the
// defaults.
type Options struct {
	MaxAttempts   int           // consecutive dial failures before giving up
	BaseDelay     time.Duration // first backoff step
	MaxDelay      time.Duration // backoff cap
	RequestHeader func() http.Header
}

const (
	defaultMaxAttempts = 10
	defaultBaseDelay   = time.Second
	defaultMaxDelay    = 30 * time.Second
)

// Session is a reference-counted push connection. The first Acquire opens
// the connection; matching Releases keep it open until the last one, which
// unsubscribes, closes the socket and drops every registered handler.
type Session struct {
	url    string
	dialer Dialer
	bus    *Bus
	opts   Options

	mu            sync.Mutex
	refs          int
	conn          Conn
	cancel        context.CancelFunc
	done          chan struct{}
	connected     bool
	everConnected bool

	writeMu sync.Mutex
}

func NewSession(url string, dialer Dialer, bus *Bus, opts Options) *Session {
	if dialer == nil {
		dialer = wsDialer{}
	}
	if bus == nil {
		bus = NewBus()
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = defaultBaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	return &Session{
		url:    url,
		dialer: dialer,
		bus:    bus,
		opts:   opts,
	}
}

// Bus returns the event bus this session feeds.
func (s *Session) Bus() *Bus {
	return s.bus
}

// Connected reports whether the socket is currently open.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// EverConnected reports whether the session has connected at least once
// since its first Acquire. Distinguishes "never reached the engine" from
// "reached it and lost it".
func (s *Session) EverConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.everConnected
}

// Refs returns the current hold count.
func (s *Session) Refs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refs
}

// Acquire takes a hold on the session. The first hold opens the connection.
func (s *Session) Acquire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refs++
	if s.refs > 1 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.everConnected = false
	go s.run(ctx, s.done)
}

// Release drops one hold. The last release tears the connection down and
// clears every subscription so a later Acquire starts from a clean slate.
func (s *Session) Release() {
	s.mu.Lock()
	if s.refs == 0 {
		s.mu.Unlock()
		return
	}
	s.refs--
	if s.refs > 0 {
		s.mu.Unlock()
		return
	}

	cancel := s.cancel
	conn := s.conn
	done := s.done
	s.cancel = nil
	s.conn = nil
	s.done = nil
	s.connected = false
	s.mu.Unlock()

	if conn != nil {
		// Best-effort; the engine also drops subscriptions on close.
		s.writeJSON(conn, control{Action: "unsubscribe:all"})
		conn.Close()
	}
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	s.bus.Clear()
}

// SubscribeTorrent asks the engine for per-torrent push events.
func (s *Session) SubscribeTorrent(id string) {
	s.sendControl(control{Action: "subscribe:torrent", ID: id})
}

// UnsubscribeTorrent stops per-torrent push events.
func (s *Session) UnsubscribeTorrent(id string) {
	s.sendControl(control{Action: "unsubscribe:torrent", ID: id})
}

func (s *Session) sendControl(msg control) {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return
	}
	if err := s.writeJSON(conn, msg); err != nil {
		log.Debug().Err(err).Str("action", msg.Action).Msg("Failed to send push control message")
	}
}

func (s *Session) writeJSON(conn Conn, v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// run owns the connection lifecycle: dial, pump, reconnect with capped
// backoff, give up after MaxAttempts consecutive failures.
func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}

		var header http.Header
		if s.opts.RequestHeader != nil {
			header = s.opts.RequestHeader()
		}

		conn, err := s.dialer.Dial(ctx, s.url, header)
		if err != nil {
			attempts++
			payload, _ := json.Marshal(map[string]any{
				"error":   err.Error(),
				"attempt": attempts,
			})
			s.bus.Emit(EventConnectError, payload)

			if attempts >= s.opts.MaxAttempts {
				log.Error().
					Err(err).
					Int("attempts", attempts).
					Str("url", s.url).
					Msg("Giving up on push connection")
				return
			}

			delay := s.backoff(attempts)
			log.Warn().
				Err(err).
				Int("attempt", attempts).
				Dur("retryIn", delay).
				Msg("Push connection failed")

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		attempts = 0
		s.mu.Lock()
		// The last Release can land while the dial is in flight; it saw no
		// conn to close, so close here instead of pumping a dead session.
		if ctx.Err() != nil || s.refs == 0 {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		s.connected = true
		s.everConnected = true
		s.mu.Unlock()

		log.Info().Str("url", s.url).Msg("Push connection established")
		s.bus.Emit(EventConnect, nil)

		if err := s.writeJSON(conn, control{Action: "subscribe:all"}); err != nil {
			log.Warn().Err(err).Msg("Failed to subscribe after connect")
		}

		readErr := s.pump(ctx, conn)

		s.mu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.connected = false
		stopped := s.refs == 0
		s.mu.Unlock()

		conn.Close()

		if ctx.Err() != nil || stopped {
			return
		}

		payload, _ := json.Marshal(map[string]any{"error": readErr.Error()})
		s.bus.Emit(EventDisconnect, payload)
		log.Warn().Err(readErr).Msg("Push connection lost")
	}
}

// pump reads events until the connection breaks, pinging on the side.
func (s *Session) pump(ctx context.Context, conn Conn) error {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	pingDone := make(chan struct{})
	defer close(pingDone)
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingDone:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Warn().Err(err).Msg("Dropping malformed push event")
			continue
		}
		if env.Event == "" {
			continue
		}
		s.bus.Emit(env.Event, env.Data)
	}
}

func (s *Session) backoff(attempt int) time.Duration {
	delay := s.opts.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= s.opts.MaxDelay {
			return s.opts.MaxDelay
		}
	}
	if delay > s.opts.MaxDelay {
		return s.opts.MaxDelay
	}
	return delay
}
