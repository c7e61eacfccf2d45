// Package wsbridge implements transport.Dialer against an external bridge
// process that speaks the messaging-network protocol. Gateway and bridge
// exchange JSON frames over a websocket; operations are correlated with
// their results by sequence id.
package wsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/unifiedui/chat-gateway/internal/core/transport"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// CodeConnectionLost is the close code reported when the socket drops.
const CodeConnectionLost = 408

var (
	// ErrConnectionLost fails requests still pending when the socket drops.
	ErrConnectionLost = errors.New("connection lost")
	// ErrClosed is returned for operations on a closed connection.
	ErrClosed = errors.New("connection closed")
)

// Config configures the bridge dialer.
type Config struct {
	URL          string
	WriteTimeout time.Duration
	PingInterval time.Duration
	ReadLimit    int64
	EventBuffer  int
}

func (c *Config) applyDefaults() {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 10 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 16 << 20
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
}

// Dialer opens bridge connections.
type Dialer struct {
	cfg    Config
	dialer *websocket.Dialer
}

// NewDialer creates a new bridge dialer.
func NewDialer(cfg Config) (*Dialer, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("bridge URL is required")
	}
	cfg.applyDefaults()
	return &Dialer{cfg: cfg, dialer: websocket.DefaultDialer}, nil
}

// Dial connects to the bridge and opens a session for opts.Identity.
func (d *Dialer) Dial(ctx context.Context, opts transport.DialOptions) (transport.Connection, error) {
	ws, _, err := d.dialer.DialContext(ctx, d.cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial bridge: %w", err)
	}

	c := newConn(ws, d.cfg)
	go c.readLoop()
	go c.pingLoop()

	payload := openPayload{Identity: opts.Identity}
	if len(opts.Credentials) > 0 {
		if !json.Valid(opts.Credentials) {
			_ = c.Close()
			return nil, fmt.Errorf("credentials bundle is not valid JSON")
		}
		payload.Credentials = opts.Credentials
	}

	if _, err := c.request(ctx, opOpen, payload); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to open bridge session: %w", err)
	}

	return c, nil
}

type result struct {
	data json.RawMessage
	err  error
}

// conn is one websocket to the bridge.
type conn struct {
	ws  *websocket.Conn
	cfg Config

	wmu sync.Mutex // serializes writes

	mu      sync.Mutex
	pending map[uint64]chan result
	closed  bool

	seq       atomic.Uint64
	events    chan transport.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn, cfg Config) *conn {
	ws.SetReadLimit(cfg.ReadLimit)
	c := &conn{
		ws:      ws,
		cfg:     cfg,
		pending: make(map[uint64]chan result),
		events:  make(chan transport.Event, cfg.EventBuffer),
		done:    make(chan struct{}),
	}
	c.extendReadDeadline()
	ws.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})
	return c
}

func (c *conn) extendReadDeadline() {
	_ = c.ws.SetReadDeadline(time.Now().Add(3 * c.cfg.PingInterval))
}

// Events returns the event stream.
func (c *conn) Events() <-chan transport.Event {
	return c.events
}

// Send delivers a message through the bridge.
func (c *conn) Send(ctx context.Context, to string, msg models.OutboundMessage) error {
	_, err := c.request(ctx, opSend, sendPayload{
		To:       to,
		Text:     msg.Text,
		ImageURL: msg.ImageURL,
		Caption:  msg.Caption,
	})
	return err
}

// RequestPairingCode asks the bridge for a pairing code.
func (c *conn) RequestPairingCode(ctx context.Context, phone string) (string, error) {
	data, err := c.request(ctx, opPairingCode, pairingPayload{Phone: phone})
	if err != nil {
		return "", err
	}
	var res pairingResult
	if err := json.Unmarshal(data, &res); err != nil {
		return "", fmt.Errorf("failed to decode pairing code: %w", err)
	}
	if res.Code == "" {
		return "", fmt.Errorf("bridge returned an empty pairing code")
	}
	return res.Code, nil
}

// Logout revokes the device registration.
func (c *conn) Logout(ctx context.Context) error {
	_, err := c.request(ctx, opLogout, nil)
	return err
}

// Close closes the socket. The event channel is closed once the read loop exits.
func (c *conn) Close() error {
	c.mu.Lock()
	alreadyClosed := c.closed
	c.closed = true
	c.mu.Unlock()
	if alreadyClosed {
		return nil
	}

	c.wmu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "closing"),
		time.Now().Add(500*time.Millisecond))
	c.wmu.Unlock()

	c.shutdown()
	c.failPending(ErrClosed)
	return nil
}

func (c *conn) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *conn) request(ctx context.Context, op string, payload any) (json.RawMessage, error) {
	var data json.RawMessage
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s request: %w", op, err)
		}
		data = raw
	}

	id := c.seq.Add(1)
	ch := make(chan result, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	if err := c.write(frame{ID: id, Op: op, Data: data}); err != nil {
		c.forget(id)
		return nil, fmt.Errorf("failed to write %s request: %w", op, err)
	}

	select {
	case r := <-ch:
		return r.data, r.err
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	}
}

func (c *conn) write(f frame) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.ws.WriteJSON(f)
}

func (c *conn) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *conn) resolve(f frame) {
	c.mu.Lock()
	ch, ok := c.pending[f.ID]
	delete(c.pending, f.ID)
	c.mu.Unlock()
	if !ok {
		log.Debug().Uint64("id", f.ID).Msg("bridge result for unknown request")
		return
	}
	if !f.OK {
		msg := f.Error
		if msg == "" {
			msg = "request failed"
		}
		ch <- result{err: fmt.Errorf("bridge: %s", msg)}
		return
	}
	ch <- result{data: f.Data}
}

func (c *conn) failPending(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, ch := range c.pending {
		ch <- result{err: err}
		delete(c.pending, id)
	}
}

func (c *conn) emit(ev transport.Event) {
	select {
	case c.events <- ev:
	case <-c.done:
	}
}

func (c *conn) readLoop() {
	defer close(c.events)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closedLocally := c.closed
			c.closed = true
			c.mu.Unlock()

			c.failPending(ErrConnectionLost)
			if !closedLocally {
				c.emit(transport.Event{
					Type: transport.EventConnectionUpdate,
					Connection: &transport.ConnectionUpdate{
						State:  transport.StateClose,
						Reason: &transport.CloseReason{Code: CodeConnectionLost, Message: err.Error()},
					},
				})
			}
			c.shutdown()
			return
		}
		c.extendReadDeadline()

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			log.Warn().Err(err).Msg("dropping malformed bridge frame")
			continue
		}

		if f.Event == eventResult {
			c.resolve(f)
			continue
		}

		ev, err := decodeEvent(f)
		if err != nil {
			log.Warn().Err(err).Str("event", f.Event).Msg("dropping undecodable bridge event")
			continue
		}
		c.emit(ev)
	}
}

func (c *conn) pingLoop() {
	t := time.NewTicker(c.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.wmu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(c.cfg.WriteTimeout))
			c.wmu.Unlock()
			if err != nil {
				log.Debug().Err(err).Msg("bridge ping failed")
			}
		case <-c.done:
			return
		}
	}
}

func decodeEvent(f frame) (transport.Event, error) {
	ev := transport.Event{Type: transport.EventType(f.Event)}
	switch ev.Type {
	case transport.EventConnectionUpdate:
		var u transport.ConnectionUpdate
		if err := json.Unmarshal(f.Data, &u); err != nil {
			return ev, err
		}
		ev.Connection = &u
	case transport.EventCredsUpdate:
		if len(f.Data) == 0 {
			return ev, fmt.Errorf("empty credentials bundle")
		}
		ev.Credentials = append([]byte(nil), f.Data...)
	case transport.EventMessagesUpsert:
		if err := json.Unmarshal(f.Data, &ev.Messages); err != nil {
			return ev, err
		}
	default:
		return ev, fmt.Errorf("unknown event %q", f.Event)
	}
	return ev, nil
}
