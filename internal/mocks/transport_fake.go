package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/unifiedui/chat-gateway/internal/core/transport"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// ErrFakeClosed is returned by FakeConn operations after Close.
var ErrFakeClosed = errors.New("fake connection closed")

// FakeDialer is an in-memory transport.Dialer. Every successful Dial
// yields a FakeConn that tests drive through Emit, Open and Drop.
type FakeDialer struct {
	mu          sync.Mutex
	errs        []error
	pairingCode string
	opts        []transport.DialOptions
	dialed      chan *FakeConn
}

// NewFakeDialer creates a dialer whose connections hand out pairingCode.
func NewFakeDialer(pairingCode string) *FakeDialer {
	return &FakeDialer{pairingCode: pairingCode, dialed: make(chan *FakeConn, 32)}
}

// FailNext makes the next len(errs) dials fail with errs in order.
func (d *FakeDialer) FailNext(errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs = append(d.errs, errs...)
}

// Dial implements transport.Dialer.
func (d *FakeDialer) Dial(_ context.Context, opts transport.DialOptions) (transport.Connection, error) {
	d.mu.Lock()
	d.opts = append(d.opts, opts)
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		d.mu.Unlock()
		return nil, err
	}
	d.mu.Unlock()

	c := &FakeConn{
		Opts:        opts,
		events:      make(chan transport.Event, 64),
		pairingCode: d.pairingCode,
	}
	d.dialed <- c
	return c, nil
}

// Dials returns the options of every Dial call so far.
func (d *FakeDialer) Dials() []transport.DialOptions {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]transport.DialOptions, len(d.opts))
	copy(out, d.opts)
	return out
}

// Next waits for the next successfully dialed connection.
func (d *FakeDialer) Next(timeout time.Duration) (*FakeConn, bool) {
	select {
	case c := <-d.dialed:
		return c, true
	case <-time.After(timeout):
		return nil, false
	}
}

// FakeConn is an in-memory transport.Connection.
type FakeConn struct {
	Opts transport.DialOptions

	mu          sync.Mutex
	events      chan transport.Event
	closed      bool
	loggedOut   bool
	sent        []SentMessage
	pairingCode string
	pairingErr  error
	pairingReqs []string
	SendErr     error
}

// SetPairingError makes RequestPairingCode fail.
func (c *FakeConn) SetPairingError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairingErr = err
}

// Events implements transport.Connection.
func (c *FakeConn) Events() <-chan transport.Event {
	return c.events
}

// Send implements transport.Connection.
func (c *FakeConn) Send(_ context.Context, to string, msg models.OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrFakeClosed
	}
	if c.SendErr != nil {
		return c.SendErr
	}
	c.sent = append(c.sent, SentMessage{To: to, Msg: msg})
	return nil
}

// RequestPairingCode implements transport.Connection.
func (c *FakeConn) RequestPairingCode(_ context.Context, phone string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pairingReqs = append(c.pairingReqs, phone)
	if c.pairingErr != nil {
		return "", c.pairingErr
	}
	return c.pairingCode, nil
}

// Logout implements transport.Connection.
func (c *FakeConn) Logout(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loggedOut = true
	return nil
}

// Close implements transport.Connection. Like a real link closed locally,
// it ends the event stream without a close event.
func (c *FakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

// Emit delivers ev unless the connection is closed.
func (c *FakeConn) Emit(ev transport.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.events <- ev
	return true
}

// Open emits connection.update open.
func (c *FakeConn) Open() bool {
	return c.Emit(transport.Event{
		Type:       transport.EventConnectionUpdate,
		Connection: &transport.ConnectionUpdate{State: transport.StateOpen},
	})
}

// Drop emits connection.update close with code.
func (c *FakeConn) Drop(code int) bool {
	return c.Emit(transport.Event{
		Type: transport.EventConnectionUpdate,
		Connection: &transport.ConnectionUpdate{
			State:  transport.StateClose,
			Reason: &transport.CloseReason{Code: code, Message: "dropped"},
		},
	})
}

// Deliver emits messages.upsert with envs.
func (c *FakeConn) Deliver(envs ...models.Envelope) bool {
	return c.Emit(transport.Event{Type: transport.EventMessagesUpsert, Messages: envs})
}

// Sent returns the messages sent so far.
func (c *FakeConn) Sent() []SentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]SentMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

// Closed reports whether Close was called.
func (c *FakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// LoggedOut reports whether Logout was called.
func (c *FakeConn) LoggedOut() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loggedOut
}

// PairingRequests returns the phones pairing codes were requested for.
func (c *FakeConn) PairingRequests() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.pairingReqs...)
}
