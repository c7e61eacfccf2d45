// Package transport defines the boundary to the messaging network.
//
// The gateway never speaks the network protocol itself. A Dialer opens one
// Connection per bot identity and the Connection delivers lifecycle,
// credential and message events in the order the network produced them.
package transport

import (
	"context"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// Type names a transport implementation.
type Type string

const (
	// TypeWSBridge talks JSON frames to an external bridge over a websocket.
	TypeWSBridge Type = "wsbridge"
)

// EventType is the kind of event a Connection delivers.
type EventType string

const (
	EventConnectionUpdate EventType = "connection.update"
	EventCredsUpdate      EventType = "creds.update"
	EventMessagesUpsert   EventType = "messages.upsert"
)

// ConnectionState is the link state carried by a connection.update event.
type ConnectionState string

const (
	StateConnecting ConnectionState = "connecting"
	StateOpen       ConnectionState = "open"
	StateClose      ConnectionState = "close"
)

// ReasonLoggedOut is the close code meaning the account revoked this device.
// Any other close code is transient.
const ReasonLoggedOut = 401

// CloseReason explains why a connection closed.
type CloseReason struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// IsLoggedOut reports whether the close is terminal.
func (r *CloseReason) IsLoggedOut() bool {
	return r != nil && r.Code == ReasonLoggedOut
}

// ConnectionUpdate is the payload of a connection.update event.
type ConnectionUpdate struct {
	State  ConnectionState `json:"state"`
	Reason *CloseReason    `json:"reason,omitempty"`
}

// Event is one item on a Connection's event stream.
type Event struct {
	Type       EventType
	Connection *ConnectionUpdate
	// Credentials is the opaque bundle for creds.update.
	Credentials []byte
	Messages    []models.Envelope
}

// DialOptions configures a new connection.
type DialOptions struct {
	Identity string
	// Credentials is a previously saved bundle; nil requests a fresh login.
	Credentials []byte
}

// Dialer opens connections to the messaging network.
type Dialer interface {
	Dial(ctx context.Context, opts DialOptions) (Connection, error)
}

// Connection is an authenticated link for one identity.
type Connection interface {
	// Events returns the event stream. It is closed after the final close event.
	Events() <-chan Event

	// Send delivers a message to a recipient id.
	Send(ctx context.Context, to string, msg models.OutboundMessage) error

	// RequestPairingCode asks the network for a device pairing code.
	RequestPairingCode(ctx context.Context, phone string) (string, error)

	// Logout revokes the device registration.
	Logout(ctx context.Context) error

	// Close tears down the link without logging out.
	Close() error
}
