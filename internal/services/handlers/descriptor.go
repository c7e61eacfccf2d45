// Package handlers discovers, validates and serves command handlers.
package handlers

import (
	"context"
	"strings"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// Sender delivers outbound messages on behalf of a session.
type Sender interface {
	Send(ctx context.Context, to string, msg models.OutboundMessage) error
}

// Invocation is everything a handler sees about one command.
type Invocation struct {
	SessionID string
	// Identity is the bot account the command arrived on.
	Identity string
	Command  string
	Args     []string
	Message  models.InboundMessage
	Sender   Sender
}

// ArgText joins the arguments with single spaces.
func (inv *Invocation) ArgText() string {
	return strings.Join(inv.Args, " ")
}

// Reply sends msg back to the sender of the command.
func (inv *Invocation) Reply(ctx context.Context, msg models.OutboundMessage) error {
	return inv.Sender.Send(ctx, inv.Message.SenderID, msg)
}

// ReplyText is Reply for a plain text message.
func (inv *Invocation) ReplyText(ctx context.Context, text string) error {
	return inv.Reply(ctx, models.OutboundMessage{Text: text})
}

// ExecuteFunc runs a command.
type ExecuteFunc func(ctx context.Context, inv *Invocation) error

// Descriptor is a registered command handler.
type Descriptor struct {
	Name        string   `json:"name"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Example     string   `json:"example,omitempty"`
	Subcommands []string `json:"subcommands,omitempty"`
	// OwnerOnly restricts the command to the privileged user.
	OwnerOnly bool `json:"ownerOnly"`
	// Source names where the handler came from.
	Source  string      `json:"source"`
	Execute ExecuteFunc `json:"-"`
}

// Key returns the lookup key for a command name.
func Key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
