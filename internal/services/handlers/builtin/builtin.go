// Package builtin holds the compiled-in command handlers.
package builtin

import (
	"context"
	"fmt"
	"time"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
	"github.com/unifiedui/chat-gateway/internal/services/handlers"
	"github.com/unifiedui/chat-gateway/internal/services/memory"
	"github.com/unifiedui/chat-gateway/internal/services/settings"
)

// Replies shared by several handlers.
const (
	AliveImage   = "https://i.ibb.co/K0ZSt8M/bot-alive.jpg"
	AliveCaption = "🔥 *The bot is alive* 🔥\n\n*Created by dark hacker*\n\n_Bot is running and ready to serve you_"
	WelcomeText  = "Welcome to Solo leveling Bot."
	RestartText  = "🔄 *Restarting bot...*\n\nThe bot will be back online shortly."
)

// Restarter restarts a running session.
type Restarter interface {
	Restart(sessionID string) error
}

// Lister lists registered handlers.
type Lister interface {
	List() []*handlers.Descriptor
}

// Deps are the collaborators built-in handlers need.
type Deps struct {
	Memory    memory.Service
	Settings  settings.Service
	Restarter Restarter
	Lister    Lister
	Prefix    string
	StartedAt time.Time
	// Now defaults to time.Now.
	Now func() time.Time
}

type builtins struct {
	deps Deps
}

// NewSource returns a source serving every built-in handler.
func NewSource(deps Deps) (*handlers.BuiltinSource, error) {
	if deps.Memory == nil {
		return nil, fmt.Errorf("memory service is required")
	}
	if deps.Settings == nil {
		return nil, fmt.Errorf("settings service is required")
	}
	if deps.Prefix == "" {
		deps.Prefix = "."
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.StartedAt.IsZero() {
		deps.StartedAt = deps.Now()
	}
	b := &builtins{deps: deps}
	return handlers.NewBuiltinSource(b.descriptors()...), nil
}

func (b *builtins) descriptors() []*handlers.Descriptor {
	p := b.deps.Prefix
	return []*handlers.Descriptor{
		{
			Name:        "arise",
			Title:       "Alive Check",
			Description: "Shows that the bot is alive with an image",
			Example:     p + "arise",
			Execute:     b.arise,
		},
		{
			Name:        "shadow",
			Title:       "Bot Status",
			Description: "Shows the Shadow Monarch bot status",
			Example:     p + "shadow",
			Execute:     b.shadow,
		},
		{
			Name:        "owner",
			Title:       "Owner Status",
			Description: "Owner-only command that returns bot status",
			Example:     p + "owner",
			OwnerOnly:   true,
			Execute:     b.owner,
		},
		{
			Name:        "restart",
			Title:       "Restart",
			Description: "Restart the bot session (owner only)",
			Example:     p + "restart",
			OwnerOnly:   true,
			Execute:     b.restart,
		},
		{
			Name:        "memory",
			Title:       "Chat Memory",
			Description: "View or manage your chat memory",
			Example:     p + "memory remember I like anime",
			Subcommands: []string{"status", "clear", "remember", "help"},
			Execute:     b.memory,
		},
		{
			Name:        "auto_chat",
			Title:       "AI Assistant Toggle",
			Description: "Toggle the AI-powered chat assistant",
			Example:     p + "auto_chat on/off",
			Subcommands: []string{"on", "off"},
			OwnerOnly:   true,
			Execute:     b.autoChat,
		},
		{
			Name:        "help",
			Title:       "Help",
			Description: "Lists available commands",
			Example:     p + "help",
			Execute:     b.help,
		},
	}
}

func (b *builtins) uptime() time.Duration {
	return b.deps.Now().Sub(b.deps.StartedAt)
}

func (b *builtins) arise(ctx context.Context, inv *handlers.Invocation) error {
	if err := inv.Reply(ctx, models.OutboundMessage{ImageURL: AliveImage, Caption: AliveCaption}); err != nil {
		return err
	}
	return inv.ReplyText(ctx, WelcomeText)
}
