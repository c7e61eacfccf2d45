// Package autoreply answers plain-text messages with an AI completion when
// auto-chat is enabled for the receiving identity.
package autoreply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
	"github.com/unifiedui/chat-gateway/internal/services/ai"
	"github.com/unifiedui/chat-gateway/internal/services/handlers"
	"github.com/unifiedui/chat-gateway/internal/services/memory"
	"github.com/unifiedui/chat-gateway/internal/services/settings"
)

// FallbackReply is sent when the turn failed before any reply went out.
const FallbackReply = "Sorry, I couldn't process your message right now. Please try again later."

// Defaults applied to a zero Config.
const (
	DefaultHistoryTurns = 5
	DefaultPersona      = "Shadow Monarch Assistant"
	DefaultSenderName   = "User"
)

// Target is the session a reply goes out through.
type Target interface {
	handlers.Sender
	Identity() string
}

// Config holds the dependencies for the orchestrator.
type Config struct {
	Memory   memory.Service
	Settings settings.Service
	AI       ai.Client
	// Prefix marks commands; prefixed text is never answered.
	Prefix       string
	Persona      string
	HistoryTurns int
	Now          func() time.Time
}

// Orchestrator runs one auto-reply turn per plain-text message.
type Orchestrator struct {
	memory       memory.Service
	settings     settings.Service
	ai           ai.Client
	prefix       string
	persona      string
	historyTurns int
	now          func() time.Time
}

// NewOrchestrator creates a new auto-reply orchestrator.
func NewOrchestrator(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Memory == nil {
		return nil, fmt.Errorf("memory service is required")
	}
	if cfg.Settings == nil {
		return nil, fmt.Errorf("settings service is required")
	}
	if cfg.AI == nil {
		return nil, fmt.Errorf("AI client is required")
	}
	o := &Orchestrator{
		memory:       cfg.Memory,
		settings:     cfg.Settings,
		ai:           cfg.AI,
		prefix:       cfg.Prefix,
		persona:      cfg.Persona,
		historyTurns: cfg.HistoryTurns,
		now:          cfg.Now,
	}
	if o.prefix == "" {
		o.prefix = "."
	}
	if o.persona == "" {
		o.persona = DefaultPersona
	}
	if o.historyTurns <= 0 {
		o.historyTurns = DefaultHistoryTurns
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// Enabled reports whether msg qualifies for an auto-reply on target.
func (o *Orchestrator) Enabled(ctx context.Context, target Target, msg models.InboundMessage) bool {
	text := strings.TrimSpace(msg.RawText)
	if msg.FromSelf || text == "" || strings.HasPrefix(text, o.prefix) {
		return false
	}
	return o.settings.AutoReplyEnabled(ctx, target.Identity())
}

// MaybeRespond answers msg when auto-chat is enabled. It reports whether a
// reply was attempted. Exactly one message is sent per attempted turn.
func (o *Orchestrator) MaybeRespond(ctx context.Context, target Target, msg models.InboundMessage) bool {
	if !o.Enabled(ctx, target, msg) {
		return false
	}

	text := strings.TrimSpace(msg.RawText)
	userID := models.MemoryKey(msg.SenderID)
	name := msg.SenderName
	if name == "" {
		name = DefaultSenderName
	}
	logger := log.With().Str("identity", target.Identity()).Str("user_id", userID).Logger()

	reply, err := o.turn(ctx, userID, name, text)
	if err != nil {
		if errors.Is(err, ai.ErrExhausted) {
			logger.Warn().Err(err).Msg("auto-reply fell back to unavailable notice")
		} else {
			logger.Error().Err(err).Msg("auto-reply failed")
		}
	}
	if reply == "" {
		reply = FallbackReply
	}

	if err := target.Send(ctx, msg.SenderID, models.OutboundMessage{Text: reply}); err != nil {
		logger.Error().Err(err).Msg("failed to send auto-reply")
	}
	return true
}

// turn records the exchange in memory and returns the text to send. A
// non-empty reply may accompany an error.
func (o *Orchestrator) turn(ctx context.Context, userID, name, text string) (string, error) {
	info := map[string]string{
		"name":     name,
		"lastSeen": o.now().UTC().Format(time.RFC3339),
	}
	if err := o.memory.UpdateUserInfo(ctx, userID, info); err != nil {
		return "", fmt.Errorf("failed to update user info: %w", err)
	}

	history, err := o.memory.History(ctx, userID, o.historyTurns)
	if err != nil {
		return "", fmt.Errorf("failed to read history: %w", err)
	}
	if err := o.memory.Append(ctx, userID, models.MemoryRoleUser, text); err != nil {
		return "", fmt.Errorf("failed to record user turn: %w", err)
	}

	summary, err := o.memory.Summary(ctx, userID)
	if err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("memory summary unavailable")
	}

	reply, err := o.ai.Generate(ctx, BuildPrompt(o.persona, name, summary, history, text))
	if reply.Model != "" {
		if appendErr := o.memory.Append(ctx, userID, models.MemoryRoleAssistant, reply.Text); appendErr != nil {
			log.Warn().Err(appendErr).Str("user_id", userID).Msg("failed to record assistant turn")
		}
	}
	return reply.Text, err
}

// BuildPrompt assembles the model prompt from the persona, what is known
// about the user, the prior turns and the new message.
func BuildPrompt(persona, name string, summary *models.MemorySummary, history []models.MemoryEntry, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, an advanced AI agent chatting with %s. Be helpful, concise, and friendly.\n", persona, name)

	if summary != nil {
		if summary.MessageCount > 0 {
			fmt.Fprintf(&b, "\nYou have exchanged %d messages with this user.", summary.MessageCount)
		}
		if len(summary.CommonTopics) > 0 {
			fmt.Fprintf(&b, " Common topics: %s.", strings.Join(summary.CommonTopics, ", "))
		}
		b.WriteString("\n")
	}

	if len(history) > 0 {
		b.WriteString("\nPrevious conversation:\n")
		for _, e := range history {
			speaker := name
			if e.Role == models.MemoryRoleAssistant {
				speaker = persona
			}
			fmt.Fprintf(&b, "%s: %s\n", speaker, e.Content)
		}
	}

	fmt.Fprintf(&b, "\n%s: %s\n%s:", name, text, persona)
	return b.String()
}
