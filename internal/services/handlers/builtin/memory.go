package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
	"github.com/unifiedui/chat-gateway/internal/services/handlers"
)

const (
	rememberUsage  = "❌ Please specify something to remember (Example: .memory remember I like anime)"
	unknownMemory  = "❌ Unknown memory command. Try `.memory help` for available options."
	memoryCleared  = "🧹 Your chat memory has been cleared. I'll start building new memories from now on."
	autoChatOnText = "✅ Auto chat enabled. AI will respond to your prompts."
	autoChatOff    = "❌ Auto chat disabled. AI will not respond."
	autoChatUsage  = "Usage: .auto_chat on/off"
)

func (b *builtins) memory(ctx context.Context, inv *handlers.Invocation) error {
	userID := models.MemoryKey(inv.Message.SenderID)
	sub := "status"
	if len(inv.Args) > 0 {
		sub = strings.ToLower(inv.Args[0])
	}

	switch sub {
	case "status":
		summary, err := b.deps.Memory.Summary(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to read memory: %w", err)
		}
		return inv.ReplyText(ctx, formatMemoryStatus(summary))

	case "clear":
		if err := b.deps.Memory.Clear(ctx, userID); err != nil {
			return fmt.Errorf("failed to clear memory: %w", err)
		}
		return inv.ReplyText(ctx, memoryCleared)

	case "remember":
		text := strings.TrimSpace(strings.Join(inv.Args[1:], " "))
		if text == "" {
			return inv.ReplyText(ctx, rememberUsage)
		}
		if err := b.deps.Memory.Append(ctx, userID, models.MemoryRoleUser, "Please remember that "+text); err != nil {
			return fmt.Errorf("failed to store memory: %w", err)
		}
		if err := b.deps.Memory.Append(ctx, userID, models.MemoryRoleAssistant, "I'll remember that "+text); err != nil {
			return fmt.Errorf("failed to store memory: %w", err)
		}
		return inv.ReplyText(ctx, "✅ I'll remember that "+text)

	case "help":
		var sb strings.Builder
		sb.WriteString("🧠 *Memory Command Help*\n\n")
		sb.WriteString("• `.memory status` - View your memory status\n")
		sb.WriteString("• `.memory clear` - Clear your chat history\n")
		sb.WriteString("• `.memory remember [text]` - Make the bot remember something\n")
		sb.WriteString("• `.memory help` - Show this help message")
		return inv.ReplyText(ctx, sb.String())

	default:
		return inv.ReplyText(ctx, unknownMemory)
	}
}

func formatMemoryStatus(s *models.MemorySummary) string {
	var sb strings.Builder
	sb.WriteString("📚 *Memory Status*\n\n")
	fmt.Fprintf(&sb, "🧠 Messages in memory: %d\n", s.MessageCount)
	last := "Never"
	if !s.LastActive.IsZero() {
		last = s.LastActive.Format(time.RFC1123)
	}
	fmt.Fprintf(&sb, "🕒 Last interaction: %s\n", last)

	if len(s.UserInfo) > 0 {
		sb.WriteString("\n👤 *Stored User Info*\n")
		keys := make([]string, 0, len(s.UserInfo))
		for k := range s.UserInfo {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s: %s\n", k, s.UserInfo[k])
		}
	}
	return sb.String()
}

func (b *builtins) autoChat(ctx context.Context, inv *handlers.Invocation) error {
	if len(inv.Args) == 0 {
		return inv.ReplyText(ctx, autoChatUsage)
	}
	var enabled bool
	switch strings.ToLower(inv.Args[0]) {
	case "on":
		enabled = true
	case "off":
		enabled = false
	default:
		return inv.ReplyText(ctx, autoChatUsage)
	}
	if err := b.deps.Settings.SetAutoReply(ctx, inv.Identity, enabled); err != nil {
		return fmt.Errorf("failed to update auto chat: %w", err)
	}
	if enabled {
		return inv.ReplyText(ctx, autoChatOnText)
	}
	return inv.ReplyText(ctx, autoChatOff)
}
