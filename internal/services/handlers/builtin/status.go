package builtin

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/unifiedui/chat-gateway/internal/services/handlers"
)

// FormatUptime renders d as "HHh MMm SSs".
func FormatUptime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Seconds())
	return fmt.Sprintf("%02dh %02dm %02ds", total/3600, (total%3600)/60, total%60)
}

func (b *builtins) shadow(ctx context.Context, inv *handlers.Invocation) error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	now := b.deps.Now()

	var sb strings.Builder
	sb.WriteString("⚔️ *ARISE!* ⚔️\n")
	sb.WriteString("🔥 *The Shadow Monarch's Bot is ONLINE* 🔥\n\n")
	sb.WriteString("👤 Developer: Dark Hacker\n")
	sb.WriteString("🛡️ Mode: System Sentinel Activated\n\n")
	sb.WriteString("📊 *System Overview:*\n")
	fmt.Fprintf(&sb, "🧠 Heap: %.1f MB / %.1f MB\n", mb(ms.HeapAlloc), mb(ms.Sys))
	fmt.Fprintf(&sb, "🧵 Goroutines: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&sb, "🖥️ CPUs: %d\n\n", runtime.NumCPU())
	fmt.Fprintf(&sb, "🕒 Uptime: %s\n", FormatUptime(b.uptime()))
	fmt.Fprintf(&sb, "📅 Timestamp: %s\n\n", now.Format("2 Jan 2006, 15:04"))
	sb.WriteString(`_"I am no longer weak. I am the ruler of shadows."_`)

	return inv.ReplyText(ctx, sb.String())
}

func (b *builtins) owner(ctx context.Context, inv *handlers.Invocation) error {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	up := b.uptime()

	var sb strings.Builder
	sb.WriteString("🔐 *Owner Command Executed*\n\n")
	sb.WriteString("📊 *Bot Status Information*\n")
	sb.WriteString("━━━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&sb, "• 🔋 Memory Usage: %.2f MB\n", mb(ms.HeapAlloc))
	fmt.Fprintf(&sb, "• ⏱️ Uptime: %d hours, %d minutes\n", int(up.Hours()), int(up.Minutes())%60)
	fmt.Fprintf(&sb, "• 🤖 Session: %s\n", inv.SessionID)
	sb.WriteString("• 🛡️ Permission Level: Administrator\n")
	sb.WriteString("━━━━━━━━━━━━━━━━━━\n")
	sb.WriteString("✅ *All systems operational*")

	return inv.ReplyText(ctx, sb.String())
}

func (b *builtins) restart(ctx context.Context, inv *handlers.Invocation) error {
	if b.deps.Restarter == nil {
		return fmt.Errorf("restart is not available")
	}
	if err := inv.ReplyText(ctx, RestartText); err != nil {
		return err
	}
	return b.deps.Restarter.Restart(inv.SessionID)
}

func (b *builtins) help(ctx context.Context, inv *handlers.Invocation) error {
	if b.deps.Lister == nil {
		return fmt.Errorf("handler list is not available")
	}
	var sb strings.Builder
	sb.WriteString("📜 *Available Commands*\n")
	for _, d := range b.deps.Lister.List() {
		if d.OwnerOnly && !inv.Message.FromPrivilegedUser {
			continue
		}
		fmt.Fprintf(&sb, "\n• `%s%s`", b.deps.Prefix, d.Name)
		if d.Description != "" {
			sb.WriteString(" - " + d.Description)
		}
	}
	return inv.ReplyText(ctx, sb.String())
}

func mb(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
