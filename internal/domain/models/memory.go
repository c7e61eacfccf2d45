package models

import (
	"strings"
	"time"
)

// MemoryRole is the author of a memory entry.
type MemoryRole string

const (
	MemoryRoleUser      MemoryRole = "user"
	MemoryRoleAssistant MemoryRole = "assistant"
)

// MemoryEntry is a single turn in a conversation memory.
type MemoryEntry struct {
	Role      MemoryRole `json:"role" bson:"role"`
	Content   string     `json:"content" bson:"content"`
	Timestamp time.Time  `json:"timestamp" bson:"timestamp"`
}

// ConversationMemory is the per-user document kept for auto-replies.
type ConversationMemory struct {
	UserID            string            `json:"userId" bson:"_id"`
	Messages          []MemoryEntry     `json:"messages" bson:"messages"`
	UserInfo          map[string]string `json:"userInfo" bson:"userInfo"`
	LastInteractionAt time.Time         `json:"lastInteraction" bson:"lastInteractionAt"`
	MessageCount      int64             `json:"messageCount" bson:"messageCount"`
}

// NewConversationMemory creates an empty memory for a user.
func NewConversationMemory(userID string) *ConversationMemory {
	return &ConversationMemory{
		UserID:   userID,
		Messages: []MemoryEntry{},
		UserInfo: map[string]string{},
	}
}

// Append adds an entry, evicting the oldest entries beyond capacity.
// LastInteractionAt only moves forward.
func (m *ConversationMemory) Append(entry MemoryEntry, capacity int) {
	m.Messages = append(m.Messages, entry)
	if capacity > 0 && len(m.Messages) > capacity {
		m.Messages = append([]MemoryEntry(nil), m.Messages[len(m.Messages)-capacity:]...)
	}
	m.MessageCount++
	m.Touch(entry.Timestamp)
}

// Touch advances LastInteractionAt to t if t is later.
func (m *ConversationMemory) Touch(t time.Time) {
	if t.After(m.LastInteractionAt) {
		m.LastInteractionAt = t
	}
}

// Last returns up to n most recent entries, oldest first.
func (m *ConversationMemory) Last(n int) []MemoryEntry {
	if n <= 0 || len(m.Messages) == 0 {
		return []MemoryEntry{}
	}
	if n > len(m.Messages) {
		n = len(m.Messages)
	}
	out := make([]MemoryEntry, n)
	copy(out, m.Messages[len(m.Messages)-n:])
	return out
}

// MemorySummary is the digest shown by the memory status command.
type MemorySummary struct {
	MessageCount int64             `json:"messageCount"`
	LastActive   time.Time         `json:"lastActive"`
	UserInfo     map[string]string `json:"userInfo"`
	CommonTopics []string          `json:"commonTopics"`
}

// MemoryKey derives the memory user id from a network sender id by
// dropping the "@server" suffix.
func MemoryKey(senderID string) string {
	if i := strings.IndexByte(senderID, '@'); i >= 0 {
		return senderID[:i]
	}
	return senderID
}
