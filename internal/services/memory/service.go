// Package memory keeps bounded per-user conversation histories.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unifiedui/chat-gateway/internal/core/docdb"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// DefaultCapacity is the number of entries kept per user.
const DefaultCapacity = 50

// Service manages conversation memories.
type Service interface {
	// Append records a turn, evicting the oldest entries beyond capacity.
	Append(ctx context.Context, userID string, role models.MemoryRole, content string) error

	// History returns up to n most recent entries, oldest first.
	History(ctx context.Context, userID string, n int) ([]models.MemoryEntry, error)

	// Get returns the user's memory, or an empty one when none is stored.
	Get(ctx context.Context, userID string) (*models.ConversationMemory, error)

	// UpdateUserInfo merges info into the stored user attributes.
	UpdateUserInfo(ctx context.Context, userID string, info map[string]string) error

	// Clear drops the stored turns while keeping user attributes.
	Clear(ctx context.Context, userID string) error

	// Summary digests the memory for display.
	Summary(ctx context.Context, userID string) (*models.MemorySummary, error)

	// Sweep deletes memories idle for longer than retention.
	Sweep(ctx context.Context, retention time.Duration) (int64, error)
}

// Config holds the dependencies for the memory service.
type Config struct {
	Store    docdb.MemoriesCollection
	Capacity int
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

type service struct {
	store    docdb.MemoriesCollection
	capacity int
	now      func() time.Time
	locks    *keyedMutex
}

// NewService creates a new memory service.
func NewService(cfg *Config) (Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("memory store is required")
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		store:    cfg.Store,
		capacity: capacity,
		now:      now,
		locks:    newKeyedMutex(),
	}, nil
}

// load reads the memory, replacing a corrupt document with an empty one.
func (s *service) load(ctx context.Context, userID string) (*models.ConversationMemory, error) {
	mem, err := s.store.Get(ctx, userID)
	if errors.Is(err, docdb.ErrCorruptDocument) {
		log.Warn().Err(err).Str("user_id", userID).Msg("corrupt conversation memory, starting fresh")
		return models.NewConversationMemory(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load memory: %w", err)
	}
	if mem == nil {
		return models.NewConversationMemory(userID), nil
	}
	return mem, nil
}

// mutate runs fn on the user's memory under the user's lock and saves it.
func (s *service) mutate(ctx context.Context, userID string, fn func(*models.ConversationMemory)) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	mem, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	fn(mem)
	if err := s.store.Put(ctx, mem); err != nil {
		return fmt.Errorf("failed to save memory: %w", err)
	}
	return nil
}

func (s *service) Append(ctx context.Context, userID string, role models.MemoryRole, content string) error {
	return s.mutate(ctx, userID, func(mem *models.ConversationMemory) {
		mem.Append(models.MemoryEntry{
			Role:      role,
			Content:   content,
			Timestamp: s.now().UTC(),
		}, s.capacity)
	})
}

func (s *service) History(ctx context.Context, userID string, n int) ([]models.MemoryEntry, error) {
	mem, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return mem.Last(n), nil
}

func (s *service) Get(ctx context.Context, userID string) (*models.ConversationMemory, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	return s.load(ctx, userID)
}

func (s *service) UpdateUserInfo(ctx context.Context, userID string, info map[string]string) error {
	return s.mutate(ctx, userID, func(mem *models.ConversationMemory) {
		if mem.UserInfo == nil {
			mem.UserInfo = map[string]string{}
		}
		for k, v := range info {
			mem.UserInfo[k] = v
		}
		mem.Touch(s.now().UTC())
	})
}

func (s *service) Clear(ctx context.Context, userID string) error {
	return s.mutate(ctx, userID, func(mem *models.ConversationMemory) {
		mem.Messages = []models.MemoryEntry{}
		mem.Touch(s.now().UTC())
	})
}

func (s *service) Summary(ctx context.Context, userID string) (*models.MemorySummary, error) {
	mem, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &models.MemorySummary{
		MessageCount: int64(len(mem.Messages)),
		LastActive:   mem.LastInteractionAt,
		UserInfo:     mem.UserInfo,
		CommonTopics: commonTopics(mem.Messages),
	}, nil
}

func (s *service) Sweep(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive")
	}
	cutoff := s.now().UTC().Add(-retention)
	n, err := s.store.DeleteInactiveSince(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep memories: %w", err)
	}
	return n, nil
}

var topicRules = []struct {
	topic    string
	keywords []string
}{
	{"assistance", []string{"help"}},
	{"gratitude", []string{"thank"}},
	{"questions", []string{"how", "what", "why"}},
}

func commonTopics(entries []models.MemoryEntry) []string {
	found := make(map[string]bool)
	for _, e := range entries {
		if e.Role != models.MemoryRoleUser {
			continue
		}
		content := strings.ToLower(e.Content)
		for _, rule := range topicRules {
			for _, kw := range rule.keywords {
				if strings.Contains(content, kw) {
					found[rule.topic] = true
					break
				}
			}
		}
	}
	topics := []string{}
	for _, rule := range topicRules {
		if found[rule.topic] {
			topics = append(topics, rule.topic)
		}
	}
	return topics
}
