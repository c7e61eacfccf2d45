// Package settings stores the gateway's single settings document.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/unifiedui/chat-gateway/internal/core/cache"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// Key is the cache key holding the settings document.
const Key = "gateway:settings"

// Service reads and writes the settings document.
type Service interface {
	// Get returns the current settings. Missing or corrupt documents yield defaults.
	Get(ctx context.Context) *models.Settings

	// Update replaces the settings document.
	Update(ctx context.Context, s *models.Settings) error

	// AutoReplyEnabled resolves the auto-reply flag for identity.
	AutoReplyEnabled(ctx context.Context, identity string) bool

	// SetAutoReply sets the flag for identity, or the global flag when identity is empty.
	SetAutoReply(ctx context.Context, identity string, enabled bool) error

	// OwnerID returns the privileged identifier, falling back to configuration.
	OwnerID(ctx context.Context) string
}

// Config holds the dependencies for the settings service.
type Config struct {
	Cache cache.Cache
	// FallbackOwner is used when the document names no owner.
	FallbackOwner string
}

type service struct {
	cache         cache.Cache
	fallbackOwner string
	mu            sync.Mutex // serializes read-modify-write
}

// NewService creates a new settings service.
func NewService(cfg *Config) (Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	return &service{cache: cfg.Cache, fallbackOwner: strings.TrimSpace(cfg.FallbackOwner)}, nil
}

func (s *service) Get(ctx context.Context) *models.Settings {
	data, err := s.cache.Get(ctx, Key)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read settings, using defaults")
		return models.DefaultSettings()
	}
	if data == nil {
		return models.DefaultSettings()
	}

	settings := models.DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		log.Warn().Err(err).Msg("corrupt settings document, using defaults")
		return models.DefaultSettings()
	}
	if settings.Identities == nil {
		settings.Identities = map[string]models.IdentitySettings{}
	}
	return settings
}

func (s *service) Update(ctx context.Context, settings *models.Settings) error {
	if settings == nil {
		return fmt.Errorf("settings are required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, settings)
}

func (s *service) save(ctx context.Context, settings *models.Settings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := s.cache.Set(ctx, Key, data, 0); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (s *service) AutoReplyEnabled(ctx context.Context, identity string) bool {
	return s.Get(ctx).AutoChatFor(identity)
}

func (s *service) SetAutoReply(ctx context.Context, identity string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	settings := s.Get(ctx)
	if identity == "" {
		settings.AutoChat = enabled
	} else {
		settings.Identities[identity] = models.IdentitySettings{AutoChat: &enabled}
	}
	return s.save(ctx, settings)
}

func (s *service) OwnerID(ctx context.Context) string {
	if owner := strings.TrimSpace(s.Get(ctx).Owner); owner != "" {
		return owner
	}
	return s.fallbackOwner
}
