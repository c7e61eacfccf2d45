package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// MockSettingsService is a mock implementation of settings.Service.
type MockSettingsService struct {
	mock.Mock
}

// Get returns the configured settings.
func (m *MockSettingsService) Get(ctx context.Context) *models.Settings {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return models.DefaultSettings()
	}
	return args.Get(0).(*models.Settings)
}

// Update records the call.
func (m *MockSettingsService) Update(ctx context.Context, s *models.Settings) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

// AutoReplyEnabled returns the configured flag.
func (m *MockSettingsService) AutoReplyEnabled(ctx context.Context, identity string) bool {
	args := m.Called(ctx, identity)
	return args.Bool(0)
}

// SetAutoReply records the call.
func (m *MockSettingsService) SetAutoReply(ctx context.Context, identity string, enabled bool) error {
	args := m.Called(ctx, identity, enabled)
	return args.Error(0)
}

// OwnerID returns the configured owner.
func (m *MockSettingsService) OwnerID(ctx context.Context) string {
	args := m.Called(ctx)
	return args.String(0)
}
