// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/chat-gateway/internal/services/ai"
)

// MockAIProvider is a mock implementation of ai.Provider.
type MockAIProvider struct {
	mock.Mock
}

// Generate returns the configured completion.
func (m *MockAIProvider) Generate(ctx context.Context, model, prompt string) (string, error) {
	args := m.Called(ctx, model, prompt)
	return args.String(0), args.Error(1)
}

// MockAIClient is a mock implementation of ai.Client.
type MockAIClient struct {
	mock.Mock
}

// Generate returns the configured reply.
func (m *MockAIClient) Generate(ctx context.Context, prompt string) (ai.Reply, error) {
	args := m.Called(ctx, prompt)
	return args.Get(0).(ai.Reply), args.Error(1)
}
