package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/chat-gateway/internal/core/docdb"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// MockMemoriesCollection is a testify mock of docdb.MemoriesCollection.
type MockMemoriesCollection struct {
	mock.Mock
}

func (m *MockMemoriesCollection) Get(ctx context.Context, userID string) (*models.ConversationMemory, error) {
	args := m.Called(ctx, userID)
	memory, _ := args.Get(0).(*models.ConversationMemory)
	return memory, args.Error(1)
}

func (m *MockMemoriesCollection) Put(ctx context.Context, memory *models.ConversationMemory) error {
	return m.Called(ctx, memory).Error(0)
}

func (m *MockMemoriesCollection) Delete(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMemoriesCollection) DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

// InMemoryMemories is a map-backed docdb.MemoriesCollection for tests that
// need real read-after-write behaviour.
type InMemoryMemories struct {
	mu   sync.Mutex
	docs map[string]models.ConversationMemory
}

// NewInMemoryMemories creates an empty store.
func NewInMemoryMemories() *InMemoryMemories {
	return &InMemoryMemories{docs: make(map[string]models.ConversationMemory)}
}

// Get returns a copy of the stored memory.
func (s *InMemoryMemories) Get(_ context.Context, userID string) (*models.ConversationMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[userID]
	if !ok {
		return nil, nil
	}
	return cloneMemory(doc), nil
}

// Put stores a copy of memory.
func (s *InMemoryMemories) Put(_ context.Context, memory *models.ConversationMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[memory.UserID] = *cloneMemory(*memory)
	return nil
}

// Delete removes a memory.
func (s *InMemoryMemories) Delete(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.docs[userID]
	delete(s.docs, userID)
	return ok, nil
}

// DeleteInactiveSince removes memories idle since before cutoff.
func (s *InMemoryMemories) DeleteInactiveSince(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, doc := range s.docs {
		if doc.LastInteractionAt.Before(cutoff) {
			delete(s.docs, id)
			n++
		}
	}
	return n, nil
}

func cloneMemory(m models.ConversationMemory) *models.ConversationMemory {
	out := m
	out.Messages = append([]models.MemoryEntry{}, m.Messages...)
	out.UserInfo = make(map[string]string, len(m.UserInfo))
	for k, v := range m.UserInfo {
		out.UserInfo[k] = v
	}
	return &out
}

var _ docdb.MemoriesCollection = (*InMemoryMemories)(nil)

// MockDocDBClient is a testify mock of docdb.Client. Memories returns
// MemoriesStore without recording a call.
type MockDocDBClient struct {
	mock.Mock
	MemoriesStore docdb.MemoriesCollection
}

func (m *MockDocDBClient) Memories() docdb.MemoriesCollection {
	return m.MemoriesStore
}

func (m *MockDocDBClient) EnsureIndexes(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDocDBClient) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDocDBClient) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
