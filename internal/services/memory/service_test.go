package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/chat-gateway/internal/core/docdb"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
	"github.com/unifiedui/chat-gateway/internal/mocks"
	"github.com/unifiedui/chat-gateway/internal/services/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newService(t *testing.T, capacity int) (memory.Service, *mocks.InMemoryMemories, *fakeClock) {
	t.Helper()
	store := mocks.NewInMemoryMemories()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := memory.NewService(&memory.Config{Store: store, Capacity: capacity, Now: clock.Now})
	require.NoError(t, err)
	return svc, store, clock
}

func TestNewService_Validation(t *testing.T) {
	_, err := memory.NewService(nil)
	assert.Error(t, err)

	_, err = memory.NewService(&memory.Config{})
	assert.Error(t, err)
}

func TestAppend_EnforcesCapacityKeepingNewest(t *testing.T) {
	// Arrange
	svc, _, clock := newService(t, 50)
	ctx := context.Background()

	// Act
	for i := 0; i < 51; i++ {
		require.NoError(t, svc.Append(ctx, "u1", models.MemoryRoleUser, fmt.Sprintf("m%d", i)))
		clock.Advance(time.Second)
	}

	// Assert
	mem, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mem.Messages, 50)
	assert.Equal(t, "m1", mem.Messages[0].Content)
	assert.Equal(t, "m50", mem.Messages[49].Content)
	assert.Equal(t, int64(51), mem.MessageCount)
}

func TestHistory_ReturnsLastNOldestFirst(t *testing.T) {
	// Arrange
	svc, _, _ := newService(t, 0)
	ctx := context.Background()
	for _, c := range []string{"a", "b", "c", "d"} {
		require.NoError(t, svc.Append(ctx, "u1", models.MemoryRoleUser, c))
	}

	// Act
	history, err := svc.History(ctx, "u1", 2)
	empty, emptyErr := svc.History(ctx, "nobody", 5)

	// Assert
	require.NoError(t, err)
	require.NoError(t, emptyErr)
	require.Len(t, history, 2)
	assert.Equal(t, "c", history[0].Content)
	assert.Equal(t, "d", history[1].Content)
	assert.Empty(t, empty)
}

func TestLastInteraction_NeverMovesBackwards(t *testing.T) {
	// Arrange
	svc, _, clock := newService(t, 0)
	ctx := context.Background()
	require.NoError(t, svc.Append(ctx, "u1", models.MemoryRoleUser, "first"))
	first := clock.Now()

	// Act
	clock.Advance(-time.Hour)
	require.NoError(t, svc.Append(ctx, "u1", models.MemoryRoleUser, "skewed"))

	// Assert
	mem, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first, mem.LastInteractionAt)
}

func TestUpdateUserInfo_Merges(t *testing.T) {
	// Arrange
	svc, _, _ := newService(t, 0)
	ctx := context.Background()

	// Act
	require.NoError(t, svc.UpdateUserInfo(ctx, "u1", map[string]string{"name": "Jin", "lang": "en"}))
	require.NoError(t, svc.UpdateUserInfo(ctx, "u1", map[string]string{"name": "Jinwoo"}))

	// Assert
	mem, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"name": "Jinwoo", "lang": "en"}, mem.UserInfo)
}

func TestClear_KeepsUserInfo(t *testing.T) {
	// Arrange
	svc, _, _ := newService(t, 0)
	ctx := context.Background()
	require.NoError(t, svc.UpdateUserInfo(ctx, "u1", map[string]string{"name": "Jin"}))
	require.NoError(t, svc.Append(ctx, "u1", models.MemoryRoleUser, "hello"))

	// Act
	require.NoError(t, svc.Clear(ctx, "u1"))

	// Assert
	mem, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, mem.Messages)
	assert.Equal(t, "Jin", mem.UserInfo["name"])
}

func TestSummary_CommonTopics(t *testing.T) {
	// Arrange
	svc, _, _ := newService(t, 0)
	ctx := context.Background()
	require.NoError(t, svc.Append(ctx, "u1", models.MemoryRoleUser, "Why is the sky blue?"))
	require.NoError(t, svc.Append(ctx, "u1", models.MemoryRoleAssistant, "I can help with that"))
	require.NoError(t, svc.Append(ctx, "u1", models.MemoryRoleUser, "Thanks!"))

	// Act
	summary, err := svc.Summary(ctx, "u1")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.MessageCount)
	assert.Equal(t, []string{"gratitude", "questions"}, summary.CommonTopics)
}

func TestGet_CorruptDocumentStartsFresh(t *testing.T) {
	// Arrange
	store := new(mocks.MockMemoriesCollection)
	store.On("Get", mock.Anything, "u1").Return(nil, fmt.Errorf("%w: bad bson", docdb.ErrCorruptDocument))
	store.On("Put", mock.Anything, mock.MatchedBy(func(m *models.ConversationMemory) bool {
		return m.UserID == "u1" && len(m.Messages) == 1
	})).Return(nil)
	svc, err := memory.NewService(&memory.Config{Store: store})
	require.NoError(t, err)

	// Act
	appendErr := svc.Append(context.Background(), "u1", models.MemoryRoleUser, "hi")

	// Assert
	require.NoError(t, appendErr)
	store.AssertExpectations(t)
}

func TestAppend_StoreFailureIsReturned(t *testing.T) {
	// Arrange
	store := new(mocks.MockMemoriesCollection)
	store.On("Get", mock.Anything, "u1").Return(nil, errors.New("network down"))
	svc, err := memory.NewService(&memory.Config{Store: store})
	require.NoError(t, err)

	// Act
	err = svc.Append(context.Background(), "u1", models.MemoryRoleUser, "hi")

	// Assert
	assert.Error(t, err)
	store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestAppend_ConcurrentWritesAreNotLost(t *testing.T) {
	// Arrange
	svc, _, _ := newService(t, 1000)
	ctx := context.Background()
	var wg sync.WaitGroup

	// Act
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, svc.Append(ctx, "u1", models.MemoryRoleUser, fmt.Sprintf("m%d", i)))
		}(i)
	}
	wg.Wait()

	// Assert
	mem, err := svc.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, mem.Messages, 40)
}

func TestSweep_DeletesIdleMemories(t *testing.T) {
	// Arrange
	svc, store, clock := newService(t, 0)
	ctx := context.Background()
	require.NoError(t, svc.Append(ctx, "old", models.MemoryRoleUser, "hi"))
	clock.Advance(61 * 24 * time.Hour)
	require.NoError(t, svc.Append(ctx, "recent", models.MemoryRoleUser, "hi"))

	// Act
	n, err := svc.Sweep(ctx, 60*24*time.Hour)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	gone, _ := store.Get(ctx, "old")
	kept, _ := store.Get(ctx, "recent")
	assert.Nil(t, gone)
	assert.NotNil(t, kept)
}

func TestSweeper_RunOnce(t *testing.T) {
	// Arrange
	svc, _, clock := newService(t, 0)
	ctx := context.Background()
	require.NoError(t, svc.Append(ctx, "old", models.MemoryRoleUser, "hi"))
	clock.Advance(90 * 24 * time.Hour)
	sweeper, err := memory.NewSweeper(svc, "@daily", 60*24*time.Hour)
	require.NoError(t, err)

	// Act
	n := sweeper.RunOnce(ctx)

	// Assert
	assert.Equal(t, int64(1), n)
}

func TestNewSweeper_InvalidSchedule(t *testing.T) {
	// Arrange
	svc, _, _ := newService(t, 0)

	// Act
	_, err := memory.NewSweeper(svc, "every tuesday-ish", time.Hour)

	// Assert
	assert.Error(t, err)
}
