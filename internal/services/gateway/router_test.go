package gateway_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/unifiedui/chat-gateway/internal/core/transport"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
	"github.com/unifiedui/chat-gateway/internal/mocks"
	"github.com/unifiedui/chat-gateway/internal/services/autoreply"
	"github.com/unifiedui/chat-gateway/internal/services/classifier"
	"github.com/unifiedui/chat-gateway/internal/services/credentials"
	"github.com/unifiedui/chat-gateway/internal/services/dispatch"
	"github.com/unifiedui/chat-gateway/internal/services/gateway"
	"github.com/unifiedui/chat-gateway/internal/services/handlers"
	"github.com/unifiedui/chat-gateway/internal/services/memory"
	"github.com/unifiedui/chat-gateway/internal/services/sessions"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTarget struct {
	mocks.RecordingSender
}

func (f *fakeTarget) ID() string       { return "sess-1" }
func (f *fakeTarget) Identity() string { return "15550001111" }
func (f *fakeTarget) Alive() bool      { return true }

type noOwner struct{}

func (noOwner) OwnerID(context.Context) string { return "1999" }

type counter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *counter) handler(name string) *handlers.Descriptor {
	return &handlers.Descriptor{
		Name: name,
		Execute: func(ctx context.Context, inv *handlers.Invocation) error {
			c.mu.Lock()
			c.calls[name]++
			c.mu.Unlock()
			return inv.ReplyText(ctx, "ran "+name)
		},
	}
}

func (c *counter) get(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

type fixture struct {
	router   *gateway.Router
	queue    *dispatch.Queue
	counter  *counter
	ai       *mocks.MockAIClient
	settings *mocks.MockSettingsService
}

func setup(t *testing.T, autoChat bool) *fixture {
	t.Helper()
	f := &fixture{
		counter:  &counter{calls: map[string]int{}},
		ai:       &mocks.MockAIClient{},
		settings: &mocks.MockSettingsService{},
	}
	f.settings.On("AutoReplyEnabled", mock.Anything, mock.Anything).Return(autoChat).Maybe()

	reg := handlers.NewRegistry(handlers.NewBuiltinSource(f.counter.handler("arise"), f.counter.handler("help")))
	_, err := reg.Load(context.Background())
	require.NoError(t, err)

	cls, err := classifier.New(".", noOwner{})
	require.NoError(t, err)
	d, err := dispatch.NewDispatcher(&dispatch.Config{Registry: reg, HandlerTimeout: time.Second})
	require.NoError(t, err)
	f.queue, err = dispatch.NewQueue(2, 8)
	require.NoError(t, err)
	t.Cleanup(f.queue.Close)

	mem, err := memory.NewService(&memory.Config{Store: mocks.NewInMemoryMemories()})
	require.NoError(t, err)
	orch, err := autoreply.NewOrchestrator(&autoreply.Config{Memory: mem, Settings: f.settings, AI: f.ai})
	require.NoError(t, err)

	f.router, err = gateway.NewRouter(&gateway.Config{
		Classifier: cls,
		Dispatcher: d,
		Queue:      f.queue,
		Responder:  orch,
	})
	require.NoError(t, err)
	return f
}

func envelope(text string) models.Envelope {
	return models.Envelope{
		ID:       "m1",
		SenderID: "1777@s.net",
		Bodies:   []models.Body{{Kind: models.BodyConversation, Text: text}},
	}
}

func TestNewRouter_Validation(t *testing.T) {
	_, err := gateway.NewRouter(nil)
	assert.Error(t, err)
	_, err = gateway.NewRouter(&gateway.Config{})
	assert.Error(t, err)
}

func TestHandle_CommandInvokesOnlyThatHandler(t *testing.T) {
	// Arrange
	f := setup(t, false)
	target := &fakeTarget{}

	// Act
	f.router.Handle(context.Background(), target, envelope(".arise"))
	f.queue.Close()

	// Assert
	assert.Equal(t, 1, f.counter.get("arise"))
	assert.Equal(t, 0, f.counter.get("help"))
	assert.Equal(t, []string{"ran arise"}, target.Texts())
}

func TestHandle_UnknownCommandIsSilent(t *testing.T) {
	// Arrange
	f := setup(t, true)
	target := &fakeTarget{}

	// Act
	assert.NotPanics(t, func() {
		f.router.Handle(context.Background(), target, envelope(".unknowncmd"))
	})
	f.queue.Close()

	// Assert
	assert.Empty(t, target.Sent())
	f.ai.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestHandle_PlainTextWithAutoChatDisabled(t *testing.T) {
	// Arrange
	f := setup(t, false)
	target := &fakeTarget{}

	// Act
	f.router.Handle(context.Background(), target, envelope("hello"))
	f.queue.Close()

	// Assert
	assert.Empty(t, target.Sent())
	f.ai.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestHandle_SelfMessagesIgnored(t *testing.T) {
	f := setup(t, true)
	target := &fakeTarget{}
	env := envelope(".arise")
	env.FromSelf = true

	f.router.Handle(context.Background(), target, env)
	f.queue.Close()

	assert.Equal(t, 0, f.counter.get("arise"))
	assert.Empty(t, target.Sent())
}

func TestHandle_QueueClosedDropsMessage(t *testing.T) {
	f := setup(t, false)
	f.queue.Close()
	target := &fakeTarget{}

	assert.NotPanics(t, func() {
		f.router.Handle(context.Background(), target, envelope(".arise"))
	})
	assert.Equal(t, 0, f.counter.get("arise"))
}

func TestRoute_CountsAndLogsThroughSession(t *testing.T) {
	// Arrange
	f := setup(t, false)
	store, err := credentials.NewStore(&credentials.Config{Root: t.TempDir()})
	require.NoError(t, err)
	dialer := mocks.NewFakeDialer("ABCDEFGH")
	manager, err := sessions.NewManager(&sessions.Config{
		Dialer:       dialer,
		Credentials:  store,
		Router:       f.router,
		PairingDelay: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, manager.Shutdown(ctx))
	})
	s, err := manager.Start(context.Background(), sessions.StartRequest{Identity: "15550001111", SessionID: "s1"})
	require.NoError(t, err)
	conn, ok := dialer.Next(2 * time.Second)
	require.True(t, ok)
	conn.Open()

	// Act
	conn.Deliver(envelope(".arise"))

	// Assert
	assert.Eventually(t, func() bool { return f.counter.get("arise") == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), s.MessageCount())
	var incoming int
	for _, e := range s.Logs() {
		if e.Type == models.LogTypeIncoming {
			incoming++
		}
	}
	assert.Equal(t, 1, incoming)
}

func TestRoute_SlowSenderDoesNotDelayCredentialWrites(t *testing.T) {
	// Arrange
	release := make(chan struct{})
	slow := &handlers.Descriptor{
		Name: "slow",
		Execute: func(ctx context.Context, _ *handlers.Invocation) error {
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		},
	}
	reg := handlers.NewRegistry(handlers.NewBuiltinSource(slow))
	_, err := reg.Load(context.Background())
	require.NoError(t, err)
	cls, err := classifier.New(".", noOwner{})
	require.NoError(t, err)
	d, err := dispatch.NewDispatcher(&dispatch.Config{Registry: reg, HandlerTimeout: time.Minute})
	require.NoError(t, err)
	queue, err := dispatch.NewQueue(8, 64)
	require.NoError(t, err)
	t.Cleanup(queue.Close)
	router, err := gateway.NewRouter(&gateway.Config{Classifier: cls, Dispatcher: d, Queue: queue})
	require.NoError(t, err)

	store, err := credentials.NewStore(&credentials.Config{Root: t.TempDir()})
	require.NoError(t, err)
	dialer := mocks.NewFakeDialer("ABCDEFGH")
	manager, err := sessions.NewManager(&sessions.Config{
		Dialer:       dialer,
		Credentials:  store,
		Router:       router,
		PairingDelay: time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, manager.Shutdown(ctx))
	})
	defer close(release)

	_, err = manager.Start(context.Background(), sessions.StartRequest{Identity: "15550001111", SessionID: "s1"})
	require.NoError(t, err)
	conn, ok := dialer.Next(2 * time.Second)
	require.True(t, ok)
	conn.Open()

	flood := make([]models.Envelope, 66)
	for i := range flood {
		flood[i] = envelope(".slow")
	}

	// Act
	conn.Deliver(flood...)
	conn.Emit(transport.Event{Type: transport.EventCredsUpdate, Credentials: []byte(`{"v":3}`)})

	// Assert
	assert.Eventually(t, func() bool { return store.Exists("15550001111") },
		500*time.Millisecond, 5*time.Millisecond, "credentials persisted while handlers are still blocked")
	bundle, err := store.Load("15550001111")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":3}`, string(bundle))
	assert.Positive(t, queue.Pending())
}
