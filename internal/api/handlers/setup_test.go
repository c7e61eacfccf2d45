package handlers_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/chat-gateway/internal/api/handlers"
	"github.com/unifiedui/chat-gateway/internal/api/middleware"
	"github.com/unifiedui/chat-gateway/internal/api/routes"
	"github.com/unifiedui/chat-gateway/internal/core/cache"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
	rediscache "github.com/unifiedui/chat-gateway/internal/infrastructure/cache/redis"
	"github.com/unifiedui/chat-gateway/internal/mocks"
	"github.com/unifiedui/chat-gateway/internal/services/credentials"
	"github.com/unifiedui/chat-gateway/internal/services/events"
	commands "github.com/unifiedui/chat-gateway/internal/services/handlers"
	"github.com/unifiedui/chat-gateway/internal/services/sessions"
	"github.com/unifiedui/chat-gateway/internal/services/settings"
	"github.com/unifiedui/chat-gateway/internal/testutils"
)

const token = "operator-secret"

var auth = testutils.BearerHeader(token)

type noopRouter struct{}

func (noopRouter) Route(context.Context, *sessions.Session, models.Envelope) {}

type fixture struct {
	router   *gin.Engine
	manager  *sessions.Manager
	dialer   *mocks.FakeDialer
	creds    credentials.Store
	registry *commands.Registry
	files    *commands.FileSource
	settings settings.Service
	cache    cache.Cache
	bus      *events.Bus
}

func setup(t *testing.T, operatorToken string) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	redis, err := rediscache.NewCache(rediscache.Config{Host: mr.Host(), Port: mr.Port()})
	require.NoError(t, err)
	t.Cleanup(func() {
		redis.Close()
		mr.Close()
	})

	settingsSvc, err := settings.NewService(&settings.Config{Cache: redis})
	require.NoError(t, err)

	store, err := credentials.NewStore(&credentials.Config{Root: t.TempDir()})
	require.NoError(t, err)

	f := &fixture{
		dialer:   mocks.NewFakeDialer("ABCD1234"),
		creds:    store,
		settings: settingsSvc,
		cache:    redis,
		bus:      events.NewBus(events.DefaultBuffer),
	}

	f.manager, err = sessions.NewManager(&sessions.Config{
		Dialer:         f.dialer,
		Credentials:    store,
		Router:         noopRouter{},
		Cache:          redis,
		Bus:            f.bus,
		ReconnectDelay: 10 * time.Millisecond,
		PairingDelay:   time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, f.manager.Shutdown(ctx))
	})

	f.files, err = commands.NewFileSource(t.TempDir())
	require.NoError(t, err)
	f.registry = commands.NewRegistry(
		commands.NewBuiltinSource(&commands.Descriptor{
			Name:        "arise",
			Description: "Check if the bot is alive",
			Execute:     func(context.Context, *commands.Invocation) error { return nil },
		}),
		f.files,
	)
	_, err = f.registry.Load(context.Background())
	require.NoError(t, err)

	cacheMock := &mocks.MockCache{}
	cacheMock.On("Ping", mock.Anything).Return(nil)
	docdbMock := &mocks.MockDocDBClient{}
	docdbMock.On("Ping", mock.Anything).Return(nil)

	f.router = testutils.SetupTestRouter()
	routes.SetupWithMiddleware(f.router, &routes.Config{
		HealthHandler: handlers.NewHealthHandler(cacheMock, docdbMock, f.manager.Registry(), f.registry),
		SessionsHandler: handlers.NewSessionsHandler(handlers.SessionsHandlerConfig{
			Manager:     f.manager,
			Bus:         f.bus,
			Cache:       redis,
			PairingWait: 2 * time.Second,
		}),
		CredentialsHandler: handlers.NewCredentialsHandler(store, f.manager),
		CommandsHandler:    handlers.NewCommandsHandler(f.registry, f.files),
		SettingsHandler:    handlers.NewSettingsHandler(settingsSvc),
		EventsHandler:      handlers.NewEventsHandler(f.bus, f.manager),
		AuthMiddleware:     middleware.NewAuthMiddleware(operatorToken),
	}, middleware.NewLoggingMiddleware(), middleware.NewErrorMiddleware(), middleware.DefaultCORSConfig("http://localhost:3000"))

	return f
}
