package settings_test

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
	rediscache "github.com/unifiedui/chat-gateway/internal/infrastructure/cache/redis"
	"github.com/unifiedui/chat-gateway/internal/mocks"
	"github.com/unifiedui/chat-gateway/internal/services/settings"
)

func setupService(t *testing.T, fallbackOwner string) (*miniredis.Miniredis, settings.Service) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	c, err := rediscache.NewCache(rediscache.Config{Host: mr.Host(), Port: mr.Port()})
	require.NoError(t, err)
	t.Cleanup(func() {
		c.Close()
		mr.Close()
	})

	svc, err := settings.NewService(&settings.Config{Cache: c, FallbackOwner: fallbackOwner})
	require.NoError(t, err)
	return mr, svc
}

func TestGet_MissingDocumentUsesDefaults(t *testing.T) {
	// Arrange
	_, svc := setupService(t, "")

	// Act
	s := svc.Get(context.Background())

	// Assert
	assert.False(t, s.AutoChat)
	assert.Empty(t, s.Owner)
}

func TestGet_CorruptDocumentUsesDefaults(t *testing.T) {
	// Arrange
	mr, svc := setupService(t, "")
	require.NoError(t, mr.Set(settings.Key, "{not json"))

	// Act
	s := svc.Get(context.Background())

	// Assert
	assert.False(t, s.AutoChat)
}

func TestSetAutoReply_IdentityOverridesGlobal(t *testing.T) {
	// Arrange
	_, svc := setupService(t, "")
	ctx := context.Background()

	// Act
	require.NoError(t, svc.SetAutoReply(ctx, "", true))
	require.NoError(t, svc.SetAutoReply(ctx, "15551234567", false))

	// Assert
	assert.True(t, svc.AutoReplyEnabled(ctx, "15559999999"))
	assert.False(t, svc.AutoReplyEnabled(ctx, "15551234567"))
}

func TestSettings_PersistWithoutExpiry(t *testing.T) {
	// Arrange
	mr, svc := setupService(t, "")

	// Act
	require.NoError(t, svc.Update(context.Background(), &models.Settings{AutoChat: true, Owner: "15550001111"}))

	// Assert
	assert.Equal(t, int64(0), int64(mr.TTL(settings.Key)))
	raw, err := mr.Get(settings.Key)
	require.NoError(t, err)
	assert.JSONEq(t, `{"autoChat":true,"owner":"15550001111"}`, raw)
}

func TestOwnerID_FallsBackToConfiguration(t *testing.T) {
	// Arrange
	_, svc := setupService(t, "15550002222")
	ctx := context.Background()

	// Act
	before := svc.OwnerID(ctx)
	require.NoError(t, svc.Update(ctx, &models.Settings{Owner: "15550001111"}))
	after := svc.OwnerID(ctx)

	// Assert
	assert.Equal(t, "15550002222", before)
	assert.Equal(t, "15550001111", after)
}

func TestGet_CacheFailureUsesDefaults(t *testing.T) {
	// Arrange
	c := new(mocks.MockCache)
	c.On("Get", mock.Anything, settings.Key).Return(nil, errors.New("redis down"))
	svc, err := settings.NewService(&settings.Config{Cache: c})
	require.NoError(t, err)

	// Act
	enabled := svc.AutoReplyEnabled(context.Background(), "x")

	// Assert
	assert.False(t, enabled)
}
