package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/unifiedui/chat-gateway/internal/api/dto"
	"github.com/unifiedui/chat-gateway/internal/api/handlers"
	"github.com/unifiedui/chat-gateway/internal/mocks"
	"github.com/unifiedui/chat-gateway/internal/testutils"
)

type count int

func (c count) Len() int { return int(c) }

func TestHealthHandler_Health_AllHealthy(t *testing.T) {
	// Arrange
	mockCache := &mocks.MockCache{}
	mockDocDB := &mocks.MockDocDBClient{}
	mockCache.On("Ping", mock.Anything).Return(nil)
	mockDocDB.On("Ping", mock.Anything).Return(nil)
	handler := handlers.NewHealthHandler(mockCache, mockDocDB, count(2), count(7))
	router := testutils.SetupTestRouter()
	router.GET("/health", handler.Health)

	// Act
	w := testutils.PerformRequest(router, http.MethodGet, "/health", nil, nil)

	// Assert
	testutils.AssertStatusCode(t, http.StatusOK, w)
	var response dto.HealthResponse
	testutils.ParseJSONResponse(t, w, &response)
	assert.Equal(t, "healthy", response.Status)
	assert.Equal(t, "healthy", response.Components["cache"])
	assert.Equal(t, "healthy", response.Components["docdb"])
	assert.Equal(t, 2, response.Sessions)
	assert.Equal(t, 7, response.Handlers)
	mockCache.AssertExpectations(t)
	mockDocDB.AssertExpectations(t)
}

func TestHealthHandler_Health_DocDBUnhealthy(t *testing.T) {
	// Arrange
	mockCache := &mocks.MockCache{}
	mockDocDB := &mocks.MockDocDBClient{}
	mockCache.On("Ping", mock.Anything).Return(nil)
	mockDocDB.On("Ping", mock.Anything).Return(assert.AnError)
	handler := handlers.NewHealthHandler(mockCache, mockDocDB, nil, nil)
	router := testutils.SetupTestRouter()
	router.GET("/health", handler.Health)

	// Act
	w := testutils.PerformRequest(router, http.MethodGet, "/health", nil, nil)

	// Assert
	testutils.AssertStatusCode(t, http.StatusServiceUnavailable, w)
	var response dto.HealthResponse
	testutils.ParseJSONResponse(t, w, &response)
	assert.Equal(t, "unhealthy", response.Status)
	assert.Equal(t, "unhealthy", response.Components["docdb"])
}

func TestHealthHandler_Ready_CacheDown(t *testing.T) {
	mockCache := &mocks.MockCache{}
	mockCache.On("Ping", mock.Anything).Return(assert.AnError)
	handler := handlers.NewHealthHandler(mockCache, &mocks.MockDocDBClient{}, nil, nil)
	router := testutils.SetupTestRouter()
	router.GET("/ready", handler.Ready)

	w := testutils.PerformRequest(router, http.MethodGet, "/ready", nil, nil)

	testutils.AssertStatusCode(t, http.StatusServiceUnavailable, w)
	assert.Contains(t, w.Body.String(), "cache unavailable")
}

func TestHealthRoutes_NoAuthRequired(t *testing.T) {
	f := setup(t, token)

	for _, path := range []string{"/health", "/ready", "/live"} {
		w := testutils.PerformRequest(f.router, http.MethodGet, "/api/v1/gateway"+path, nil, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}
