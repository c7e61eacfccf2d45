package middleware_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/unifiedui/chat-gateway/internal/api/middleware"
	domainerrors "github.com/unifiedui/chat-gateway/internal/domain/errors"
	"github.com/unifiedui/chat-gateway/internal/testutils"
)

func newRouter(handler gin.HandlerFunc) *gin.Engine {
	r := testutils.SetupTestRouter()
	r.Use(middleware.NewLoggingMiddleware().Logger())
	r.Use(middleware.NewErrorMiddleware().Recovery())
	r.NoRoute(middleware.NotFound())
	r.GET("/thing/:id", handler)
	return r
}

func TestRecovery_PanicBecomes500(t *testing.T) {
	r := newRouter(func(c *gin.Context) { panic("boom") })

	w := testutils.PerformRequest(r, http.MethodGet, "/thing/1", nil, nil)

	testutils.AssertStatusCode(t, http.StatusInternalServerError, w)
	var resp middleware.ErrorResponse
	testutils.ParseJSONResponse(t, w, &resp)
	assert.Equal(t, domainerrors.ErrCodeInternal, resp.Code)
}

func TestLogger_AssignsOrEchoesRequestID(t *testing.T) {
	var seen string
	r := newRouter(func(c *gin.Context) {
		seen = middleware.GetRequestID(c)
		c.Status(http.StatusNoContent)
	})

	generated := testutils.PerformRequest(r, http.MethodGet, "/thing/1", nil, nil)
	assert.NotEmpty(t, generated.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, generated.Header().Get(middleware.RequestIDHeader), seen)

	echoed := testutils.PerformRequest(r, http.MethodGet, "/thing/1", nil, map[string]string{middleware.RequestIDHeader: "req-42"})
	assert.Equal(t, "req-42", echoed.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "req-42", seen)
}

func TestHandleServiceError_MapsSentinels(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "session not found", err: domainerrors.ErrSessionNotFound, want: http.StatusNotFound},
		{name: "handler exists", err: domainerrors.ErrHandlerExists, want: http.StatusConflict},
		{name: "bad credentials", err: domainerrors.ErrInvalidCredentials, want: http.StatusBadRequest},
		{name: "bad identity", err: domainerrors.ErrInvalidIdentity, want: http.StatusBadRequest},
		{name: "deadline", err: fmt.Errorf("await: %w", context.DeadlineExceeded), want: http.StatusGatewayTimeout},
		{name: "domain error passes through", err: domainerrors.NewTimeoutError("pairing"), want: http.StatusGatewayTimeout},
		{name: "anything else", err: errors.New("disk full"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newRouter(func(c *gin.Context) { middleware.HandleServiceError(c, tt.err, c.Param("id")) })

			w := testutils.PerformRequest(r, http.MethodGet, "/thing/abc", nil, nil)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestHandleError_PlainErrorIs500(t *testing.T) {
	r := newRouter(func(c *gin.Context) { middleware.HandleError(c, errors.New("nope")) })

	w := testutils.PerformRequest(r, http.MethodGet, "/thing/1", nil, nil)

	testutils.AssertStatusCode(t, http.StatusInternalServerError, w)
	assert.NotContains(t, w.Body.String(), "nope")
}

func TestNotFound(t *testing.T) {
	r := newRouter(func(c *gin.Context) {})

	w := testutils.PerformRequest(r, http.MethodGet, "/missing", nil, nil)

	testutils.AssertStatusCode(t, http.StatusNotFound, w)
	assert.Contains(t, w.Body.String(), "GET /missing")
}

func TestAuthenticate(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		path    string
		headers map[string]string
		want    int
	}{
		{name: "disabled", token: "", path: "/p", want: http.StatusOK},
		{name: "bearer ok", token: "s3cret", path: "/p", headers: testutils.BearerHeader("s3cret"), want: http.StatusOK},
		{name: "lowercase scheme", token: "s3cret", path: "/p", headers: map[string]string{"Authorization": "bearer s3cret"}, want: http.StatusOK},
		{name: "query ok", token: "s3cret", path: "/p?token=s3cret", want: http.StatusOK},
		{name: "missing", token: "s3cret", path: "/p", want: http.StatusUnauthorized},
		{name: "wrong", token: "s3cret", path: "/p", headers: testutils.BearerHeader("guess"), want: http.StatusUnauthorized},
		{name: "header wins over query", token: "s3cret", path: "/p?token=s3cret", headers: testutils.BearerHeader("guess"), want: http.StatusUnauthorized},
		{name: "bad scheme", token: "s3cret", path: "/p", headers: map[string]string{"Authorization": "Token s3cret"}, want: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testutils.SetupTestRouter()
			r.Use(middleware.NewAuthMiddleware(tt.token).Authenticate())
			r.GET("/p", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := testutils.PerformRequest(r, http.MethodGet, tt.path, nil, tt.headers)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCORS(t *testing.T) {
	r := testutils.SetupTestRouter()
	r.Use(middleware.NewCORSMiddleware(middleware.DefaultCORSConfig("https://console.example")))
	r.GET("/p", func(c *gin.Context) { c.Status(http.StatusOK) })

	allowed := testutils.PerformRequest(r, http.MethodGet, "/p", nil, map[string]string{"Origin": "https://console.example"})
	other := testutils.PerformRequest(r, http.MethodGet, "/p", nil, map[string]string{"Origin": "https://evil.example"})
	preflight := testutils.PerformRequest(r, http.MethodOptions, "/p", nil, map[string]string{"Origin": "https://console.example"})

	assert.Equal(t, "https://console.example", allowed.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", allowed.Header().Get("Access-Control-Allow-Credentials"))
	assert.Empty(t, other.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, other.Code)
	assert.Equal(t, http.StatusNoContent, preflight.Code)
	assert.Contains(t, preflight.Header().Get("Access-Control-Allow-Methods"), http.MethodDelete)
}
