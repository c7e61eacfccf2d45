package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/chat-gateway/internal/api/dto"
	commands "github.com/unifiedui/chat-gateway/internal/services/handlers"
	"github.com/unifiedui/chat-gateway/internal/testutils"
)

const handlersPath = "/api/v1/gateway/handlers"

func saveHandler(f *fixture, req dto.SaveHandlerRequest) int {
	return testutils.PerformRequest(f.router, http.MethodPost, handlersPath, req, auth).Code
}

func TestSaveHandler_CreateThenList(t *testing.T) {
	// Arrange
	f := setup(t, token)

	// Act
	w := testutils.PerformRequest(f.router, http.MethodPost, handlersPath, dto.SaveHandlerRequest{
		Name:        "Ping",
		Description: "Replies with pong",
		Reply:       "pong {{.SenderName}}",
		IsNew:       true,
	}, auth)

	// Assert
	testutils.AssertStatusCode(t, http.StatusOK, w)
	var saved dto.HandlerResponse
	testutils.ParseJSONResponse(t, w, &saved)
	assert.Equal(t, "ping", saved.Name)
	assert.Equal(t, commands.SourceFile, saved.Source)
	assert.True(t, saved.Editable)

	d, ok := f.registry.Get("ping")
	require.True(t, ok)
	assert.Equal(t, commands.SourceFile, d.Source)

	list := testutils.PerformRequest(f.router, http.MethodGet, handlersPath, nil, auth)
	testutils.AssertStatusCode(t, http.StatusOK, list)
	var resp dto.HandlersResponse
	testutils.ParseJSONResponse(t, list, &resp)
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "arise", resp.Handlers[0].Name)
	assert.Equal(t, commands.SourceBuiltin, resp.Handlers[0].Source)
	assert.False(t, resp.Handlers[0].Editable)
	assert.Equal(t, "ping", resp.Handlers[1].Name)
}

func TestSaveHandler_Errors(t *testing.T) {
	// Arrange
	f := setup(t, token)
	require.Equal(t, http.StatusOK, saveHandler(f, dto.SaveHandlerRequest{Name: "ping", Reply: "pong", IsNew: true}))

	tests := []struct {
		name string
		req  dto.SaveHandlerRequest
		want int
	}{
		{name: "duplicate create", req: dto.SaveHandlerRequest{Name: "ping", Reply: "pong", IsNew: true}, want: http.StatusConflict},
		{name: "update missing", req: dto.SaveHandlerRequest{Name: "pong", Reply: "ping"}, want: http.StatusNotFound},
		{name: "invalid name", req: dto.SaveHandlerRequest{Name: "../etc", Reply: "x", IsNew: true}, want: http.StatusBadRequest},
		{name: "empty reply", req: dto.SaveHandlerRequest{Name: "quiet", IsNew: true}, want: http.StatusBadRequest},
		{name: "broken template", req: dto.SaveHandlerRequest{Name: "broken", Reply: "{{.Nope", IsNew: true}, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			code := saveHandler(f, tt.req)

			// Assert
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestSaveHandler_Update(t *testing.T) {
	f := setup(t, token)
	require.Equal(t, http.StatusOK, saveHandler(f, dto.SaveHandlerRequest{Name: "ping", Reply: "pong", IsNew: true}))

	code := saveHandler(f, dto.SaveHandlerRequest{Name: "ping", Reply: "pong again", OwnerOnly: true})

	assert.Equal(t, http.StatusOK, code)
	d, ok := f.registry.Get("ping")
	require.True(t, ok)
	assert.True(t, d.OwnerOnly)
}

func TestGetHandler(t *testing.T) {
	// Arrange
	f := setup(t, token)
	require.Equal(t, http.StatusOK, saveHandler(f, dto.SaveHandlerRequest{Name: "ping", Reply: "pong", IsNew: true}))

	// Act
	file := testutils.PerformRequest(f.router, http.MethodGet, handlersPath+"/PING", nil, auth)
	builtin := testutils.PerformRequest(f.router, http.MethodGet, handlersPath+"/arise", nil, auth)
	missing := testutils.PerformRequest(f.router, http.MethodGet, handlersPath+"/nope", nil, auth)

	// Assert
	testutils.AssertStatusCode(t, http.StatusOK, file)
	var fileResp dto.HandlerResponse
	testutils.ParseJSONResponse(t, file, &fileResp)
	assert.Equal(t, "pong", fileResp.Reply)
	assert.True(t, fileResp.Editable)

	testutils.AssertStatusCode(t, http.StatusOK, builtin)
	var builtinResp dto.HandlerResponse
	testutils.ParseJSONResponse(t, builtin, &builtinResp)
	assert.Equal(t, "Check if the bot is alive", builtinResp.Description)
	assert.Equal(t, commands.SourceBuiltin, builtinResp.Source)
	assert.Empty(t, builtinResp.Reply)

	testutils.AssertStatusCode(t, http.StatusNotFound, missing)
}

func TestDeleteHandler(t *testing.T) {
	// Arrange
	f := setup(t, token)
	require.Equal(t, http.StatusOK, saveHandler(f, dto.SaveHandlerRequest{Name: "ping", Reply: "pong", IsNew: true}))

	// Act
	deleted := testutils.PerformRequest(f.router, http.MethodDelete, handlersPath+"/ping", nil, auth)
	again := testutils.PerformRequest(f.router, http.MethodDelete, handlersPath+"/ping", nil, auth)
	builtin := testutils.PerformRequest(f.router, http.MethodDelete, handlersPath+"/arise", nil, auth)

	// Assert
	testutils.AssertStatusCode(t, http.StatusOK, deleted)
	testutils.AssertStatusCode(t, http.StatusNotFound, again)
	testutils.AssertStatusCode(t, http.StatusNotFound, builtin)
	_, ok := f.registry.Get("ping")
	assert.False(t, ok)
	_, ok = f.registry.Get("arise")
	assert.True(t, ok)
}
