package handlers_test

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unifiedui/chat-gateway/internal/api/dto"
	"github.com/unifiedui/chat-gateway/internal/api/middleware"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
	"github.com/unifiedui/chat-gateway/internal/testutils"
)

const sessionsPath = "/api/v1/gateway/sessions"

func startSession(t *testing.T, f *fixture, body string) dto.StartSessionResponse {
	t.Helper()
	w := testutils.PerformRequest(f.router, http.MethodPost, sessionsPath, body, auth)
	testutils.AssertStatusCode(t, http.StatusCreated, w)
	var resp dto.StartSessionResponse
	testutils.ParseJSONResponse(t, w, &resp)
	return resp
}

func TestStartSession_ReturnsPairingCode(t *testing.T) {
	// Arrange
	f := setup(t, token)

	// Act
	resp := startSession(t, f, `{"phoneNumber":"+1 (555) 010-0001","sessionName":"support"}`)

	// Assert
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, "ABCD-1234", resp.PairingCode)

	s, err := f.manager.Get(resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "15550100001", s.Identity())
	assert.Equal(t, "support", s.DisplayName())
	assert.Equal(t, models.AuthModePairingCode, s.AuthMode())

	cached, err := f.cache.Get(context.Background(), models.PairingCodeKey(resp.SessionID))
	require.NoError(t, err)
	assert.Equal(t, "ABCD-1234", string(cached))
}

func TestStartSession_DefaultsDisplayName(t *testing.T) {
	f := setup(t, token)

	resp := startSession(t, f, `{"phoneNumber":"15550100002"}`)

	s, err := f.manager.Get(resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, "Session 15550100002", s.DisplayName())
}

func TestStartSession_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "missing body", body: ``},
		{name: "missing phone", body: `{"sessionName":"x"}`},
		{name: "no digits", body: `{"phoneNumber":"abc"}`},
		{name: "malformed json", body: `{"phoneNumber":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, token)

			w := testutils.PerformRequest(f.router, http.MethodPost, sessionsPath, tt.body, auth)

			testutils.AssertStatusCode(t, http.StatusBadRequest, w)
			var resp middleware.ErrorResponse
			testutils.ParseJSONResponse(t, w, &resp)
			assert.NotEmpty(t, resp.Code)
			assert.Empty(t, f.manager.Registry().List())
		})
	}
}

func TestListSessions(t *testing.T) {
	// Arrange
	f := setup(t, token)
	first := startSession(t, f, `{"phoneNumber":"15550100001"}`)
	second := startSession(t, f, `{"phoneNumber":"15550100002"}`)

	// Act
	w := testutils.PerformRequest(f.router, http.MethodGet, sessionsPath, nil, auth)

	// Assert
	testutils.AssertStatusCode(t, http.StatusOK, w)
	var resp dto.SessionsResponse
	testutils.ParseJSONResponse(t, w, &resp)
	assert.Equal(t, 2, resp.Total)
	ids := []string{resp.Sessions[0].ID, resp.Sessions[1].ID}
	assert.ElementsMatch(t, []string{first.SessionID, second.SessionID}, ids)
	assert.Contains(t, w.Body.String(), `"phoneNumber":"15550100001"`)
	assert.Contains(t, w.Body.String(), `"authMethod":"pairing_code"`)
}

func TestListSessions_EmptyIsArray(t *testing.T) {
	f := setup(t, token)

	w := testutils.PerformRequest(f.router, http.MethodGet, sessionsPath, nil, auth)

	testutils.AssertStatusCode(t, http.StatusOK, w)
	assert.Contains(t, w.Body.String(), `"total":0`)
}

func TestGetPairingCode(t *testing.T) {
	// Arrange
	f := setup(t, token)
	started := startSession(t, f, `{"phoneNumber":"15550100001"}`)

	// Act
	w := testutils.PerformRequest(f.router, http.MethodGet, sessionsPath+"/"+started.SessionID+"/pairing-code", nil, auth)
	missing := testutils.PerformRequest(f.router, http.MethodGet, sessionsPath+"/nope/pairing-code", nil, auth)

	// Assert
	testutils.AssertStatusCode(t, http.StatusOK, w)
	var resp dto.PairingCodeResponse
	testutils.ParseJSONResponse(t, w, &resp)
	assert.Equal(t, started.SessionID, resp.SessionID)
	assert.Equal(t, "ABCD-1234", resp.PairingCode)
	assert.Equal(t, http.StatusNotFound, missing.Code)
}

func TestStopSession(t *testing.T) {
	// Arrange
	f := setup(t, token)
	started := startSession(t, f, `{"phoneNumber":"15550100001"}`)
	conn, ok := f.dialer.Next(time.Second)
	require.True(t, ok)

	// Act
	first := testutils.PerformRequest(f.router, http.MethodDelete, sessionsPath+"/"+started.SessionID, nil, auth)
	second := testutils.PerformRequest(f.router, http.MethodDelete, sessionsPath+"/"+started.SessionID, nil, auth)

	// Assert
	testutils.AssertStatusCode(t, http.StatusOK, first)
	testutils.AssertStatusCode(t, http.StatusNotFound, second)
	assert.True(t, conn.LoggedOut())
	assert.True(t, conn.Closed())
	assert.Empty(t, f.manager.Registry().List())
	cached, err := f.cache.Get(context.Background(), models.PairingCodeKey(started.SessionID))
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestStreamLogs_ReplaysBufferedEntries(t *testing.T) {
	// Arrange
	f := setup(t, token)
	started := startSession(t, f, `{"phoneNumber":"15550100001"}`)
	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		srv.URL+sessionsPath+"/"+started.SessionID+"/logs?token="+token, nil)
	require.NoError(t, err)

	// Act
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	// Assert
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	var event string
	found := false
	for !found && scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			event = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") && strings.Contains(line, "Starting session for 15550100001") {
			found = true
		}
	}
	assert.True(t, found)
	assert.Equal(t, "log", event)
}

func TestStreamLogs_UnknownSession(t *testing.T) {
	f := setup(t, token)

	w := testutils.PerformRequest(f.router, http.MethodGet, sessionsPath+"/nope/logs", nil, auth)

	testutils.AssertStatusCode(t, http.StatusNotFound, w)
}
