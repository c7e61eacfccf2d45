package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/unifiedui/chat-gateway/internal/api/dto"
	"github.com/unifiedui/chat-gateway/internal/api/middleware"
	"github.com/unifiedui/chat-gateway/internal/api/sse"
	"github.com/unifiedui/chat-gateway/internal/core/cache"
	domainerrors "github.com/unifiedui/chat-gateway/internal/domain/errors"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
	"github.com/unifiedui/chat-gateway/internal/services/credentials"
	"github.com/unifiedui/chat-gateway/internal/services/events"
	"github.com/unifiedui/chat-gateway/internal/services/sessions"
)

// DefaultPairingWait bounds how long startSession waits for a pairing code.
const DefaultPairingWait = 30 * time.Second

// keepAliveInterval is the idle time between SSE keepalive comments.
const keepAliveInterval = 25 * time.Second

// SessionsHandlerConfig holds the dependencies for the sessions handler.
type SessionsHandlerConfig struct {
	Manager *sessions.Manager
	Bus     *events.Bus
	// Cache is optional and serves pairing codes of sessions that are
	// still registered but no longer hold one in memory.
	Cache       cache.Cache
	PairingWait time.Duration
}

// SessionsHandler handles session endpoints.
type SessionsHandler struct {
	manager     *sessions.Manager
	bus         *events.Bus
	cache       cache.Cache
	pairingWait time.Duration
}

// NewSessionsHandler creates a new SessionsHandler.
func NewSessionsHandler(cfg SessionsHandlerConfig) *SessionsHandler {
	wait := cfg.PairingWait
	if wait <= 0 {
		wait = DefaultPairingWait
	}
	return &SessionsHandler{
		manager:     cfg.Manager,
		bus:         cfg.Bus,
		cache:       cfg.Cache,
		pairingWait: wait,
	}
}

// ListSessions handles GET /sessions
// @Summary List sessions
// @Description Lists every registered session ordered by start time
// @Tags Sessions
// @Produce json
// @Success 200 {object} dto.SessionsResponse
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /api/v1/gateway/sessions [get]
func (h *SessionsHandler) ListSessions(c *gin.Context) {
	list := h.manager.Registry().List()
	c.JSON(http.StatusOK, dto.SessionsResponse{Sessions: list, Total: len(list)})
}

// StartSession handles POST /sessions
// @Summary Start a session
// @Description Starts a session that pairs with a code and waits briefly for the code
// @Tags Sessions
// @Accept json
// @Produce json
// @Param request body dto.StartSessionRequest true "Session to start"
// @Success 201 {object} dto.StartSessionResponse
// @Failure 400 {object} dto.ErrorResponse "Bad request - validation error"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/gateway/sessions [post]
func (h *SessionsHandler) StartSession(c *gin.Context) {
	var req dto.StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, domainerrors.NewValidationError("phone number is required", err.Error()))
		return
	}
	identity, err := credentials.NormalizeIdentity(req.PhoneNumber)
	if err != nil {
		middleware.HandleServiceError(c, err, req.PhoneNumber)
		return
	}

	s, err := h.manager.Start(c.Request.Context(), sessions.StartRequest{
		Identity:    identity,
		SessionID:   uuid.NewString(),
		DisplayName: displayName(req.SessionName, identity),
		AuthMode:    models.AuthModePairingCode,
	})
	if err != nil {
		middleware.HandleServiceError(c, err, identity)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.pairingWait)
	defer cancel()
	code, err := s.AwaitPairingCode(ctx)
	if err != nil {
		log.Warn().Err(err).Str("session_id", s.ID()).Msg("pairing code not available yet")
	}

	c.JSON(http.StatusCreated, dto.StartSessionResponse{SessionID: s.ID(), PairingCode: code})
}

// StopSession handles DELETE /sessions/{id}
// @Summary Stop a session
// @Description Logs the session out, closes its connection and unregisters it
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} dto.MessageResponse
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Security BearerAuth
// @Router /api/v1/gateway/sessions/{id} [delete]
func (h *SessionsHandler) StopSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.manager.Stop(c.Request.Context(), id); err != nil {
		middleware.HandleServiceError(c, err, id)
		return
	}
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "session stopped"})
}

// GetPairingCode handles GET /sessions/{id}/pairing-code
// @Summary Get a pairing code
// @Description Returns the latest pairing code of a session, empty when none was issued
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} dto.PairingCodeResponse
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Security BearerAuth
// @Router /api/v1/gateway/sessions/{id}/pairing-code [get]
func (h *SessionsHandler) GetPairingCode(c *gin.Context) {
	id := c.Param("id")
	s, err := h.manager.Get(id)
	if err != nil {
		middleware.HandleServiceError(c, err, id)
		return
	}

	code := s.PairingCode()
	if code == "" && h.cache != nil {
		cached, err := h.cache.Get(c.Request.Context(), models.PairingCodeKey(id))
		if err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("failed to read cached pairing code")
		}
		code = string(cached)
	}
	c.JSON(http.StatusOK, dto.PairingCodeResponse{SessionID: id, PairingCode: code})
}

// StreamLogs handles GET /sessions/{id}/logs
// @Summary Stream session logs
// @Description Replays the buffered session log, then streams new entries as server-sent events
// @Tags Sessions
// @Produce text/event-stream
// @Param id path string true "Session ID"
// @Success 200 {string} string "event stream"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Session not found"
// @Security BearerAuth
// @Router /api/v1/gateway/sessions/{id}/logs [get]
func (h *SessionsHandler) StreamLogs(c *gin.Context) {
	id := c.Param("id")
	s, err := h.manager.Get(id)
	if err != nil {
		middleware.HandleServiceError(c, err, id)
		return
	}

	var (
		sub    <-chan events.Event
		cancel = func() {}
	)
	if h.bus != nil {
		sub, cancel = h.bus.Subscribe()
	}
	defer cancel()

	w, err := sse.NewWriter(c.Writer)
	if err != nil {
		middleware.HandleError(c, domainerrors.NewInternalError("streaming not supported", err))
		return
	}
	c.Status(http.StatusOK)

	for _, entry := range s.Logs() {
		if err := w.WriteJSON(string(events.TypeLog), entry); err != nil {
			return
		}
	}
	streamEvents(c.Request.Context(), w, sub, func(ev events.Event) bool {
		return ev.SessionID == id && (ev.Type == events.TypeLog || ev.Type == events.TypeSessionStopped)
	}, func(ev events.Event) any {
		if ev.Type == events.TypeLog {
			return ev.Data
		}
		return ev
	})
}

// streamEvents forwards matching bus events until ctx ends, the
// subscription closes or a write fails. A nil sub only waits for ctx.
func streamEvents(ctx context.Context, w *sse.Writer, sub <-chan events.Event, match func(events.Event) bool, payload func(events.Event) any) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.WriteKeepAlive(); err != nil {
				return
			}
		case ev, ok := <-sub:
			if !ok {
				return
			}
			if match != nil && !match(ev) {
				continue
			}
			if err := w.WriteJSON(string(ev.Type), payload(ev)); err != nil {
				if !errors.Is(err, context.Canceled) {
					log.Debug().Err(err).Msg("event stream write failed")
				}
				return
			}
		}
	}
}

func displayName(name, identity string) string {
	if name != "" {
		return name
	}
	return "Session " + identity
}
