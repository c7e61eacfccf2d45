package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/unifiedui/chat-gateway/internal/api/dto"
	"github.com/unifiedui/chat-gateway/internal/api/middleware"
	"github.com/unifiedui/chat-gateway/internal/api/sse"
	domainerrors "github.com/unifiedui/chat-gateway/internal/domain/errors"
	"github.com/unifiedui/chat-gateway/internal/services/events"
	"github.com/unifiedui/chat-gateway/internal/services/sessions"
)

// EventsHandler streams operator events.
type EventsHandler struct {
	bus     *events.Bus
	manager *sessions.Manager
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(bus *events.Bus, manager *sessions.Manager) *EventsHandler {
	return &EventsHandler{bus: bus, manager: manager}
}

// StreamEvents handles GET /events
// @Summary Stream operator events
// @Description Sends a snapshot of the sessions, then session status, pairing code, stop and log events as server-sent events
// @Tags Events
// @Produce text/event-stream
// @Success 200 {string} string "event stream"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /api/v1/gateway/events [get]
func (h *EventsHandler) StreamEvents(c *gin.Context) {
	sub, cancel := h.bus.Subscribe()
	defer cancel()

	w, err := sse.NewWriter(c.Writer)
	if err != nil {
		middleware.HandleError(c, domainerrors.NewInternalError("streaming not supported", err))
		return
	}
	c.Status(http.StatusOK)

	list := h.manager.Registry().List()
	if err := w.WriteJSON(sse.EventSnapshot, dto.SessionsResponse{Sessions: list, Total: len(list)}); err != nil {
		return
	}
	streamEvents(c.Request.Context(), w, sub, nil, func(ev events.Event) any { return ev })
}
