package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/unifiedui/chat-gateway/internal/api/dto"
	"github.com/unifiedui/chat-gateway/internal/api/middleware"
	domainerrors "github.com/unifiedui/chat-gateway/internal/domain/errors"
	commands "github.com/unifiedui/chat-gateway/internal/services/handlers"
)

// CommandsHandler manages command handlers. Built-in handlers are read-only;
// file handlers can be created, edited and deleted.
type CommandsHandler struct {
	registry *commands.Registry
	files    *commands.FileSource
}

// NewCommandsHandler creates a new CommandsHandler.
func NewCommandsHandler(registry *commands.Registry, files *commands.FileSource) *CommandsHandler {
	return &CommandsHandler{registry: registry, files: files}
}

// ListHandlers handles GET /handlers
// @Summary List handlers
// @Description Lists every registered command handler ordered by name
// @Tags Handlers
// @Produce json
// @Success 200 {object} dto.HandlersResponse
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /api/v1/gateway/handlers [get]
func (h *CommandsHandler) ListHandlers(c *gin.Context) {
	descs := h.registry.List()
	out := make([]dto.HandlerResponse, 0, len(descs))
	for _, d := range descs {
		out = append(out, toHandlerResponse(d))
	}
	c.JSON(http.StatusOK, dto.HandlersResponse{Handlers: out, Total: len(out)})
}

// GetHandler handles GET /handlers/{name}
// @Summary Get a handler
// @Description Returns a handler; file handlers include their reply template
// @Tags Handlers
// @Produce json
// @Param name path string true "Handler name"
// @Success 200 {object} dto.HandlerResponse
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Handler not found"
// @Security BearerAuth
// @Router /api/v1/gateway/handlers/{name} [get]
func (h *CommandsHandler) GetHandler(c *gin.Context) {
	name := commands.Key(c.Param("name"))

	doc, _, err := h.files.Read(name)
	if err == nil {
		resp := documentResponse(doc)
		if d, ok := h.registry.Get(name); ok {
			resp.Source = d.Source
		}
		c.JSON(http.StatusOK, resp)
		return
	}
	if !errors.Is(err, domainerrors.ErrHandlerNotFound) {
		middleware.HandleServiceError(c, err, name)
		return
	}

	d, ok := h.registry.Get(name)
	if !ok {
		middleware.HandleServiceError(c, domainerrors.ErrHandlerNotFound, name)
		return
	}
	c.JSON(http.StatusOK, toHandlerResponse(d))
}

// SaveHandler handles POST /handlers
// @Summary Save a handler
// @Description Creates (isNew) or replaces a file handler and reloads the registry
// @Tags Handlers
// @Accept json
// @Produce json
// @Param request body dto.SaveHandlerRequest true "Handler definition"
// @Success 200 {object} dto.HandlerResponse
// @Failure 400 {object} dto.ErrorResponse "Bad request - validation error"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Handler not found"
// @Failure 409 {object} dto.ErrorResponse "Handler already exists"
// @Security BearerAuth
// @Router /api/v1/gateway/handlers [post]
func (h *CommandsHandler) SaveHandler(c *gin.Context) {
	var req dto.SaveHandlerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, domainerrors.NewValidationError("invalid request body", err.Error()))
		return
	}

	doc := &commands.Document{
		Name:        req.Name,
		Title:       req.Title,
		Description: req.Description,
		Example:     req.Example,
		Subcommands: req.Subcommands,
		OwnerOnly:   req.OwnerOnly,
		Reply:       req.Reply,
	}
	if err := h.files.Save(doc, req.IsNew); err != nil {
		middleware.HandleServiceError(c, err, doc.Name)
		return
	}
	h.reload(c)

	resp := documentResponse(doc)
	if d, ok := h.registry.Get(doc.Name); ok {
		resp.Source = d.Source
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteHandler handles DELETE /handlers/{name}
// @Summary Delete a handler
// @Description Deletes a file handler and reloads the registry
// @Tags Handlers
// @Produce json
// @Param name path string true "Handler name"
// @Success 200 {object} dto.MessageResponse
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 404 {object} dto.ErrorResponse "Handler not found"
// @Security BearerAuth
// @Router /api/v1/gateway/handlers/{name} [delete]
func (h *CommandsHandler) DeleteHandler(c *gin.Context) {
	name := commands.Key(c.Param("name"))
	if err := h.files.Delete(name); err != nil {
		middleware.HandleServiceError(c, err, name)
		return
	}
	h.reload(c)
	c.JSON(http.StatusOK, dto.MessageResponse{Message: "handler deleted"})
}

// reload applies a change right away instead of waiting for the watcher.
func (h *CommandsHandler) reload(c *gin.Context) {
	if _, err := h.registry.Load(c.Request.Context()); err != nil {
		log.Warn().Err(err).Msg("handler registry reloaded with errors")
	}
}

func toHandlerResponse(d *commands.Descriptor) dto.HandlerResponse {
	return dto.HandlerResponse{
		Name:        d.Name,
		Title:       d.Title,
		Description: d.Description,
		Example:     d.Example,
		Subcommands: d.Subcommands,
		OwnerOnly:   d.OwnerOnly,
		Source:      d.Source,
		Editable:    d.Source == commands.SourceFile,
	}
}

func documentResponse(doc *commands.Document) dto.HandlerResponse {
	return dto.HandlerResponse{
		Name:        doc.Name,
		Title:       doc.Title,
		Description: doc.Description,
		Example:     doc.Example,
		Subcommands: doc.Subcommands,
		OwnerOnly:   doc.OwnerOnly,
		Source:      commands.SourceFile,
		Editable:    true,
		Reply:       doc.Reply,
	}
}
