package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/unifiedui/chat-gateway/internal/api/dto"
	"github.com/unifiedui/chat-gateway/internal/api/middleware"
	domainerrors "github.com/unifiedui/chat-gateway/internal/domain/errors"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
	"github.com/unifiedui/chat-gateway/internal/services/settings"
)

// SettingsHandler handles the settings document.
type SettingsHandler struct {
	settings settings.Service
}

// NewSettingsHandler creates a new SettingsHandler.
func NewSettingsHandler(svc settings.Service) *SettingsHandler {
	return &SettingsHandler{settings: svc}
}

// GetSettings handles GET /settings
// @Summary Get settings
// @Tags Settings
// @Produce json
// @Success 200 {object} models.Settings
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /api/v1/gateway/settings [get]
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.settings.Get(c.Request.Context()))
}

// UpdateSettings handles PUT /settings
// @Summary Update settings
// @Description Applies a partial update to the auto-chat flags and owner
// @Tags Settings
// @Accept json
// @Produce json
// @Param request body dto.UpdateSettingsRequest true "Settings changes"
// @Success 200 {object} models.Settings
// @Failure 400 {object} dto.ErrorResponse "Bad request - validation error"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/gateway/settings [put]
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, domainerrors.NewValidationError("invalid request body", err.Error()))
		return
	}

	current := h.settings.Get(c.Request.Context())
	ApplySettings(current, &req)

	if err := h.settings.Update(c.Request.Context(), current); err != nil {
		middleware.HandleError(c, domainerrors.NewInternalError("failed to update settings", err))
		return
	}
	c.JSON(http.StatusOK, current)
}

// ApplySettings merges req into s.
func ApplySettings(s *models.Settings, req *dto.UpdateSettingsRequest) {
	if req.AutoChat != nil {
		s.AutoChat = *req.AutoChat
	}
	if req.Owner != nil {
		s.Owner = strings.TrimSpace(*req.Owner)
	}
	if s.Identities == nil {
		s.Identities = map[string]models.IdentitySettings{}
	}
	for identity, enabled := range req.Identities {
		if enabled == nil {
			delete(s.Identities, identity)
			continue
		}
		v := *enabled
		s.Identities[identity] = models.IdentitySettings{AutoChat: &v}
	}
}
