package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/unifiedui/chat-gateway/internal/api/dto"
	"github.com/unifiedui/chat-gateway/internal/api/middleware"
	domainerrors "github.com/unifiedui/chat-gateway/internal/domain/errors"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
	"github.com/unifiedui/chat-gateway/internal/services/credentials"
	"github.com/unifiedui/chat-gateway/internal/services/sessions"
)

// CredentialsHandler handles credential uploads.
type CredentialsHandler struct {
	store   credentials.Store
	manager *sessions.Manager
}

// NewCredentialsHandler creates a new CredentialsHandler.
func NewCredentialsHandler(store credentials.Store, manager *sessions.Manager) *CredentialsHandler {
	return &CredentialsHandler{store: store, manager: manager}
}

// UploadCredentials handles POST /credentials
// @Summary Upload credentials
// @Description Stores a previously issued credentials bundle and starts a session with it
// @Tags Credentials
// @Accept json
// @Produce json
// @Param request body dto.UploadCredentialsRequest true "Credentials bundle"
// @Success 201 {object} dto.UploadCredentialsResponse
// @Failure 400 {object} dto.ErrorResponse "Bad request - validation error"
// @Failure 401 {object} dto.ErrorResponse "Unauthorized"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Security BearerAuth
// @Router /api/v1/gateway/credentials [post]
func (h *CredentialsHandler) UploadCredentials(c *gin.Context) {
	var req dto.UploadCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleError(c, domainerrors.NewValidationError("phone number and credentials are required", err.Error()))
		return
	}
	identity, err := credentials.NormalizeIdentity(req.PhoneNumber)
	if err != nil {
		middleware.HandleServiceError(c, err, req.PhoneNumber)
		return
	}
	bundle, err := DecodeBundle(req.Credentials)
	if err != nil {
		middleware.HandleServiceError(c, err, identity)
		return
	}

	if err := h.store.Save(identity, bundle); err != nil {
		middleware.HandleServiceError(c, err, identity)
		return
	}

	s, err := h.manager.Start(c.Request.Context(), sessions.StartRequest{
		Identity:    identity,
		SessionID:   uuid.NewString(),
		DisplayName: displayName(req.SessionName, identity),
		AuthMode:    models.AuthModeRestoredCredentials,
	})
	if err != nil {
		middleware.HandleServiceError(c, err, identity)
		return
	}

	c.JSON(http.StatusCreated, dto.UploadCredentialsResponse{SessionID: s.ID(), PhoneNumber: identity})
}

// DecodeBundle accepts a credentials bundle sent either as a JSON object or
// as a string containing one, and returns the validated object bytes.
func DecodeBundle(raw json.RawMessage) ([]byte, error) {
	bundle := []byte(raw)
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		bundle = []byte(text)
	}
	if err := credentials.ValidateBundle(bundle); err != nil {
		return nil, fmt.Errorf("failed to decode credentials: %w", err)
	}
	return bundle, nil
}
