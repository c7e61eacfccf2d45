package dto

import "github.com/unifiedui/chat-gateway/internal/domain/models"

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
	Sessions   int               `json:"sessions"`
	Handlers   int               `json:"handlers"`
}

// StartSessionResponse is returned when a session starts. PairingCode is
// empty when the network did not produce one in time.
type StartSessionResponse struct {
	SessionID   string `json:"sessionId"`
	PairingCode string `json:"pairingCode"`
}

// UploadCredentialsResponse is returned when a restored session starts.
type UploadCredentialsResponse struct {
	SessionID   string `json:"sessionId"`
	PhoneNumber string `json:"phoneNumber"`
}

// PairingCodeResponse carries the latest pairing code of a session.
type PairingCodeResponse struct {
	SessionID   string `json:"sessionId"`
	PairingCode string `json:"pairingCode"`
}

// SessionsResponse lists the registered sessions.
type SessionsResponse struct {
	Sessions []models.SessionSummary `json:"sessions"`
	Total    int                     `json:"total"`
}

// HandlerResponse describes a registered handler. Reply is only set for
// file handlers.
type HandlerResponse struct {
	Name        string   `json:"name"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Example     string   `json:"example,omitempty"`
	Subcommands []string `json:"subcommands,omitempty"`
	OwnerOnly   bool     `json:"ownerOnly"`
	Source      string   `json:"source"`
	Editable    bool     `json:"editable"`
	Reply       string   `json:"reply,omitempty"`
}

// HandlersResponse lists the registered handlers.
type HandlersResponse struct {
	Handlers []HandlerResponse `json:"handlers"`
	Total    int               `json:"total"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}
