// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import "encoding/json"

// StartSessionRequest represents the request to start a session with a
// pairing code.
type StartSessionRequest struct {
	PhoneNumber string `json:"phoneNumber" binding:"required"`
	SessionName string `json:"sessionName,omitempty"`
}

// UploadCredentialsRequest represents a credentials upload. Credentials is
// either a JSON object or a string holding one.
type UploadCredentialsRequest struct {
	PhoneNumber string          `json:"phoneNumber" binding:"required"`
	SessionName string          `json:"sessionName,omitempty"`
	Credentials json.RawMessage `json:"credentials" binding:"required" swaggertype:"object"`
}

// SaveHandlerRequest represents a create or update of a file handler.
type SaveHandlerRequest struct {
	Name        string   `json:"name"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Example     string   `json:"example,omitempty"`
	Subcommands []string `json:"subcommands,omitempty"`
	OwnerOnly   bool     `json:"ownerOnly"`
	Reply       string   `json:"reply"`
	IsNew       bool     `json:"isNew"`
}

// UpdateSettingsRequest represents a partial settings update. Nil fields are
// left unchanged; a nil entry in Identities removes the override.
type UpdateSettingsRequest struct {
	AutoChat   *bool            `json:"autoChat,omitempty"`
	Owner      *string          `json:"owner,omitempty"`
	Identities map[string]*bool `json:"identities,omitempty"`
}
