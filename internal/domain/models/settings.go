package models

import "strings"

// IdentitySettings overrides global settings for one bot identity.
type IdentitySettings struct {
	AutoChat *bool `json:"autoChat,omitempty"`
}

// Settings is the single mutable settings document.
type Settings struct {
	AutoChat   bool                        `json:"autoChat"`
	Owner      string                      `json:"owner,omitempty"`
	Identities map[string]IdentitySettings `json:"identities,omitempty"`
}

// DefaultSettings returns the settings used when none are stored.
func DefaultSettings() *Settings {
	return &Settings{Identities: map[string]IdentitySettings{}}
}

// AutoChatFor resolves the auto-reply flag for an identity, preferring the
// identity override.
func (s *Settings) AutoChatFor(identity string) bool {
	if s == nil {
		return false
	}
	if o, ok := s.Identities[identity]; ok && o.AutoChat != nil {
		return *o.AutoChat
	}
	return s.AutoChat
}

// IsOwner reports whether senderID belongs to the owner. Network ids carry
// a device/server suffix so this is a containment check.
func IsOwner(senderID, owner string) bool {
	owner = strings.TrimSpace(owner)
	return owner != "" && strings.Contains(senderID, owner)
}
