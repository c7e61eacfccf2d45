// Package models contains domain models for the chat gateway.
package models

import "time"

// SessionStatus is the lifecycle state of a bot session.
type SessionStatus string

const (
	// SessionStatusConnecting is set while the transport is establishing a link.
	SessionStatusConnecting SessionStatus = "connecting"
	// SessionStatusConnected is set once the network reports the link open.
	SessionStatusConnected SessionStatus = "connected"
	// SessionStatusDisconnected is set when the link closed.
	SessionStatusDisconnected SessionStatus = "disconnected"
	// SessionStatusErrored is set when the session could not be started.
	SessionStatusErrored SessionStatus = "errored"
)

// AllSessionStatuses lists every status, used to reset per-status gauges.
var AllSessionStatuses = []SessionStatus{
	SessionStatusConnecting,
	SessionStatusConnected,
	SessionStatusDisconnected,
	SessionStatusErrored,
}

// AuthMode records how a session was authenticated.
type AuthMode string

const (
	// AuthModePairingCode means a fresh pairing code was requested.
	AuthModePairingCode AuthMode = "pairing_code"
	// AuthModeRestoredCredentials means stored credentials were reused.
	AuthModeRestoredCredentials AuthMode = "restored_credentials"
)

// SessionSummary is the externally visible projection of a session.
type SessionSummary struct {
	ID           string        `json:"id"`
	Identity     string        `json:"phoneNumber"`
	DisplayName  string        `json:"name"`
	Status       SessionStatus `json:"status"`
	StartedAt    time.Time     `json:"startTime"`
	MessageCount int64         `json:"messageCount"`
	AuthMode     AuthMode      `json:"authMethod"`
}

const pairingCodePrefix = "gateway:pairing:"

// PairingCodeKey generates a cache key for a session's pairing code.
func PairingCodeKey(sessionID string) string {
	return pairingCodePrefix + sessionID
}

// PairingCodePattern matches every cached pairing code.
const PairingCodePattern = pairingCodePrefix + "*"
