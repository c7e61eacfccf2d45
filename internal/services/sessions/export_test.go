package sessions

import (
	"time"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// NewSessionForTest builds an unsupervised session.
func NewSessionForTest(id, identity string, startedAt time.Time) *Session {
	return newSession(sessionParams{
		id:        id,
		identity:  identity,
		authMode:  models.AuthModePairingCode,
		startedAt: startedAt,
	})
}
