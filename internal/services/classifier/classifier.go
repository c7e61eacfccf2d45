// Package classifier turns transport envelopes into routing decisions.
package classifier

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// DefaultPrefix marks a command when no prefix is configured.
const DefaultPrefix = "."

// OwnerSource resolves the privileged user id.
type OwnerSource interface {
	OwnerID(ctx context.Context) string
}

// Classifier decides whether an envelope is a command, plain text or noise.
type Classifier struct {
	prefix string
	owners OwnerSource
}

// New creates a classifier. prefix must be a single character; owners may
// be nil, in which case nobody is privileged.
func New(prefix string, owners OwnerSource) (*Classifier, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if utf8.RuneCountInString(prefix) != 1 {
		return nil, fmt.Errorf("command prefix must be a single character, got %q", prefix)
	}
	return &Classifier{prefix: prefix, owners: owners}, nil
}

// Prefix returns the command prefix.
func (c *Classifier) Prefix() string {
	return c.prefix
}

// IsCommandText reports whether text would be read as prefixed.
func (c *Classifier) IsCommandText(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), c.prefix)
}

// Classify returns the routing decision for env together with its
// normalized form. The InboundMessage is zero for ClassIgnore.
func (c *Classifier) Classify(ctx context.Context, env *models.Envelope) (models.Classification, models.InboundMessage) {
	if env == nil || env.FromSelf {
		return models.Classification{Kind: models.ClassIgnore}, models.InboundMessage{}
	}
	raw := env.Text()
	text := strings.TrimSpace(raw)
	if text == "" {
		return models.Classification{Kind: models.ClassIgnore}, models.InboundMessage{}
	}

	msg := models.InboundMessage{
		SenderID:   env.SenderID,
		SenderName: env.SenderName,
		RawText:    raw,
		Timestamp:  env.Timestamp,
	}
	if c.owners != nil {
		msg.FromPrivilegedUser = models.IsOwner(env.SenderID, c.owners.OwnerID(ctx))
	}

	if strings.HasPrefix(text, c.prefix) {
		fields := strings.Fields(strings.TrimPrefix(text, c.prefix))
		if len(fields) > 0 {
			return models.Classification{
				Kind: models.ClassCommand,
				Name: strings.ToLower(fields[0]),
				Args: fields[1:],
			}, msg
		}
	}

	return models.Classification{Kind: models.ClassPlainText, Text: text}, msg
}
