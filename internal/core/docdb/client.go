// Package docdb defines the document database used for conversation memory.
package docdb

import (
	"context"
	"errors"
	"time"

	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// Type selects the document database backend.
type Type string

// Supported backends. Cosmos DB is reached through its MongoDB API.
const (
	TypeMongoDB  Type = "mongodb"
	TypeCosmosDB Type = "cosmosdb"
)

// ErrCorruptDocument is returned when a stored document exists but cannot be decoded.
var ErrCorruptDocument = errors.New("stored document is corrupt")

// Client defines the interface for a document database client.
type Client interface {
	// Memories returns the conversation memory collection.
	Memories() MemoriesCollection

	// EnsureIndexes creates the indexes the collections rely on.
	EnsureIndexes(ctx context.Context) error

	// Ping verifies the database connection.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close(ctx context.Context) error
}

// MemoriesCollection stores one ConversationMemory document per user.
type MemoriesCollection interface {
	// Get returns the memory for userID, nil if absent, or ErrCorruptDocument.
	Get(ctx context.Context, userID string) (*models.ConversationMemory, error)

	// Put replaces (or creates) the memory document.
	Put(ctx context.Context, memory *models.ConversationMemory) error

	// Delete removes the memory for userID and reports whether it existed.
	Delete(ctx context.Context, userID string) (bool, error)

	// DeleteInactiveSince removes memories last touched before cutoff.
	DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error)
}
