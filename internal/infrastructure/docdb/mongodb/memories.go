package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/unifiedui/chat-gateway/internal/core/docdb"
	"github.com/unifiedui/chat-gateway/internal/domain/models"
)

// MemoriesCollectionName is the name of the conversation memory collection.
const MemoriesCollectionName = "memories"

// MemoriesCollection implements docdb.MemoriesCollection for MongoDB.
type MemoriesCollection struct {
	collection *mongo.Collection
}

// NewMemoriesCollection creates a new memories collection wrapper.
func NewMemoriesCollection(db *mongo.Database) *MemoriesCollection {
	return &MemoriesCollection{
		collection: db.Collection(MemoriesCollectionName),
	}
}

// Get retrieves the memory document for a user.
func (c *MemoriesCollection) Get(ctx context.Context, userID string) (*models.ConversationMemory, error) {
	result := c.collection.FindOne(ctx, bson.M{"_id": userID})
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get memory: %w", err)
	}

	var memory models.ConversationMemory
	if err := result.Decode(&memory); err != nil {
		return nil, fmt.Errorf("%w: %v", docdb.ErrCorruptDocument, err)
	}
	if memory.UserInfo == nil {
		memory.UserInfo = map[string]string{}
	}
	return &memory, nil
}

// Put replaces the memory document, inserting it when absent.
func (c *MemoriesCollection) Put(ctx context.Context, memory *models.ConversationMemory) error {
	if memory == nil || memory.UserID == "" {
		return fmt.Errorf("memory user ID is required")
	}

	_, err := c.collection.ReplaceOne(ctx,
		bson.M{"_id": memory.UserID},
		memory,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save memory: %w", err)
	}
	return nil
}

// Delete removes the memory document for a user.
func (c *MemoriesCollection) Delete(ctx context.Context, userID string) (bool, error) {
	result, err := c.collection.DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return false, fmt.Errorf("failed to delete memory: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// DeleteInactiveSince removes documents whose last interaction is before cutoff.
func (c *MemoriesCollection) DeleteInactiveSince(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := c.collection.DeleteMany(ctx, bson.M{
		"lastInteractionAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete inactive memories: %w", err)
	}
	return result.DeletedCount, nil
}

// EnsureIndexes creates the retention index.
func (c *MemoriesCollection) EnsureIndexes(ctx context.Context) error {
	_, err := c.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "lastInteractionAt", Value: 1}},
		Options: options.Index().SetName("idx_last_interaction"),
	})
	if err != nil {
		return fmt.Errorf("failed to create memories index: %w", err)
	}
	return nil
}
