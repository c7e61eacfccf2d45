// Package mongodb stores conversation memory in MongoDB or in a Cosmos DB
// account through its MongoDB API.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/unifiedui/chat-gateway/internal/core/docdb"
)

const defaultConnectTimeout = 10 * time.Second

// ClientConfig holds MongoDB connection configuration.
type ClientConfig struct {
	URI                string
	DatabaseName       string
	AppName            string
	ConnectTimeout     time.Duration
	DisableRetryWrites bool
}

// Client implements docdb.Client.
type Client struct {
	client   *mongo.Client
	memories *MemoriesCollection
}

// NewClient connects, pings the primary and returns a ready client.
func NewClient(ctx context.Context, config *ClientConfig) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if config.URI == "" {
		return nil, fmt.Errorf("mongodb URI is required")
	}
	if config.DatabaseName == "" {
		return nil, fmt.Errorf("database name is required")
	}

	timeout := config.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	opts := options.Client().
		ApplyURI(config.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)
	if config.AppName != "" {
		opts.SetAppName(config.AppName)
	}
	if config.DisableRetryWrites {
		opts.SetRetryWrites(false)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	c := &Client{
		client:   client,
		memories: NewMemoriesCollection(client.Database(config.DatabaseName)),
	}
	if err := c.Ping(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return c, nil
}

func (c *Client) Memories() docdb.MemoriesCollection {
	return c.memories
}

// Ping checks that the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb ping failed: %w", err)
	}
	return nil
}

func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect from mongodb: %w", err)
	}
	return nil
}

// EnsureIndexes creates the indexes memory lookups and the retention sweep use.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	if err := c.memories.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("failed to ensure memories indexes: %w", err)
	}
	return nil
}
