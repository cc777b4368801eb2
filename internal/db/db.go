// Package db manages the MongoDB connection behind the mongo store backend.
package db

import (
	"context" // For connection timeout/cancellation
	"fmt"     // Error formatting
	"time"    // Duration for timeouts

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"  // MongoDB options
	"go.mongodb.org/mongo-driver/v2/mongo/readpref" // MongoDB read preference

	"github.com/PaulBabatuyi/messenger-core/internal/docstore/mongostore"
)

// Collection names. Each is the first segment of the store paths kept in it.
const (
	MessagesCollection       = "messages"
	RecentMessagesCollection = "recent_messages"
	UsersCollection          = "users"
	CredentialsCollection    = "credentials"
)

// Client wraps mongo.Client and the chat database.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused)
	client *mongo.Client

	// db holds every collection of the store; paths map onto it via mongostore
	db *mongo.Database
}

// New connects to MongoDB, pings it and returns a Client for database.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	// SetConnectTimeout: fail fast if MongoDB is unreachable
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// The ping is the actual connection test
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(database), // created lazily on first write
	}, nil
}

// Database returns the chat database.
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// CreateIndexes creates the indexes the store's listeners and lookups use.
func (c *Client) CreateIndexes(ctx context.Context) error {
	// ===== CONVERSATION AND INBOX LISTENERS =====
	// A listener selects one parent path and orders by timestamp
	listenIndex := mongo.IndexModel{
		Keys: bson.D{{Key: mongostore.ParentField, Value: 1}, {Key: "timestamp", Value: 1}},
	}
	for _, name := range []string{MessagesCollection, RecentMessagesCollection} {
		if _, err := c.db.Collection(name).Indexes().CreateOne(ctx, listenIndex); err != nil {
			return fmt.Errorf("failed to create %s index: %w", name, err)
		}
	}

	// ===== USERS COLLECTION INDEX =====
	// Profiles are looked up by email when a session starts a conversation.
	// Uniqueness is enforced by the credentials _id, not here.
	usersIndex := mongo.IndexModel{Keys: bson.D{{Key: "email", Value: 1}}}
	if _, err := c.db.Collection(UsersCollection).Indexes().CreateOne(ctx, usersIndex); err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	return nil
}
