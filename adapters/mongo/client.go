package mongo

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	defaultDatabase       = "sapa"
	connectTimeout        = 10 * time.Second
	serverSelectTimeout   = 5 * time.Second
	interactionLogMaxPool = 10
)

// ClientConfig holds connection settings for the interaction log store.
// Required fields:
// - URI: MongoDB connection string
type ClientConfig struct {
	URI      string // Required: connection string
	Database string // Optional: database name, defaults to "sapa"
}

// ClientConfigFromEnv reads MONGODB_URI and MONGODB_DATABASE.
func ClientConfigFromEnv() ClientConfig {
	return ClientConfig{
		URI:      os.Getenv("MONGODB_URI"),
		Database: os.Getenv("MONGODB_DATABASE"),
	}
}

// ValidateClientConfig validates the ClientConfig.
func ValidateClientConfig(config ClientConfig) error {
	if config.URI == "" {
		return fmt.Errorf("MongoDB URI is required")
	}
	return nil
}

// Client owns the connection behind the interaction log.
type Client struct {
	client   *mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

// NewClient connects and pings. The pool stays small; the interaction log
// is append-mostly with an occasional history read.
func NewClient(config ClientConfig, logger *zap.Logger) (*Client, error) {
	if err := ValidateClientConfig(config); err != nil {
		return nil, err
	}
	if config.Database == "" {
		logger.Info("Using default database name", zap.String("database", defaultDatabase))
		config.Database = defaultDatabase
	}

	opts := options.Client().
		ApplyURI(config.URI).
		SetMaxPoolSize(interactionLogMaxPool).
		SetServerSelectionTimeout(serverSelectTimeout).
		SetConnectTimeout(connectTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect interaction log store: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("ping interaction log store: %w", err)
	}

	logger.Info("Interaction log store connected", zap.String("database", config.Database))
	return &Client{
		client:   client,
		Database: client.Database(config.Database),
		logger:   logger,
	}, nil
}

// Close disconnects from the store.
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		c.logger.Error("Interaction log store disconnect failed", zap.Error(err))
		return err
	}
	c.logger.Info("Interaction log store disconnected")
	return nil
}
