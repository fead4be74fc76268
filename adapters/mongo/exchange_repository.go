package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/wicaksana/sapa-server/domain/entities"
	"github.com/wicaksana/sapa-server/domain/repositories"
)

const exchangeCollection = "exchanges"

// ExchangeRepository stores answered interactions in MongoDB.
type ExchangeRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.ExchangeRepository = (*ExchangeRepository)(nil)

// NewExchangeRepository creates a MongoDB-backed exchange log.
func NewExchangeRepository(client *Client, logger *zap.Logger) *ExchangeRepository {
	return &ExchangeRepository{
		collection: client.Database.Collection(exchangeCollection),
		logger:     logger,
	}
}

// Append stores one answered interaction.
func (r *ExchangeRepository) Append(ctx context.Context, exchange *entities.Exchange) error {
	if exchange.CreatedAt.IsZero() {
		exchange.CreatedAt = time.Now()
	}

	result, err := r.collection.InsertOne(ctx, exchange)
	if err != nil {
		return fmt.Errorf("failed to insert exchange: %w", err)
	}
	if oid, ok := result.InsertedID.(interface{ Hex() string }); ok {
		r.logger.Debug("Exchange logged",
			zap.String("id", oid.Hex()),
			zap.String("userId", exchange.UserID))
	}
	return nil
}

// ListByUser returns the most recent exchanges for a user, newest first.
func (r *ExchangeRepository) ListByUser(ctx context.Context, userID string, limit int) ([]entities.Exchange, error) {
	if limit <= 0 {
		limit = 20
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query exchanges: %w", err)
	}
	defer cursor.Close(ctx)

	var exchanges []entities.Exchange
	if err := cursor.All(ctx, &exchanges); err != nil {
		return nil, fmt.Errorf("failed to decode exchanges: %w", err)
	}
	return exchanges, nil
}
