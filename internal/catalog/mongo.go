package catalog

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/pricepulse/pulse/internal/market"
)

// Mongo reads the asset catalog from a MongoDB collection. It never writes.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
}

// ConnectMongo dials uri, pings it and returns a catalog over
// database.collection.
func ConnectMongo(ctx context.Context, uri, database, collection string, logger *zap.Logger) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("catalog: connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("catalog: ping mongo: %w", err)
	}

	logger.Info("connected to MongoDB", zap.String("database", database), zap.String("collection", collection))
	return &Mongo{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger,
	}, nil
}

// Assets returns every document in the collection ordered by rank.
func (m *Mongo) Assets(ctx context.Context) ([]market.Asset, error) {
	cur, err := m.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "rank", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("catalog: find assets: %w", err)
	}
	defer cur.Close(ctx)

	var assets []market.Asset
	if err := cur.All(ctx, &assets); err != nil {
		return nil, fmt.Errorf("catalog: decode assets: %w", err)
	}
	return assets, nil
}

// Close disconnects the underlying client.
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
