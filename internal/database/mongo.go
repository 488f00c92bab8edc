package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const connectTimeout = 10 * time.Second

// Connect opens a client and verifies the primary is reachable.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is empty")
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return client, nil
}

// EnsureIndexes creates the indexes the engine relies on. The unique index on
// orderNumber is what makes order numbers unique across concurrent checkouts.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	_, err := db.Collection("orders").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "orderNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("orderNumber_unique"),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "orderNumber", Value: 1}},
			Options: options.Index().SetName("userId_orderNumber"),
		},
	})
	if err != nil {
		return fmt.Errorf("create order indexes: %w", err)
	}

	_, err = db.Collection("products").Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "isDeleted", Value: 1}, {Key: "brand", Value: 1}},
		Options: options.Index().SetName("isDeleted_brand"),
	})
	if err != nil {
		return fmt.Errorf("create product indexes: %w", err)
	}
	return nil
}
