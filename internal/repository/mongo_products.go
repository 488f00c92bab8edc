package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"camera-kingdom/internal/models"
)

const (
	writeTimeout = 5 * time.Second
	readTimeout  = 3 * time.Second
	listTimeout  = 10 * time.Second
)

type ProductRepositoryMongo struct {
	collection *mongo.Collection
}

func NewProductRepository(collection *mongo.Collection) *ProductRepositoryMongo {
	return &ProductRepositoryMongo{
		collection: collection,
	}
}

// Create inserts a new product with the given initial stock
func (r *ProductRepositoryMongo) Create(ctx context.Context, product *models.Product) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if product.ID == "" {
		product.ID = primitive.NewObjectID().Hex()
	}
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	product.IsDeleted = false

	_, err := r.collection.InsertOne(ctx, product)
	return err
}

// FindByID returns a product that has not been deleted
func (r *ProductRepositoryMongo) FindByID(ctx context.Context, id string) (*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var product models.Product
	filter := bson.M{
		"_id":       id,
		"isDeleted": false,
	}

	err := r.collection.FindOne(ctx, filter).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &product, nil
}

// FindAll lists every live product ordered by brand and model
func (r *ProductRepositoryMongo) FindAll(ctx context.Context) ([]*models.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	findOptions := options.Find().SetSort(bson.D{{Key: "brand", Value: 1}, {Key: "model", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"isDeleted": false}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products := make([]*models.Product, 0)
	if err = cursor.All(ctx, &products); err != nil {
		return nil, err
	}

	return products, nil
}

// Delete soft-deletes a product
func (r *ProductRepositoryMongo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	filter := bson.M{
		"_id":       id,
		"isDeleted": false,
	}

	update := bson.M{
		"$set": bson.M{
			"isDeleted": true,
			"updatedAt": time.Now(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}

// ConsumeStock decrements stock in a single conditional update, so two
// concurrent buyers of the last unit cannot both succeed
func (r *ProductRepositoryMongo) ConsumeStock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("consume %s: quantity must be positive, got %d", id, qty)
	}

	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	filter := bson.M{
		"_id":       id,
		"isDeleted": false,
		"stock":     bson.M{"$gte": qty},
	}
	update := bson.M{
		"$inc": bson.M{"stock": -qty},
		"$set": bson.M{"updatedAt": time.Now()},
	}

	result, err := r.collection.UpdateOne(wctx, filter, update)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		// Either the product is gone or the guard rejected the decrement.
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrInsufficientStock
	}

	return nil
}

// RestoreStock increments stock of a live product
func (r *ProductRepositoryMongo) RestoreStock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("restore %s: quantity must be positive, got %d", id, qty)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	filter := bson.M{
		"_id":       id,
		"isDeleted": false,
	}
	update := bson.M{
		"$inc": bson.M{"stock": qty},
		"$set": bson.M{"updatedAt": time.Now()},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return ErrNotFound
	}

	return nil
}
