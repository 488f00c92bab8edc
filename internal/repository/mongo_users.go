package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"camera-kingdom/internal/models"
)

type UserRepositoryMongo struct {
	collection *mongo.Collection
}

func NewUserRepository(collection *mongo.Collection) *UserRepositoryMongo {
	return &UserRepositoryMongo{collection: collection}
}

func (r *UserRepositoryMongo) FindByID(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var user models.User
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// Upsert stores the profile fields, leaving cart and orders untouched
func (r *UserRepositoryMongo) Upsert(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"displayName": user.DisplayName,
			"email":       user.Email,
		},
		"$setOnInsert": bson.M{
			"cart":   []models.CartLine{},
			"orders": []models.Order{},
		},
	}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": user.ID}, update, options.Update().SetUpsert(true))
	return err
}

func (r *UserRepositoryMongo) SetCart(ctx context.Context, userID string, lines []models.CartLine) error {
	if lines == nil {
		lines = []models.CartLine{}
	}
	return r.set(ctx, userID, "cart", lines)
}

func (r *UserRepositoryMongo) SetOrders(ctx context.Context, userID string, orders []models.Order) error {
	if orders == nil {
		orders = []models.Order{}
	}
	return r.set(ctx, userID, "orders", orders)
}

// set replaces one field; the user record is created on first write
func (r *UserRepositoryMongo) set(ctx context.Context, userID, field string, value any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{field: value}},
		options.Update().SetUpsert(true),
	)
	return err
}
