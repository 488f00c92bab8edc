package repository

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"camera-kingdom/internal/models"
)

type counterDoc struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

type CounterRepositoryMongo struct {
	collection *mongo.Collection
}

func NewCounterRepository(collection *mongo.Collection) *CounterRepositoryMongo {
	return &CounterRepositoryMongo{collection: collection}
}

// Next increments the counter document with findOneAndUpdate and returns the
// post-increment value
func (r *CounterRepositoryMongo) Next(ctx context.Context, name string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var doc counterDoc
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&doc)
	if err != nil {
		return 0, err
	}
	return doc.Seq, nil
}

func (r *CounterRepositoryMongo) Seed(ctx context.Context, name string, floor int64) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": name},
		bson.M{"$max": bson.M{"seq": floor}},
		options.Update().SetUpsert(true),
	)
	return err
}

type CouponRepositoryMongo struct {
	collection *mongo.Collection
}

func NewCouponRepository(collection *mongo.Collection) *CouponRepositoryMongo {
	return &CouponRepositoryMongo{collection: collection}
}

func (r *CouponRepositoryMongo) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var coupon models.Coupon
	if err := r.collection.FindOne(ctx, bson.M{"_id": code}).Decode(&coupon); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &coupon, nil
}

// NewMongoStore wires every collection of db into a Store.
func NewMongoStore(db *mongo.Database) Store {
	return Store{
		Products: NewProductRepository(db.Collection("products")),
		Orders:   NewOrderRepository(db.Collection("orders")),
		Users:    NewUserRepository(db.Collection("users")),
		Counters: NewCounterRepository(db.Collection("counters")),
		Coupons:  NewCouponRepository(db.Collection("coupons")),
	}
}
