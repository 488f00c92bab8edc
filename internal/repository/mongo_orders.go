package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"camera-kingdom/internal/models"
)

// sortable order fields exposed to the listing
var orderSortFields = map[string]string{
	"orderNumber": "orderNumber",
	"createdAt":   "createdAt",
	"status":      "status",
	"total":       "purchase.totalPrice",
}

type OrderRepositoryMongo struct {
	collection *mongo.Collection
}

func NewOrderRepository(collection *mongo.Collection) *OrderRepositoryMongo {
	return &OrderRepositoryMongo{collection: collection}
}

// Create inserts the order and returns the generated id
func (r *OrderRepositoryMongo) Create(ctx context.Context, order *models.Order) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	order.ID = primitive.NewObjectID().Hex()
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, order); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrDuplicateOrderNumber
		}
		return "", err
	}
	return order.ID, nil
}

func (r *OrderRepositoryMongo) FindByID(ctx context.Context, id string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *OrderRepositoryMongo) FindByNumber(ctx context.Context, number int64) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"orderNumber": number})
}

func (r *OrderRepositoryMongo) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()

	var order models.Order
	if err := r.collection.FindOne(ctx, filter).Decode(&order); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &order, nil
}

// FindByUser returns every order of a user, oldest first
func (r *OrderRepositoryMongo) FindByUser(ctx context.Context, userID string) ([]models.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "orderNumber", Value: 1}})
	return r.find(ctx, bson.M{"userId": userID}, opts)
}

// List pages through all orders
func (r *OrderRepositoryMongo) List(ctx context.Context, opts ListOptions) ([]models.Order, error) {
	findOptions := options.Find()

	if opts.Page > 0 && opts.PageSize > 0 {
		findOptions.SetSkip(int64((opts.Page - 1) * opts.PageSize))
		findOptions.SetLimit(int64(opts.PageSize))
	} else {
		findOptions.SetLimit(100)
	}

	sortField, ok := orderSortFields[opts.SortBy]
	if !ok {
		sortField = "orderNumber"
	}
	sortOrder := 1
	if opts.Desc {
		sortOrder = -1
	}
	findOptions.SetSort(bson.D{{Key: sortField, Value: sortOrder}})

	return r.find(ctx, bson.M{}, findOptions)
}

func (r *OrderRepositoryMongo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepositoryMongo) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, readTimeout)
	defer cancel()
	return r.collection.CountDocuments(ctx, bson.M{})
}

// SetStatus is a compare-and-set on the status field
func (r *OrderRepositoryMongo) SetStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	filter := bson.M{"_id": id, "status": from}
	update := bson.M{"$set": bson.M{"status": to, "updatedAt": time.Now()}}

	result, err := r.collection.UpdateOne(wctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return nil
}

func (r *OrderRepositoryMongo) SetSaga(ctx context.Context, id string, saga models.SagaState) error {
	return r.set(ctx, bson.M{"_id": id}, bson.M{saga.Kind.Field(): saga})
}

// SetDetails patches only the non-nil detail blocks
func (r *OrderRepositoryMongo) SetDetails(ctx context.Context, id string, details models.OrderDetails, allowed ...models.OrderStatus) error {
	update := bson.M{}
	if details.OrderNumber != nil {
		update["orderNumber"] = *details.OrderNumber
	}
	if details.Customer != nil {
		update["customer"] = *details.Customer
	}
	if details.Shipping != nil {
		update["shipping"] = *details.Shipping
	}
	if len(update) == 0 {
		return nil
	}

	filter := bson.M{"_id": id}
	if len(allowed) > 0 {
		filter["status"] = bson.M{"$in": allowed}
	}
	err := r.set(ctx, filter, update)
	if errors.Is(err, ErrNotFound) && len(allowed) > 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return ErrStatusConflict
	}
	return err
}

func (r *OrderRepositoryMongo) set(ctx context.Context, filter, update bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	update["updatedAt"] = time.Now()

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": update})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicateOrderNumber
		}
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *OrderRepositoryMongo) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
