package repository

import (
	"context"
	"errors"

	"camera-kingdom/internal/models"
)

//go:generate mockgen -source=repository.go -destination=mocks/repository_mock.go -package=mocks

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrInsufficientStock is returned by ConsumeStock when the stored stock is
	// lower than the requested quantity. Nothing is written in that case.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrStatusConflict is returned by SetStatus when the stored status no
	// longer equals the expected one.
	ErrStatusConflict = errors.New("status changed concurrently")
	// ErrDuplicateOrderNumber is returned when an order number is already taken.
	ErrDuplicateOrderNumber = errors.New("order number already in use")
)

// ProductRepository stores catalog products. ConsumeStock and RestoreStock are
// single-document atomic operations.
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id string) (*models.Product, error)
	FindAll(ctx context.Context) ([]*models.Product, error)
	Delete(ctx context.Context, id string) error
	// ConsumeStock decrements stock by qty only if stock >= qty.
	ConsumeStock(ctx context.Context, id string, qty int) error
	RestoreStock(ctx context.Context, id string, qty int) error
}

// ListOptions pages and sorts an order listing.
type ListOptions struct {
	Page     int
	PageSize int
	SortBy   string
	Desc     bool
}

// OrderRepository stores order documents.
type OrderRepository interface {
	// Create stores the order and assigns its id.
	Create(ctx context.Context, order *models.Order) (string, error)
	FindByID(ctx context.Context, id string) (*models.Order, error)
	FindByNumber(ctx context.Context, number int64) (*models.Order, error)
	FindByUser(ctx context.Context, userID string) ([]models.Order, error)
	List(ctx context.Context, opts ListOptions) ([]models.Order, error)
	Count(ctx context.Context) (int64, error)
	// SetStatus moves the order from one status to another, failing with
	// ErrStatusConflict when the stored status is not from.
	SetStatus(ctx context.Context, id string, from, to models.OrderStatus) error
	SetSaga(ctx context.Context, id string, saga models.SagaState) error
	// SetDetails patches the non-nil detail blocks. When allowed is given
	// the write only applies while the stored status is one of them and
	// fails with ErrStatusConflict otherwise.
	SetDetails(ctx context.Context, id string, details models.OrderDetails, allowed ...models.OrderStatus) error
	Delete(ctx context.Context, id string) error
}

// UserRepository stores the per-user cart and order-history mirror.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	Upsert(ctx context.Context, user *models.User) error
	SetCart(ctx context.Context, userID string, lines []models.CartLine) error
	SetOrders(ctx context.Context, userID string, orders []models.Order) error
}

// CounterRepository hands out monotonically increasing sequence values.
type CounterRepository interface {
	// Next atomically increments the named counter and returns the new value.
	Next(ctx context.Context, name string) (int64, error)
	// Seed raises the counter to at least floor. It never lowers it.
	Seed(ctx context.Context, name string, floor int64) error
}

// CouponRepository is the read-only coupon lookup.
type CouponRepository interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// Store bundles the collections the engine works with.
type Store struct {
	Products ProductRepository
	Orders   OrderRepository
	Users    UserRepository
	Counters CounterRepository
	Coupons  CouponRepository
}
