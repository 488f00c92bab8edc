package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"camera-kingdom/internal/models"
)

// NewMemoryStore returns a Store kept in process memory. Every method is
// atomic for the single document it touches, like the Mongo implementation.
func NewMemoryStore() Store {
	return Store{
		Products: NewMemoryProducts(),
		Orders:   NewMemoryOrders(),
		Users:    NewMemoryUsers(),
		Counters: NewMemoryCounters(),
		Coupons:  NewMemoryCoupons(),
	}
}

type MemoryProducts struct {
	mu    sync.RWMutex
	items map[string]models.Product
}

func NewMemoryProducts() *MemoryProducts {
	return &MemoryProducts{items: make(map[string]models.Product)}
}

func (m *MemoryProducts) Create(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if _, ok := m.items[product.ID]; ok {
		return fmt.Errorf("product %s already exists", product.ID)
	}
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	product.IsDeleted = false

	p := *product
	p.Images = slices.Clone(product.Images)
	m.items[p.ID] = p
	return nil
}

func (m *MemoryProducts) FindByID(_ context.Context, id string) (*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.items[id]
	if !ok || p.IsDeleted {
		return nil, ErrNotFound
	}
	p.Images = slices.Clone(p.Images)
	return &p, nil
}

func (m *MemoryProducts) FindAll(_ context.Context) ([]*models.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.Product, 0, len(m.items))
	for _, p := range m.items {
		if p.IsDeleted {
			continue
		}
		p.Images = slices.Clone(p.Images)
		out = append(out, &p)
	}
	slices.SortFunc(out, func(a, b *models.Product) int {
		return cmp.Or(cmp.Compare(a.Brand, b.Brand), cmp.Compare(a.Model, b.Model))
	})
	return out, nil
}

func (m *MemoryProducts) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.items[id]
	if !ok || p.IsDeleted {
		return ErrNotFound
	}
	p.IsDeleted = true
	p.UpdatedAt = time.Now()
	m.items[id] = p
	return nil
}

func (m *MemoryProducts) ConsumeStock(_ context.Context, id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("consume %s: quantity must be positive, got %d", id, qty)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.items[id]
	if !ok || p.IsDeleted {
		return ErrNotFound
	}
	if p.Stock < qty {
		return ErrInsufficientStock
	}
	p.Stock -= qty
	p.UpdatedAt = time.Now()
	m.items[id] = p
	return nil
}

func (m *MemoryProducts) RestoreStock(_ context.Context, id string, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("restore %s: quantity must be positive, got %d", id, qty)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.items[id]
	if !ok || p.IsDeleted {
		return ErrNotFound
	}
	p.Stock += qty
	p.UpdatedAt = time.Now()
	m.items[id] = p
	return nil
}

type MemoryOrders struct {
	mu    sync.RWMutex
	items map[string]models.Order
}

func NewMemoryOrders() *MemoryOrders {
	return &MemoryOrders{items: make(map[string]models.Order)}
}

func (m *MemoryOrders) Create(_ context.Context, order *models.Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.numberTaken(order.OrderNumber, "") {
		return "", ErrDuplicateOrderNumber
	}
	order.ID = uuid.NewString()
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	m.items[order.ID] = order.Clone()
	return order.ID, nil
}

func (m *MemoryOrders) numberTaken(number int64, except string) bool {
	for id, o := range m.items {
		if id != except && o.OrderNumber == number {
			return true
		}
	}
	return false
}

func (m *MemoryOrders) FindByID(_ context.Context, id string) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	o = o.Clone()
	return &o, nil
}

func (m *MemoryOrders) FindByNumber(_ context.Context, number int64) (*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, o := range m.items {
		if o.OrderNumber == number {
			o = o.Clone()
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryOrders) FindByUser(_ context.Context, userID string) ([]models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Order, 0)
	for _, o := range m.items {
		if o.UserID == userID {
			out = append(out, o.Clone())
		}
	}
	slices.SortFunc(out, func(a, b models.Order) int { return cmp.Compare(a.OrderNumber, b.OrderNumber) })
	return out, nil
}

func (m *MemoryOrders) List(_ context.Context, opts ListOptions) ([]models.Order, error) {
	m.mu.RLock()
	all := make([]models.Order, 0, len(m.items))
	for _, o := range m.items {
		all = append(all, o.Clone())
	}
	m.mu.RUnlock()

	slices.SortFunc(all, func(a, b models.Order) int {
		var c int
		switch opts.SortBy {
		case "createdAt":
			c = a.CreatedAt.Compare(b.CreatedAt)
		case "status":
			c = cmp.Compare(a.Status, b.Status)
		case "total":
			c = cmp.Compare(a.Purchase.TotalPrice, b.Purchase.TotalPrice)
		default:
			c = cmp.Compare(a.OrderNumber, b.OrderNumber)
		}
		if opts.Desc {
			return -c
		}
		return c
	})

	limit := 100
	skip := 0
	if opts.Page > 0 && opts.PageSize > 0 {
		limit = opts.PageSize
		skip = (opts.Page - 1) * opts.PageSize
	}
	if skip >= len(all) {
		return []models.Order{}, nil
	}
	return all[skip:min(skip+limit, len(all))], nil
}

func (m *MemoryOrders) Count(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.items)), nil
}

func (m *MemoryOrders) SetStatus(_ context.Context, id string, from, to models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	if o.Status != from {
		return ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	m.items[id] = o
	return nil
}

func (m *MemoryOrders) SetSaga(_ context.Context, id string, saga models.SagaState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	s := saga.Clone()
	if saga.Kind == models.SagaCheckout {
		o.Saga = &s
	} else {
		o.Reversal = &s
	}
	o.UpdatedAt = time.Now()
	m.items[id] = o
	return nil
}

func (m *MemoryOrders) SetDetails(_ context.Context, id string, details models.OrderDetails, allowed ...models.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	if len(allowed) > 0 && !slices.Contains(allowed, o.Status) {
		return ErrStatusConflict
	}
	if details.OrderNumber != nil {
		if m.numberTaken(*details.OrderNumber, id) {
			return ErrDuplicateOrderNumber
		}
		o.OrderNumber = *details.OrderNumber
	}
	if details.Customer != nil {
		o.Customer = *details.Customer
	}
	if details.Shipping != nil {
		o.Shipping = *details.Shipping
	}
	o.UpdatedAt = time.Now()
	m.items[id] = o
	return nil
}

func (m *MemoryOrders) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

type MemoryUsers struct {
	mu    sync.RWMutex
	items map[string]models.User
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{items: make(map[string]models.User)}
}

func (m *MemoryUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Cart = models.CloneLines(u.Cart)
	u.Orders = cloneOrders(u.Orders)
	return &u, nil
}

func (m *MemoryUsers) Upsert(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.items[user.ID]
	u.ID = user.ID
	u.DisplayName = user.DisplayName
	u.Email = user.Email
	m.items[user.ID] = u
	return nil
}

func (m *MemoryUsers) SetCart(_ context.Context, userID string, lines []models.CartLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.items[userID]
	u.ID = userID
	u.Cart = models.CloneLines(lines)
	m.items[userID] = u
	return nil
}

func (m *MemoryUsers) SetOrders(_ context.Context, userID string, orders []models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.items[userID]
	u.ID = userID
	u.Orders = cloneOrders(orders)
	m.items[userID] = u
	return nil
}

func cloneOrders(orders []models.Order) []models.Order {
	if orders == nil {
		return nil
	}
	out := make([]models.Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}

type MemoryCounters struct {
	mu     sync.Mutex
	values map[string]int64
}

func NewMemoryCounters() *MemoryCounters {
	return &MemoryCounters{values: make(map[string]int64)}
}

func (m *MemoryCounters) Next(_ context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[name]++
	return m.values[name], nil
}

func (m *MemoryCounters) Seed(_ context.Context, name string, floor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[name] < floor {
		m.values[name] = floor
	}
	return nil
}

type MemoryCoupons struct {
	mu    sync.RWMutex
	items map[string]models.Coupon
}

func NewMemoryCoupons(coupons ...models.Coupon) *MemoryCoupons {
	m := &MemoryCoupons{items: make(map[string]models.Coupon)}
	for _, c := range coupons {
		m.items[c.Code] = c
	}
	return m
}

// Put adds or replaces a coupon.
func (m *MemoryCoupons) Put(c models.Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[c.Code] = c
}

func (m *MemoryCoupons) FindByCode(_ context.Context, code string) (*models.Coupon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.items[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}
