package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"camera-kingdom/internal/cart"
	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/events"
	"camera-kingdom/internal/history"
	"camera-kingdom/internal/identity"
	"camera-kingdom/internal/ledger"
	"camera-kingdom/internal/metrics"
	"camera-kingdom/internal/models"
	"camera-kingdom/internal/repository"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

// flakyProducts fails ConsumeStock for one product id.
type flakyProducts struct {
	repository.ProductRepository
	mu     sync.Mutex
	failID string
}

func (f *flakyProducts) ConsumeStock(ctx context.Context, id string, qty int) error {
	f.mu.Lock()
	fail := f.failID == id
	f.mu.Unlock()
	if fail {
		return errors.New("socket closed")
	}
	return f.ProductRepository.ConsumeStock(ctx, id, qty)
}

func (f *flakyProducts) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failID = ""
}

// closingLedger runs close once right before the next Consume.
type closingLedger struct {
	*ledger.Ledger
	close func()
}

func (l *closingLedger) Consume(ctx context.Context, items []models.LineItem) (ledger.Result, error) {
	if c := l.close; c != nil {
		l.close = nil
		c()
	}
	return l.Ledger.Consume(ctx, items)
}

type fixture struct {
	store     repository.Store
	products  *flakyProducts
	cart      *cart.Service
	history   *history.Syncer
	checkout  *Orchestrator
	publisher *recordingPublisher
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T, stock map[string]int) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	for id, s := range stock {
		require.NoError(t, store.Products.Create(ctx, &models.Product{ID: id, Brand: "Canon", Model: "R" + id, Price: 100, Stock: s}))
	}

	logger := zap.NewNop()
	products := &flakyProducts{ProductRepository: store.Products}
	m := metrics.New(prometheus.NewRegistry())
	carts := cart.NewService(products, store.Users, logger)
	mirror := history.NewSyncer(store.Orders, store.Users, logger)
	publisher := &recordingPublisher{}

	o := New(store.Orders, store.Counters, ledger.New(products, logger, m), carts, mirror, publisher, logger, m)
	require.NoError(t, o.SeedOrderNumbers(ctx))

	return &fixture{store: store, products: products, cart: carts, history: mirror, checkout: o, publisher: publisher, metrics: m}
}

func (f *fixture) fillCart(t *testing.T, userID string, qty map[string]int) []models.CartLine {
	t.Helper()
	ctx := context.Background()
	var lines []models.CartLine
	for id, q := range qty {
		_, err := f.cart.Add(ctx, userID, id)
		require.NoError(t, err)
		lines, err = f.cart.SetQuantity(ctx, userID, id, q)
		require.NoError(t, err)
	}
	return lines
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.store.Products.FindByID(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

func validRequest(lines []models.CartLine) Request {
	return Request{
		Lines:    lines,
		Contact:  Contact{Name: "Ada Lovelace", Phone: "0501234567", Email: "ada@example.com"},
		Shipping: models.Shipping{Street: "Herzl", House: "12", City: "Haifa", Delivery: models.DeliveryStandard},
		Card: Card{
			CardholderName: "ADA LOVELACE",
			Number:         "4580 1234 5678 9012",
			Expiration:     "09/29",
			CVC:            "123",
		},
		Confirmed: true,
	}
}

var customer = identity.Principal{UserID: "u1", Name: "ada"}

func TestCompleteOrderStandardDelivery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int{"p1": 5})
	lines := f.fillCart(t, "u1", map[string]int{"p1": 2})

	id, err := f.checkout.CompleteOrder(ctx, customer, validRequest(lines))
	require.NoError(t, err)

	order, err := f.store.Orders.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, int64(1000), order.OrderNumber)
	assert.Equal(t, 200.0, order.Purchase.ProductsPrice)
	assert.Equal(t, 0.0, order.Purchase.ShippingPrice)
	assert.Equal(t, 200.0, order.Purchase.TotalPrice)
	assert.Nil(t, order.Purchase.DiscountedPrice)
	assert.Equal(t, "**** **** **** 9012", order.Payment.CardNumber)
	assert.Equal(t, []string{StepOrderCreated, StepStockConsumed, StepCartCleared, StepHistorySynced}, order.Saga.Completed)
	assert.Equal(t, []string{"p1"}, order.Saga.Consumed)

	assert.Equal(t, 3, f.stock(t, "p1"))

	remaining, err := f.cart.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	mirror, err := f.history.Orders(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mirror, 1)
	assert.Equal(t, id, mirror[0].ID)

	require.Len(t, f.publisher.events, 1)
	assert.Equal(t, events.OrderCreated, f.publisher.events[0].Type)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Checkouts.WithLabelValues(metrics.OutcomeOK)))
}

func TestCompleteOrderPricing(t *testing.T) {
	tests := []struct {
		name       string
		delivery   string
		coupon     *models.Coupon
		shipping   float64
		total      float64
		discounted *float64
	}{
		{name: "express under threshold", delivery: models.DeliveryExpress, shipping: 60, total: 260},
		{
			name:       "express with coupon",
			delivery:   models.DeliveryExpress,
			coupon:     &models.Coupon{Code: "TEN", DiscountPercent: 10},
			shipping:   60,
			total:      260,
			discounted: ptr(234.0),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t, map[string]int{"p1": 5})
			req := validRequest(f.fillCart(t, "u1", map[string]int{"p1": 2}))
			req.Shipping.Delivery = tt.delivery
			req.Coupon = tt.coupon

			id, err := f.checkout.CompleteOrder(ctx, customer, req)
			require.NoError(t, err)

			order, err := f.store.Orders.FindByID(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, 200.0, order.Purchase.ProductsPrice)
			assert.Equal(t, tt.shipping, order.Purchase.ShippingPrice)
			assert.Equal(t, tt.total, order.Purchase.TotalPrice)
			assert.Equal(t, tt.discounted, order.Purchase.DiscountedPrice)
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestOrderNumbersIncrease(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int{"p1": 5})

	var numbers []int64
	for range 2 {
		lines := f.fillCart(t, "u1", map[string]int{"p1": 1})
		id, err := f.checkout.CompleteOrder(ctx, customer, validRequest(lines))
		require.NoError(t, err)
		order, err := f.store.Orders.FindByID(ctx, id)
		require.NoError(t, err)
		numbers = append(numbers, order.OrderNumber)
	}
	assert.Equal(t, []int64{1000, 1001}, numbers)
}

func TestValidationHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int{"p1": 5})
	lines := f.fillCart(t, "u1", map[string]int{"p1": 1})

	_, err := f.checkout.CompleteOrder(ctx, customer, Request{Lines: lines})
	var ve *errs.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "name", ve.Field)

	req := validRequest(lines)
	req.Confirmed = false
	_, err = f.checkout.CompleteOrder(ctx, customer, req)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "confirmed", ve.Field)

	count, err := f.store.Orders.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, 5, f.stock(t, "p1"))
	assert.Empty(t, f.publisher.events)
}

func TestStockConflictBeforeCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int{"p1": 5})
	lines := f.fillCart(t, "u1", map[string]int{"p1": 4})

	// Someone else bought most of the stock meanwhile.
	require.NoError(t, f.store.Products.ConsumeStock(ctx, "p1", 3))

	_, err := f.checkout.CompleteOrder(ctx, customer, validRequest(lines))
	var conflict *errs.StockConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, 2, conflict.Conflicts[0].Available)

	count, err := f.store.Orders.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestConsumeFailureLeavesPendingOrderAndResumes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int{"p1": 5, "p2": 5})
	lines := f.fillCart(t, "u1", map[string]int{"p1": 1, "p2": 2})

	f.products.failID = lines[1].Product.ID
	failedID, untouchedID := lines[1].Product.ID, lines[0].Product.ID

	id, err := f.checkout.CompleteOrder(ctx, customer, validRequest(lines))
	require.Error(t, err)
	require.NotEmpty(t, id)

	var pf *errs.PartialFailureError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, StepStockConsumed, pf.Failed)
	assert.Equal(t, []string{StepOrderCreated}, pf.Completed)
	assert.ErrorIs(t, err, errs.ErrOrderCreatedButStockConsumeFailed)
	assert.Equal(t, "failed to complete the operation, please contact support", errs.UserMessage(err))

	order, err := f.store.Orders.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, []string{untouchedID}, order.Saga.Consumed)
	assert.Equal(t, StepStockConsumed, order.Saga.FailedStep)

	remaining, err := f.cart.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, remaining, 2, "cart is kept until the saga gets past stock")

	f.products.heal()
	require.NoError(t, f.checkout.Resume(ctx, id))

	order, err = f.store.Orders.FindByID(ctx, id)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, order.Saga.Consumed)
	assert.Empty(t, order.Saga.FailedStep)
	assert.Equal(t, 5-lines[0].Quantity, f.stock(t, untouchedID), "resume does not consume twice")
	assert.Equal(t, 5-lines[1].Quantity, f.stock(t, failedID))

	remaining, err = f.cart.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, remaining, 2, "resume leaves the cart alone")

	require.NoError(t, f.checkout.Resume(ctx, id), "resuming a finished saga is a no-op")
}

func TestOrderClosedDuringConsumeGetsStockBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int{"p1": 5})
	lines := f.fillCart(t, "u1", map[string]int{"p1": 2})

	stock := &closingLedger{Ledger: ledger.New(f.products, zap.NewNop(), f.metrics)}
	stock.close = func() {
		placed, err := f.store.Orders.FindByUser(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, placed, 1)
		require.NoError(t, f.store.Orders.SetStatus(ctx, placed[0].ID, models.StatusPending, models.StatusCanceled))
	}
	o := New(f.store.Orders, f.store.Counters, stock, f.cart, f.history, f.publisher, zap.NewNop(), f.metrics)

	id, err := o.CompleteOrder(ctx, customer, validRequest(lines))
	require.Error(t, err)
	require.NotEmpty(t, id)
	assert.ErrorIs(t, err, errs.ErrIllegalTransition)

	var pf *errs.PartialFailureError
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, StepStockConsumed, pf.Failed)

	assert.Equal(t, 5, f.stock(t, "p1"), "stock taken for a canceled order is handed back")
	order, err := f.store.Orders.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, order.Status)
	assert.Empty(t, order.Saga.Consumed)
	assert.Empty(t, f.publisher.events, "no order.created for a canceled order")
}

func TestResumeGuards(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int{"p1": 5})

	assert.ErrorIs(t, f.checkout.Resume(ctx, "missing"), errs.ErrNotFound)

	lines := f.fillCart(t, "u1", map[string]int{"p1": 1})
	id, err := f.checkout.CompleteOrder(ctx, customer, validRequest(lines))
	require.NoError(t, err)
	require.NoError(t, f.store.Orders.SetStatus(ctx, id, models.StatusPending, models.StatusConfirmed))

	assert.ErrorIs(t, f.checkout.Resume(ctx, id), errs.ErrIllegalTransition)
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, map[string]int{"p1": 1})

	users := []string{"u1", "u2"}
	reqs := make([]Request, len(users))
	for i, u := range users {
		reqs[i] = validRequest(f.fillCart(t, u, map[string]int{"p1": 1}))
	}

	var wg sync.WaitGroup
	errsOut := make([]error, len(users))
	for i, u := range users {
		wg.Add(1)
		go func(i int, u string) {
			defer wg.Done()
			_, errsOut[i] = f.checkout.CompleteOrder(ctx, identity.Principal{UserID: u}, reqs[i])
		}(i, u)
	}
	wg.Wait()

	var ok int
	for _, err := range errsOut {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, errs.ErrStockConflict)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 0, f.stock(t, "p1"))
}
