// Package checkout turns a cart into an order.
//
// CompleteOrder validates the request, prices it and runs the checkout saga:
//
//	order_created -> stock_consumed -> cart_cleared -> history_synced
//
// Each step runs only after the previous one succeeded and the cursor is
// persisted on the order after every step. A failure after the order exists
// leaves the order in place, Pending, and is reported as a
// *errs.PartialFailureError; Resume replays the remaining steps.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/events"
	"camera-kingdom/internal/identity"
	"camera-kingdom/internal/ledger"
	"camera-kingdom/internal/metrics"
	"camera-kingdom/internal/models"
	"camera-kingdom/internal/repository"
	"camera-kingdom/internal/saga"
)

// Saga steps.
const (
	StepOrderCreated  = "order_created"
	StepStockConsumed = "stock_consumed"
	StepCartCleared   = "cart_cleared"
	StepHistorySynced = "history_synced"
)

// OrderNumberCounter names the counter document order numbers come from.
const OrderNumberCounter = "orderNumber"

// firstOrderNumber is the number given to the first order ever placed.
const firstOrderNumber = 1000

const maxNumberAttempts = 3

type StockLedger interface {
	Consume(ctx context.Context, items []models.LineItem) (ledger.Result, error)
	Restore(ctx context.Context, items []models.LineItem) (ledger.Result, error)
}

type Cart interface {
	Check(ctx context.Context, lines []models.CartLine) error
	Clear(ctx context.Context, userID string) error
}

type Mirror interface {
	Sync(ctx context.Context, userID string) error
}

// Request is everything the customer submits at checkout.
type Request struct {
	Lines        []models.CartLine
	Contact      Contact
	Shipping     models.Shipping
	Card         Card
	Coupon       *models.Coupon
	Installments int
	Confirmed    bool
}

type Orchestrator struct {
	orders    repository.OrderRepository
	counters  repository.CounterRepository
	stock     StockLedger
	cart      Cart
	mirror    Mirror
	runner    *saga.Runner
	publisher events.Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
	metrics   *metrics.Metrics
}

func New(
	orders repository.OrderRepository,
	counters repository.CounterRepository,
	stock StockLedger,
	cart Cart,
	mirror Mirror,
	publisher events.Publisher,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Orchestrator {
	return &Orchestrator{
		orders:    orders,
		counters:  counters,
		stock:     stock,
		cart:      cart,
		mirror:    mirror,
		runner:    saga.NewRunner(orders, logger),
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("camera-kingdom/checkout"),
		metrics:   m,
	}
}

// SeedOrderNumbers raises the order-number counter so the next number is at
// least the size of the orders collection plus 1000. Run once at startup.
func (o *Orchestrator) SeedOrderNumbers(ctx context.Context) error {
	count, err := o.orders.Count(ctx)
	if err != nil {
		return fmt.Errorf("count orders: %w", err)
	}
	return o.counters.Seed(ctx, OrderNumberCounter, count+firstOrderNumber-1)
}

// CompleteOrder places the order and returns its id. On a partial failure
// the id of the order that was created is returned together with the error.
func (o *Orchestrator) CompleteOrder(ctx context.Context, p identity.Principal, req Request) (string, error) {
	ctx, span := o.tracer.Start(ctx, "checkout.complete_order")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", p.UserID), attribute.Int("cart.lines", len(req.Lines)))

	if err := Validate(req); err != nil {
		return "", o.reject(span, err)
	}
	if err := o.cart.Check(ctx, req.Lines); err != nil {
		return "", o.reject(span, err)
	}

	items := make([]models.LineItem, 0, len(req.Lines))
	for _, l := range req.Lines {
		items = append(items, l.LineItem())
	}
	quote := Price(items, req.Shipping.Delivery, req.Coupon)

	purchase := quote.Purchase(items, req.Installments)
	purchase.Date = time.Now().UTC()

	order := &models.Order{
		UserID:   p.UserID,
		Status:   models.StatusPending,
		Purchase: purchase,
		Customer: models.Customer{
			UserID:      p.UserID,
			DisplayName: p.Name,
			Name:        strings.TrimSpace(req.Contact.Name),
			Phone:       strings.TrimSpace(req.Contact.Phone),
			Email:       strings.TrimSpace(req.Contact.Email),
		},
		Shipping: req.Shipping,
		Payment: models.Payment{
			CardholderName: strings.TrimSpace(req.Card.CardholderName),
			CardNumber:     MaskCard(req.Card.Number),
			Expiration:     req.Card.Expiration,
		},
		Saga: &models.SagaState{
			Kind:      models.SagaCheckout,
			Completed: []string{StepOrderCreated},
			UpdatedAt: time.Now().UTC(),
		},
	}

	id, err := o.create(ctx, order)
	if err != nil {
		o.metrics.Checkout(metrics.OutcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "create order")
		return "", fmt.Errorf("create order: %w", err)
	}
	span.SetAttributes(attribute.String("order.id", id), attribute.Int64("order.number", order.OrderNumber))

	state := order.Saga.Clone()
	if err := o.runner.Run(ctx, id, &state, o.steps(order, false)); err != nil {
		return id, o.fail(span, "checkout", order, err)
	}

	o.placed(ctx, span, order)
	return id, nil
}

// Resume replays the checkout saga of a Pending order from its cursor. It is
// an operator action and is never triggered automatically. Stock already
// recorded as consumed is not consumed again and the customer's cart, which
// may hold a new selection by now, is left alone.
func (o *Orchestrator) Resume(ctx context.Context, orderID string) error {
	ctx, span := o.tracer.Start(ctx, "checkout.resume")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := o.orders.FindByID(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return errs.NotFound("order", orderID)
	}
	if err != nil {
		return fmt.Errorf("load order %s: %w", orderID, err)
	}

	if order.Saga == nil || order.Saga.Kind != models.SagaCheckout {
		return &errs.IllegalTransitionError{
			OrderID: orderID, From: string(order.Status), To: string(order.Status),
			Reason: "order has no checkout saga to resume",
		}
	}
	if order.Status != models.StatusPending {
		return &errs.IllegalTransitionError{
			OrderID: orderID, From: string(order.Status), To: string(order.Status),
			Reason: "only pending orders can be resumed",
		}
	}

	state := order.Saga.Clone()
	steps := o.steps(order, true)
	pending := saga.Pending(&state, steps)
	if len(pending) == 0 {
		return nil
	}

	o.logger.Info("resuming checkout saga",
		zap.String("order_id", orderID),
		zap.Strings("pending_steps", pending),
	)
	if err := o.runner.Run(ctx, orderID, &state, steps); err != nil {
		return o.fail(span, "checkout.resume", order, err)
	}

	o.placed(ctx, span, order)
	return nil
}

func (o *Orchestrator) steps(order *models.Order, resumed bool) []saga.Step {
	clearCart := func(ctx context.Context, _ *models.SagaState) error {
		return o.cart.Clear(ctx, order.UserID)
	}
	if resumed {
		clearCart = func(context.Context, *models.SagaState) error { return nil }
	}

	return []saga.Step{
		{Name: StepOrderCreated, Run: func(context.Context, *models.SagaState) error { return nil }},
		{Name: StepStockConsumed, Run: func(ctx context.Context, state *models.SagaState) error {
			var pending []models.LineItem
			for _, it := range order.Purchase.Items {
				if !slices.Contains(state.Consumed, it.ProductID) {
					pending = append(pending, it)
				}
			}
			res, err := o.stock.Consume(ctx, pending)
			state.Consumed = append(state.Consumed, res.AppliedIDs()...)
			if len(res.Applied) > 0 {
				if cerr := o.releaseIfClosed(ctx, order, state, res.Applied); cerr != nil {
					return cerr
				}
			}
			return err
		}},
		{Name: StepCartCleared, Run: clearCart},
		{Name: StepHistorySynced, Run: func(ctx context.Context, _ *models.SagaState) error {
			return o.mirror.Sync(ctx, order.UserID)
		}},
	}
}

// releaseIfClosed hands back the stock just consumed when the order left
// Pending while the consume was in flight. Whoever closed the order only
// restored what the cursor showed at that time.
func (o *Orchestrator) releaseIfClosed(ctx context.Context, order *models.Order, state *models.SagaState, applied []models.LineItem) error {
	current, err := o.orders.FindByID(ctx, order.ID)
	if err != nil {
		return fmt.Errorf("re-read order %s: %w", order.ID, err)
	}
	if current.Status == models.StatusPending {
		return nil
	}

	res, rerr := o.stock.Restore(ctx, applied)
	released := res.AppliedIDs()
	for _, it := range res.Skipped {
		released = append(released, it.ProductID)
	}
	state.Consumed = slices.DeleteFunc(state.Consumed, func(id string) bool { return slices.Contains(released, id) })

	o.logger.Warn("order closed during checkout, stock handed back",
		zap.String("order_id", order.ID),
		zap.String("status", string(current.Status)),
		zap.Strings("released", released),
	)
	if rerr != nil {
		return fmt.Errorf("hand back stock of %s order %s: %w", current.Status, order.ID, rerr)
	}
	return &errs.IllegalTransitionError{
		OrderID: order.ID, From: string(current.Status), To: string(current.Status),
		Reason: "order was closed while its stock was being consumed",
	}
}

// create allocates an order number and stores the order. A number that is
// already taken (an admin may have assigned it by hand) is skipped.
func (o *Orchestrator) create(ctx context.Context, order *models.Order) (string, error) {
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		n, err := o.counters.Next(ctx, OrderNumberCounter)
		if err != nil {
			return "", fmt.Errorf("next order number: %w", err)
		}
		order.OrderNumber = n

		id, err := o.orders.Create(ctx, order)
		if errors.Is(err, repository.ErrDuplicateOrderNumber) {
			o.logger.Warn("order number taken, drawing another", zap.Int64("order_number", n))
			continue
		}
		return id, err
	}
	return "", fmt.Errorf("no free order number after %d attempts: %w", maxNumberAttempts, repository.ErrDuplicateOrderNumber)
}

func (o *Orchestrator) placed(ctx context.Context, span trace.Span, order *models.Order) {
	o.metrics.Checkout(metrics.OutcomeOK)
	span.SetStatus(codes.Ok, "")

	o.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.Int64("order_number", order.OrderNumber),
		zap.String("user_id", order.UserID),
		zap.Float64("total", order.Purchase.FinalPrice()),
	)

	event := events.New(events.OrderCreated, order.ID, order.UserID, map[string]any{
		"orderNumber": order.OrderNumber,
		"total":       order.Purchase.FinalPrice(),
		"items":       len(order.Purchase.Items),
	})
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Warn("publish order event", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (o *Orchestrator) reject(span trace.Span, err error) error {
	o.metrics.Checkout(metrics.OutcomeFailed)
	span.RecordError(err)
	span.SetStatus(codes.Error, "rejected")
	return err
}

// fail converts a saga step error into the partial failure reported to the
// caller and logs it with everything an operator needs to reconcile.
func (o *Orchestrator) fail(span trace.Span, op string, order *models.Order, err error) error {
	pf := &errs.PartialFailureError{Op: op, OrderID: order.ID, Err: err}

	var stepErr *saga.StepError
	if errors.As(err, &stepErr) {
		pf.Completed = stepErr.Completed
		pf.Failed = stepErr.Step
		pf.Err = stepErr.Err
	}
	if pf.Failed == StepStockConsumed {
		pf.Err = fmt.Errorf("%w: %w", errs.ErrOrderCreatedButStockConsumeFailed, pf.Err)
	}

	o.metrics.Checkout(metrics.OutcomePartial)
	span.RecordError(pf)
	span.SetStatus(codes.Error, "partial failure")

	o.logger.Error("checkout saga stopped",
		zap.String("op", op),
		zap.String("order_id", order.ID),
		zap.Int64("order_number", order.OrderNumber),
		zap.String("user_id", order.UserID),
		zap.String("step", pf.Failed),
		zap.Strings("completed", pf.Completed),
		zap.Error(pf.Err),
	)
	return pf
}
