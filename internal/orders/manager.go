// Package orders owns the order status lifecycle.
//
// Only the Manager writes an order's status. Every status change is a
// compare-and-set on the stored value and is followed by a full resync of the
// owner's order-history mirror. Refund and cancel return stock through the
// stock ledger as a saga with explicit compensation.
package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"camera-kingdom/internal/checkout"
	"camera-kingdom/internal/errs"
	"camera-kingdom/internal/events"
	"camera-kingdom/internal/identity"
	"camera-kingdom/internal/ledger"
	"camera-kingdom/internal/metrics"
	"camera-kingdom/internal/models"
	"camera-kingdom/internal/repository"
	"camera-kingdom/internal/saga"
)

type StockLedger interface {
	Consume(ctx context.Context, items []models.LineItem) (ledger.Result, error)
	Restore(ctx context.Context, items []models.LineItem) (ledger.Result, error)
}

type Mirror interface {
	Sync(ctx context.Context, userID string) error
}

// Page is one page of the admin order listing.
type Page struct {
	Orders []models.Order `json:"orders"`
	Total  int64          `json:"total"`
}

var statusEvents = map[models.OrderStatus]string{
	models.StatusConfirmed:  events.OrderConfirmed,
	models.StatusProcessing: events.OrderProcessing,
	models.StatusShipped:    events.OrderShipped,
	models.StatusCompleted:  events.OrderCompleted,
	models.StatusCanceled:   events.OrderCanceled,
	models.StatusRefunded:   events.OrderRefunded,
}

type Manager struct {
	orders    repository.OrderRepository
	stock     StockLedger
	mirror    Mirror
	runner    *saga.Runner
	publisher events.Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
	metrics   *metrics.Metrics
}

func NewManager(
	orders repository.OrderRepository,
	stock StockLedger,
	mirror Mirror,
	publisher events.Publisher,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Manager {
	return &Manager{
		orders:    orders,
		stock:     stock,
		mirror:    mirror,
		runner:    saga.NewRunner(orders, logger),
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("camera-kingdom/orders"),
		metrics:   m,
	}
}

// Get returns the order if p owns it or is an admin.
func (m *Manager) Get(ctx context.Context, id string, p identity.Principal) (*models.Order, error) {
	order, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Owns(order.UserID) {
		return nil, forbidden(id)
	}
	return order, nil
}

// List pages through all orders and counts them concurrently.
func (m *Manager) List(ctx context.Context, opts repository.ListOptions) (Page, error) {
	var page Page
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		page.Orders, err = m.orders.List(gctx, opts)
		return err
	})
	g.Go(func() error {
		var err error
		page.Total, err = m.orders.Count(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Page{}, fmt.Errorf("list orders: %w", err)
	}
	return page, nil
}

// Confirm moves a Pending order to Confirmed. An order whose checkout never
// got its stock consumed cannot be confirmed until checkout is resumed.
func (m *Manager) Confirm(ctx context.Context, id string) (*models.Order, error) {
	return m.transition(ctx, id, models.StatusConfirmed, func(o *models.Order) error {
		if o.Saga != nil && !o.Saga.Done(checkout.StepStockConsumed) {
			return &errs.IllegalTransitionError{
				OrderID: o.ID, From: string(o.Status), To: string(models.StatusConfirmed),
				Reason: "stock for this order was not consumed, resume checkout first",
			}
		}
		return nil
	})
}

func (m *Manager) Process(ctx context.Context, id string) (*models.Order, error) {
	return m.transition(ctx, id, models.StatusProcessing, nil)
}

func (m *Manager) Ship(ctx context.Context, id string) (*models.Order, error) {
	return m.transition(ctx, id, models.StatusShipped, nil)
}

func (m *Manager) Complete(ctx context.Context, id string) (*models.Order, error) {
	return m.transition(ctx, id, models.StatusCompleted, nil)
}

// Cancel moves a Pending order to Canceled on behalf of its owner (or an
// admin) and returns the stock its checkout consumed. An order whose checkout
// is still running cannot be canceled: the stock it is about to consume is
// not on the cursor yet.
func (m *Manager) Cancel(ctx context.Context, id string, p identity.Principal) (*models.Order, error) {
	order, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Owns(order.UserID) {
		return nil, forbidden(id)
	}
	if s := order.Saga; s != nil && !s.Done(checkout.StepHistorySynced) && s.FailedStep == "" {
		m.metrics.Transition(string(models.StatusCanceled), metrics.OutcomeFailed)
		return nil, &errs.IllegalTransitionError{
			OrderID: id, From: string(order.Status), To: string(models.StatusCanceled),
			Reason: "checkout of this order is still running",
		}
	}
	return m.reverse(ctx, order, cancelReversal)
}

// Refund moves a Completed order to Refunded and returns its stock.
//
// The status is set first, then stock is restored, then the mirror is
// synced. If restoring or syncing fails, the restored stock is consumed
// again and the status goes back to Completed; the caller gets a
// *errs.PartialFailureError with Compensated set. If that rollback fails the
// caller gets a *errs.CompensationFailedError and an operator has to step in.
func (m *Manager) Refund(ctx context.Context, id string) (*models.Order, error) {
	order, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return m.reverse(ctx, order, refundReversal)
}

// Delete removes the order document. Stock is not touched.
func (m *Manager) Delete(ctx context.Context, id string) error {
	order, err := m.load(ctx, id)
	if err != nil {
		return err
	}
	if err := m.orders.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errs.NotFound("order", id)
		}
		return fmt.Errorf("delete order %s: %w", id, err)
	}

	m.logger.Info("order deleted",
		zap.String("order_id", id),
		zap.Int64("order_number", order.OrderNumber),
		zap.String("status", string(order.Status)),
	)
	m.sync(ctx, order)
	m.publish(ctx, events.OrderDeleted, order, nil)
	return nil
}

// UpdateDetails corrects the contact, the shipping address or the order
// number of an order that is not closed yet. The delivery option is priced
// into the purchase and cannot change.
func (m *Manager) UpdateDetails(ctx context.Context, id string, details models.OrderDetails) (*models.Order, error) {
	order, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !Editable(order.Status) {
		return nil, &errs.IllegalTransitionError{
			OrderID: id, From: string(order.Status), To: string(order.Status),
			Reason: "closed orders can no longer be edited",
		}
	}

	if c := details.Customer; c != nil {
		if err := checkout.ValidateContact(checkout.Contact{Name: c.Name, Phone: c.Phone, Email: c.Email}); err != nil {
			return nil, err
		}
		merged := order.Customer
		merged.Name = strings.TrimSpace(c.Name)
		merged.Phone = strings.TrimSpace(c.Phone)
		merged.Email = strings.TrimSpace(c.Email)
		details.Customer = &merged
	}

	if s := details.Shipping; s != nil {
		merged := *s
		if merged.Delivery == "" {
			merged.Delivery = order.Shipping.Delivery
		}
		if merged.Delivery != order.Shipping.Delivery {
			return nil, errs.Invalid("delivery", "immutable", "the delivery option is part of the price and cannot be changed")
		}
		if err := checkout.ValidateShipping(merged); err != nil {
			return nil, err
		}
		details.Shipping = &merged
	}

	if n := details.OrderNumber; n != nil {
		if *n < 1 {
			return nil, errs.Invalid("orderNumber", checkout.CodeInvalid, "order number must be positive")
		}
		other, err := m.orders.FindByNumber(ctx, *n)
		switch {
		case err == nil && other.ID != id:
			return nil, duplicateNumber(*n)
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("check order number %d: %w", *n, err)
		}
	}

	if err := m.orders.SetDetails(ctx, id, details, editable...); err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateOrderNumber):
			return nil, duplicateNumber(*details.OrderNumber)
		case errors.Is(err, repository.ErrNotFound):
			return nil, errs.NotFound("order", id)
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, &errs.IllegalTransitionError{
				OrderID: id, From: string(order.Status), To: string(order.Status),
				Reason: "order was closed while it was being edited",
			}
		}
		return nil, fmt.Errorf("update order %s: %w", id, err)
	}

	if details.OrderNumber != nil {
		order.OrderNumber = *details.OrderNumber
	}
	if details.Customer != nil {
		order.Customer = *details.Customer
	}
	if details.Shipping != nil {
		order.Shipping = *details.Shipping
	}

	m.logger.Info("order details updated", zap.String("order_id", id), zap.String("user_id", order.UserID))
	m.sync(ctx, order)
	m.publish(ctx, events.OrderDetailsUpdated, order, nil)
	return order, nil
}

func (m *Manager) transition(ctx context.Context, id string, to models.OrderStatus, guard func(*models.Order) error) (*models.Order, error) {
	ctx, span := m.tracer.Start(ctx, "orders.transition")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", id), attribute.String("order.to", string(to)))

	order, err := m.load(ctx, id)
	if err == nil {
		err = checkEdge(order, to)
	}
	if err == nil && guard != nil {
		err = guard(order)
	}
	if err == nil {
		err = m.setStatus(ctx, order, order.Status, to)
	}
	if err != nil {
		m.metrics.Transition(string(to), metrics.OutcomeFailed)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	from := order.Status
	order.Status = to
	m.metrics.Transition(string(to), metrics.OutcomeOK)
	span.SetStatus(codes.Ok, "")
	m.logger.Info("order status changed",
		zap.String("order_id", id),
		zap.String("user_id", order.UserID),
		zap.String("from", string(from)),
		zap.String("status", string(to)),
	)

	m.sync(ctx, order)
	m.publish(ctx, statusEvents[to], order, map[string]any{"from": string(from)})
	return order, nil
}

// checkEdge rejects a transition the lifecycle has no edge for.
func checkEdge(order *models.Order, to models.OrderStatus) error {
	if CanTransition(order.Status, to) {
		return nil
	}
	reason := fmt.Sprintf("allowed from %s: %v", order.Status, Next(order.Status))
	switch {
	case order.Status.Terminal():
		reason = "order is closed"
	case to == models.StatusConfirmed:
		reason = "order was already processed"
	}
	return &errs.IllegalTransitionError{OrderID: order.ID, From: string(order.Status), To: string(to), Reason: reason}
}

// setStatus maps the store's compare-and-set errors onto the taxonomy.
func (m *Manager) setStatus(ctx context.Context, order *models.Order, from, to models.OrderStatus) error {
	err := m.orders.SetStatus(ctx, order.ID, from, to)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStatusConflict):
		return &errs.IllegalTransitionError{
			OrderID: order.ID, From: string(from), To: string(to),
			Reason: "status changed concurrently",
		}
	case errors.Is(err, repository.ErrNotFound):
		return errs.NotFound("order", order.ID)
	default:
		return fmt.Errorf("set status of order %s to %s: %w", order.ID, to, err)
	}
}

func (m *Manager) load(ctx context.Context, id string) (*models.Order, error) {
	order, err := m.orders.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errs.NotFound("order", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", id, err)
	}
	return order, nil
}

// sync rebuilds the owner's mirror. The mirror is derived data, so a failure
// is logged and healed by the next sync rather than failing the transition.
func (m *Manager) sync(ctx context.Context, order *models.Order) {
	if err := m.mirror.Sync(ctx, order.UserID); err != nil {
		m.logger.Warn("order mirror sync failed",
			zap.String("order_id", order.ID),
			zap.String("user_id", order.UserID),
			zap.Error(err),
		)
	}
}

func (m *Manager) publish(ctx context.Context, eventType string, order *models.Order, payload map[string]any) {
	if eventType == "" {
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payload["orderNumber"] = order.OrderNumber
	payload["status"] = string(order.Status)

	if err := m.publisher.Publish(ctx, events.New(eventType, order.ID, order.UserID, payload)); err != nil {
		m.logger.Warn("publish order event",
			zap.String("order_id", order.ID),
			zap.String("event", eventType),
			zap.Error(err),
		)
	}
}

func forbidden(id string) error {
	return fmt.Errorf("order %s: %w", id, errs.ErrForbidden)
}

func duplicateNumber(n int64) error {
	return errs.Invalid("orderNumber", "duplicate", fmt.Sprintf("order number %d is already in use", n))
}

// consumedItems returns the line items whose stock the checkout saga took.
// Orders written before the saga cursor existed are treated as fully
// consumed.
func consumedItems(order *models.Order) []models.LineItem {
	if order.Saga == nil {
		return slices.Clone(order.Purchase.Items)
	}
	var out []models.LineItem
	for _, it := range order.Purchase.Items {
		if slices.Contains(order.Saga.Consumed, it.ProductID) {
			out = append(out, it)
		}
	}
	return out
}
